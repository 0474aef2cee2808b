package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/billing"
	"repcirAPI/internal/logger"
	"repcirAPI/internal/repository"
	"repcirAPI/internal/types/subscription"
	"repcirAPI/internal/types/user"
)

type PaymentProvider interface {
	CreateCustomer(ctx context.Context, userID uuid.UUID, email, name string) (string, error)
	CreateCheckoutSession(ctx context.Context, userID uuid.UUID, customerID, priceID string) (string, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
	FetchSubscription(ctx context.Context, id string) (*billing.SubscriptionState, error)
	ParseWebhook(payload []byte, signature string) (*billing.Event, error)
}

type BillingService struct {
	users         repository.UserStore
	subscriptions repository.SubscriptionStore
	provider      PaymentProvider
	now           func() time.Time
	log           zerolog.Logger
}

func NewBillingService(users repository.UserStore, subscriptions repository.SubscriptionStore, provider PaymentProvider) *BillingService {
	return &BillingService{
		users:         users,
		subscriptions: subscriptions,
		provider:      provider,
		now:           func() time.Time { return time.Now().UTC() },
		log:           logger.With("billing"),
	}
}

func (s *BillingService) enabled() error {
	if s.provider == nil {
		return apperrors.Precondition("billing is not enabled")
	}
	return nil
}

func (s *BillingService) caller(ctx context.Context, clerkID string) (*user.User, error) {
	u, err := s.users.GetUserByClerkID(ctx, clerkID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Unauthenticated("user not found")
	}
	if err != nil {
		return nil, wrap("get user", err)
	}
	return u, nil
}

// Checkout starts a subscription checkout, creating the Stripe customer on first use.
func (s *BillingService) Checkout(ctx context.Context, clerkID string, req subscription.CheckoutRequest) (*subscription.CheckoutResponse, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	u, err := s.caller(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	customerID := u.StripeCustomerID
	if customerID == "" {
		customerID, err = s.provider.CreateCustomer(ctx, u.ID, u.Email, u.DisplayName())
		if err != nil {
			return nil, wrap("create customer", err)
		}
		if err := s.users.SetStripeCustomerID(ctx, u.ID, customerID); err != nil {
			return nil, wrap("store customer id", err)
		}
	}

	url, err := s.provider.CreateCheckoutSession(ctx, u.ID, customerID, req.PriceID)
	if err != nil {
		return nil, wrap("create checkout session", err)
	}
	return &subscription.CheckoutResponse{CheckoutURL: url}, nil
}

func (s *BillingService) Portal(ctx context.Context, clerkID string) (*subscription.PortalResponse, error) {
	if err := s.enabled(); err != nil {
		return nil, err
	}
	u, err := s.caller(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	if u.StripeCustomerID == "" {
		return nil, apperrors.NotFound("no billing account")
	}

	url, err := s.provider.CreatePortalSession(ctx, u.StripeCustomerID)
	if err != nil {
		return nil, wrap("create portal session", err)
	}
	return &subscription.PortalResponse{URL: url}, nil
}

// Subscription returns the stored subscription, or status "none".
func (s *BillingService) Subscription(ctx context.Context, clerkID string) (*subscription.Subscription, error) {
	userID, err := resolveUserID(ctx, s.users, clerkID)
	if err != nil {
		return nil, err
	}
	sub, err := s.subscriptions.GetSubscription(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return &subscription.Subscription{UserID: userID, Status: subscription.StatusNone}, nil
	}
	if err != nil {
		return nil, wrap("get subscription", err)
	}
	return sub, nil
}

// HandleWebhook verifies and applies a Stripe event.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if err := s.enabled(); err != nil {
		return err
	}

	ev, err := s.provider.ParseWebhook(payload, signature)
	if errors.Is(err, billing.ErrUnhandledEvent) {
		return nil
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("Rejected stripe webhook")
		return apperrors.Validation("invalid stripe webhook", nil)
	}

	state := ev.Subscription
	switch ev.Type {
	case billing.EventCheckoutCompleted, billing.EventInvoicePaid:
		if ev.SubscriptionID == "" {
			return nil
		}
		state, err = s.provider.FetchSubscription(ctx, ev.SubscriptionID)
		if err != nil {
			return wrap("fetch subscription", err)
		}
	}
	if state == nil {
		return nil
	}

	userID, err := s.webhookUser(ctx, ev.UserID, state.CustomerID)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Warn().Str("customer_id", state.CustomerID).Str("type", ev.Type).Msg("Stripe event for unknown customer")
		return nil
	}
	if err != nil {
		return wrap("resolve stripe customer", err)
	}

	err = s.subscriptions.UpsertSubscription(ctx, &subscription.Subscription{
		UserID:               userID,
		StripeCustomerID:     state.CustomerID,
		StripeSubscriptionID: state.ID,
		StripePriceID:        state.PriceID,
		Status:               state.Status,
		CurrentPeriodEnd:     state.CurrentPeriodEnd,
		UpdatedAt:            s.now(),
	})
	if err != nil {
		return wrap("upsert subscription", err)
	}

	s.log.Info().Str("user_id", userID.String()).Str("status", state.Status).Str("type", ev.Type).Msg("Subscription updated")
	return nil
}

func (s *BillingService) webhookUser(ctx context.Context, metadataUserID, customerID string) (uuid.UUID, error) {
	if id, err := uuid.Parse(metadataUserID); err == nil {
		if _, err := s.users.GetUser(ctx, id); err == nil {
			return id, nil
		}
	}
	if customerID == "" {
		return uuid.Nil, repository.ErrNotFound
	}
	return s.users.UserIDByStripeCustomer(ctx, customerID)
}
