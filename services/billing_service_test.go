package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repcirAPI/internal/apperrors"
	"repcirAPI/internal/billing"
	"repcirAPI/internal/types/subscription"
)

type fakeProvider struct {
	customers   int
	event       *billing.Event
	parseErr    error
	fetched     *billing.SubscriptionState
	lastCheckID string
}

func (p *fakeProvider) CreateCustomer(ctx context.Context, userID uuid.UUID, email, name string) (string, error) {
	p.customers++
	return "cus_123", nil
}

func (p *fakeProvider) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, customerID, priceID string) (string, error) {
	p.lastCheckID = customerID
	return "https://checkout.stripe.com/c/" + priceID, nil
}

func (p *fakeProvider) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	return "https://billing.stripe.com/p/" + customerID, nil
}

func (p *fakeProvider) FetchSubscription(ctx context.Context, id string) (*billing.SubscriptionState, error) {
	if p.fetched == nil {
		return nil, errors.New("not found")
	}
	return p.fetched, nil
}

func (p *fakeProvider) ParseWebhook(payload []byte, signature string) (*billing.Event, error) {
	return p.event, p.parseErr
}

func TestCheckoutCreatesCustomerOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addUser(t, "user_1")
	provider := &fakeProvider{}
	svc := NewBillingService(e.store, e.store, provider)

	resp, err := svc.Checkout(ctx, "user_1", subscription.CheckoutRequest{PriceID: "price_monthly"})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/price_monthly", resp.CheckoutURL)

	_, err = svc.Checkout(ctx, "user_1", subscription.CheckoutRequest{PriceID: "price_monthly"})
	require.NoError(t, err)
	assert.Equal(t, 1, provider.customers)
	assert.Equal(t, "cus_123", provider.lastCheckID)

	portal, err := svc.Portal(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.com/p/cus_123", portal.URL)
}

func TestPortalWithoutCustomer(t *testing.T) {
	e := newTestEnv(t)
	e.addUser(t, "user_1")
	svc := NewBillingService(e.store, e.store, &fakeProvider{})

	_, err := svc.Portal(context.Background(), "user_1")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestBillingDisabled(t *testing.T) {
	e := newTestEnv(t)
	e.addUser(t, "user_1")
	svc := NewBillingService(e.store, e.store, nil)

	_, err := svc.Checkout(context.Background(), "user_1", subscription.CheckoutRequest{PriceID: "p"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindPreconditionFailed))

	sub, err := svc.Subscription(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusNone, sub.Status)
}

func TestWebhookUpsertsSubscription(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.addUser(t, "user_1")
	periodEnd := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		event: &billing.Event{
			Type:           billing.EventCheckoutCompleted,
			UserID:         userID.String(),
			CustomerID:     "cus_123",
			SubscriptionID: "sub_1",
		},
		fetched: &billing.SubscriptionState{
			ID:               "sub_1",
			CustomerID:       "cus_123",
			PriceID:          "price_monthly",
			Status:           "active",
			CurrentPeriodEnd: periodEnd,
		},
	}
	svc := NewBillingService(e.store, e.store, provider)

	require.NoError(t, svc.HandleWebhook(ctx, []byte(`{}`), "sig"))

	sub, err := svc.Subscription(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "active", sub.Status)
	assert.Equal(t, "sub_1", sub.StripeSubscriptionID)
	assert.Equal(t, periodEnd, sub.CurrentPeriodEnd)
	assert.True(t, sub.IsPremium(periodEnd.Add(-time.Hour)))
}

func TestWebhookResolvesUserByCustomer(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	userID := e.addUser(t, "user_1")
	require.NoError(t, e.store.SetStripeCustomerID(ctx, userID, "cus_9"))

	provider := &fakeProvider{event: &billing.Event{
		Type: billing.EventSubscriptionDeleted,
		Subscription: &billing.SubscriptionState{
			ID:         "sub_1",
			CustomerID: "cus_9",
			Status:     "canceled",
		},
	}}
	svc := NewBillingService(e.store, e.store, provider)
	require.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))

	sub, err := e.store.GetSubscription(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "canceled", sub.Status)
}

func TestWebhookEdgeCases(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	svc := NewBillingService(e.store, e.store, &fakeProvider{parseErr: errors.New("bad signature")})
	err := svc.HandleWebhook(ctx, nil, "sig")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	svc = NewBillingService(e.store, e.store, &fakeProvider{parseErr: billing.ErrUnhandledEvent})
	assert.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))

	unknown := &fakeProvider{event: &billing.Event{
		Type:         billing.EventSubscriptionUpdated,
		Subscription: &billing.SubscriptionState{ID: "sub_x", CustomerID: "cus_unknown", Status: "active"},
	}}
	svc = NewBillingService(e.store, e.store, unknown)
	assert.NoError(t, svc.HandleWebhook(ctx, nil, "sig"), "unknown customers are acknowledged")
}
