// Package billing wraps the Stripe API calls the subscription flow needs.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoicePaid         = "invoice.payment_succeeded"
)

var ErrUnhandledEvent = errors.New("unhandled stripe event")

// SubscriptionState is the subset of a Stripe subscription we persist.
type SubscriptionState struct {
	ID               string
	CustomerID       string
	PriceID          string
	Status           string
	CurrentPeriodEnd time.Time
}

// Event is a verified webhook event reduced to what the billing flow reads.
type Event struct {
	Type           string
	UserID         string
	CustomerID     string
	SubscriptionID string
	Subscription   *SubscriptionState
}

type Options struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	PortalReturn  string
}

type StripeClient struct {
	sc   *client.API
	opts Options
}

func NewStripeClient(opts Options) *StripeClient {
	sc := &client.API{}
	sc.Init(opts.SecretKey, nil)
	return &StripeClient{sc: sc, opts: opts}
}

func (c *StripeClient) CreateCustomer(ctx context.Context, userID uuid.UUID, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID.String())

	cust, err := c.sc.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create stripe customer: %w", err)
	}
	return cust.ID, nil
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, customerID, priceID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(c.opts.SuccessURL),
		CancelURL:         stripe.String(c.opts.CancelURL),
		ClientReferenceID: stripe.String(userID.String()),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": userID.String()},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID.String())

	session, err := c.sc.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return session.URL, nil
}

func (c *StripeClient) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(c.opts.PortalReturn),
	}
	params.Context = ctx

	session, err := c.sc.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}
	return session.URL, nil
}

func (c *StripeClient) FetchSubscription(ctx context.Context, id string) (*SubscriptionState, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := c.sc.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription %s: %w", id, err)
	}
	return subscriptionState(sub), nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func (c *StripeClient) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if c.opts.WebhookSecret == "" {
		return nil, errors.New("stripe webhook secret is not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.opts.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid webhook signature: %w", err)
	}
	return decodeEvent(event)
}

func decodeEvent(event stripe.Event) (*Event, error) {
	if event.Data == nil {
		return nil, errors.New("webhook event has no data")
	}
	out := &Event{Type: string(event.Type)}

	switch out.Type {
	case EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("error parsing checkout session: %w", err)
		}
		out.UserID = session.Metadata["user_id"]
		if out.UserID == "" {
			out.UserID = session.ClientReferenceID
		}
		if session.Customer != nil {
			out.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			out.SubscriptionID = session.Subscription.ID
		}

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("error parsing subscription: %w", err)
		}
		out.Subscription = subscriptionState(&sub)
		out.SubscriptionID = sub.ID
		out.CustomerID = out.Subscription.CustomerID
		out.UserID = sub.Metadata["user_id"]

	case EventInvoicePaid:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("error parsing invoice: %w", err)
		}
		if invoice.Customer != nil {
			out.CustomerID = invoice.Customer.ID
		}
		if invoice.Subscription != nil {
			out.SubscriptionID = invoice.Subscription.ID
		}

	default:
		return out, ErrUnhandledEvent
	}

	return out, nil
}

func subscriptionState(sub *stripe.Subscription) *SubscriptionState {
	state := &SubscriptionState{
		ID:               sub.ID,
		Status:           string(sub.Status),
		CurrentPeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}
	if sub.Customer != nil {
		state.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		state.PriceID = sub.Items.Data[0].Price.ID
	}
	return state
}
