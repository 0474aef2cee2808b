package subscription

import (
	"time"

	"github.com/google/uuid"
)

const StatusNone = "none"

type Subscription struct {
	UserID               uuid.UUID `json:"user_id" db:"user_id"`
	StripeCustomerID     string    `json:"stripe_customer_id" db:"stripe_customer_id"`
	StripeSubscriptionID string    `json:"stripe_subscription_id" db:"stripe_subscription_id"`
	StripePriceID        string    `json:"stripe_price_id" db:"stripe_price_id"`
	Status               string    `json:"status" db:"status"`
	CurrentPeriodEnd     time.Time `json:"current_period_end" db:"current_period_end"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// IsPremium reports whether the subscription currently grants premium features.
func (s *Subscription) IsPremium(now time.Time) bool {
	if s == nil {
		return false
	}
	if s.Status != "active" && s.Status != "trialing" {
		return false
	}
	return s.CurrentPeriodEnd.IsZero() || now.Before(s.CurrentPeriodEnd)
}

type CheckoutRequest struct {
	PriceID string `json:"price_id" validate:"required"`
}

type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

type PortalResponse struct {
	URL string `json:"url"`
}
