package billing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func rawEvent(typ string, obj string) stripe.Event {
	return stripe.Event{
		Type: stripe.EventType(typ),
		Data: &stripe.EventData{Raw: json.RawMessage(obj)},
	}
}

func TestDecodeCheckoutCompleted(t *testing.T) {
	ev, err := decodeEvent(rawEvent(EventCheckoutCompleted, `{
		"id": "cs_1",
		"customer": "cus_1",
		"subscription": "sub_1",
		"metadata": {"user_id": "7b0c2f0e-55a4-4b55-9a57-0f1d0c3e9a11"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "7b0c2f0e-55a4-4b55-9a57-0f1d0c3e9a11", ev.UserID)
	assert.Equal(t, "cus_1", ev.CustomerID)
	assert.Equal(t, "sub_1", ev.SubscriptionID)
}

func TestDecodeSubscriptionUpdated(t *testing.T) {
	ev, err := decodeEvent(rawEvent(EventSubscriptionUpdated, `{
		"id": "sub_1",
		"customer": "cus_1",
		"status": "active",
		"current_period_end": 1767225600,
		"items": {"data": [{"id": "si_1", "price": {"id": "price_pro"}}]}
	}`))
	require.NoError(t, err)
	require.NotNil(t, ev.Subscription)

	assert.Equal(t, "active", ev.Subscription.Status)
	assert.Equal(t, "price_pro", ev.Subscription.PriceID)
	assert.Equal(t, "cus_1", ev.CustomerID)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), ev.Subscription.CurrentPeriodEnd)
}

func TestDecodeInvoicePaid(t *testing.T) {
	ev, err := decodeEvent(rawEvent(EventInvoicePaid, `{"id": "in_1", "customer": "cus_9", "subscription": "sub_9"}`))
	require.NoError(t, err)
	assert.Equal(t, "sub_9", ev.SubscriptionID)
	assert.Equal(t, "cus_9", ev.CustomerID)
}

func TestDecodeUnhandledEvent(t *testing.T) {
	ev, err := decodeEvent(rawEvent("charge.refunded", `{}`))
	assert.ErrorIs(t, err, ErrUnhandledEvent)
	assert.Equal(t, "charge.refunded", ev.Type)
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	c := NewStripeClient(Options{SecretKey: "sk_test", WebhookSecret: "whsec_test"})
	_, err := c.ParseWebhook([]byte(`{"type":"invoice.payment_succeeded"}`), "t=1,v1=deadbeef")
	assert.Error(t, err)

	c = NewStripeClient(Options{SecretKey: "sk_test"})
	_, err = c.ParseWebhook([]byte(`{}`), "")
	assert.ErrorContains(t, err, "not configured")
}
