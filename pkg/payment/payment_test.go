package payment_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/xspensesai/billingkit/pkg/catalog"
	"github.com/xspensesai/billingkit/pkg/payment"
)

func TestPriceTable(t *testing.T) {
	t.Parallel()

	table := payment.PriceTable{
		Plans: map[string]string{
			"personal": "price_personal_month",
			"business": "price_business_month",
		},
		Metered: map[catalog.Resource]string{
			catalog.ResourceOCRPages: "price_ocr_overage",
		},
	}

	id, err := table.PriceForPlan("personal")
	require.NoError(t, err)
	assert.Equal(t, "price_personal_month", id)

	_, err = table.PriceForPlan("enterprise")
	require.ErrorIs(t, err, payment.ErrUnknownPrice)

	id, err = table.PriceForResource(catalog.ResourceOCRPages)
	require.NoError(t, err)
	assert.Equal(t, "price_ocr_overage", id)

	_, err = table.PriceForResource(catalog.ResourceAPICalls)
	require.ErrorIs(t, err, payment.ErrUnknownPrice)

	planID, ok := table.PlanForPrice("price_business_month")
	require.True(t, ok)
	assert.Equal(t, "business", planID)

	_, ok = table.PlanForPrice("price_unknown")
	assert.False(t, ok)
}

func TestProviderError(t *testing.T) {
	t.Parallel()

	cause := errors.New("card_declined: Your card was declined.")
	err := &payment.ProviderError{
		Op:      "invoices.pay",
		Code:    "card_declined",
		Message: "Your card was declined.",
		Err:     cause,
	}

	assert.Contains(t, err.Error(), "invoices.pay")
	assert.Contains(t, err.Error(), "card_declined")
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("retry payment: %w", err)
	pe, ok := payment.IsProviderError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "card_declined", pe.Code)
}

func TestSubscriptionItemLookup(t *testing.T) {
	t.Parallel()

	sub := payment.Subscription{
		Items: []payment.SubscriptionItem{
			{ID: "si_1", PriceID: "price_plan"},
			{ID: "si_2", PriceID: "price_metered"},
		},
	}

	item, ok := sub.Item("price_metered")
	require.True(t, ok)
	assert.Equal(t, "si_2", item.ID)

	_, ok = sub.Item("price_missing")
	assert.False(t, ok)
}

const webhookTestSecret = "whsec_test_secret"

func signedEvent(t *testing.T, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()

	data, err := json.Marshal(object)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"id":      "evt_test_001",
		"type":    eventType,
		"created": time.Now().Unix(),
		"data":    map[string]any{"object": json.RawMessage(data)},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    webhookTestSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func newWebhookParser() payment.WebhookParser {
	return payment.NewStripeProvider(&client.API{}, webhookTestSecret)
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	payload, _ := signedEvent(t, "invoice.payment_failed", map[string]any{"id": "in_1"})

	_, err := newWebhookParser().ParseWebhook(payload, "t=0,v1=deadbeef")
	require.ErrorIs(t, err, payment.ErrInvalidWebhookSignature)
}

func TestParseWebhookCheckoutCompleted(t *testing.T) {
	t.Parallel()

	payload, sig := signedEvent(t, "checkout.session.completed", map[string]any{
		"id":           "cs_test_1",
		"customer":     "cus_123",
		"subscription": "sub_456",
		"metadata": map[string]string{
			"account_id": "0f2c6c6e-9a4e-4bb3-8e1d-3a8e86b7e001",
			"plan_id":    "personal",
		},
	})

	ev, err := newWebhookParser().ParseWebhook(payload, sig)
	require.NoError(t, err)

	assert.Equal(t, payment.EventCheckoutCompleted, ev.Type)
	assert.Equal(t, "evt_test_001", ev.ID)
	assert.Equal(t, "cus_123", ev.CustomerID)
	assert.Equal(t, "sub_456", ev.SubscriptionID)
	assert.Equal(t, "personal", ev.Metadata["plan_id"])
}

func TestParseWebhookSubscriptionLifecycle(t *testing.T) {
	t.Parallel()

	periodEnd := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	object := map[string]any{
		"id":                   "sub_456",
		"customer":             "cus_123",
		"status":               "active",
		"cancel_at_period_end": true,
		"current_period_end":   periodEnd.Unix(),
		"items": map[string]any{
			"data": []map[string]any{
				{"id": "si_1", "price": map[string]any{"id": "price_personal_month"}},
			},
		},
	}

	t.Run("updated", func(t *testing.T) {
		t.Parallel()

		payload, sig := signedEvent(t, "customer.subscription.updated", object)
		ev, err := newWebhookParser().ParseWebhook(payload, sig)
		require.NoError(t, err)

		assert.Equal(t, payment.EventSubscriptionUpdated, ev.Type)
		require.NotNil(t, ev.Subscription)
		assert.Equal(t, "active", ev.Subscription.Status)
		assert.True(t, ev.Subscription.CancelAtPeriodEnd)
		assert.Equal(t, periodEnd, ev.Subscription.CurrentPeriodEnd)

		item, ok := ev.Subscription.Item("price_personal_month")
		require.True(t, ok)
		assert.Equal(t, "si_1", item.ID)
	})

	t.Run("deleted", func(t *testing.T) {
		t.Parallel()

		payload, sig := signedEvent(t, "customer.subscription.deleted", object)
		ev, err := newWebhookParser().ParseWebhook(payload, sig)
		require.NoError(t, err)

		assert.Equal(t, payment.EventSubscriptionDeleted, ev.Type)
		assert.Equal(t, "cus_123", ev.CustomerID)
	})
}

func TestParseWebhookInvoiceEvents(t *testing.T) {
	t.Parallel()

	object := map[string]any{
		"id":           "in_789",
		"customer":     "cus_123",
		"subscription": "sub_456",
	}

	tests := []struct {
		stripeType string
		want       payment.EventType
	}{
		{"invoice.payment_failed", payment.EventPaymentFailed},
		{"invoice.payment_succeeded", payment.EventPaymentSucceeded},
		{"invoice.upcoming", payment.EventUpcomingInvoice},
	}
	for _, tc := range tests {
		t.Run(tc.stripeType, func(t *testing.T) {
			t.Parallel()

			payload, sig := signedEvent(t, tc.stripeType, object)
			ev, err := newWebhookParser().ParseWebhook(payload, sig)
			require.NoError(t, err)

			assert.Equal(t, tc.want, ev.Type)
			assert.Equal(t, "in_789", ev.InvoiceID)
			assert.Equal(t, "sub_456", ev.SubscriptionID)
		})
	}
}

func TestParseWebhookIgnoresUnhandledTypes(t *testing.T) {
	t.Parallel()

	payload, sig := signedEvent(t, "charge.refunded", map[string]any{"id": "ch_1"})

	ev, err := newWebhookParser().ParseWebhook(payload, sig)
	require.NoError(t, err)
	assert.Equal(t, payment.EventIgnored, ev.Type)
}
