package payment

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ParseWebhook verifies the Stripe signature and normalizes the event.
// Event types the engine does not react to come back as EventIgnored so the
// endpoint can acknowledge them instead of erroring.
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*Event, error) {
	stripeEvent, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, errors.Join(ErrInvalidWebhookSignature, err)
	}

	ev := &Event{
		ID:         stripeEvent.ID,
		OccurredAt: time.Unix(stripeEvent.Created, 0).UTC(),
		Raw:        stripeEvent.Data.Raw,
	}

	switch string(stripeEvent.Type) {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sess); err != nil {
			return nil, err
		}
		ev.Type = EventCheckoutCompleted
		ev.Metadata = sess.Metadata
		if sess.Customer != nil {
			ev.CustomerID = sess.Customer.ID
		}
		if sess.Subscription != nil {
			ev.SubscriptionID = sess.Subscription.ID
		}

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sub); err != nil {
			return nil, err
		}
		ev.Type = EventSubscriptionUpdated
		if string(stripeEvent.Type) == "customer.subscription.deleted" {
			ev.Type = EventSubscriptionDeleted
		}
		normalized := normalizeSubscription(&sub)
		ev.Subscription = &normalized
		ev.SubscriptionID = sub.ID
		ev.CustomerID = normalized.CustomerID
		ev.Metadata = sub.Metadata

	case "invoice.payment_failed", "invoice.payment_succeeded", "invoice.upcoming":
		var inv stripe.Invoice
		if err := json.Unmarshal(stripeEvent.Data.Raw, &inv); err != nil {
			return nil, err
		}
		switch string(stripeEvent.Type) {
		case "invoice.payment_failed":
			ev.Type = EventPaymentFailed
		case "invoice.payment_succeeded":
			ev.Type = EventPaymentSucceeded
		default:
			ev.Type = EventUpcomingInvoice
		}
		ev.InvoiceID = inv.ID
		if inv.Customer != nil {
			ev.CustomerID = inv.Customer.ID
		}
		if inv.Subscription != nil {
			ev.SubscriptionID = inv.Subscription.ID
		}

	case "customer.subscription.trial_will_end":
		var sub stripe.Subscription
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sub); err != nil {
			return nil, err
		}
		ev.Type = EventTrialWillEnd
		ev.SubscriptionID = sub.ID
		if sub.Customer != nil {
			ev.CustomerID = sub.Customer.ID
		}

	default:
		ev.Type = EventIgnored
	}

	return ev, nil
}
