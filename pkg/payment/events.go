package payment

import (
	"encoding/json"
	"time"
)

// EventType classifies an inbound provider callback after normalization.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout_completed"
	EventSubscriptionUpdated EventType = "subscription_updated"
	EventSubscriptionDeleted EventType = "subscription_deleted"
	EventPaymentFailed       EventType = "payment_failed"
	EventPaymentSucceeded    EventType = "payment_succeeded"
	EventTrialWillEnd        EventType = "trial_will_end"
	EventUpcomingInvoice     EventType = "upcoming_invoice"
	// EventIgnored is any provider event type this engine does not react
	// to. Parsed successfully so the caller can acknowledge it.
	EventIgnored EventType = "ignored"
)

// Event is a provider callback normalized to the fields the reconciler
// keys on. Raw keeps the original payload for audit logging.
type Event struct {
	ID         string
	Type       EventType
	CustomerID string

	// SubscriptionID is set for subscription and invoice events.
	SubscriptionID string
	// Subscription carries the normalized subscription state for
	// subscription lifecycle events.
	Subscription *Subscription

	// InvoiceID is set for payment events.
	InvoiceID string

	// Metadata is the provider-side metadata of the underlying object,
	// e.g. the account id and plan id stamped onto a checkout session.
	Metadata map[string]string

	OccurredAt time.Time
	Raw        json.RawMessage
}
