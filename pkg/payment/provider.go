package payment

import (
	"context"
	"time"
)

// Customer is the provider-side customer record, normalized.
type Customer struct {
	ID      string
	Email   string
	Deleted bool
}

// SubscriptionItem is one priced line on a subscription.
type SubscriptionItem struct {
	ID      string
	PriceID string
}

// Subscription is the provider-side subscription, normalized to what the
// synchronizer needs.
type Subscription struct {
	ID                 string
	CustomerID         string
	Status             string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	Items              []SubscriptionItem
}

// Item returns the subscription item priced with the given price id.
func (s *Subscription) Item(priceID string) (SubscriptionItem, bool) {
	for _, item := range s.Items {
		if item.PriceID == priceID {
			return item, true
		}
	}
	return SubscriptionItem{}, false
}

// CheckoutSession is a hosted-checkout redirect.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutParams describes a hosted-checkout request. The session carries
// the account id in metadata so the webhook path can attribute the result.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	TrialDays  int64
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// PlanChangeParams describes an in-place priced-item swap on an active
// subscription.
type PlanChangeParams struct {
	SubscriptionID string
	ItemID         string
	NewPriceID     string
}

// ScheduleParams describes a two-phase transition: current pricing until the
// period boundary, then the new price.
type ScheduleParams struct {
	SubscriptionID  string
	CurrentPriceID  string
	NewPriceID      string
	PeriodBoundary  time.Time
}

// Provider is the payment provider client. All calls are single synchronous
// round trips; failures come back as *ProviderError with the provider's own
// payload preserved, and no call mutates local state.
type Provider interface {
	CreateCustomer(ctx context.Context, email string, metadata map[string]string) (*Customer, error)
	RetrieveCustomer(ctx context.Context, customerID string) (*Customer, error)

	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)

	// ListActiveSubscriptions returns the customer's active subscriptions,
	// items included.
	ListActiveSubscriptions(ctx context.Context, customerID string) ([]Subscription, error)

	// UpdateSubscriptionItem swaps a subscription's priced item in place
	// with proration, charging or crediting the partial-period difference.
	UpdateSubscriptionItem(ctx context.Context, params PlanChangeParams) error

	// CreateSubscriptionSchedule schedules a price switch at the period
	// boundary, leaving current pricing untouched until then.
	CreateSubscriptionSchedule(ctx context.Context, params ScheduleParams) error

	// CancelSubscription hard-cancels now.
	CancelSubscription(ctx context.Context, subscriptionID string) error
	// SetCancelAtPeriodEnd marks the subscription to lapse at the period
	// boundary instead of renewing.
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) error

	PayInvoice(ctx context.Context, invoiceID string) error

	CreateBillingPortalSession(ctx context.Context, customerID, returnURL string) (string, error)

	// ReportUsage sets the absolute metered quantity on a subscription
	// item. Set semantics, never increment, so retries and out-of-order
	// delivery are harmless.
	ReportUsage(ctx context.Context, itemID string, quantity int64, at time.Time) error
}

// WebhookParser verifies and normalizes inbound provider callbacks.
type WebhookParser interface {
	// ParseWebhook verifies the payload signature and maps the event into
	// the normalized Event form. Unhandled event types return an Event
	// with Type EventIgnored.
	ParseWebhook(payload []byte, signature string) (*Event, error)
}
