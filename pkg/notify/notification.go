package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/xspensesai/billingkit/pkg/catalog"
)

// Type classifies a billing notification.
type Type string

const (
	TypeUsageAlert       Type = "usage_alert"
	TypePaymentFailed    Type = "payment_failed"
	TypePaymentSucceeded Type = "payment_succeeded"
	TypeTrialEnding      Type = "trial_ending"
	TypeUpcomingInvoice  Type = "upcoming_invoice"
)

// Notification is a billing event recorded for downstream delivery
// (email or in-app). The record is the system of record; delivery is
// best-effort on top of it.
type Notification struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Type      Type
	Payload   json.RawMessage
	CreatedAt time.Time
}

// UsageAlertPayload reports a resource approaching or exceeding its limit.
type UsageAlertPayload struct {
	Resource catalog.Resource `json:"resource"`
	Usage    int64            `json:"usage"`
	Limit    int64            `json:"limit"`
	Percent  int              `json:"percent"`
}

// PaymentFailedPayload reports a failed invoice payment and the grace
// window granted for it.
type PaymentFailedPayload struct {
	InvoiceID         string    `json:"invoice_id"`
	GracePeriodEndsAt time.Time `json:"grace_period_ends_at"`
}

// PaymentSucceededPayload reports a cleared invoice.
type PaymentSucceededPayload struct {
	InvoiceID string `json:"invoice_id"`
}

// TrialEndingPayload reports an approaching trial expiry.
type TrialEndingPayload struct {
	TrialEndsAt time.Time `json:"trial_ends_at"`
}

// UpcomingInvoicePayload reports a renewal invoice the provider is about
// to finalize.
type UpcomingInvoicePayload struct {
	InvoiceID string `json:"invoice_id"`
}
