package ops

import (
	"github.com/xspensesai/billingkit/pkg/catalog"
)

// Action is a user-initiated billing operation.
type Action string

const (
	ActionUpgrade      Action = "upgrade"
	ActionDowngrade    Action = "downgrade"
	ActionCancel       Action = "cancel"
	ActionRetryPayment Action = "retry_payment"
	ActionUpdateCard   Action = "update_card"
	ActionCheckUsage   Action = "check_usage_limits"
	ActionRecordUsage  Action = "record_usage"
)

// Meta describes how an action must be presented to the user before
// dispatch.
type Meta struct {
	// RequiresConfirm means the caller must collect explicit user
	// confirmation first.
	RequiresConfirm bool
	// Dangerous marks operations with real monetary effect that cannot be
	// trivially undone.
	Dangerous bool
}

// actionMeta is closed over the declared Action constants; an unknown
// action never dispatches, so it never needs meta.
var actionMeta = map[Action]Meta{
	ActionUpgrade:      {RequiresConfirm: true, Dangerous: true},
	ActionDowngrade:    {RequiresConfirm: true, Dangerous: true},
	ActionCancel:       {RequiresConfirm: true, Dangerous: true},
	ActionRetryPayment: {RequiresConfirm: true, Dangerous: true},
	ActionUpdateCard:   {},
	ActionCheckUsage:   {},
	ActionRecordUsage:  {},
}

// MetaFor returns the action's presentation meta and whether the action is
// known.
func MetaFor(a Action) (Meta, bool) {
	m, ok := actionMeta[a]
	return m, ok
}

// Request is one inbound billing action. Field requirements depend on the
// action; Validate reports what is missing.
type Request struct {
	Action    Action            `json:"action"`
	PlanID    string            `json:"plan_id,omitempty"`
	Immediate bool              `json:"immediate,omitempty"`
	InvoiceID string            `json:"invoice_id,omitempty"`
	Resource  catalog.Resource  `json:"resource_type,omitempty"`
	Quantity  int64             `json:"quantity,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Result is the tagged outcome of an action. The façade never panics or
// leaks raw errors across this boundary; failures carry a stable Code for
// programmatic handling and a human-readable Message.
type Result struct {
	Status  string         `json:"status"` // "ok" or "error"
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Stable machine codes surfaced in Result.Code.
const (
	CodeValidation           = "validation_error"
	CodeAccountNotFound      = "account_not_found"
	CodeUnknownPlan          = "unknown_plan"
	CodeInvalidQuantity      = "invalid_quantity"
	CodeNoBillingAccount     = "no_billing_account"
	CodeNoActiveSubscription = "no_active_subscription"
	CodeProviderError        = "provider_error"
	CodeInternal             = "internal_error"
)

func ok(message string, data map[string]any) Result {
	return Result{Status: "ok", Message: message, Data: data}
}

func fail(code, message string) Result {
	return Result{Status: "error", Code: code, Message: message}
}
