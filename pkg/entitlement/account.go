package entitlement

import (
	"time"

	"github.com/google/uuid"

	"github.com/xspensesai/billingkit/pkg/catalog"
)

// Status represents the subscription lifecycle state of an account.
type Status string

const (
	StatusActive     Status = "active"
	StatusTrialing   Status = "trialing"
	StatusPastDue    Status = "past_due"
	StatusCanceled   Status = "canceled"
	StatusIncomplete Status = "incomplete"
)

// Account is the billing view of a user account. Accounts are created at
// signup and soft-retained for audit; DeletedAt marks retirement instead of
// a physical delete.
type Account struct {
	ID                uuid.UUID
	Email             string
	PlanID            string
	Status            Status
	TrialEndsAt       *time.Time
	GracePeriodEndsAt *time.Time
	PaymentFailedAt   *time.Time

	// ManualFeatures are feature flags granted outside any plan,
	// e.g. by support or during a beta program.
	ManualFeatures []catalog.Feature

	// BillingCustomerID is the payment provider's customer reference.
	// Empty until the account is provisioned with the provider.
	BillingCustomerID string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IsInTrialAt reports whether the account's trial window covers the instant.
func (a *Account) IsInTrialAt(now time.Time) bool {
	return a.TrialEndsAt != nil && a.TrialEndsAt.After(now)
}

// IsInGracePeriodAt reports whether the account is inside its one-time
// post-payment-failure forgiveness window.
func (a *Account) IsInGracePeriodAt(now time.Time) bool {
	return a.GracePeriodEndsAt != nil && a.GracePeriodEndsAt.After(now)
}

// IsActiveAt reports whether the account should be treated as entitled to
// its paid plan: an active subscription, a running trial, or a running grace
// period all qualify.
func (a *Account) IsActiveAt(now time.Time) bool {
	return a.Status == StatusActive || a.IsInTrialAt(now) || a.IsInGracePeriodAt(now)
}

// EffectivePlanID is the plan used for feature and limit lookups at the given
// instant. It is a pure projection: an inactive account resolves to the free
// plan without the stored PlanID ever being touched. Persisted downgrades
// happen only through an explicit billing operation.
func EffectivePlanID(a *Account, now time.Time) string {
	if a.IsActiveAt(now) {
		return a.PlanID
	}
	return catalog.FreePlanID
}

// AddonStatus is the lifecycle state of an account add-on.
type AddonStatus string

const (
	AddonActive   AddonStatus = "active"
	AddonCanceled AddonStatus = "canceled"
)

// Addon is an independently purchasable unit granting one feature flag.
type Addon struct {
	AccountID uuid.UUID
	AddonID   string
	Feature   catalog.Feature
	Status    AddonStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
