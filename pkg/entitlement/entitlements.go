package entitlement

import (
	"slices"

	"github.com/google/uuid"

	"github.com/xspensesai/billingkit/pkg/catalog"
	"github.com/xspensesai/billingkit/pkg/usage"
)

// Entitlements is the computed snapshot of what an account may do right now.
// It is derived, never persisted, and recomputed on every resolution so a
// decision can never be made against limits that predate a usage write.
type Entitlements struct {
	AccountID uuid.UUID

	// PlanID is the stored plan; EffectivePlanID is the plan actually used
	// for feature and limit lookups (free when the subscription is not
	// active). The two differ only for inactive accounts.
	PlanID          string
	EffectivePlanID string

	Status          Status
	IsInTrial       bool
	IsInGracePeriod bool

	Features     []catalog.Feature
	AllowedTools []Tool

	// Limits per metered resource; nil means unlimited.
	Limits map[catalog.Resource]*int64
	// Usage totals for the current billing period.
	Usage  map[catalog.Resource]int64
	Period usage.Period

	IsWithinLimits bool
}

// HasFeature reports whether the snapshot grants the feature.
func (e *Entitlements) HasFeature(f catalog.Feature) bool {
	return slices.Contains(e.Features, f)
}

// CanUseTool reports whether the snapshot grants the tool capability.
func (e *Entitlements) CanUseTool(t Tool) bool {
	return slices.Contains(e.AllowedTools, t)
}

// WithinLimit reports whether consuming an additional quantity of the
// resource would keep the account inside its limit. A nil limit (unlimited)
// is always within; a resource the plan does not meter is treated as
// unlimited as well.
func (e *Entitlements) WithinLimit(res catalog.Resource, additional int64) bool {
	limit, metered := e.Limits[res]
	if !metered || limit == nil {
		return true
	}
	return e.Usage[res]+additional <= *limit
}

// Remaining returns how much of the resource's limit is left, and whether the
// resource is limited at all. Never negative.
func (e *Entitlements) Remaining(res catalog.Resource) (int64, bool) {
	limit, metered := e.Limits[res]
	if !metered || limit == nil {
		return 0, false
	}
	remaining := *limit - e.Usage[res]
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// UsagePercent returns usage as a percentage of the limit (uncapped, so 110
// means 10% overage), or -1 for unlimited resources.
func (e *Entitlements) UsagePercent(res catalog.Resource) int {
	limit, metered := e.Limits[res]
	if !metered || limit == nil {
		return -1
	}
	if *limit == 0 {
		return 100
	}
	return int((e.Usage[res] * 100) / *limit)
}
