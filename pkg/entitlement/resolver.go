package entitlement

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/xspensesai/billingkit/pkg/catalog"
	"github.com/xspensesai/billingkit/pkg/usage"
)

// UsageReader is the slice of the usage ledger the resolver needs.
type UsageReader interface {
	TotalsFor(ctx context.Context, accountID uuid.UUID, period usage.Period) (map[catalog.Resource]int64, error)
}

// Resolver combines an account's plan, manual feature overrides, active
// add-ons, subscription state and current-period usage into one Entitlements
// snapshot. It holds no per-call state and is safe for concurrent use.
type Resolver struct {
	accounts  AccountStore
	addons    AddonStore
	overrides LimitOverrideStore
	catalog   *catalog.Catalog
	ledger    UsageReader
	loc       *time.Location
	now       func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLimitOverrides wires an account-specific limit override source.
func WithLimitOverrides(store LimitOverrideStore) ResolverOption {
	return func(r *Resolver) {
		if store != nil {
			r.overrides = store
		}
	}
}

// WithLocation sets the billing timezone used to bound the current period.
// Must match the ledger's location. Defaults to UTC.
func WithLocation(loc *time.Location) ResolverOption {
	return func(r *Resolver) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver creates a Resolver.
// Panics if any required dependency is nil to fail fast during initialization.
func NewResolver(accounts AccountStore, addons AddonStore, cat *catalog.Catalog, ledger UsageReader, opts ...ResolverOption) *Resolver {
	if accounts == nil {
		panic("entitlement: AccountStore is required")
	}
	if addons == nil {
		panic("entitlement: AddonStore is required")
	}
	if cat == nil {
		panic("entitlement: catalog is required")
	}
	if ledger == nil {
		panic("entitlement: UsageReader is required")
	}

	r := &Resolver{
		accounts: accounts,
		addons:   addons,
		catalog:  cat,
		ledger:   ledger,
		loc:      time.UTC,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the entitlements snapshot for an account.
//
// The snapshot is a pure read: resolution never mutates the account, even
// when an inactive subscription projects the account down to the free plan.
// Results must not be cached across calls that might straddle a usage write.
func (r *Resolver) Resolve(ctx context.Context, accountID uuid.UUID) (*Entitlements, error) {
	acct, err := r.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	effectivePlanID := EffectivePlanID(acct, now)

	plan, err := r.catalog.Plan(effectivePlanID)
	if err != nil {
		return nil, err
	}

	features := slices.Clone(plan.Features)
	for _, f := range acct.ManualFeatures {
		if slices.Contains(catalog.KnownFeatures, f) && !slices.Contains(features, f) {
			features = append(features, f)
		}
	}

	addons, err := r.addons.ListActive(ctx, accountID)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadAddons, err)
	}
	for _, addon := range addons {
		if addon.Feature != "" && !slices.Contains(features, addon.Feature) {
			features = append(features, addon.Feature)
		}
	}
	slices.Sort(features)

	limits, err := r.limitsFor(ctx, accountID, effectivePlanID)
	if err != nil {
		return nil, err
	}

	period := usage.CurrentPeriod(r.loc, now)
	totals, err := r.ledger.TotalsFor(ctx, accountID, period)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadUsage, err)
	}

	within := true
	for res, limit := range limits {
		if limit == nil {
			continue
		}
		if totals[res] > *limit {
			within = false
			break
		}
	}

	return &Entitlements{
		AccountID:       accountID,
		PlanID:          acct.PlanID,
		EffectivePlanID: effectivePlanID,
		Status:          acct.Status,
		IsInTrial:       acct.IsInTrialAt(now),
		IsInGracePeriod: acct.IsInGracePeriodAt(now),
		Features:        features,
		AllowedTools:    ToolsForFeatures(features),
		Limits:          limits,
		Usage:           totals,
		Period:          period,
		IsWithinLimits:  within,
	}, nil
}

// limitsFor returns account override limits when present, plan limits
// otherwise.
func (r *Resolver) limitsFor(ctx context.Context, accountID uuid.UUID, planID string) (map[catalog.Resource]*int64, error) {
	if r.overrides != nil {
		overrides, err := r.overrides.OverridesFor(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if overrides != nil {
			return overrides, nil
		}
	}
	return r.catalog.LimitsFor(planID)
}
