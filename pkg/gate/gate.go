package gate

import (
	"context"

	"github.com/google/uuid"

	"github.com/xspensesai/billingkit/pkg/catalog"
	"github.com/xspensesai/billingkit/pkg/entitlement"
	"github.com/xspensesai/billingkit/pkg/usage"
)

// Gate decides whether a metered operation may proceed. It resolves the
// account's entitlements fresh on every check, so a decision never runs
// against limits that predate a usage write.
//
// Checking and recording are deliberately separate calls: a check never
// writes, and Record always writes whether or not the account is within its
// limit. Limits gate permission to act, not permission to log, so usage
// accounting stays accurate even when an operation is billed as overage.
type Gate struct {
	resolver *entitlement.Resolver
	ledger   *usage.Ledger
}

// New creates a Gate.
// Panics if any dependency is nil to fail fast during initialization.
func New(resolver *entitlement.Resolver, ledger *usage.Ledger) *Gate {
	if resolver == nil {
		panic("gate: resolver is required")
	}
	if ledger == nil {
		panic("gate: ledger is required")
	}
	return &Gate{resolver: resolver, ledger: ledger}
}

// Decision is the result of a gate check, carrying the numbers the decision
// was made against so callers can explain a denial.
type Decision struct {
	Allowed bool
	// GraceOverride is set when the limit check failed but the account's
	// grace period let the operation through anyway.
	GraceOverride bool
	Resource      catalog.Resource
	// Limit is nil for unlimited resources.
	Limit *int64
	Usage int64
}

// CheckLimit reports whether consuming quantity more of the resource keeps
// the account within its limit. Unlimited resources always pass. Never
// writes a usage record.
func (g *Gate) CheckLimit(ctx context.Context, accountID uuid.UUID, res catalog.Resource, quantity int64) (Decision, error) {
	ent, err := g.resolver.Resolve(ctx, accountID)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:  ent.WithinLimit(res, quantity),
		Resource: res,
		Limit:    ent.Limits[res],
		Usage:    ent.Usage[res],
	}, nil
}

// CanProceed is CheckLimit with the grace-period override: an account inside
// its one-time post-payment-failure window may proceed even over the limit.
// The override is driven entirely by the grace window's end time, never by a
// use counter.
func (g *Gate) CanProceed(ctx context.Context, accountID uuid.UUID, res catalog.Resource, quantity int64) (Decision, error) {
	ent, err := g.resolver.Resolve(ctx, accountID)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Allowed:  ent.WithinLimit(res, quantity),
		Resource: res,
		Limit:    ent.Limits[res],
		Usage:    ent.Usage[res],
	}
	if !d.Allowed && ent.IsInGracePeriod {
		d.Allowed = true
		d.GraceOverride = true
	}
	return d, nil
}

// Record appends a usage record for the account. It is not guarded by any
// limit check: callers decide whether to act via CheckLimit or CanProceed,
// then log what actually happened here.
//
// Check-then-record across two calls is not atomic; two concurrent requests
// can each pass a check before either records. Limits here are advisory and
// billable, so the soft overshoot is accepted rather than locked away.
func (g *Gate) Record(ctx context.Context, accountID uuid.UUID, res catalog.Resource, quantity int64) (*usage.Record, error) {
	return g.ledger.Record(ctx, accountID, res, quantity)
}
