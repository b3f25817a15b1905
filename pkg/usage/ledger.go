package usage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/xspensesai/billingkit/pkg/catalog"
)

// Ledger is the append-only record of consumption events, scoped to
// (account, resource, billing period). It validates and stamps records;
// persistence is delegated to a Store.
//
// The ledger never enforces limits: recording succeeds whether or not the
// account is over quota, so usage accounting stays accurate even for actions
// that are later denied or billed as overage.
type Ledger struct {
	store Store
	loc   *time.Location
	now   func() time.Time
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithLocation sets the canonical billing timezone used to bound periods.
// Defaults to UTC.
func WithLocation(loc *time.Location) LedgerOption {
	return func(l *Ledger) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLedger creates a Ledger over the given store.
// Panics if store is nil to fail fast during initialization.
func NewLedger(store Store, opts ...LedgerOption) *Ledger {
	if store == nil {
		panic("usage: Store is required")
	}

	l := &Ledger{
		store: store,
		loc:   time.UTC,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends one consumption event for the current billing period.
// Quantity must be positive; zero and negative quantities are rejected with
// ErrInvalidQuantity.
func (l *Ledger) Record(ctx context.Context, accountID uuid.UUID, res catalog.Resource, quantity int64) (*Record, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	now := l.now()
	period := CurrentPeriod(l.loc, now)

	rec := &Record{
		AccountID:   accountID,
		Resource:    res,
		Quantity:    quantity,
		Unit:        catalog.UnitFor(res),
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		RecordedAt:  now,
	}

	if err := l.store.Append(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// TotalsFor returns per-resource totals for the account within the period.
func (l *Ledger) TotalsFor(ctx context.Context, accountID uuid.UUID, period Period) (map[catalog.Resource]int64, error) {
	return l.store.TotalsFor(ctx, accountID, period)
}

// TotalFor returns the total for one resource within the period.
func (l *Ledger) TotalFor(ctx context.Context, accountID uuid.UUID, res catalog.Resource, period Period) (int64, error) {
	return l.store.TotalFor(ctx, accountID, res, period)
}

// CurrentPeriod returns the billing period containing the ledger's current
// time in its billing timezone.
func (l *Ledger) CurrentPeriod() Period {
	return CurrentPeriod(l.loc, l.now())
}
