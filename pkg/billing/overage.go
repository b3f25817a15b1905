package billing

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xspensesai/billingkit/pkg/catalog"
)

var ErrOverageStoreFailure = errors.New("overage store failure")

// OverageStore remembers the largest overage quantity reported to the
// provider per account, resource and billing period. Reports are absolute
// "set" calls, so a retry or out-of-order delivery must never push a value
// smaller than one already sent; the store is what enforces that.
type OverageStore interface {
	// MaxReported returns the largest quantity reported so far for the
	// period, zero when none was.
	MaxReported(ctx context.Context, accountID uuid.UUID, res catalog.Resource, periodKey string) (int64, error)
	// RecordReported stores the quantity if it exceeds the current
	// maximum.
	RecordReported(ctx context.Context, accountID uuid.UUID, res catalog.Resource, periodKey string, quantity int64) error
}

type overageKey struct {
	accountID uuid.UUID
	resource  catalog.Resource
	periodKey string
}

// memOverageStore is an in-memory OverageStore.
type memOverageStore struct {
	mu  sync.RWMutex
	max map[overageKey]int64
}

// NewMemOverageStore returns an empty in-memory OverageStore.
func NewMemOverageStore() OverageStore {
	return &memOverageStore{max: make(map[overageKey]int64)}
}

func (s *memOverageStore) MaxReported(ctx context.Context, accountID uuid.UUID, res catalog.Resource, periodKey string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.max[overageKey{accountID, res, periodKey}], nil
}

func (s *memOverageStore) RecordReported(ctx context.Context, accountID uuid.UUID, res catalog.Resource, periodKey string, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := overageKey{accountID, res, periodKey}
	if quantity > s.max[key] {
		s.max[key] = quantity
	}
	return nil
}

// pgOverageStore is the Postgres-backed OverageStore.
type pgOverageStore struct {
	pool *pgxpool.Pool
}

// NewPgOverageStore returns an OverageStore backed by the reported_overages
// table.
func NewPgOverageStore(pool *pgxpool.Pool) OverageStore {
	if pool == nil {
		panic("billing: pgxpool is required")
	}
	return &pgOverageStore{pool: pool}
}

func (s *pgOverageStore) MaxReported(ctx context.Context, accountID uuid.UUID, res catalog.Resource, periodKey string) (int64, error) {
	var max int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(quantity), 0)
		FROM reported_overages
		WHERE account_id = $1 AND resource_type = $2 AND period_key = $3`,
		accountID, string(res), periodKey,
	).Scan(&max)
	if err != nil {
		return 0, errors.Join(ErrOverageStoreFailure, err)
	}
	return max, nil
}

func (s *pgOverageStore) RecordReported(ctx context.Context, accountID uuid.UUID, res catalog.Resource, periodKey string, quantity int64) error {
	// GREATEST keeps the row monotonic under concurrent reporters.
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reported_overages (account_id, resource_type, period_key, quantity, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (account_id, resource_type, period_key)
		DO UPDATE SET
			quantity = GREATEST(reported_overages.quantity, EXCLUDED.quantity),
			updated_at = now()`,
		accountID, string(res), periodKey, quantity)
	if err != nil {
		return errors.Join(ErrOverageStoreFailure, err)
	}
	return nil
}
