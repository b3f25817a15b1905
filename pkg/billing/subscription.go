package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSubscriptionStoreFailure = errors.New("subscription store failure")

// Subscription is the local mirror of a provider subscription. It is
// written only by the webhook reconciler; the provider remains the source
// of truth and the mirror exists for reporting and debugging.
type Subscription struct {
	ProviderID         string
	AccountID          uuid.UUID
	PlanID             string
	Status             string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SubscriptionStore persists subscription mirror rows.
type SubscriptionStore interface {
	// Upsert creates or refreshes the mirror row keyed by provider id.
	Upsert(ctx context.Context, sub Subscription) error
	// GetByProviderID returns the mirror row, or (nil, nil) when absent.
	GetByProviderID(ctx context.Context, providerID string) (*Subscription, error)
	// ListFor returns the account's mirror rows, newest first.
	ListFor(ctx context.Context, accountID uuid.UUID) ([]Subscription, error)
}

// memSubscriptionStore is an in-memory SubscriptionStore.
type memSubscriptionStore struct {
	mu   sync.RWMutex
	subs map[string]Subscription
}

// NewMemSubscriptionStore returns an empty in-memory SubscriptionStore.
func NewMemSubscriptionStore() SubscriptionStore {
	return &memSubscriptionStore{subs: make(map[string]Subscription)}
}

func (s *memSubscriptionStore) Upsert(ctx context.Context, sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.subs[sub.ProviderID]; ok {
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	s.subs[sub.ProviderID] = sub
	return nil
}

func (s *memSubscriptionStore) GetByProviderID(ctx context.Context, providerID string) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[providerID]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (s *memSubscriptionStore) ListFor(ctx context.Context, accountID uuid.UUID) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Subscription
	for _, sub := range s.subs {
		if sub.AccountID == accountID {
			out = append(out, sub)
		}
	}
	return out, nil
}

// pgSubscriptionStore is the Postgres-backed SubscriptionStore.
type pgSubscriptionStore struct {
	pool *pgxpool.Pool
}

// NewPgSubscriptionStore returns a SubscriptionStore backed by the
// subscriptions table.
func NewPgSubscriptionStore(pool *pgxpool.Pool) SubscriptionStore {
	if pool == nil {
		panic("billing: pgxpool is required")
	}
	return &pgSubscriptionStore{pool: pool}
}

func (s *pgSubscriptionStore) Upsert(ctx context.Context, sub Subscription) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions
			(provider_id, account_id, plan_id, status, cancel_at_period_end,
			 current_period_start, current_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (provider_id)
		DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = EXCLUDED.status,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = now()`,
		sub.ProviderID, sub.AccountID, sub.PlanID, sub.Status,
		sub.CancelAtPeriodEnd, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	if err != nil {
		return errors.Join(ErrSubscriptionStoreFailure, err)
	}
	return nil
}

func (s *pgSubscriptionStore) GetByProviderID(ctx context.Context, providerID string) (*Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT provider_id, account_id, plan_id, status, cancel_at_period_end,
		       current_period_start, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE provider_id = $1`,
		providerID)
	if err != nil {
		return nil, errors.Join(ErrSubscriptionStoreFailure, err)
	}
	defer rows.Close()

	subs, err := scanSubscriptions(rows)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return &subs[0], nil
}

func (s *pgSubscriptionStore) ListFor(ctx context.Context, accountID uuid.UUID) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT provider_id, account_id, plan_id, status, cancel_at_period_end,
		       current_period_start, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE account_id = $1
		ORDER BY created_at DESC`,
		accountID)
	if err != nil {
		return nil, errors.Join(ErrSubscriptionStoreFailure, err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

func scanSubscriptions(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Subscription, error) {
	var out []Subscription
	for rows.Next() {
		var sub Subscription
		err := rows.Scan(
			&sub.ProviderID, &sub.AccountID, &sub.PlanID, &sub.Status,
			&sub.CancelAtPeriodEnd, &sub.CurrentPeriodStart,
			&sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Join(ErrSubscriptionStoreFailure, err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrSubscriptionStoreFailure, err)
	}
	return out, nil
}
