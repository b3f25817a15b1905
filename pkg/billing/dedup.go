package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/xspensesai/billingkit/pkg/pg"
)

var ErrDedupFailure = errors.New("event dedup failure")

// Deduplicator guards webhook processing against redelivery. Seen marks the
// event id and reports whether it was already marked; Forget releases the
// mark so a failed handler can be retried on the next delivery.
type Deduplicator interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// memDeduplicator is an in-memory Deduplicator for tests and single-process
// development.
type memDeduplicator struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemDeduplicator returns an empty in-memory Deduplicator.
func NewMemDeduplicator() Deduplicator {
	return &memDeduplicator{seen: make(map[string]struct{})}
}

func (d *memDeduplicator) Seen(ctx context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[eventID]; ok {
		return true, nil
	}
	d.seen[eventID] = struct{}{}
	return false, nil
}

func (d *memDeduplicator) Forget(ctx context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, eventID)
	return nil
}

// redisDeduplicator marks events with SET NX so concurrent deliveries of
// the same event race on a single atomic write. Marks expire; providers
// stop redelivering long before the TTL runs out.
type redisDeduplicator struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisDeduplicator returns a Redis-backed Deduplicator.
// Panics if the client is nil to fail fast during initialization.
func NewRedisDeduplicator(client redis.UniversalClient, ttl time.Duration) Deduplicator {
	if client == nil {
		panic("billing: redis client is required")
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &redisDeduplicator{client: client, ttl: ttl}
}

func dedupKey(eventID string) string {
	return "billing:events:" + eventID
}

func (d *redisDeduplicator) Seen(ctx context.Context, eventID string) (bool, error) {
	set, err := d.client.SetNX(ctx, dedupKey(eventID), 1, d.ttl).Result()
	if err != nil {
		return false, errors.Join(ErrDedupFailure, err)
	}
	return !set, nil
}

func (d *redisDeduplicator) Forget(ctx context.Context, eventID string) error {
	if err := d.client.Del(ctx, dedupKey(eventID)).Err(); err != nil {
		return errors.Join(ErrDedupFailure, err)
	}
	return nil
}

// pgDeduplicator marks events in the billing_events table. Durable across
// restarts; use it when no Redis is deployed.
type pgDeduplicator struct {
	pool *pgxpool.Pool
}

// NewPgDeduplicator returns a Deduplicator backed by the billing_events
// table.
func NewPgDeduplicator(pool *pgxpool.Pool) Deduplicator {
	if pool == nil {
		panic("billing: pgxpool is required")
	}
	return &pgDeduplicator{pool: pool}
}

func (d *pgDeduplicator) Seen(ctx context.Context, eventID string) (bool, error) {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO billing_events (event_id, received_at)
		VALUES ($1, now())`,
		eventID)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return true, nil
		}
		return false, errors.Join(ErrDedupFailure, err)
	}
	return false, nil
}

func (d *pgDeduplicator) Forget(ctx context.Context, eventID string) error {
	if _, err := d.pool.Exec(ctx, `DELETE FROM billing_events WHERE event_id = $1`, eventID); err != nil {
		return errors.Join(ErrDedupFailure, err)
	}
	return nil
}
