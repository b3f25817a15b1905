package notify

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrFailedToStore = errors.New("failed to store notification")

// Storage persists notification records.
type Storage interface {
	// Save stores the notification, assigning ID and CreatedAt.
	Save(ctx context.Context, n *Notification) error
	// ListFor returns the account's notifications, newest first.
	ListFor(ctx context.Context, accountID uuid.UUID, limit int) ([]Notification, error)
}

// memStorage is an in-memory Storage for tests and single-process
// development.
type memStorage struct {
	mu            sync.RWMutex
	notifications []Notification
}

// NewMemStorage returns an empty in-memory Storage.
func NewMemStorage() Storage {
	return &memStorage{}
}

func (s *memStorage) Save(ctx context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = uuid.New()
	n.CreatedAt = time.Now().UTC()
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *memStorage) ListFor(ctx context.Context, accountID uuid.UUID, limit int) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if s.notifications[i].AccountID != accountID {
			continue
		}
		out = append(out, s.notifications[i])
		out[len(out)-1].Payload = slices.Clone(s.notifications[i].Payload)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// pgStorage is the Postgres-backed Storage over the notifications table.
type pgStorage struct {
	pool *pgxpool.Pool
}

// NewPgStorage returns a Storage backed by the notifications table.
func NewPgStorage(pool *pgxpool.Pool) Storage {
	if pool == nil {
		panic("notify: pgxpool is required")
	}
	return &pgStorage{pool: pool}
}

func (s *pgStorage) Save(ctx context.Context, n *Notification) error {
	n.ID = uuid.New()

	err := s.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, account_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING created_at`,
		n.ID, n.AccountID, string(n.Type), []byte(n.Payload),
	).Scan(&n.CreatedAt)
	if err != nil {
		return errors.Join(ErrFailedToStore, err)
	}
	return nil
}

func (s *pgStorage) ListFor(ctx context.Context, accountID uuid.UUID, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, type, payload, created_at
		FROM notifications
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		accountID, limit)
	if err != nil {
		return nil, errors.Join(ErrFailedToStore, err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.AccountID, &typ, &n.Payload, &n.CreatedAt); err != nil {
			return nil, errors.Join(ErrFailedToStore, err)
		}
		n.Type = Type(typ)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrFailedToStore, err)
	}
	return out, nil
}
