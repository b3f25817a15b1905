package usage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xspensesai/billingkit/pkg/catalog"
	"github.com/xspensesai/billingkit/pkg/pg"
)

// pgStore is the Postgres-backed Store. Sequence numbers are assigned inside
// the insert statement from the current per-(account, resource) maximum; the
// primary key arbitrates concurrent writers and the loser retries with a
// fresh maximum, so every record lands with a distinct seq.
type pgStore struct {
	pool *pgxpool.Pool
}

// maxSeqRetries bounds retries when concurrent writers collide on the same
// per-(account, resource) sequence number.
const maxSeqRetries = 5

// NewPgStore returns a Store backed by the usage_records table.
func NewPgStore(pool *pgxpool.Pool) Store {
	if pool == nil {
		panic("usage: pgxpool is required")
	}
	return &pgStore{pool: pool}
}

func (s *pgStore) Append(ctx context.Context, rec *Record) error {
	var lastErr error
	for range maxSeqRetries {
		err := s.pool.QueryRow(ctx, `
			INSERT INTO usage_records
				(account_id, resource_type, quantity, unit, period_start, period_end, recorded_at, seq)
			VALUES ($1, $2, $3, $4, $5, $6, $7, (
				SELECT COALESCE(MAX(seq), 0) + 1
				FROM usage_records
				WHERE account_id = $1 AND resource_type = $2
			))
			RETURNING seq`,
			rec.AccountID, rec.Resource, rec.Quantity, rec.Unit,
			rec.PeriodStart, rec.PeriodEnd, rec.RecordedAt,
		).Scan(&rec.Seq)
		if err == nil {
			return nil
		}
		// Two recorders can read the same MAX(seq) under read committed;
		// the primary key rejects the duplicate and the insert is retried
		// with a fresh maximum.
		if !pg.IsDuplicateKeyError(err) {
			return errors.Join(ErrFailedToRecord, err)
		}
		lastErr = err
	}
	return errors.Join(ErrFailedToRecord, ErrSeqContention, lastErr)
}

func (s *pgStore) TotalsFor(ctx context.Context, accountID uuid.UUID, period Period) (map[catalog.Resource]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT resource_type, COALESCE(SUM(quantity), 0)
		FROM usage_records
		WHERE account_id = $1
		  AND period_start < $3
		  AND period_end > $2
		GROUP BY resource_type`,
		accountID, period.Start, period.End)
	if err != nil {
		return nil, errors.Join(ErrFailedToSum, err)
	}
	defer rows.Close()

	totals := make(map[catalog.Resource]int64)
	for rows.Next() {
		var res catalog.Resource
		var total int64
		if err := rows.Scan(&res, &total); err != nil {
			return nil, errors.Join(ErrFailedToSum, err)
		}
		totals[res] = total
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrFailedToSum, err)
	}
	return totals, nil
}

func (s *pgStore) TotalFor(ctx context.Context, accountID uuid.UUID, res catalog.Resource, period Period) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM usage_records
		WHERE account_id = $1
		  AND resource_type = $2
		  AND period_start < $4
		  AND period_end > $3`,
		accountID, res, period.Start, period.End,
	).Scan(&total)
	if err != nil {
		return 0, errors.Join(ErrFailedToSum, err)
	}
	return total, nil
}
