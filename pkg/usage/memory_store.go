package usage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/xspensesai/billingkit/pkg/catalog"
)

type seqKey struct {
	accountID uuid.UUID
	resource  catalog.Resource
}

// memStore is an in-memory Store for tests and single-process development.
type memStore struct {
	mu      sync.Mutex
	records []Record
	seqs    map[seqKey]int64
}

// NewMemStore returns an in-memory append-only Store.
func NewMemStore() Store {
	return &memStore{
		seqs: make(map[seqKey]int64),
	}
}

func (s *memStore) Append(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := seqKey{accountID: rec.AccountID, resource: rec.Resource}
	s.seqs[key]++
	rec.Seq = s.seqs[key]

	s.records = append(s.records, *rec)
	return nil
}

func (s *memStore) TotalsFor(ctx context.Context, accountID uuid.UUID, period Period) (map[catalog.Resource]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals := make(map[catalog.Resource]int64)
	for _, rec := range s.records {
		if rec.AccountID != accountID {
			continue
		}
		if !period.Overlaps(Period{Start: rec.PeriodStart, End: rec.PeriodEnd}) {
			continue
		}
		totals[rec.Resource] += rec.Quantity
	}
	return totals, nil
}

func (s *memStore) TotalFor(ctx context.Context, accountID uuid.UUID, res catalog.Resource, period Period) (int64, error) {
	totals, err := s.TotalsFor(ctx, accountID, period)
	if err != nil {
		return 0, err
	}
	return totals[res], nil
}
