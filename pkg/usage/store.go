package usage

import (
	"context"

	"github.com/google/uuid"

	"github.com/xspensesai/billingkit/pkg/catalog"
)

// Store persists usage records. Implementations must be append-only and safe
// for concurrent writers; Append assigns Record.Seq.
type Store interface {
	// Append stores one record and assigns its per-(account, resource)
	// sequence number.
	Append(ctx context.Context, rec *Record) error

	// TotalsFor sums quantities per resource for all records of the
	// account whose period overlaps the requested window.
	TotalsFor(ctx context.Context, accountID uuid.UUID, period Period) (map[catalog.Resource]int64, error)

	// TotalFor sums one resource for the account within the window.
	TotalFor(ctx context.Context, accountID uuid.UUID, res catalog.Resource, period Period) (int64, error)
}
