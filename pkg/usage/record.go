package usage

import (
	"time"

	"github.com/google/uuid"

	"github.com/xspensesai/billingkit/pkg/catalog"
)

// Record is one discrete consumption event. Records are append-only and never
// pre-aggregated; period totals are computed by summing at read time.
type Record struct {
	AccountID   uuid.UUID
	Resource    catalog.Resource
	Quantity    int64
	Unit        string
	PeriodStart time.Time
	PeriodEnd   time.Time
	RecordedAt  time.Time

	// Seq is assigned by the store: a per-(account, resource) monotonic
	// sequence so that overage reporting can rely on receipt order even
	// when clocks skew between writers.
	Seq int64
}
