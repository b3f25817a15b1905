package usage

import (
	"fmt"
	"time"
)

// Period is one calendar month in the billing timezone — the unit over which
// limits and usage are evaluated. Start is the first instant of the month,
// End the first instant of the next month (half-open interval).
type Period struct {
	Start time.Time
	End   time.Time
}

// CurrentPeriod returns the billing period containing now in the given
// location. A nil location defaults to UTC.
func CurrentPeriod(loc *time.Location, now time.Time) Period {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return Period{
		Start: start,
		End:   start.AddDate(0, 1, 0),
	}
}

// Contains reports whether t falls within the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Overlaps reports whether the two periods share any instant.
func (p Period) Overlaps(other Period) bool {
	return p.Start.Before(other.End) && other.Start.Before(p.End)
}

// Key returns a stable identifier for the period, e.g. "2026-08".
// Used as part of storage keys for per-period aggregates.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Start.Year(), int(p.Start.Month()))
}
