// Package analytics computes windowed counts, numeric sums and field
// discovery over a category's events.
package analytics

import (
	"time"

	"github.com/pingpanda/pingpanda/internal/model"
)

// Boundaries are the window start instants derived from one reading of the
// clock in the reference time zone. Weeks begin on Sunday.
type Boundaries struct {
	Now          time.Time
	StartOfDay   time.Time
	StartOfWeek  time.Time
	StartOfMonth time.Time
}

// ComputeBoundaries returns the boundaries of now in loc.
func ComputeBoundaries(now time.Time, loc *time.Location) Boundaries {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()

	return Boundaries{
		Now:          now,
		StartOfDay:   time.Date(y, m, d, 0, 0, 0, 0, loc),
		StartOfWeek:  time.Date(y, m, d-int(local.Weekday()), 0, 0, 0, 0, loc),
		StartOfMonth: time.Date(y, m, 1, 0, 0, 0, 0, loc),
	}
}

// Start returns the true start of window r. Unknown ranges fall back to today.
func (b Boundaries) Start(r model.TimeRange) time.Time {
	switch r {
	case model.RangeWeek:
		return b.StartOfWeek
	case model.RangeMonth:
		return b.StartOfMonth
	}
	return b.StartOfDay
}

// MonthWeekStart is the start of the this_week sum bucket. When the week
// began in the previous month it is clamped to the month start, so the
// today <= this_week <= this_month ordering of sums always holds. The active
// week window still uses StartOfWeek.
func (b Boundaries) MonthWeekStart() time.Time {
	if b.StartOfWeek.Before(b.StartOfMonth) {
		return b.StartOfMonth
	}
	return b.StartOfWeek
}

// ScanStart is the single lower bound used to fetch all buckets at once:
// the earlier of the week and month starts.
func (b Boundaries) ScanStart() time.Time {
	if b.StartOfWeek.Before(b.StartOfMonth) {
		return b.StartOfWeek
	}
	return b.StartOfMonth
}

// within reports t >= start; a boundary instant counts as inside.
func within(t, start time.Time) bool {
	return !t.Before(start)
}
