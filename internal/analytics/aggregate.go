package analytics

import (
	"sort"
	"time"

	"github.com/pingpanda/pingpanda/internal/model"
)

// Sums are the per-bucket totals of one numeric field.
type Sums struct {
	Today     float64 `json:"today"`
	ThisWeek  float64 `json:"this_week"`
	ThisMonth float64 `json:"this_month"`
	Total     float64 `json:"total"`
}

// Result is the aggregated view of one category for one active window.
// Total covers every scanned event, which includes the days of the current
// week that fall in the previous month.
type Result struct {
	Range       model.TimeRange  `json:"range"`
	EventsCount int64            `json:"events_count"`
	Fields      []string         `json:"fields"`
	Sums        map[string]*Sums `json:"sums"`
}

// Aggregator classifies events into today / week / month buckets in one pass.
// Feed it every event since Boundaries.ScanStart, in any order.
type Aggregator struct {
	rng       model.TimeRange
	day       time.Time
	week      time.Time
	month     time.Time
	active    time.Time
	count     int64
	sums      map[string]*Sums
	seen      map[string]struct{}
	discovery []string
}

// NewAggregator creates an aggregator for window rng.
func NewAggregator(b Boundaries, rng model.TimeRange) *Aggregator {
	a := &Aggregator{
		rng:   rng,
		day:   b.StartOfDay,
		week:  b.MonthWeekStart(),
		month: b.StartOfMonth,
		sums:  map[string]*Sums{},
		seen:  map[string]struct{}{},
	}
	switch rng {
	case model.RangeWeek, model.RangeMonth:
	default:
		a.rng = model.RangeToday
	}
	a.active = b.Start(a.rng)
	return a
}

// Add folds one event into the aggregate.
func (a *Aggregator) Add(e *model.Event) {
	at := e.CreatedAt
	inDay := within(at, a.day)
	inWeek := within(at, a.week)
	inMonth := within(at, a.month)

	if within(at, a.active) {
		a.count++
		for _, f := range e.Fields {
			if _, ok := a.seen[f.Key]; !ok {
				a.seen[f.Key] = struct{}{}
				a.discovery = append(a.discovery, f.Key)
			}
		}
	}

	for _, f := range e.Fields {
		n, ok := f.Value.Number()
		if !ok {
			continue
		}
		s := a.sums[f.Key]
		if s == nil {
			s = &Sums{}
			a.sums[f.Key] = s
		}
		s.Total += n
		if inMonth {
			s.ThisMonth += n
		}
		if inWeek {
			s.ThisWeek += n
		}
		if inDay {
			s.Today += n
		}
	}
}

// Result returns the aggregate. Discovered fields are sorted by name.
func (a *Aggregator) Result() *Result {
	fields := append([]string(nil), a.discovery...)
	sort.Strings(fields)
	if fields == nil {
		fields = []string{}
	}
	return &Result{
		Range:       a.rng,
		EventsCount: a.count,
		Fields:      fields,
		Sums:        a.sums,
	}
}

// Aggregate runs an Aggregator over events.
func Aggregate(b Boundaries, rng model.TimeRange, events []*model.Event) *Result {
	a := NewAggregator(b, rng)
	for _, e := range events {
		a.Add(e)
	}
	return a.Result()
}
