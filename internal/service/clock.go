package service

import (
	"time"

	"github.com/pingpanda/pingpanda/internal/analytics"
)

// Clock anchors windows and quota periods to one reference time zone.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// NewClock returns a wall clock in loc.
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return Clock{Now: time.Now, Location: loc}
}

// Boundaries computes window starts for the current instant.
func (c Clock) Boundaries() analytics.Boundaries {
	return analytics.ComputeBoundaries(c.current(), c.Location)
}

func (c Clock) current() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// QuotaPeriodStart is the first instant of the current quota month.
func (c Clock) QuotaPeriodStart() time.Time {
	return c.Boundaries().StartOfMonth
}
