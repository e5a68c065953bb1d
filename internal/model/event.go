package model

import "time"

// DeliveryStatus tracks forwarding of an event to the notification service.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// IsValid reports whether s is a known delivery status.
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusDelivered, DeliveryStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusFailed
}

// CanTransitionTo reports whether s -> next is allowed.
// Only pending -> delivered and pending -> failed exist.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	return s == DeliveryStatusPending && next.IsTerminal()
}

// TimeRange selects the window a query is anchored to.
type TimeRange string

const (
	RangeToday TimeRange = "today"
	RangeWeek  TimeRange = "week"
	RangeMonth TimeRange = "month"
)

// IsValid reports whether r is a known range.
func (r TimeRange) IsValid() bool {
	return r == RangeToday || r == RangeWeek || r == RangeMonth
}

// Event is one immutable occurrence recorded under a category.
type Event struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	CategoryID     string         `json:"category_id"`
	Name           string         `json:"name"` // category name at ingestion time
	Fields         Fields         `json:"fields"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// EventPage is one page of a category's events plus its window metadata.
type EventPage struct {
	Events      []*Event `json:"events"`
	EventsCount int64    `json:"events_count"`
	Fields      []string `json:"fields"`
}
