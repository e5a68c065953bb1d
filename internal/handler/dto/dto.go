// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/pingpanda/pingpanda/internal/model"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// CreateCategoryRequest is the body of POST /api/v1/categories.
type CreateCategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Emoji string `json:"emoji,omitempty"`
}

// CategoryResponse renders a category with its color as "#rrggbb".
type CategoryResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Emoji string `json:"emoji,omitempty"`
}

// CategorySummaryResponse is one row of the category list.
type CategorySummaryResponse struct {
	CategoryResponse
	LastPing         *string `json:"last_ping"`
	UniqueFieldCount int     `json:"unique_field_count"`
	EventsCount      int64   `json:"events_count"`
}

// CategoryListResponse wraps the category list.
type CategoryListResponse struct {
	Categories []CategorySummaryResponse `json:"categories"`
}

// QuickstartResponse reports how many preset categories were inserted.
type QuickstartResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// PollResponse reports whether a category has received any event.
type PollResponse struct {
	HasEvents bool `json:"has_events"`
}

// IngestEventRequest is the body of POST /api/v1/events.
type IngestEventRequest struct {
	Category string       `json:"category"`
	Fields   model.Fields `json:"fields"`
}

// IngestEventResponse acknowledges an accepted event.
type IngestEventResponse struct {
	Message        string               `json:"message"`
	EventID        string               `json:"event_id"`
	DeliveryStatus model.DeliveryStatus `json:"delivery_status"`
}

// EventResponse is one event in a page.
type EventResponse struct {
	ID             string               `json:"id"`
	Category       string               `json:"category"`
	Fields         model.Fields         `json:"fields"`
	DeliveryStatus model.DeliveryStatus `json:"delivery_status"`
	CreatedAt      string               `json:"created_at"`
}

// EventPageResponse is one page of a category's events.
type EventPageResponse struct {
	Events      []EventResponse `json:"events"`
	EventsCount int64           `json:"events_count"`
	Fields      []string        `json:"fields"`
	Page        int             `json:"page"`
	Limit       int             `json:"limit"`
	Range       model.TimeRange `json:"range"`
}
