package dto

import (
	"time"

	"github.com/pingpanda/pingpanda/internal/model"
)

// ToCategoryResponse converts a Category model to its DTO.
func ToCategoryResponse(cat *model.Category) CategoryResponse {
	return CategoryResponse{
		ID:    cat.ID,
		Name:  cat.Name,
		Color: cat.Color.Hex(),
		Emoji: cat.Emoji,
	}
}

// ToCategoryListResponse converts category summaries. The list is never nil.
func ToCategoryListResponse(summaries []*model.CategorySummary) *CategoryListResponse {
	out := make([]CategorySummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		row := CategorySummaryResponse{
			CategoryResponse: ToCategoryResponse(&s.Category),
			UniqueFieldCount: s.UniqueFieldCount,
			EventsCount:      s.EventsCount,
		}
		if s.LastPing != nil {
			ts := s.LastPing.UTC().Format(time.RFC3339Nano)
			row.LastPing = &ts
		}
		out = append(out, row)
	}
	return &CategoryListResponse{Categories: out}
}

// ToEventPageResponse converts an EventPage model to its DTO.
func ToEventPageResponse(page *model.EventPage, pageNum, limit int, rng model.TimeRange) *EventPageResponse {
	events := make([]EventResponse, 0, len(page.Events))
	for _, e := range page.Events {
		fields := e.Fields
		if fields == nil {
			fields = model.Fields{}
		}
		events = append(events, EventResponse{
			ID:             e.ID,
			Category:       e.Name,
			Fields:         fields,
			DeliveryStatus: e.DeliveryStatus,
			CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	fieldNames := page.Fields
	if fieldNames == nil {
		fieldNames = []string{}
	}
	return &EventPageResponse{
		Events:      events,
		EventsCount: page.EventsCount,
		Fields:      fieldNames,
		Page:        pageNum,
		Limit:       limit,
		Range:       rng,
	}
}
