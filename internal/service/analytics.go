package service

import (
	"context"
	"fmt"

	"github.com/pingpanda/pingpanda/internal/analytics"
	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/internal/repository"
)

// AnalyticsService computes windowed sums for a category.
type AnalyticsService struct {
	events     EventStore
	categories *CategoryService
	clock      Clock
}

// NewAnalyticsService creates an AnalyticsService.
func NewAnalyticsService(events EventStore, categories *CategoryService, clock Clock) *AnalyticsService {
	return &AnalyticsService{events: events, categories: categories, clock: clock}
}

// AnalyticsInput selects the category and active window.
type AnalyticsInput struct {
	Category string          `json:"category" validate:"required"`
	Range    model.TimeRange `json:"range" validate:"oneof=today week month"`
}

// Aggregate scans the month once and buckets every event.
func (s *AnalyticsService) Aggregate(ctx context.Context, userID string, input AnalyticsInput) (*analytics.Result, error) {
	if input.Range == "" {
		input.Range = model.RangeToday
	}
	input.Category = model.NormalizeCategoryName(input.Category)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	cat, err := s.categories.Resolve(ctx, userID, input.Category)
	if err != nil {
		return nil, err
	}

	b := s.clock.Boundaries()
	agg := analytics.NewAggregator(b, input.Range)
	filter := repository.EventFilter{
		UserID:     userID,
		CategoryID: cat.ID,
		Since:      b.ScanStart(),
	}
	err = s.events.ForEachEvent(ctx, filter, func(e *model.Event) error {
		agg.Add(e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate events: %w", err)
	}
	return agg.Result(), nil
}
