package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/internal/repository"
)

// Page bounds for event listings. MaxPage keeps the row offset well inside int.
const (
	DefaultPageLimit = 30
	MaxPageLimit     = 50
	MaxPage          = 1000000
)

// QueryService serves paginated event listings.
type QueryService struct {
	events     EventStore
	categories *CategoryService
	clock      Clock
}

// NewQueryService creates a QueryService.
func NewQueryService(events EventStore, categories *CategoryService, clock Clock) *QueryService {
	return &QueryService{events: events, categories: categories, clock: clock}
}

// ListEventsInput defines input for one page of a category's events.
// Page and Limit are required; callers apply defaults for absent parameters.
type ListEventsInput struct {
	Category string          `json:"category" validate:"required"`
	Page     int             `json:"page" validate:"min=1,max=1000000"`
	Limit    int             `json:"limit" validate:"min=1,max=50"`
	Range    model.TimeRange `json:"range" validate:"oneof=today week month"`
}

// ListEvents returns one page of events newest first, the window's total
// count and the field names present anywhere in the window.
func (s *QueryService) ListEvents(ctx context.Context, userID string, input ListEventsInput) (*model.EventPage, error) {
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

	filter := repository.EventFilter{
		UserID:     userID,
		CategoryID: cat.ID,
		Since:      s.clock.Boundaries().Start(input.Range),
	}

	var (
		page   model.EventPage
		offset = (input.Page - 1) * input.Limit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events, err := s.events.ListEvents(gctx, filter, input.Limit, offset)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		page.Events = events
		return nil
	})
	g.Go(func() error {
		n, err := s.events.CountEvents(gctx, filter)
		if err != nil {
			return fmt.Errorf("count events: %w", err)
		}
		page.EventsCount = n
		return nil
	})
	g.Go(func() error {
		keys, err := s.events.DistinctFieldKeys(gctx, filter)
		if err != nil {
			return fmt.Errorf("discover fields: %w", err)
		}
		page.Fields = keys
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if page.Events == nil {
		page.Events = []*model.Event{}
	}
	if page.Fields == nil {
		page.Fields = []string{}
	}
	return &page, nil
}
