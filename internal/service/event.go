package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/pingpanda/pingpanda/internal/metrics"
	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/internal/notify"
	"github.com/pingpanda/pingpanda/internal/repository"
)

// EventService appends events under the caller's categories.
type EventService struct {
	events     EventStore
	categories *CategoryService
	notifier   Notifier
	clock      Clock
	logger     *slog.Logger
	metrics    metrics.Recorder
}

// NewEventService creates an EventService. notifier may be nil.
func NewEventService(events EventStore, categories *CategoryService, notifier Notifier, clock Clock, logger *slog.Logger, recorder metrics.Recorder) *EventService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{
		events:     events,
		categories: categories,
		notifier:   notifier,
		clock:      clock,
		logger:     logger.With("component", "service.event"),
		metrics:    recorder,
	}
}

// IngestEventInput defines input for appending an event.
type IngestEventInput struct {
	Category string       `json:"category" validate:"required,max=32"`
	Fields   model.Fields `json:"fields"`
}

// Ingest validates and persists one event, consuming one unit of quota.
// The event is handed to the notifier after it is committed.
func (s *EventService) Ingest(ctx context.Context, userID string, input IngestEventInput) (*model.Event, error) {
	input.Category = model.NormalizeCategoryName(input.Category)
	if err := validateStruct(input); err != nil {
		s.metrics.IncEventIngested("invalid")
		return nil, err
	}
	if err := validateFields(input.Fields); err != nil {
		s.metrics.IncEventIngested("invalid")
		return nil, err
	}

	cat, err := s.categories.Resolve(ctx, userID, input.Category)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.metrics.IncEventIngested("unknown_category")
		}
		return nil, err
	}

	fields := input.Fields
	if fields == nil {
		fields = model.Fields{}
	}
	event := &model.Event{
		ID:             ulid.Make().String(),
		UserID:         userID,
		CategoryID:     cat.ID,
		Name:           cat.Name,
		Fields:         fields,
		DeliveryStatus: model.DeliveryStatusPending,
		CreatedAt:      s.clock.current(),
	}

	if err := s.events.CreateEventWithQuota(ctx, event, s.clock.QuotaPeriodStart()); err != nil {
		switch {
		case errors.Is(err, repository.ErrQuotaExceeded):
			s.metrics.IncEventIngested("quota_exceeded")
			s.logger.Warn("event rejected: quota exceeded", "user_id", userID)
			return nil, ErrQuotaExceeded
		case errors.Is(err, repository.ErrCategoryNotFound):
			s.metrics.IncEventIngested("unknown_category")
			return nil, fmt.Errorf("%w: category %q", ErrNotFound, cat.Name)
		}
		return nil, fmt.Errorf("ingest event: %w", err)
	}

	s.metrics.IncEventIngested("accepted")
	s.logger.Debug("event accepted",
		"user_id", userID,
		"category", cat.Name,
		"event_id", event.ID,
		"fields", event.Fields.Keys(),
	)

	if s.notifier != nil {
		s.notifier.PublishAsync(notify.NewNotification(event, cat))
	}
	return event, nil
}
