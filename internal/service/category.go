package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/pingpanda/pingpanda/internal/cache"
	"github.com/pingpanda/pingpanda/internal/metrics"
	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/internal/repository"
)

// CategoryService owns per-user categories.
type CategoryService struct {
	store   CategoryStore
	events  EventStore
	cache   CategoryCache
	clock   Clock
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewCategoryService creates a CategoryService. cache may be nil.
func NewCategoryService(store CategoryStore, events EventStore, categoryCache CategoryCache, clock Clock, logger *slog.Logger, recorder metrics.Recorder) *CategoryService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CategoryService{
		store:   store,
		events:  events,
		cache:   categoryCache,
		clock:   clock,
		logger:  logger.With("component", "service.category"),
		metrics: recorder,
	}
}

// CreateCategoryInput defines input for creating a category.
type CreateCategoryInput struct {
	Name  string `json:"name" validate:"required,min=1,max=32,category_name"`
	Color string `json:"color" validate:"required,color6"`
	Emoji string `json:"emoji" validate:"omitempty,emoji"`
}

// ListCategories returns the user's categories with this month's counters.
func (s *CategoryService) ListCategories(ctx context.Context, userID string) ([]*model.CategorySummary, error) {
	since := s.clock.Boundaries().StartOfMonth
	summaries, err := s.store.ListCategorySummaries(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return summaries, nil
}

// CreateCategory validates and stores a new category.
func (s *CategoryService) CreateCategory(ctx context.Context, userID string, input CreateCategoryInput) (*model.Category, error) {
	input.Name = model.NormalizeCategoryName(input.Name)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	color, err := model.ParseColor(input.Color)
	if err != nil {
		return nil, NewValidationError("color", "must be a hex color like #ff6b6b")
	}

	now := s.clock.current()
	cat := &model.Category{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Name:      input.Name,
		Color:     color,
		Emoji:     input.Emoji,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateCategory(ctx, cat); err != nil {
		if errors.Is(err, repository.ErrCategoryExists) {
			return nil, fmt.Errorf("%w: category %q already exists", ErrConflict, cat.Name)
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.cacheCategory(ctx, cat)
	s.logger.Info("category created", "user_id", userID, "category", cat.Name)
	return cat, nil
}

// DeleteCategory removes the caller's category by name. A missing category
// is not an error.
func (s *CategoryService) DeleteCategory(ctx context.Context, userID, name string) error {
	name = model.NormalizeCategoryName(name)
	id, err := s.store.DeleteCategory(ctx, userID, name)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.DeleteCategory(ctx, userID, name, id); err != nil {
			s.logger.Warn("failed to invalidate category cache", "category", name, "error", err)
		}
	}
	if id != "" {
		s.logger.Info("category deleted", "user_id", userID, "category", name)
	}
	return nil
}

// Quickstart seeds the preset categories the user does not have yet and
// returns how many were inserted.
func (s *CategoryService) Quickstart(ctx context.Context, userID string) (int, error) {
	now := s.clock.current()
	cats := make([]*model.Category, len(model.QuickstartCategories))
	for i, preset := range model.QuickstartCategories {
		c := preset
		c.ID = ulid.Make().String()
		c.UserID = userID
		c.CreatedAt = now
		c.UpdatedAt = now
		cats[i] = &c
	}

	n, err := s.store.InsertCategoriesIgnoreExisting(ctx, cats)
	if err != nil {
		return 0, fmt.Errorf("quickstart categories: %w", err)
	}
	if s.cache != nil {
		// Presets that already existed keep their own ids; drop any stale
		// negative entries and let lookups refill.
		for _, c := range cats {
			if err := s.cache.DeleteCategory(ctx, userID, c.Name, ""); err != nil {
				s.logger.Warn("failed to invalidate category cache", "category", c.Name, "error", err)
			}
		}
	}
	return n, nil
}

// Poll reports whether the category has any events.
func (s *CategoryService) Poll(ctx context.Context, userID, name string) (bool, error) {
	cat, err := s.Resolve(ctx, userID, name)
	if err != nil {
		return false, err
	}
	has, err := s.events.HasEvents(ctx, userID, cat.ID)
	if err != nil {
		return false, fmt.Errorf("poll category: %w", err)
	}
	return has, nil
}

// Resolve returns the caller's category by name or ErrNotFound.
// Lookups go through the cache, including negative entries.
func (s *CategoryService) Resolve(ctx context.Context, userID, name string) (*model.Category, error) {
	name = model.NormalizeCategoryName(name)
	if name == "" {
		return nil, NewValidationError("category", "is required")
	}

	if s.cache != nil {
		cat, err := s.cache.GetCategory(ctx, userID, name)
		if err == nil {
			s.metrics.IncCategoryCacheLookup("hit")
			return cat, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("category cache read failed", "error", err)
		}
		neg, err := s.cache.IsNegativelyCached(ctx, userID, name)
		if err == nil && neg {
			s.metrics.IncCategoryCacheLookup("negative")
			return nil, fmt.Errorf("%w: category %q", ErrNotFound, name)
		}
		s.metrics.IncCategoryCacheLookup("miss")
	}

	cat, err := s.store.GetCategoryByName(ctx, userID, name)
	if err != nil {
		if errors.Is(err, repository.ErrCategoryNotFound) {
			if s.cache != nil {
				if err := s.cache.SetNegativeCache(ctx, userID, name); err != nil {
					s.logger.Warn("failed to set negative cache", "error", err)
				}
			}
			return nil, fmt.Errorf("%w: category %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	s.cacheCategory(ctx, cat)
	return cat, nil
}

func (s *CategoryService) cacheCategory(ctx context.Context, cat *model.Category) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetCategory(ctx, cat); err != nil {
		s.logger.Warn("failed to cache category", "category", cat.Name, "error", err)
	}
}
