package service

import (
	"context"
	"time"

	"github.com/pingpanda/pingpanda/internal/cache"
	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/internal/notify"
	"github.com/pingpanda/pingpanda/internal/repository"
)

// UserStore is the user persistence used by services.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error)
	EnsureUserByExternalID(ctx context.Context, user *model.User) (*model.User, bool, error)
	RotateAPIKey(ctx context.Context, userID, prefix, hash string) error
}

// CategoryStore is the category persistence used by services.
type CategoryStore interface {
	CreateCategory(ctx context.Context, cat *model.Category) error
	GetCategoryByName(ctx context.Context, userID, name string) (*model.Category, error)
	ListCategorySummaries(ctx context.Context, userID string, since time.Time) ([]*model.CategorySummary, error)
	DeleteCategory(ctx context.Context, userID, name string) (string, error)
	InsertCategoriesIgnoreExisting(ctx context.Context, cats []*model.Category) (int, error)
}

// EventStore is the event persistence used by services.
type EventStore interface {
	CreateEventWithQuota(ctx context.Context, e *model.Event, periodStart time.Time) error
	ListEvents(ctx context.Context, f repository.EventFilter, limit, offset int) ([]*model.Event, error)
	CountEvents(ctx context.Context, f repository.EventFilter) (int64, error)
	DistinctFieldKeys(ctx context.Context, f repository.EventFilter) ([]string, error)
	ForEachEvent(ctx context.Context, f repository.EventFilter, fn func(*model.Event) error) error
	HasEvents(ctx context.Context, userID, categoryID string) (bool, error)
}

// CategoryCache caches category lookups by (user, name).
type CategoryCache interface {
	GetCategory(ctx context.Context, userID, name string) (*model.Category, error)
	SetCategory(ctx context.Context, cat *model.Category) error
	DeleteCategory(ctx context.Context, userID, name, deletedID string) error
	IsNegativelyCached(ctx context.Context, userID, name string) (bool, error)
	SetNegativeCache(ctx context.Context, userID, name string) error
}

// AuthInvalidator drops cached auth contexts of a user.
type AuthInvalidator interface {
	InvalidateUserAuthContexts(ctx context.Context, userID string) error
}

// Notifier hands accepted events to the delivery service.
type Notifier interface {
	PublishAsync(n notify.Notification)
}

var (
	_ UserStore       = (*repository.Repository)(nil)
	_ CategoryStore   = (*repository.Repository)(nil)
	_ EventStore      = (*repository.Repository)(nil)
	_ CategoryCache   = (*cache.Cache)(nil)
	_ AuthInvalidator = (*cache.Cache)(nil)
	_ Notifier        = (*notify.Publisher)(nil)
)
