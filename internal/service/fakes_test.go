package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pingpanda/pingpanda/internal/auth"
	"github.com/pingpanda/pingpanda/internal/cache"
	"github.com/pingpanda/pingpanda/internal/metrics"
	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/internal/notify"
	"github.com/pingpanda/pingpanda/internal/repository"
)

// testNow is a Wednesday; the week began Sunday 2024-03-10.
var testNow = time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)

func fixedClock() Clock {
	return Clock{Now: func() time.Time { return testNow }, Location: time.UTC}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory UserStore, CategoryStore and EventStore.
type memStore struct {
	mu         sync.Mutex
	users      map[string]*model.User
	categories map[string]*model.Category // id -> category
	events     []*model.Event
	lookups    int
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[string]*model.User{},
		categories: map[string]*model.Category{},
	}
}

func (m *memStore) addUser(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m *memStore) GetUserByExternalID(_ context.Context, externalID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ExternalID == externalID {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memStore) EnsureUserByExternalID(_ context.Context, user *model.User) (*model.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ExternalID == user.ExternalID {
			c := *u
			return &c, false, nil
		}
	}
	c := *user
	m.users[user.ID] = &c
	return user, true, nil
}

func (m *memStore) RotateAPIKey(_ context.Context, userID, prefix, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.APIKeyPrefix, u.APIKeyHash = prefix, hash
	return nil
}

func (m *memStore) findCategory(userID, name string) *model.Category {
	for _, c := range m.categories {
		if c.UserID == userID && c.Name == name {
			return c
		}
	}
	return nil
}

func (m *memStore) CreateCategory(_ context.Context, cat *model.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findCategory(cat.UserID, cat.Name) != nil {
		return repository.ErrCategoryExists
	}
	c := *cat
	m.categories[cat.ID] = &c
	return nil
}

func (m *memStore) GetCategoryByName(_ context.Context, userID, name string) (*model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	c := m.findCategory(userID, name)
	if c == nil {
		return nil, repository.ErrCategoryNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ListCategorySummaries(_ context.Context, userID string, since time.Time) ([]*model.CategorySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.CategorySummary
	for _, c := range m.categories {
		if c.UserID != userID {
			continue
		}
		s := &model.CategorySummary{Category: *c}
		keys := map[string]struct{}{}
		for _, e := range m.events {
			if e.CategoryID != c.ID {
				continue
			}
			at := e.CreatedAt
			if s.LastPing == nil || at.After(*s.LastPing) {
				s.LastPing = &at
			}
			if !e.CreatedAt.Before(since) {
				s.EventsCount++
				for _, k := range e.Fields.Keys() {
					keys[k] = struct{}{}
				}
			}
		}
		s.UniqueFieldCount = len(keys)
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) DeleteCategory(_ context.Context, userID, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.findCategory(userID, name)
	if c == nil {
		return "", nil
	}
	delete(m.categories, c.ID)
	kept := m.events[:0]
	for _, e := range m.events {
		if e.CategoryID != c.ID {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return c.ID, nil
}

func (m *memStore) InsertCategoriesIgnoreExisting(_ context.Context, cats []*model.Category) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, cat := range cats {
		if m.findCategory(cat.UserID, cat.Name) != nil {
			continue
		}
		c := *cat
		m.categories[cat.ID] = &c
		n++
	}
	return n, nil
}

func (m *memStore) CreateEventWithQuota(_ context.Context, e *model.Event, periodStart time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[e.UserID]
	if !ok {
		return repository.ErrQuotaExceeded
	}
	if _, ok := m.categories[e.CategoryID]; !ok {
		return repository.ErrCategoryNotFound
	}
	if u.QuotaPeriodStart.Before(periodStart) {
		u.QuotaUsed = 0
		u.QuotaPeriodStart = periodStart
	}
	if u.QuotaUsed >= u.QuotaLimit {
		return repository.ErrQuotaExceeded
	}
	u.QuotaUsed++
	c := *e
	c.UpdatedAt = c.CreatedAt
	m.events = append(m.events, &c)
	return nil
}

// insertEvent bypasses quota for seeding.
func (m *memStore) insertEvent(e *model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *memStore) filtered(f repository.EventFilter) []*model.Event {
	var out []*model.Event
	for _, e := range m.events {
		if e.UserID == f.UserID && e.CategoryID == f.CategoryID && !e.CreatedAt.Before(f.Since) {
			out = append(out, e)
		}
	}
	return out
}

func (m *memStore) ListEvents(_ context.Context, f repository.EventFilter, limit, offset int) ([]*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.filtered(f)
	sort.Slice(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.After(events[j].CreatedAt)
		}
		return events[i].ID > events[j].ID
	})
	if offset >= len(events) {
		return nil, nil
	}
	end := offset + limit
	if end > len(events) {
		end = len(events)
	}
	return events[offset:end], nil
}

func (m *memStore) CountEvents(_ context.Context, f repository.EventFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.filtered(f))), nil
}

func (m *memStore) DistinctFieldKeys(_ context.Context, f repository.EventFilter) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := map[string]struct{}{}
	for _, e := range m.filtered(f) {
		for _, k := range e.Fields.Keys() {
			set[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memStore) ForEachEvent(_ context.Context, f repository.EventFilter, fn func(*model.Event) error) error {
	m.mu.Lock()
	events := m.filtered(f)
	m.mu.Unlock()
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	for _, e := range events {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) HasEvents(_ context.Context, userID, categoryID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.UserID == userID && e.CategoryID == categoryID {
			return true, nil
		}
	}
	return false, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) PublishAsync(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewWithClient(client)
}

// testEnv wires every service over one memStore.
type testEnv struct {
	store      *memStore
	cache      *cache.Cache
	notifier   *recordingNotifier
	metrics    *metrics.InMemoryRecorder
	categories *CategoryService
	events     *EventService
	queries    *QueryService
	analytics  *AnalyticsService
	accounts   *AccountService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithClock(t, fixedClock())
}

func newTestEnvWithClock(t *testing.T, clock Clock) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    newMemStore(),
		cache:    newTestCache(t),
		notifier: &recordingNotifier{},
		metrics:  metrics.NewInMemory(),
	}
	logger := discardLogger()
	env.categories = NewCategoryService(env.store, env.store, env.cache, clock, logger, env.metrics)
	env.events = NewEventService(env.store, env.categories, env.notifier, clock, logger, env.metrics)
	env.queries = NewQueryService(env.store, env.categories, clock)
	env.analytics = NewAnalyticsService(env.store, env.categories, clock)
	keys := &auth.KeyGenerator{Env: auth.EnvTest, Params: auth.TestParams}
	env.accounts = NewAccountService(env.store, keys, env.cache, QuotaLimits{Free: 100, Pro: 1000}, clock, logger)
	return env
}

func (env *testEnv) user(t *testing.T, id string, quota int) *model.User {
	t.Helper()
	u := &model.User{
		ID:               id,
		Email:            id + "@example.com",
		Plan:             model.PlanFree,
		QuotaLimit:       quota,
		QuotaPeriodStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	env.store.addUser(u)
	return u
}

func (env *testEnv) category(t *testing.T, userID, name string) *model.Category {
	t.Helper()
	cat, err := env.categories.CreateCategory(context.Background(), userID, CreateCategoryInput{
		Name:  name,
		Color: "#ffeb3b",
	})
	if err != nil {
		t.Fatalf("create category %s: %v", name, err)
	}
	return cat
}

func seedEvent(env *testEnv, cat *model.Category, id string, at time.Time, kv ...any) *model.Event {
	e := &model.Event{
		ID:             id,
		UserID:         cat.UserID,
		CategoryID:     cat.ID,
		Name:           cat.Name,
		DeliveryStatus: model.DeliveryStatusPending,
		CreatedAt:      at,
	}
	for i := 0; i+1 < len(kv); i += 2 {
		switch v := kv[i+1].(type) {
		case int:
			e.Fields.Set(kv[i].(string), model.NumberValue(float64(v)))
		case string:
			e.Fields.Set(kv[i].(string), model.StringValue(v))
		case bool:
			e.Fields.Set(kv[i].(string), model.BoolValue(v))
		}
	}
	env.store.insertEvent(e)
	return e
}
