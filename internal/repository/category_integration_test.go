//go:build integration

package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/internal/testutil"
)

// ============================================================================
// Category Repository Integration Tests
// ============================================================================

func TestIntegrationCategoryRepository_UniquePerUser(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	alice := mustCreateUser(t, ctx, repo, "ext_alice")
	bob := mustCreateUser(t, ctx, repo, "ext_bob")

	mustCreateCategory(t, ctx, repo, alice.ID, "sale")

	dup := testutil.NewTestCategory(alice.ID, "sale")
	if err := repo.CreateCategory(ctx, dup); !errors.Is(err, ErrCategoryExists) {
		t.Errorf("duplicate create error = %v, want ErrCategoryExists", err)
	}

	other := testutil.NewTestCategory(bob.ID, "sale")
	if err := repo.CreateCategory(ctx, other); err != nil {
		t.Errorf("same name for another user should succeed: %v", err)
	}
}

func TestIntegrationCategoryRepository_GetByName(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	alice := mustCreateUser(t, ctx, repo, "ext_alice")
	bob := mustCreateUser(t, ctx, repo, "ext_bob")

	cat := testutil.NewTestCategory(alice.ID, "question")
	cat.Emoji = ""
	if err := repo.CreateCategory(ctx, cat); err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}

	got, err := repo.GetCategoryByName(ctx, alice.ID, "question")
	if err != nil {
		t.Fatalf("GetCategoryByName failed: %v", err)
	}
	if got.Color != cat.Color || got.Emoji != "" {
		t.Errorf("got color=%v emoji=%q", got.Color, got.Emoji)
	}

	if _, err := repo.GetCategoryByName(ctx, bob.ID, "question"); !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("other user's lookup error = %v, want ErrCategoryNotFound", err)
	}
}

func TestIntegrationCategoryRepository_DeleteScopedAndCascades(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	alice := mustCreateUser(t, ctx, repo, "ext_alice")
	bob := mustCreateUser(t, ctx, repo, "ext_bob")

	aliceSale := mustCreateCategory(t, ctx, repo, alice.ID, "sale")
	bobSale := mustCreateCategory(t, ctx, repo, bob.ID, "sale")

	ev := testutil.NewTestEvent(aliceSale, time.Now().UTC(), nil)
	if err := repo.CreateEventWithQuota(ctx, ev, alice.QuotaPeriodStart); err != nil {
		t.Fatalf("CreateEventWithQuota failed: %v", err)
	}

	id, err := repo.DeleteCategory(ctx, alice.ID, "sale")
	if err != nil || id != aliceSale.ID {
		t.Fatalf("DeleteCategory = %q, %v; want %q, nil", id, err, aliceSale.ID)
	}
	if _, err := getEventByID(ctx, repo, ev.ID); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("events should cascade with their category, got %v", err)
	}
	if _, err := repo.GetCategoryByName(ctx, bob.ID, "sale"); err != nil {
		t.Errorf("bob's category must survive: %v", err)
	}
	_ = bobSale

	id, err = repo.DeleteCategory(ctx, alice.ID, "sale")
	if err != nil || id != "" {
		t.Errorf("second delete = %q, %v; want empty, nil", id, err)
	}
}

func TestIntegrationCategoryRepository_QuickstartBatch(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	user := mustCreateUser(t, ctx, repo, "ext_quick")

	mustCreateCategory(t, ctx, repo, user.ID, "sale")

	var cats []*model.Category
	for _, preset := range model.QuickstartCategories {
		c := testutil.NewTestCategory(user.ID, preset.Name)
		c.Color, c.Emoji = preset.Color, preset.Emoji
		cats = append(cats, c)
	}

	n, err := repo.InsertCategoriesIgnoreExisting(ctx, cats)
	if err != nil {
		t.Fatalf("InsertCategoriesIgnoreExisting failed: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2 (sale already existed)", n)
	}
}

func TestIntegrationCategoryRepository_ListSummaries(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	user := mustCreateUser(t, ctx, repo, "ext_list")

	sale := mustCreateCategory(t, ctx, repo, user.ID, "sale")
	mustCreateCategory(t, ctx, repo, user.ID, "bug")

	monthStart := testutil.MonthStart(time.Now())
	old := testutil.NewTestEvent(sale, monthStart.Add(-time.Hour), model.Fields{{Key: "legacy", Value: model.NumberValue(1)}})
	recent := testutil.NewTestEvent(sale, time.Now().UTC(), model.Fields{
		{Key: "amount", Value: model.NumberValue(10)},
		{Key: "plan", Value: model.StringValue("pro")},
	})
	for _, e := range []*model.Event{old, recent} {
		if err := repo.CreateEventWithQuota(ctx, e, user.QuotaPeriodStart); err != nil {
			t.Fatalf("CreateEventWithQuota failed: %v", err)
		}
	}

	summaries, err := repo.ListCategorySummaries(ctx, user.ID, monthStart)
	if err != nil {
		t.Fatalf("ListCategorySummaries failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len = %d, want 2", len(summaries))
	}

	byName := map[string]*model.CategorySummary{}
	for _, s := range summaries {
		byName[s.Name] = s
	}

	s := byName["sale"]
	if s.EventsCount != 1 {
		t.Errorf("sale events_count = %d, want 1 (this month only)", s.EventsCount)
	}
	if s.UniqueFieldCount != 2 {
		t.Errorf("sale unique_field_count = %d, want 2", s.UniqueFieldCount)
	}
	if s.LastPing == nil || !s.LastPing.Equal(recent.CreatedAt.Truncate(time.Microsecond)) {
		t.Errorf("sale last_ping = %v, want %v", s.LastPing, recent.CreatedAt)
	}

	b := byName["bug"]
	if b.LastPing != nil || b.EventsCount != 0 || b.UniqueFieldCount != 0 {
		t.Errorf("empty category summary = %+v", b)
	}
}
