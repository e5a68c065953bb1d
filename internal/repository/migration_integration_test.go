//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/internal/testutil"
	"github.com/pingpanda/pingpanda/migrations"
)

// ============================================================================
// Migration Integration Tests
// ============================================================================

func TestIntegrationMigration_ApplyAllTables(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	for _, table := range []string{"users", "event_categories", "events"} {
		t.Run(table, func(t *testing.T) {
			exists, err := tableExists(ctx, repo.Pool(), table)
			if err != nil {
				t.Fatalf("tableExists failed: %v", err)
			}
			if !exists {
				t.Errorf("Table %q should exist after migrations", table)
			}
		})
	}
}

func TestIntegrationMigration_EventsTableSchema(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	for _, col := range []string{"id", "user_id", "category_id", "name", "fields", "delivery_status", "created_at", "updated_at"} {
		exists, err := columnExists(ctx, repo.Pool(), "events", col)
		if err != nil {
			t.Fatalf("columnExists failed: %v", err)
		}
		if !exists {
			t.Errorf("Column %q should exist in events table", col)
		}
	}

	var dataType string
	err := repo.Pool().QueryRow(ctx, `
		SELECT data_type FROM information_schema.columns
		WHERE table_name = 'events' AND column_name = 'fields'
	`).Scan(&dataType)
	if err != nil {
		t.Fatalf("read fields type: %v", err)
	}
	if dataType != "json" {
		t.Errorf("fields type = %s, want json (order preserving)", dataType)
	}
}

func TestIntegrationMigration_Idempotent(t *testing.T) {
	_, _ = newRepoTestEnv(t)
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	version, err := migrations.Up(dbURL)
	if err != nil {
		t.Fatalf("second Up should be a no-op: %v", err)
	}
	if version != 3 {
		t.Errorf("schema version = %d, want 3", version)
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

func tableExists(ctx context.Context, pool *pgxpool.Pool, tableName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`, tableName).Scan(&exists)
	return exists, err
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, tableName, columnName string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.columns
			WHERE table_schema = 'public'
			AND table_name = $1
			AND column_name = $2
		)
	`, tableName, columnName).Scan(&exists)
	return exists, err
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newRepoTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(dbURL); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repo
}

func mustCreateUser(t *testing.T, ctx context.Context, repo *Repository, externalID string) *model.User {
	t.Helper()
	user := testutil.NewTestUser(t, externalID)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func mustCreateCategory(t *testing.T, ctx context.Context, repo *Repository, userID, name string) *model.Category {
	t.Helper()
	cat := testutil.NewTestCategory(userID, name)
	if err := repo.CreateCategory(ctx, cat); err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	return cat
}

// getEventByID reads one event back for assertions.
func getEventByID(ctx context.Context, repo *Repository, id string) (*model.Event, error) {
	e, err := scanEvent(repo.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return e, err
}
