// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 730730

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema rolls back and re-applies every migration.
// Callers must hold the advisory lock.
func ResetSchema(databaseURL string) error {
	if err := migrations.Reset(databaseURL); err != nil {
		return fmt.Errorf("reset schema: %w", err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

// UniqueID generates a unique ID for tests.
func UniqueID() string {
	return ulid.Make().String()
}

// MonthStart returns the first instant of t's month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NewTestUser creates a free-plan user with a random key prefix and a
// placeholder hash. Tests that authenticate mint real keys themselves.
func NewTestUser(t testing.TB, externalID string) *model.User {
	t.Helper()

	prefix := make([]byte, 6)
	if _, err := rand.Read(prefix); err != nil {
		t.Fatalf("generate key prefix: %v", err)
	}

	now := time.Now().UTC()
	return &model.User{
		ID:               UniqueID(),
		ExternalID:       externalID,
		Email:            externalID + "@example.com",
		APIKeyPrefix:     hex.EncodeToString(prefix),
		APIKeyHash:       "$argon2id$placeholder",
		Plan:             model.PlanFree,
		QuotaLimit:       100,
		QuotaPeriodStart: MonthStart(now),
		CreatedAt:        now,
	}
}

// NewTestCategory creates a category owned by userID.
func NewTestCategory(userID, name string) *model.Category {
	return &model.Category{
		ID:        UniqueID(),
		UserID:    userID,
		Name:      name,
		Color:     0xff6b6b,
		Emoji:     "💰",
		CreatedAt: time.Now().UTC(),
	}
}

// NewTestEvent creates a pending event in cat at createdAt.
func NewTestEvent(cat *model.Category, createdAt time.Time, fields model.Fields) *model.Event {
	return &model.Event{
		ID:             UniqueID(),
		UserID:         cat.UserID,
		CategoryID:     cat.ID,
		Name:           cat.Name,
		Fields:         fields,
		DeliveryStatus: model.DeliveryStatusPending,
		CreatedAt:      createdAt,
	}
}
