package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pingpanda/pingpanda/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrExternalIDExists = errors.New("external id already bound to a user")
	ErrQuotaExceeded    = errors.New("quota exceeded")
)

const userColumns = `id, COALESCE(external_id, ''), email, api_key_prefix, api_key_hash,
	plan, quota_limit, quota_used, quota_period_start, created_at, updated_at`

func scanUser(row rowScanner, extra ...any) (*model.User, error) {
	var u model.User
	dest := append([]any{
		&u.ID,
		&u.ExternalID,
		&u.Email,
		&u.APIKeyPrefix,
		&u.APIKeyHash,
		&u.Plan,
		&u.QuotaLimit,
		&u.QuotaUsed,
		&u.QuotaPeriodStart,
		&u.CreatedAt,
		&u.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user. ExternalID may be empty for key-only users.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, external_id, email, api_key_prefix, api_key_hash,
			plan, quota_limit, quota_used, quota_period_start, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.ExternalID,
		user.Email,
		user.APIKeyPrefix,
		user.APIKeyHash,
		user.Plan,
		user.QuotaLimit,
		user.QuotaUsed,
		user.QuotaPeriodStart,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrExternalIDExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.UpdatedAt = user.CreatedAt
	return nil
}

// EnsureUserByExternalID inserts user unless one already exists for its
// external id, and returns the stored row. created reports whether this call
// inserted it. Safe under concurrent first contact: the unique constraint on
// external_id decides the winner.
func (r *Repository) EnsureUserByExternalID(ctx context.Context, user *model.User) (stored *model.User, created bool, err error) {
	query := `
		WITH ins AS (
			INSERT INTO users (id, external_id, email, api_key_prefix, api_key_hash,
				plan, quota_limit, quota_used, quota_period_start, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $9)
			ON CONFLICT (external_id) DO NOTHING
			RETURNING ` + userColumns + `, true
		)
		SELECT * FROM ins
		UNION ALL
		SELECT ` + userColumns + `, false
		FROM users
		WHERE external_id = $2 AND NOT EXISTS (SELECT 1 FROM ins)
	`

	stored, err = scanUser(r.pool.QueryRow(ctx, query,
		user.ID,
		user.ExternalID,
		user.Email,
		user.APIKeyPrefix,
		user.APIKeyHash,
		user.Plan,
		user.QuotaLimit,
		user.QuotaPeriodStart,
		user.CreatedAt,
	), &created)
	if err == nil {
		return stored, created, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}

	// The conflicting row was committed after this statement's snapshot.
	stored, err = r.GetUserByExternalID(ctx, user.ExternalID)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getUser(ctx, "ID", query, id)
}

// GetUserByExternalID retrieves the user bound to an identity provider subject.
func (r *Repository) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`
	return r.getUser(ctx, "external ID", query, externalID)
}

// GetUserByKeyPrefix retrieves the user owning an API key prefix.
func (r *Repository) GetUserByKeyPrefix(ctx context.Context, prefix string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE api_key_prefix = $1`
	return r.getUser(ctx, "key prefix", query, prefix)
}

func (r *Repository) getUser(ctx context.Context, by, query string, arg any) (*model.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by %s: %w", by, err)
	}
	return user, nil
}

// RotateAPIKey replaces the user's API key prefix and hash.
func (r *Repository) RotateAPIKey(ctx context.Context, userID, prefix, hash string) error {
	query := `
		UPDATE users
		SET api_key_prefix = $2, api_key_hash = $3, updated_at = now()
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, userID, prefix, hash)
	if err != nil {
		return fmt.Errorf("failed to rotate API key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// consumeQuota takes one unit of the user's quota for the period starting at
// periodStart. The counter resets when the stored period is older. The row
// lock taken by UPDATE serializes concurrent callers.
func consumeQuota(ctx context.Context, tx pgx.Tx, userID string, periodStart time.Time) (used, limit int, err error) {
	query := `
		UPDATE users
		SET quota_used = CASE WHEN quota_period_start < $2 THEN 1 ELSE quota_used + 1 END,
			quota_period_start = GREATEST(quota_period_start, $2),
			updated_at = now()
		WHERE id = $1
			AND quota_limit > 0
			AND (quota_period_start < $2 OR quota_used < quota_limit)
		RETURNING quota_used, quota_limit
	`

	err = tx.QueryRow(ctx, query, userID, periodStart).Scan(&used, &limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrQuotaExceeded
		}
		return 0, 0, fmt.Errorf("failed to consume quota: %w", err)
	}
	return used, limit, nil
}
