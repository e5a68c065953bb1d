package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pingpanda/pingpanda/internal/model"
)

// Common errors for category repository operations.
var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category already exists")
)

// CreateCategory inserts a new category.
// Returns ErrCategoryExists when the user already owns a category with that name.
func (r *Repository) CreateCategory(ctx context.Context, cat *model.Category) error {
	query := `
		INSERT INTO event_categories (id, user_id, name, color, emoji, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		cat.ID,
		cat.UserID,
		cat.Name,
		cat.Color,
		cat.Emoji,
		cat.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCategoryExists
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	cat.UpdatedAt = cat.CreatedAt
	return nil
}

// GetCategoryByName retrieves a category owned by userID.
func (r *Repository) GetCategoryByName(ctx context.Context, userID, name string) (*model.Category, error) {
	query := `
		SELECT id, user_id, name, color, COALESCE(emoji, ''), created_at, updated_at
		FROM event_categories
		WHERE user_id = $1 AND name = $2
	`

	var cat model.Category
	err := r.pool.QueryRow(ctx, query, userID, name).Scan(
		&cat.ID,
		&cat.UserID,
		&cat.Name,
		&cat.Color,
		&cat.Emoji,
		&cat.CreatedAt,
		&cat.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category by name: %w", err)
	}
	return &cat, nil
}

// ListCategorySummaries returns the user's categories, most recently updated
// first, each with its last event time and this period's event and distinct
// field counts.
func (r *Repository) ListCategorySummaries(ctx context.Context, userID string, since time.Time) ([]*model.CategorySummary, error) {
	query := `
		SELECT c.id, c.user_id, c.name, c.color, COALESCE(c.emoji, ''), c.created_at, c.updated_at,
			(SELECT max(e.created_at) FROM events e WHERE e.category_id = c.id),
			(SELECT count(*) FROM events e WHERE e.category_id = c.id AND e.created_at >= $2),
			(SELECT count(DISTINCT k) FROM events e, json_object_keys(e.fields) AS k
				WHERE e.category_id = c.id AND e.created_at >= $2)
		FROM event_categories c
		WHERE c.user_id = $1
		ORDER BY c.updated_at DESC, c.id
	`

	rows, err := r.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	summaries := []*model.CategorySummary{}
	for rows.Next() {
		var s model.CategorySummary
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.Name,
			&s.Color,
			&s.Emoji,
			&s.CreatedAt,
			&s.UpdatedAt,
			&s.LastPing,
			&s.EventsCount,
			&s.UniqueFieldCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return summaries, nil
}

// DeleteCategory removes the user's category with the given name. Its events
// are removed by the foreign key cascade. Returns the deleted id, or "" when
// the user had no such category.
func (r *Repository) DeleteCategory(ctx context.Context, userID, name string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx,
		`DELETE FROM event_categories WHERE user_id = $1 AND name = $2 RETURNING id`,
		userID, name,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to delete category: %w", err)
	}
	return id, nil
}

// InsertCategoriesIgnoreExisting inserts cats in one batch inside a single
// transaction, skipping names the user already owns. Returns how many rows
// were inserted.
func (r *Repository) InsertCategoriesIgnoreExisting(ctx context.Context, cats []*model.Category) (int, error) {
	query := `
		INSERT INTO event_categories (id, user_id, name, color, emoji, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $6)
		ON CONFLICT (user_id, name) DO NOTHING
	`

	inserted := 0
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, c := range cats {
			batch.Queue(query, c.ID, c.UserID, c.Name, c.Color, c.Emoji, c.CreatedAt)
		}

		br := tx.SendBatch(ctx, batch)
		for range cats {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return err
			}
			inserted += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert categories: %w", err)
	}
	return inserted, nil
}
