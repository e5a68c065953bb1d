package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pingpanda/pingpanda/internal/model"
)

// Common errors for event repository operations.
var (
	ErrEventNotFound     = errors.New("event not found")
	ErrInvalidTransition = errors.New("invalid delivery status transition")
)

// EventFilter selects a user's events in one category created at or after Since.
type EventFilter struct {
	UserID     string
	CategoryID string
	Since      time.Time
}

const eventColumns = `id, user_id, category_id, name, fields, delivery_status, created_at, updated_at`

func scanEvent(row rowScanner) (*model.Event, error) {
	var (
		e   model.Event
		raw []byte
	)
	if err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.CategoryID,
		&e.Name,
		&raw,
		&e.DeliveryStatus,
		&e.CreatedAt,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &e.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of event %s: %w", e.ID, err)
	}
	return &e, nil
}

// CreateEventWithQuota consumes one unit of the owner's quota for the period
// starting at periodStart and inserts the event, in one transaction.
// Returns ErrQuotaExceeded without persisting anything when the quota is spent,
// and ErrCategoryNotFound when the category no longer exists.
func (r *Repository) CreateEventWithQuota(ctx context.Context, e *model.Event, periodStart time.Time) error {
	fields, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	query := `
		INSERT INTO events (id, user_id, category_id, name, fields, delivery_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, _, err := consumeQuota(ctx, tx, e.UserID, periodStart); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, query,
			e.ID,
			e.UserID,
			e.CategoryID,
			e.Name,
			string(fields),
			e.DeliveryStatus,
			e.CreatedAt,
		)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			return err
		}
		if isForeignKeyViolation(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("failed to create event: %w", err)
	}
	e.UpdatedAt = e.CreatedAt
	return nil
}

// ListEvents returns one page of filtered events, newest first.
// Ties on created_at are broken by id so pages never overlap.
func (r *Repository) ListEvents(ctx context.Context, f EventFilter, limit, offset int) ([]*model.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE user_id = $1 AND category_id = $2 AND created_at >= $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5
	`

	rows, err := r.pool.Query(ctx, query, f.UserID, f.CategoryID, f.Since, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// CountEvents counts filtered events.
func (r *Repository) CountEvents(ctx context.Context, f EventFilter) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM events WHERE user_id = $1 AND category_id = $2 AND created_at >= $3`,
		f.UserID, f.CategoryID, f.Since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// DistinctFieldKeys returns the sorted union of field keys across filtered events.
func (r *Repository) DistinctFieldKeys(ctx context.Context, f EventFilter) ([]string, error) {
	query := `
		SELECT DISTINCT k
		FROM events e, json_object_keys(e.fields) AS k
		WHERE e.user_id = $1 AND e.category_id = $2 AND e.created_at >= $3
		ORDER BY k
	`

	rows, err := r.pool.Query(ctx, query, f.UserID, f.CategoryID, f.Since)
	if err != nil {
		return nil, fmt.Errorf("failed to list field keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan field keys: %w", err)
	}
	return keys, nil
}

// ForEachEvent streams filtered events to fn in creation order.
// Iteration stops at the first error returned by fn.
func (r *Repository) ForEachEvent(ctx context.Context, f EventFilter, fn func(*model.Event) error) error {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE user_id = $1 AND category_id = $2 AND created_at >= $3
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, f.UserID, f.CategoryID, f.Since)
	if err != nil {
		return fmt.Errorf("failed to scan events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return fmt.Errorf("failed to scan event: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating events: %w", err)
	}
	return nil
}

// HasEvents reports whether the category holds any event of the user.
func (r *Repository) HasEvents(ctx context.Context, userID, categoryID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE user_id = $1 AND category_id = $2)`,
		userID, categoryID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check events: %w", err)
	}
	return exists, nil
}

// UpdateDeliveryStatus moves a pending event to a terminal status.
// Returns ErrEventNotFound for unknown ids and ErrInvalidTransition when the
// event is no longer pending.
func (r *Repository) UpdateDeliveryStatus(ctx context.Context, eventID string, status model.DeliveryStatus) error {
	if !model.DeliveryStatusPending.CanTransitionTo(status) {
		return ErrInvalidTransition
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE events
		SET delivery_status = $2, updated_at = now()
		WHERE id = $1 AND delivery_status = 'pending'
	`, eventID, status)
	if err != nil {
		return fmt.Errorf("failed to update delivery status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check event: %w", err)
	}
	if !exists {
		return ErrEventNotFound
	}
	return ErrInvalidTransition
}
