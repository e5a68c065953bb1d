package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pingpanda/pingpanda/internal/auth"
	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/internal/repository"
)

// QuotaLimits are the per-period event limits assigned by plan.
type QuotaLimits struct {
	Free int
	Pro  int
}

// For returns the limit for plan, falling back to the free limit.
func (q QuotaLimits) For(plan model.Plan) int {
	if plan == model.PlanPro && q.Pro > 0 {
		return q.Pro
	}
	return q.Free
}

// Account is the caller's view of their user record.
type Account struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Plan             model.Plan `json:"plan"`
	APIKeyPrefix     string     `json:"api_key_prefix"`
	QuotaLimit       int        `json:"quota_limit"`
	QuotaUsed        int        `json:"quota_used"`
	QuotaRemaining   int        `json:"quota_remaining"`
	QuotaPeriodStart time.Time  `json:"quota_period_start"`
	CreatedAt        time.Time  `json:"created_at"`
}

// KeyMinter creates new API keys.
type KeyMinter interface {
	Generate() (*auth.GeneratedKey, error)
}

// AccountService provisions users and manages their API keys.
type AccountService struct {
	users  UserStore
	keys   KeyMinter
	authz  AuthInvalidator
	limits QuotaLimits
	clock  Clock
	logger *slog.Logger
}

// NewAccountService creates an AccountService. authz may be nil.
func NewAccountService(users UserStore, keys KeyMinter, authz AuthInvalidator, limits QuotaLimits, clock Clock, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		users:  users,
		keys:   keys,
		authz:  authz,
		limits: limits,
		clock:  clock,
		logger: logger.With("component", "service.account"),
	}
}

var _ auth.UserProvisioner = (*AccountService)(nil)

// ResolveExternalUser returns the user bound to externalID, creating it on
// first contact. Concurrent first contacts resolve to the same row.
func (s *AccountService) ResolveExternalUser(ctx context.Context, externalID, email string) (*model.User, error) {
	if externalID == "" {
		return nil, auth.ErrInvalidCredential
	}

	user, err := s.users.GetUserByExternalID(ctx, externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	// The plaintext is discarded; the user obtains a key by rotating.
	key, err := s.keys.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}

	now := s.clock.current()
	candidate := &model.User{
		ID:               ulid.Make().String(),
		ExternalID:       externalID,
		Email:            email,
		APIKeyPrefix:     key.Prefix,
		APIKeyHash:       key.Hash,
		Plan:             model.PlanFree,
		QuotaLimit:       s.limits.For(model.PlanFree),
		QuotaPeriodStart: s.clock.QuotaPeriodStart(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	stored, created, err := s.users.EnsureUserByExternalID(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	if created {
		s.logger.Info("user provisioned", "user_id", stored.ID)
	}
	return stored, nil
}

// GetAccount returns the caller's account view.
func (s *AccountService) GetAccount(ctx context.Context, userID string) (*Account, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	period := s.clock.QuotaPeriodStart()
	used := user.QuotaUsed
	if user.QuotaPeriodStart.Before(period) {
		used = 0
	}
	return &Account{
		ID:               user.ID,
		Email:            user.Email,
		Plan:             user.Plan,
		APIKeyPrefix:     user.APIKeyPrefix,
		QuotaLimit:       user.QuotaLimit,
		QuotaUsed:        used,
		QuotaRemaining:   user.QuotaRemaining(period),
		QuotaPeriodStart: period,
		CreatedAt:        user.CreatedAt,
	}, nil
}

// RotateAPIKey replaces the caller's API key and returns the new plaintext
// once. Only session callers may rotate.
func (s *AccountService) RotateAPIKey(ctx context.Context, ac *model.AuthContext) (*model.APIKeyRotateResponse, error) {
	if ac == nil || !ac.IsSession() {
		return nil, fmt.Errorf("%w: api key rotation requires a session", ErrUnauthorized)
	}

	key, err := s.keys.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	if err := s.users.RotateAPIKey(ctx, ac.UserID, key.Prefix, key.Hash); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("rotate api key: %w", err)
	}

	if s.authz != nil {
		if err := s.authz.InvalidateUserAuthContexts(ctx, ac.UserID); err != nil {
			s.logger.Warn("failed to invalidate cached auth contexts", "user_id", ac.UserID, "error", err)
		}
	}
	s.logger.Info("api key rotated", "user_id", ac.UserID, "key_prefix", key.Prefix)

	return &model.APIKeyRotateResponse{Key: key.Plaintext, KeyPrefix: key.Prefix}, nil
}
