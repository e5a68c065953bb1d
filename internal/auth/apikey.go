package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pingpanda/pingpanda/internal/model"
	"github.com/pingpanda/pingpanda/internal/repository"
)

// KeyLookup finds the user owning an API key prefix.
type KeyLookup interface {
	GetUserByKeyPrefix(ctx context.Context, prefix string) (*model.User, error)
}

// AuthCache stores verified auth contexts keyed by a hash of the credential.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error
}

// APIKeyResolver authenticates machine callers by long-lived API key.
type APIKeyResolver struct {
	Users KeyLookup
	Cache AuthCache // optional
}

// Resolve implements Resolver.
func (a *APIKeyResolver) Resolve(r *http.Request) (*model.AuthContext, error) {
	key := ExtractAPIKey(r)
	if key == "" {
		return nil, ErrNoCredential
	}

	parsed, err := ParseAPIKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed api key", ErrInvalidCredential)
	}

	ctx := r.Context()
	cacheKey := QuickHash(key)
	if a.Cache != nil {
		if cached, _ := a.Cache.GetAuthContext(ctx, cacheKey); cached != nil {
			return cached, nil
		}
	}

	user, err := a.Users.GetUserByKeyPrefix(ctx, parsed.Prefix)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: unknown api key", ErrInvalidCredential)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}

	ok, err := VerifyKey(key, user.APIKeyHash)
	if err != nil || !ok {
		return nil, fmt.Errorf("%w: api key mismatch", ErrInvalidCredential)
	}

	authCtx := &model.AuthContext{
		UserID:    user.ID,
		Email:     user.Email,
		Plan:      user.Plan,
		Method:    model.AuthMethodAPIKey,
		KeyPrefix: user.APIKeyPrefix,
	}

	if a.Cache != nil {
		_ = a.Cache.SetAuthContext(ctx, cacheKey, authCtx)
	}

	return authCtx, nil
}
