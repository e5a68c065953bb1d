package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pingpanda/pingpanda/internal/model"
)

const (
	authCachePrefix     = "auth:ctx:"
	authUserIndexPrefix = "auth:user:"
	authCacheTTL        = 5 * time.Minute
)

type cachedAuthContext struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Plan      string `json:"plan"`
	Method    string `json:"method"`
	KeyPrefix string `json:"key_prefix"`
}

// GetAuthContext retrieves a cached auth context by cache key.
// Returns nil if not found (cache miss).
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	data, err := c.client.Get(ctx, authCachePrefix+cacheKey).Bytes()
	if err != nil {
		return nil, nil //nolint:nilerr
	}

	var cached cachedAuthContext
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, nil //nolint:nilerr
	}

	return &model.AuthContext{
		UserID:    cached.UserID,
		Email:     cached.Email,
		Plan:      model.Plan(cached.Plan),
		Method:    model.AuthMethod(cached.Method),
		KeyPrefix: cached.KeyPrefix,
	}, nil
}

// SetAuthContext caches an auth context and records the cache key in the
// owning user's index so it can be invalidated on key rotation.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error {
	data, err := json.Marshal(cachedAuthContext{
		UserID:    auth.UserID,
		Email:     auth.Email,
		Plan:      string(auth.Plan),
		Method:    string(auth.Method),
		KeyPrefix: auth.KeyPrefix,
	})
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	indexKey := authUserIndexPrefix + auth.UserID

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, authCachePrefix+cacheKey, data, authCacheTTL)
	pipe.SAdd(ctx, indexKey, cacheKey)
	pipe.Expire(ctx, indexKey, authCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache auth context: %w", err)
	}
	return nil
}

// InvalidateUserAuthContexts removes every cached auth context of a user.
func (c *Cache) InvalidateUserAuthContexts(ctx context.Context, userID string) error {
	indexKey := authUserIndexPrefix + userID

	members, err := c.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("read auth index: %w", err)
	}

	keys := make([]string, 0, len(members)+1)
	for _, m := range members {
		keys = append(keys, authCachePrefix+m)
	}
	keys = append(keys, indexKey)

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate auth contexts: %w", err)
	}
	return nil
}
