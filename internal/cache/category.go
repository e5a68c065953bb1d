package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pingpanda/pingpanda/internal/model"
)

// Cache key prefixes and TTLs.
const (
	categoryKeyPrefix    = "category:"
	negCacheKeySuffix    = ":neg"
	categoryTombstoneKey = "category:deleted:"

	// DefaultCategoryTTL is the TTL for cached category lookups.
	DefaultCategoryTTL = 10 * time.Minute

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = 30 * time.Second
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

func categoryKey(userID, name string) string {
	return categoryKeyPrefix + userID + ":" + name
}

func tombstoneKey(categoryID string) string {
	return categoryTombstoneKey + categoryID
}

// setCategoryScript caches a category unless its id was deleted.
// KEYS: entry, negative entry, tombstone. ARGV: id, color, emoji, ttl seconds.
var setCategoryScript = redis.NewScript(`
	if redis.call("EXISTS", KEYS[3]) == 1 then
		return 0
	end
	redis.call("HSET", KEYS[1], "id", ARGV[1], "color", ARGV[2], "emoji", ARGV[3])
	redis.call("EXPIRE", KEYS[1], tonumber(ARGV[4]))
	redis.call("DEL", KEYS[2])
	return 1
`)

// GetCategory retrieves the category cached for (user, name).
// Timestamps are not cached. Returns ErrCacheMiss if not found.
func (c *Cache) GetCategory(ctx context.Context, userID, name string) (*model.Category, error) {
	result, err := c.client.HGetAll(ctx, categoryKey(userID, name)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(result) == 0 || result["id"] == "" {
		return nil, ErrCacheMiss
	}

	color, err := strconv.Atoi(result["color"])
	if err != nil {
		return nil, ErrCacheMiss
	}

	return &model.Category{
		ID:     result["id"],
		UserID: userID,
		Name:   name,
		Color:  model.Color(color),
		Emoji:  result["emoji"],
	}, nil
}

// SetCategory stores a category lookup and clears any negative entry.
// A category whose id carries a deletion tombstone is not cached.
func (c *Cache) SetCategory(ctx context.Context, cat *model.Category) error {
	key := categoryKey(cat.UserID, cat.Name)
	err := setCategoryScript.Run(ctx, c.client,
		[]string{key, key + negCacheKeySuffix, tombstoneKey(cat.ID)},
		cat.ID, int(cat.Color), cat.Emoji, int(DefaultCategoryTTL.Seconds()),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to cache category: %w", err)
	}
	return nil
}

// DeleteCategory removes both the positive and negative entries. When
// deletedID is set it also records a tombstone so a lookup that read the row
// before the delete cannot cache it again.
func (c *Cache) DeleteCategory(ctx context.Context, userID, name, deletedID string) error {
	key := categoryKey(userID, name)

	pipe := c.client.TxPipeline()
	if deletedID != "" {
		pipe.SetEx(ctx, tombstoneKey(deletedID), "", DefaultCategoryTTL)
	}
	pipe.Del(ctx, key, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete category from cache: %w", err)
	}
	return nil
}

// IsNegativelyCached reports whether (user, name) is known not to exist.
func (c *Cache) IsNegativelyCached(ctx context.Context, userID, name string) (bool, error) {
	exists, err := c.client.Exists(ctx, categoryKey(userID, name)+negCacheKeySuffix).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}
	return exists > 0, nil
}

// SetNegativeCache marks (user, name) as not found.
func (c *Cache) SetNegativeCache(ctx context.Context, userID, name string) error {
	if err := c.client.SetEx(ctx, categoryKey(userID, name)+negCacheKeySuffix, "", NegativeCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}
	return nil
}
