package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-events/internal/models"
)

const profileKeyPrefix = "identity_profile:"

// RedisProfileCache keeps identity profiles in Redis with a bounded TTL so
// list views do not hammer the identity API with one lookup per row.
type RedisProfileCache struct {
	Client *redis.Client
}

func NewRedisProfileCache(client *redis.Client) *RedisProfileCache {
	return &RedisProfileCache{Client: client}
}

// Get returns the cached profile for a subject, or (nil, nil) on a miss.
func (c *RedisProfileCache) Get(ctx context.Context, subject string) (*models.UserProfile, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	data, err := c.Client.Get(ctx, profileKeyPrefix+subject).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get profile from Redis: %w", err)
	}

	var profile models.UserProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached profile: %w", err)
	}

	return &profile, nil
}

// Set stores a profile with the given TTL. Redis handles expiry; there is
// no local eviction logic.
func (c *RedisProfileCache) Set(ctx context.Context, profile *models.UserProfile, ttl time.Duration) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if profile == nil || profile.ID == "" {
		return fmt.Errorf("cannot cache empty profile")
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	if err := c.Client.Set(ctx, profileKeyPrefix+profile.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store profile in Redis: %w", err)
	}

	return nil
}

// Invalidate drops a cached profile, used when an upstream deletion event
// arrives for the subject.
func (c *RedisProfileCache) Invalidate(ctx context.Context, subject string) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return c.Client.Del(ctx, profileKeyPrefix+subject).Err()
}
