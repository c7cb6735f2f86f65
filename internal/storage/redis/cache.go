package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/durablenotify/notifysvc/internal/domain/model"
	repo "github.com/durablenotify/notifysvc/internal/domain/repository"
	"github.com/durablenotify/notifysvc/pkg/keybuilder"
)

// Ensure NotificationCache implements the domain interface.
var _ repo.NotificationCache = (*NotificationCache)(nil)

// NotificationCache implements repository.NotificationCache using the
// standard go-redis client.
type NotificationCache struct {
	redis  *goredis.Client
	logger zerolog.Logger
}

// NewNotificationCache creates a new NotificationCache.
func NewNotificationCache(redis *goredis.Client, logger *zerolog.Logger) *NotificationCache {
	return &NotificationCache{
		redis:  redis,
		logger: logger.With().Str("layer", "redis_cache").Logger(),
	}
}

// Get retrieves a notification from the cache.
func (c *NotificationCache) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	key := keybuilder.NotificationKey(id)
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, repo.ErrNotFound
		}
		c.logger.Error().Err(err).Str("key", key).Msg("failed to get key from redis")
		return nil, err
	}

	var n model.Notification
	if err := json.Unmarshal([]byte(val), &n); err != nil {
		return nil, fmt.Errorf("redis: unmarshal cached notification: %w", err)
	}
	return &n, nil
}

// Set adds a notification to the cache for the given duration.
func (c *NotificationCache) Set(ctx context.Context, n *model.Notification, expiration time.Duration) error {
	key := keybuilder.NotificationKey(n.ID)
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("redis: marshal notification: %w", err)
	}
	if err := c.redis.Set(ctx, key, data, expiration).Err(); err != nil {
		return fmt.Errorf("redis: set key: %w", err)
	}
	return nil
}

// Delete removes a notification from the cache.
func (c *NotificationCache) Delete(ctx context.Context, id uuid.UUID) error {
	key := keybuilder.NotificationKey(id)
	if err := c.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: delete key: %w", err)
	}
	return nil
}
