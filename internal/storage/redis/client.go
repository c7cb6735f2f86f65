// Package redis implements a cache-aside read-through cache in front
// of the Postgres notification store. Nothing here participates in
// the claim protocol or retry correctness — it is purely a
// read-latency optimization for GetNotification.
package redis

import (
	goredis "github.com/redis/go-redis/v9"

	"github.com/durablenotify/notifysvc/internal/config"
)

// NewClient creates a go-redis client from cfg.Redis.
func NewClient(cfg *config.Config) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
