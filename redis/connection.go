// Package redis opens the shared Redis connection the host layer uses for
// session caching, pub/sub fan-out, and invite-code storage.
package redis

import (
	"github.com/redis/go-redis/v9"

	"cardsync/server/config"
)

// Connect opens a Redis client using the resolved configuration. The
// host/port/addr fallback chain itself now lives in config.Load, so this
// is a thin constructor rather than doing its own env lookups.
func Connect(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return client, nil
}
