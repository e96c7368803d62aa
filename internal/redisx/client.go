// Package redisx holds the Redis client plus the key and TTL conventions
// shared by the api and notifier services.
package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// MarkOnce claims key for ttl and reports whether this caller was first.
// A Redis error reports "first" so an unavailable cache degrades to
// at-least-once instead of dropping work.
func MarkOnce(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (bool, error) {
	ok, err := rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return true, err
	}
	return ok, nil
}
