package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduplicator remembers processed chat updates so a redelivered
// message (bot restart, long polling replay) is not bet twice.
type RedisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisDeduplicator(addr, password string, db int, ttl time.Duration) (*RedisDeduplicator, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Check connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDeduplicator{client: client, ttl: ttl, prefix: "betrunner:update"}, nil
}

// FirstSeen atomically marks key as processed. It returns false when the key
// was already marked within the TTL.
func (d *RedisDeduplicator) FirstSeen(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.dedupKey(key), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set dedup key: %w", err)
	}
	return ok, nil
}

func (d *RedisDeduplicator) dedupKey(key string) string {
	return d.prefix + ":" + key
}

func (d *RedisDeduplicator) Close() error {
	return d.client.Close()
}
