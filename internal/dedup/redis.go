package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"harvest-engine/internal/config"
)

// RedisSeenStore keeps exact hashes in Redis with a TTL so restarts and sibling processes share them
type RedisSeenStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSeenStore connects using redis.url; an unparsable URL falls back to localhost
func NewRedisSeenStore(cfg *config.Config) *RedisSeenStore {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		opts = &redis.Options{Addr: "localhost:6379"}
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	timeout := cfg.Redis.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout

	prefix := cfg.Dedup.RedisPrefix
	if prefix == "" {
		prefix = "harvest:seen:"
	}
	return &RedisSeenStore{client: redis.NewClient(opts), prefix: prefix}
}

// MarkSeen sets the key only if absent, so the first writer wins
func (s *RedisSeenStore) MarkSeen(ctx context.Context, hash string, ttl time.Duration) (bool, error) {
	created, err := s.client.SetNX(ctx, s.prefix+hash, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return created, nil
}

// Reset deletes every key under the prefix
func (s *RedisSeenStore) Reset(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 500).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 500 {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	return nil
}

// Ping checks connectivity
func (s *RedisSeenStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisSeenStore) Close() error {
	return s.client.Close()
}
