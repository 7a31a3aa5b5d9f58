// Package cache holds the Redis-backed conversation cache.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL    = 60 * time.Second
	defaultPrefix = "conversation:"
	scanBatch     = 100
)

// RedisConversationCache stores encoded conversations under a key built from
// the sorted pair of participant ids, so both directions share one entry.
type RedisConversationCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisConversationCache connects to the Redis server at redisURL.
func NewRedisConversationCache(redisURL string, ttl time.Duration) (*RedisConversationCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisConversationCacheWithClient(client, ttl), nil
}

func NewRedisConversationCacheWithClient(client *redis.Client, ttl time.Duration) *RedisConversationCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisConversationCache{
		client: client,
		prefix: defaultPrefix,
		ttl:    ttl,
	}
}

func (c *RedisConversationCache) key(userA, userB int) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%s%d:%d", c.prefix, userA, userB)
}

// Get returns the cached payload for the pair. The boolean is false on a miss.
func (c *RedisConversationCache) Get(ctx context.Context, userA, userB int) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, c.key(userA, userB)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get conversation: %w", err)
	}
	return payload, true, nil
}

func (c *RedisConversationCache) Set(ctx context.Context, userA, userB int, payload []byte) error {
	if err := c.client.Set(ctx, c.key(userA, userB), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set conversation: %w", err)
	}
	return nil
}

func (c *RedisConversationCache) Invalidate(ctx context.Context, userA, userB int) error {
	if err := c.client.Del(ctx, c.key(userA, userB)).Err(); err != nil {
		return fmt.Errorf("invalidate conversation: %w", err)
	}
	return nil
}

// InvalidateUser drops every cached conversation the user takes part in.
func (c *RedisConversationCache) InvalidateUser(ctx context.Context, userId int) error {
	patterns := []string{
		fmt.Sprintf("%s%d:*", c.prefix, userId),
		fmt.Sprintf("%s*:%d", c.prefix, userId),
	}

	for _, pattern := range patterns {
		keys := make([]string, 0)
		iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("scan conversations: %w", err)
		}

		if len(keys) == 0 {
			continue
		}
		if err := c.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("invalidate conversations: %w", err)
		}
	}
	return nil
}

func (c *RedisConversationCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisConversationCache) Close() error {
	return c.client.Close()
}
