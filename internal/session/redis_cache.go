package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// RedisCache keeps each session's turns in a capped Redis list so several
// API processes can share one cache. Idle eviction is Redis key expiry.
type RedisCache struct {
	redis  *redis.Client
	limit  int
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisCache creates a Redis-backed Cache.
func NewRedisCache(client *redis.Client, limit int, ttl time.Duration) *RedisCache {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if limit <= 0 {
		limit = 20
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{
		redis:  client,
		limit:  limit,
		ttl:    ttl,
		tracer: otel.Tracer("chatdesk.internal.session"),
	}
}

func (c *RedisCache) key(key string) string {
	return "session:history:" + key
}

func (c *RedisCache) History(ctx context.Context, key string) ([]Turn, bool, error) {
	ctx, span := c.tracer.Start(ctx, "session.history")
	defer span.End()

	raw, err := c.redis.LRange(ctx, c.key(key), 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("session: load history: %w", err)
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var turn Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			span.RecordError(err)
			return nil, false, fmt.Errorf("session: decode turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, true, nil
}

func (c *RedisCache) Append(ctx context.Context, key string, turns ...Turn) error {
	return c.push(ctx, key, turns, false)
}

func (c *RedisCache) Seed(ctx context.Context, key string, turns []Turn) error {
	return c.push(ctx, key, turns, true)
}

// push writes turns to the list for key. Appends use RPUSHX so a missing or
// expired key stays missing; seeding replaces the list.
func (c *RedisCache) push(ctx context.Context, key string, turns []Turn, replace bool) error {
	if len(turns) == 0 && !replace {
		return nil
	}
	ctx, span := c.tracer.Start(ctx, "session.append")
	defer span.End()

	values := make([]any, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("session: encode turn: %w", err)
		}
		values = append(values, data)
	}
	k := c.key(key)
	pipe := c.redis.TxPipeline()
	if replace {
		pipe.Del(ctx, k)
	}
	if len(values) > 0 {
		if replace {
			pipe.RPush(ctx, k, values...)
		} else {
			pipe.RPushX(ctx, k, values...)
		}
		pipe.LTrim(ctx, k, int64(-c.limit), -1)
		pipe.Expire(ctx, k, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: append turns: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.redis.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("session: delete history: %w", err)
	}
	return nil
}

// Len counts cached sessions. It scans the keyspace and is meant for
// metrics, not the request path.
func (c *RedisCache) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, "session:history:*", 200).Result()
		if err != nil {
			return total
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			return total
		}
	}
}
