package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const maxWatchRetries = 20

// RedisBackend keeps each answer as a JSON string under prefix:namespace:key.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) key(namespace, key string) string {
	return fmt.Sprintf("%s:%s:%s", b.prefix, namespace, key)
}

func (b *RedisBackend) Load(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	val, err := b.client.Get(ctx, b.key(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Save writes without expiry: answers live until cleared.
func (b *RedisBackend) Save(ctx context.Context, namespace, key string, value []byte) error {
	if err := b.client.Set(ctx, b.key(namespace, key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Update uses WATCH/MULTI so concurrent merges on the same key never lose writes.
func (b *RedisBackend) Update(ctx context.Context, namespace, key string, fn UpdateFunc) error {
	k := b.key(namespace, key)

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, k).Bytes()
		found := true
		if errors.Is(err, redis.Nil) {
			current, found = nil, false
		} else if err != nil {
			return err
		}

		next, err := fn(current, found)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := b.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("redis update %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("redis update %s: gave up after %d conflicting writes", key, maxWatchRetries)
}

func (b *RedisBackend) Delete(ctx context.Context, namespace string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = b.key(namespace, k)
	}
	if err := b.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (b *RedisBackend) DeleteAll(ctx context.Context, namespace string) error {
	pattern := b.key(namespace, "*")
	var cursor uint64
	for {
		keys, next, err := b.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := b.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
