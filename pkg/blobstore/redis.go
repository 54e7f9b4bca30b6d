package blobstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisScanCount = 100

// RedisStore maps a container onto a key prefix in one Redis database.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// CreateContainerIfNotExists only checks connectivity; prefixes need no setup.
func (r *RedisStore) CreateContainerIfNotExists(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis blobstore: ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis blobstore: set %s failed: %w", key, err)
	}
	return nil
}

func (r *RedisStore) PutIfAbsent(ctx context.Context, key string, data []byte) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+key, data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis blobstore: setnx %s failed: %w", key, err)
	}
	return ok, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis blobstore: get %s failed: %w", key, err)
	}
	return data, nil
}

func (r *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis blobstore: exists %s failed: %w", key, err)
	}
	return n > 0, nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis blobstore: del %s failed: %w", key, err)
	}
	return nil
}

// ListKeys walks the prefix with SCAN, so keys added or removed during the
// walk may or may not be reported.
func (r *RedisStore) ListKeys(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		it := r.client.Scan(ctx, 0, r.prefix+"*", redisScanCount).Iterator()
		for it.Next(ctx) {
			if !yield(strings.TrimPrefix(it.Val(), r.prefix), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield("", fmt.Errorf("redis blobstore: scan failed: %w", err))
		}
	}
}
