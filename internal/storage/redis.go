package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage implements Storage on go-redis/v9, grounded on
// pkg/storage/dragonfly.go's thin Cmdable wrapper.
type RedisStorage struct {
	client redis.Cmdable
}

// NewRedisStorage connects to addr and verifies reachability.
func NewRedisStorage(addr string) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &RedisStorage{client: client}, nil
}

// NewRedisStorageFromClient wraps an already-constructed client,
// letting tests inject go-redis/redismock/v9.
func NewRedisStorageFromClient(client redis.Cmdable) *RedisStorage {
	return &RedisStorage{client: client}
}

func (r *RedisStorage) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (r *RedisStorage) Get(ctx context.Context, key string) (int64, error) {
	v, err := r.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

func (r *RedisStorage) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisStorage) GetString(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

func (r *RedisStorage) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
