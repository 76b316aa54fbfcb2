package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "fieldsnap"

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Del(context.Context, ...string) *redis.IntCmd
}

// Redis stores entries as plain string keys without expiry.
type Redis struct {
	store cmdable
	raw   *redis.Client
}

// OpenRedis connects to Redis and verifies reachability.
func OpenRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, errors.New("kvstore: redis address is required")
	}
	dial := opts.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	raw := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: dial,
	})
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{store: raw, raw: raw}, nil
}

// RedisKey builds the fully qualified key for namespace/key.
func RedisKey(namespace, key string) string {
	return redisKeyPrefix + ":" + namespace + ":" + key
}

// Get returns the value stored under namespace/key.
func (r *Redis) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	if r == nil || r.store == nil {
		return nil, false, ErrClosed
	}
	value, err := r.store.Get(ctx, RedisKey(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", namespace, key, err)
	}
	return value, true, nil
}

// Put stores value under namespace/key.
func (r *Redis) Put(ctx context.Context, namespace, key string, value []byte) error {
	if r == nil || r.store == nil {
		return ErrClosed
	}
	if err := r.store.Set(ctx, RedisKey(namespace, key), value, 0).Err(); err != nil {
		return fmt.Errorf("put %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Delete removes namespace/key.
func (r *Redis) Delete(ctx context.Context, namespace, key string) error {
	if r == nil || r.store == nil {
		return ErrClosed
	}
	if err := r.store.Del(ctx, RedisKey(namespace, key)).Err(); err != nil {
		return fmt.Errorf("delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.store == nil {
		return ErrClosed
	}
	return r.store.Ping(ctx).Err()
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	if r == nil || r.raw == nil {
		return nil
	}
	return r.raw.Close()
}
