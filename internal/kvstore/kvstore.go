package kvstore

import (
	"context"
	"errors"
	"fmt"

	"fieldsnap/internal/config"
)

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("kvstore closed")

// Backend persists opaque values scoped by namespace.
type Backend interface {
	// Get returns the stored value and whether it exists.
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Put(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
	Close() error
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Open builds the backend selected by cfg.Store.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	if cfg == nil {
		return nil, errors.New("kvstore: config is required")
	}
	switch cfg.Store.Backend {
	case "sqlite":
		return OpenSQLite(ctx, cfg.Store.SQLitePath)
	case "redis":
		return OpenRedis(ctx, RedisOptions{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("kvstore: unsupported backend %q", cfg.Store.Backend)
	}
}
