package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key is absent
var ErrNotFound = errors.New("key not found")

// Store is a byte-oriented key/value store holding failwatch state
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Driver names a Store implementation
type Driver string

const (
	DriverBolt     Driver = "bolt"
	DriverRedis    Driver = "redis"
	DriverPostgres Driver = "postgres"
	DriverMemory   Driver = "memory"
)

// Config selects and configures a Store
type Config struct {
	Driver Driver

	BoltPath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	PostgresURL string
}

// Open creates the Store described by cfg
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverBolt, "":
		return NewBoltStore(cfg.BoltPath)
	case DriverRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case DriverPostgres:
		return NewPostgresStore(ctx, cfg.PostgresURL)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
