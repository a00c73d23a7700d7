package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors for store operations
var (
	// ErrNotFound is returned when no value is stored under a key
	ErrNotFound = errors.New("key not found")

	// ErrInvalidKey is returned for empty keys
	ErrInvalidKey = errors.New("invalid key")

	// ErrClosed is returned when a closed store is used
	ErrClosed = errors.New("store is closed")

	// ErrUnknownDriver is returned by Open for unsupported drivers
	ErrUnknownDriver = errors.New("unknown store driver")
)

// DefaultNamespace is the key prefix used when none is configured.
const DefaultNamespace = "readaloud"

// Store is a durable key/value byte store. Set overwrites any prior value.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Driver    string
	Path      string // directory for file, database file for sqlite
	Namespace string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

// Open creates the backend named by cfg.Driver.
func Open(cfg Config) (Store, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}

	switch strings.ToLower(cfg.Driver) {
	case DriverMemory:
		return NewMemoryStore(cfg.Namespace), nil
	case "", DriverFile:
		return NewFileStore(cfg.Path, cfg.Namespace)
	case DriverSQLite:
		return NewSQLiteStore(cfg.Path, cfg.Namespace)
	case DriverRedis:
		return NewRedisStore(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, WithNamespace(cfg.Namespace), WithTTL(cfg.RedisTTL))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// namespaced joins the namespace and key.
func namespaced(namespace, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	if namespace == "" {
		return key, nil
	}
	return namespace + ":" + key, nil
}
