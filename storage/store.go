package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Store is a string key-value store.
type Store interface {
	// Get returns the value of key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Close releases the store.
	Close() error
}

// SearchValueKey returns the key of the stored search term for a deployment
// rooted at absBaseURI.
func SearchValueKey(absBaseURI string) string {
	return absBaseURI + "/search-value"
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Backend string

	// Path is the badger directory. Empty keeps badger in memory.
	Path string

	// RedisURL takes precedence over RedisAddr when set.
	RedisAddr string
	RedisURL  string

	// TTL expires stored values (badger and redis). 0 keeps them forever.
	TTL time.Duration

	// SessionID scopes all keys when non-empty.
	SessionID string

	Logger *slog.Logger
}

// Open creates the store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case "", BackendMemory:
		s = NewMemory()
	case BackendBadger:
		s, err = OpenBadger(BadgerOptions{
			Path:     cfg.Path,
			InMemory: cfg.Path == "",
			TTL:      cfg.TTL,
			Logger:   cfg.Logger,
		})
	case BackendRedis:
		s, err = NewRedis(ctx, RedisOptions{
			Addr: cfg.RedisAddr,
			URL:  cfg.RedisURL,
			TTL:  cfg.TTL,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.SessionID != "" {
		s = Scoped(s, cfg.SessionID)
	}
	return s, nil
}
