package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a Redis store.
type RedisOptions struct {
	// Client is used as is when set; Close then leaves it open.
	Client *redis.Client

	// URL takes precedence over Addr.
	URL  string
	Addr string

	// TTL expires stored values. 0 keeps them forever.
	TTL time.Duration
}

// Redis is a Store on a redis server.
type Redis struct {
	client *redis.Client
	owned  bool
	ttl    time.Duration
	closed atomic.Bool
}

// NewRedis connects to redis and verifies the connection with a ping.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := opts.Client
	owned := false
	if client == nil {
		switch {
		case opts.URL != "":
			ro, err := redis.ParseURL(opts.URL)
			if err != nil {
				return nil, fmt.Errorf("parsing redis url: %w", err)
			}
			client = redis.NewClient(ro)
		case opts.Addr != "":
			client = redis.NewClient(&redis.Options{Addr: opts.Addr})
		default:
			return nil, errors.New("redis store needs an address or url")
		}
		owned = true
	}

	if err := client.Ping(ctx).Err(); err != nil {
		if owned {
			_ = client.Close()
		}
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &Redis{client: client, owned: owned, ttl: opts.TTL}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	if r.closed.Load() {
		return "", false, ErrClosed
	}
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := r.client.Set(ctx, key, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis remove %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	if r.closed.Swap(true) || !r.owned {
		return nil
	}
	return r.client.Close()
}
