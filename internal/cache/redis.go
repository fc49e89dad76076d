// Package cache provides cache tier implementations.
//
// This file implements a Redis-backed tier.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Opts holds configuration options for the Redis cache tier.
type Opts struct {
	Addr     string // Redis server address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Option defines a configuration option for the Redis cache tier.
type Option func(*Opts)

// WithAddr sets the Redis server address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithPassword sets the Redis password.
func WithPassword(password string) Option {
	return func(o *Opts) { o.Password = password }
}

// WithDB selects the Redis logical database.
func WithDB(db int) Option {
	return func(o *Opts) { o.DB = db }
}

// RedisTier implements Tier backed by a Redis server.
type RedisTier struct {
	client *redis.Client
}

// NewRedisTier creates a Redis-backed cache tier. The connection is verified
// with a ping so that a misconfigured address fails at startup rather than on
// the first conversation.
func NewRedisTier(opts ...Option) (*RedisTier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("RedisTier.NewRedisTier: creating Redis cache tier", "addr_set", cfg.Addr != "", "db", cfg.DB)

	if cfg.Addr == "" {
		slog.Error("RedisTier address not set")
		return nil, fmt.Errorf("redis address not set")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("RedisTier ping failed", "error", err, "addr", cfg.Addr)
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	slog.Debug("RedisTier ping successful", "addr", cfg.Addr)

	return &RedisTier{client: client}, nil
}

// Set stores value under key with the given TTL.
func (t *RedisTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.client.Set(ctx, key, value, ttl).Err(); err != nil {
		slog.Error("RedisTier Set failed", "error", err, "key", key)
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Get retrieves the value for key, reporting redis.Nil as a miss.
func (t *RedisTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := t.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		slog.Error("RedisTier Get failed", "error", err, "key", key)
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Del removes key.
func (t *RedisTier) Del(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, key).Err(); err != nil {
		slog.Error("RedisTier Del failed", "error", err, "key", key)
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (t *RedisTier) Close() error {
	return t.client.Close()
}
