// Package kvstore provides storage backends for conversation sessions.
//
// This file implements the Redis-backed store used in production.
package kvstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisAddr is used when no address is configured.
const DefaultRedisAddr = "localhost:6379"

// Opts holds configuration options for the Redis store.
type Opts struct {
	Addr     string
	Password string
	DB       int
}

// Option defines a configuration option for the Redis store.
type Option func(*Opts)

// WithAddr sets the Redis server address (host:port).
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithPassword sets the Redis password.
func WithPassword(password string) Option {
	return func(o *Opts) { o.Password = password }
}

// WithDB sets the Redis database number.
func WithDB(db int) Option {
	return func(o *Opts) { o.DB = db }
}

// RedisStore implements KeyValue backed by a Redis server.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store and verifies connectivity.
// Falls back to REDIS_ADDR, REDIS_PASSWORD, and REDIS_DB environment
// variables for options not provided explicitly.
func NewRedisStore(opts ...Option) (*RedisStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = os.Getenv("REDIS_ADDR")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultRedisAddr
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv("REDIS_PASSWORD")
	}
	if cfg.DB == 0 {
		if v := os.Getenv("REDIS_DB"); v != "" {
			if db, err := strconv.Atoi(v); err == nil {
				cfg.DB = db
			} else {
				slog.Warn("RedisStore invalid REDIS_DB value, using 0", "value", v)
			}
		}
	}
	slog.Debug("NewRedisStore invoked", "addr", cfg.Addr, "db", cfg.DB, "password_set", cfg.Password != "")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("RedisStore ping failed", "error", err, "addr", cfg.Addr)
		return nil, err
	}
	slog.Info("RedisStore connected", "addr", cfg.Addr, "db", cfg.DB)

	return &RedisStore{client: client}, nil
}

// SetData stores data as a JSON document under key with the given TTL.
func (s *RedisStore) SetData(ctx context.Context, key string, data map[string]interface{}, ttlSeconds int) bool {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("RedisStore SetData marshal failed", "error", err, "key", key)
		return false
	}
	if err := s.client.Set(ctx, key, payload, time.Duration(ttlSeconds)*time.Second).Err(); err != nil {
		slog.Error("RedisStore SetData failed", "error", err, "key", key)
		return false
	}
	slog.Debug("RedisStore SetData succeeded", "key", key, "ttl_seconds", ttlSeconds)
	return true
}

// GetData retrieves and deserializes the document stored under key.
func (s *RedisStore) GetData(ctx context.Context, key string) map[string]interface{} {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		slog.Debug("RedisStore GetData miss", "key", key)
		return nil
	}
	if err != nil {
		slog.Error("RedisStore GetData failed", "error", err, "key", key)
		return nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		slog.Error("RedisStore GetData unmarshal failed", "error", err, "key", key)
		return nil
	}
	slog.Debug("RedisStore GetData hit", "key", key)
	return data
}

// DeleteData removes key from Redis.
func (s *RedisStore) DeleteData(ctx context.Context, key string) bool {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		slog.Error("RedisStore DeleteData failed", "error", err, "key", key)
		return false
	}
	slog.Debug("RedisStore DeleteData", "key", key, "deleted", n > 0)
	return n > 0
}

// GetTTL returns the remaining TTL for key in seconds.
func (s *RedisStore) GetTTL(ctx context.Context, key string) int {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		slog.Error("RedisStore GetTTL failed", "error", err, "key", key)
		return TTLMissing
	}
	// go-redis maps the -1/-2 sentinels to -1s/-2s durations.
	switch {
	case d == -1*time.Second:
		return TTLNoExpiry
	case d < 0:
		return TTLMissing
	}
	return int(d / time.Second)
}

// Ping verifies the Redis connection is alive.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
