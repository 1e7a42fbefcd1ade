package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"cityweather/internal/config"
	"cityweather/internal/history"
)

const opTimeout = 5 * time.Second

// RedisKV is a history.KVStore kept in Redis. Keys are namespaced with a prefix.
type RedisKV struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

var _ history.KVStore = (*RedisKV)(nil)

// New connects to Redis and checks the connection
func New(cfg config.RedisConfig, logger *slog.Logger) (*RedisKV, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Connected to Redis", "addr", cfg.Addr, "db", cfg.DB)

	return NewWithClient(client, cfg.Prefix, logger), nil
}

// NewWithClient wraps an existing client without pinging it
func NewWithClient(client *redis.Client, prefix string, logger *slog.Logger) *RedisKV {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisKV{client: client, prefix: prefix, logger: logger}
}

// Key returns the namespaced Redis key for key
func (r *RedisKV) Key(key string) string {
	return r.prefix + key
}

func (r *RedisKV) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	val, err := r.client.Get(ctx, r.Key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", history.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s from Redis: %w", key, err)
	}

	r.logger.Debug("Read value from Redis", "key", r.Key(key))
	return val, nil
}

// Set stores value with no expiry
func (r *RedisKV) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.Key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s to Redis: %w", key, err)
	}

	r.logger.Debug("Wrote value to Redis", "key", r.Key(key), "bytes", len(value))
	return nil
}

func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisKV) Close() error {
	return r.client.Close()
}
