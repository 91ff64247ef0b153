// Package cache is the key/value store behind sessions. Redis is used when
// REDIS_ADDR is configured; otherwise an in-process map with expiry.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/invictusops/invictus/config"
	"github.com/invictusops/invictus/pkg/logger"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store holds JSON-encoded values with a TTL.
type Store interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Close() error
}

// Connect returns a redis store when REDIS_ADDR is set and reachable, and
// the memory store otherwise. An unreachable redis is an error rather than a
// silent fallback, since sessions would not survive a restart.
func Connect(ctx context.Context) (Store, error) {
	addr := config.RedisAddr()
	if addr == "" {
		logger.Component("cache").Info("REDIS_ADDR not set, using in-process cache")
		return NewMemory(), nil
	}

	r, err := NewRedis(ctx, addr, config.RedisPassword())
	if err != nil {
		return nil, err
	}
	logger.Component("cache").Info("redis connected", "addr", addr)
	return r, nil
}

func encode(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cache: encode: %w", err)
	}
	return data, nil
}

func decode(data []byte, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache: decode: %w", err)
	}
	return nil
}
