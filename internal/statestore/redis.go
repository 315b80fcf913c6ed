package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
)

const keyPrefix = "auth-storage:"

// Redis is a Redis-backed state store. Entries expire after the
// configured TTL; a reload within the TTL rehydrates the shell without
// a profile fetch.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis creates a Redis state store.
func NewRedis(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Redis {
	return &Redis{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the stored state, or nil when the key is unknown or
// expired.
func (r *Redis) Get(ctx context.Context, key string) (*domain.AuthState, error) {
	raw, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("statestore get: %w", err)
	}

	var state domain.AuthState
	if err := json.Unmarshal(raw, &state); err != nil {
		// A corrupt blob is treated as absent rather than failing the
		// shell; it will be rewritten on the next login.
		r.logger.Warn("statestore: discarding corrupt entry", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	return &state, nil
}

// Put stores the state under key with the configured TTL.
func (r *Redis) Put(ctx context.Context, key string, state *domain.AuthState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("statestore marshal: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("statestore put: %w", err)
	}
	return nil
}

// Delete removes the state under key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("statestore delete: %w", err)
	}
	return nil
}
