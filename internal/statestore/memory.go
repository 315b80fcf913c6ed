// Package statestore persists the keyed client auth-state blob
// ("auth-storage"): the {user, isAuthenticated} entry the frontend
// shell rehydrates on reload. Redis backs it in production; the
// in-memory implementation covers development and tests.
package statestore

import (
	"context"
	"time"

	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/cache"
)

// Memory is an in-memory state store with TTL eviction.
type Memory struct {
	entries *cache.InMemory[*domain.AuthState]
}

// NewMemory creates an in-memory state store.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{entries: cache.New[*domain.AuthState](ttl)}
}

// Get returns the stored state, or nil when the key is unknown or
// expired.
func (m *Memory) Get(_ context.Context, key string) (*domain.AuthState, error) {
	state, ok := m.entries.Get(key)
	if !ok {
		return nil, nil
	}
	return state, nil
}

// Put stores the state under key.
func (m *Memory) Put(_ context.Context, key string, state *domain.AuthState) error {
	m.entries.Set(key, state)
	return nil
}

// Delete removes the state under key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.entries.Delete(key)
	return nil
}

// Close stops the underlying cache janitor.
func (m *Memory) Close() {
	m.entries.Close()
}
