package cart

import (
	"context"
	"sync"
)

const keyNamespace = "tapcart"

// CartKey is where a session's lines are persisted.
func CartKey(sessionID string) string { return keyNamespace + ":cart:" + sessionID }

// CouponKey is where a session's applied coupon is persisted.
func CouponKey(sessionID string) string { return keyNamespace + ":coupon:" + sessionID }

// Storage is durable key/value storage for cart state. Values are JSON.
// Get reports ok=false for a missing key.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// MemoryStorage is a process-local Storage.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// StateStore is the cart-state slice of a record store.
type StateStore interface {
	GetCartState(ctx context.Context, key string) (string, bool, error)
	PutCartState(ctx context.Context, key, value string) error
	DeleteCartState(ctx context.Context, key string) error
}

// StateStorage adapts a record store's cart-state table to Storage.
func StateStorage(s StateStore) Storage { return stateStorage{s} }

type stateStorage struct{ s StateStore }

func (a stateStorage) Get(ctx context.Context, key string) (string, bool, error) {
	return a.s.GetCartState(ctx, key)
}

func (a stateStorage) Set(ctx context.Context, key, value string) error {
	return a.s.PutCartState(ctx, key, value)
}

func (a stateStorage) Remove(ctx context.Context, key string) error {
	return a.s.DeleteCartState(ctx, key)
}
