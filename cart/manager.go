package cart

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"weak"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

// Manager hands out one Store per session, keeping the most recently used
// carts in memory. An evicted cart that a caller still holds is handed out
// again rather than rebuilt, so a session never has two live Stores. Once
// nothing references it, the next Get rebuilds it from Storage.
type Manager struct {
	storage  Storage
	coupons  CouponSource
	opts     []Option
	logger   *slog.Logger
	onCreate []func(*Store)

	mu      sync.Mutex
	carts   *lru.Cache
	evicted map[string]weak.Pointer[Store]
	loads   singleflight.Group
}

// NewManager creates a manager caching up to size carts.
func NewManager(size int, storage Storage, coupons CouponSource, opts ...Option) (*Manager, error) {
	if size <= 0 {
		size = 4096
	}
	m := &Manager{
		storage: storage,
		coupons: coupons,
		opts:    opts,
		logger:  slog.Default(),
		evicted: make(map[string]weak.Pointer[Store]),
	}
	cache, err := lru.NewWithEvict(size, m.onEvict)
	if err != nil {
		return nil, fmt.Errorf("cart: create session cache: %w", err)
	}
	m.carts = cache
	return m, nil
}

// SetLogger sets the manager's own logger. Carts take theirs from WithLogger.
func (m *Manager) SetLogger(l *slog.Logger) { m.logger = l }

// OnCreate registers fn to run on every newly built Store before it is
// hydrated or returned.
func (m *Manager) OnCreate(fn func(*Store)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCreate = append(m.onCreate, fn)
}

// Get returns the cart for sessionID, hydrating it from Storage on first
// use. Concurrent first loads of one session share a single Hydrate; loads
// of different sessions do not wait on each other.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Store, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("cart: empty session id")
	}
	if s := m.live(sessionID); s != nil {
		return s, nil
	}

	v, err, _ := m.loads.Do(sessionID, func() (any, error) {
		if s := m.live(sessionID); s != nil {
			return s, nil
		}

		s := New(sessionID, m.storage, m.coupons, m.opts...)
		m.mu.Lock()
		hooks := slices.Clone(m.onCreate)
		m.mu.Unlock()
		for _, fn := range hooks {
			fn(s)
		}
		if err := s.Hydrate(ctx); err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.carts.Add(sessionID, s)
		m.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil //nolint:forcetypeassert // loads only yield *Store
}

// live returns the in-memory Store for sessionID: the cached one, or an
// evicted one still referenced elsewhere, which goes back in the cache.
func (m *Manager) live(sessionID string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.carts.Get(sessionID); ok {
		return v.(*Store) //nolint:forcetypeassert // cache only holds *Store
	}
	wp, ok := m.evicted[sessionID]
	if !ok {
		return nil
	}
	delete(m.evicted, sessionID)
	s := wp.Value()
	if s != nil {
		m.carts.Add(sessionID, s)
	}
	return s
}

// onEvict runs inside cache calls, with m.mu held.
func (m *Manager) onEvict(key, value any) {
	sessionID := key.(string) //nolint:forcetypeassert // keys are session ids
	s := value.(*Store)       //nolint:forcetypeassert // cache only holds *Store
	m.evicted[sessionID] = weak.Make(s)
	runtime.AddCleanup(s, m.dropEvicted, sessionID)
	m.logger.Debug("cart evicted from memory", "session_id", sessionID)
}

func (m *Manager) dropEvicted(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if wp, ok := m.evicted[sessionID]; ok && wp.Value() == nil {
		delete(m.evicted, sessionID)
	}
}

// Forget drops a cart from memory, including any evicted Store still held
// elsewhere. Persisted state is untouched.
func (m *Manager) Forget(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts.Remove(sessionID)
	delete(m.evicted, sessionID)
}

// Len reports how many carts are held in the cache.
func (m *Manager) Len() int { return m.carts.Len() }
