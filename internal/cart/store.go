package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// Store persists cart snapshots. Carts expire after the store's TTL of inactivity.
type Store interface {
	Load(ctx context.Context, id string) (State, error)
	Save(ctx context.Context, s State) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps carts in process.
type MemoryStore struct {
	TTL time.Duration
	Now func() time.Time

	mu    sync.RWMutex
	carts map[string]memoryEntry
}

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{TTL: ttl, carts: make(map[string]memoryEntry)}
}

func (m *MemoryStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id string) (State, error) {
	m.mu.RLock()
	entry, ok := m.carts[id]
	m.mu.RUnlock()
	if !ok || (!entry.expiresAt.IsZero() && m.now().After(entry.expiresAt)) {
		return State{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return entry.state.clone(), nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.carts == nil {
		m.carts = make(map[string]memoryEntry)
	}
	entry := memoryEntry{state: s.clone()}
	if m.TTL > 0 {
		entry.expiresAt = m.now().Add(m.TTL)
	}
	m.carts[s.ID] = entry
	m.evictExpiredLocked()
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, id)
	return nil
}

func (m *MemoryStore) evictExpiredLocked() {
	now := m.now()
	for id, entry := range m.carts {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(m.carts, id)
		}
	}
}

// RedisStore keeps carts as JSON documents with a sliding TTL.
type RedisStore struct {
	R      redis.Cmdable
	TTL    time.Duration
	Prefix string
}

func (r RedisStore) key(id string) string {
	return r.Prefix + "cart:" + id
}

func (r RedisStore) ttl() time.Duration {
	if r.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return r.TTL
}

// Load implements Store.
func (r RedisStore) Load(ctx context.Context, id string) (State, error) {
	data, err := r.R.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{}, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return State{}, fmt.Errorf("load cart: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode cart: %w", err)
	}
	return s, nil
}

// Save implements Store.
func (r RedisStore) Save(ctx context.Context, s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return r.R.Set(ctx, r.key(s.ID), data, r.ttl()).Err()
}

// Delete implements Store.
func (r RedisStore) Delete(ctx context.Context, id string) error {
	return r.R.Del(ctx, r.key(id)).Err()
}
