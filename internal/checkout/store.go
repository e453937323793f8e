package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

var (
	// ErrSessionNotFound indicates the checkout does not exist or expired.
	ErrSessionNotFound = errors.New("checkout not found")
	// ErrOrderNotFound indicates the order does not exist or expired.
	ErrOrderNotFound = errors.New("order not found")
)

// Order is a simulated placed order. No payment is captured.
type Order struct {
	ID            string                 `json:"id"`
	CheckoutID    string                 `json:"checkoutId"`
	CartID        string                 `json:"cartId"`
	Items         []pricing.Item         `json:"items"`
	Shipping      pricing.Method         `json:"shipping"`
	PromoCode     string                 `json:"promoCode,omitempty"`
	Address       ShippingAddress        `json:"address"`
	PaymentMethod string                 `json:"paymentMethod"`
	Totals        pricing.Summary        `json:"totals"`
	TotalsDisplay pricing.SummaryDisplay `json:"totalsDisplay"`
	PlacedAt      time.Time              `json:"placedAt"`
}

// Store persists checkout sessions and placed orders.
type Store interface {
	LoadSession(ctx context.Context, id string) (Session, error)
	SaveSession(ctx context.Context, s Session) error
	LoadOrder(ctx context.Context, id string) (Order, error)
	SaveOrder(ctx context.Context, o Order) error
}

// MemoryStore keeps sessions and orders in process for the lifetime of the server.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	orders   map[string]Order
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]Session{}, orders: map[string]Order{}}
}

func (m *MemoryStore) LoadSession(_ context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	return s, nil
}

func (m *MemoryStore) SaveSession(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		m.sessions = map[string]Session{}
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) LoadOrder(_ context.Context, id string) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, fmt.Errorf("%s: %w", id, ErrOrderNotFound)
	}
	o.Items = append([]pricing.Item(nil), o.Items...)
	return o, nil
}

func (m *MemoryStore) SaveOrder(_ context.Context, o Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.orders == nil {
		m.orders = map[string]Order{}
	}
	o.Items = append([]pricing.Item(nil), o.Items...)
	m.orders[o.ID] = o
	return nil
}

// RedisStore keeps sessions and orders as JSON documents that expire after TTL.
type RedisStore struct {
	R      redis.Cmdable
	TTL    time.Duration
	Prefix string
}

func (r RedisStore) ttl() time.Duration {
	if r.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return r.TTL
}

func (r RedisStore) LoadSession(ctx context.Context, id string) (Session, error) {
	var s Session
	err := r.get(ctx, r.Prefix+"checkout:"+id, &s)
	if errors.Is(err, redis.Nil) {
		return Session{}, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}
	return s, err
}

func (r RedisStore) SaveSession(ctx context.Context, s Session) error {
	return r.set(ctx, r.Prefix+"checkout:"+s.ID, s)
}

func (r RedisStore) LoadOrder(ctx context.Context, id string) (Order, error) {
	var o Order
	err := r.get(ctx, r.Prefix+"order:"+id, &o)
	if errors.Is(err, redis.Nil) {
		return Order{}, fmt.Errorf("%s: %w", id, ErrOrderNotFound)
	}
	return o, err
}

func (r RedisStore) SaveOrder(ctx context.Context, o Order) error {
	return r.set(ctx, r.Prefix+"order:"+o.ID, o)
}

func (r RedisStore) get(ctx context.Context, key string, dst any) error {
	data, err := r.R.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r RedisStore) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.R.Set(ctx, key, data, r.ttl()).Err()
}
