package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-storefront/internal/resilience"
)

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client  redis.Cmdable
	ttl     time.Duration
	prefix  string
	breaker *resilience.Breaker
}

// NewCache constructs a cache helper. A nil client yields a cache that always misses.
func NewCache(client redis.Cmdable, ttl time.Duration, prefix string) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl, prefix: prefix}
}

// WithBreaker makes the cache step aside while Redis keeps failing. Reads
// then return resilience.ErrOpenCircuit and writes are dropped.
func (c *Cache) WithBreaker(b *resilience.Breaker) *Cache {
	c.breaker = b
	return c
}

// Enabled reports whether a backing client is configured.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.Enabled() || key == "" {
		return false, nil
	}
	if !c.breaker.Allow(ctx) {
		return false, resilience.ErrOpenCircuit
	}
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	c.breaker.Report(ctx, err == nil || errors.Is(err, redis.Nil))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.Enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.client.Set(ctx, c.prefix+key, data, c.ttl).Err()
	})
}

// listCacheKey hashes the normalised list parameters, so equivalent queries
// (set order, search term case, spelled-out default range) share an entry.
func listCacheKey(params ListParams) string {
	q := params.Query
	norm := struct {
		Term       string   `json:"t"`
		Categories []string `json:"c"`
		Vendors    []string `json:"v"`
		Ratings    []int    `json:"r"`
		Low        string   `json:"lo"`
		High       string   `json:"hi"`
		Sort       SortKey  `json:"s"`
		Page       int      `json:"p"`
		Limit      int      `json:"l"`
	}{
		Term:       strings.ToLower(q.SearchTerm),
		Categories: sortedCopy(q.Categories),
		Vendors:    sortedCopy(q.Vendors),
		Ratings:    append([]int(nil), q.MinRatings...),
		Low:        q.EffectivePriceRange().Low.String(),
		High:       q.EffectivePriceRange().High.String(),
		Sort:       NormalizeSort(string(q.Sort)),
		Page:       params.Page,
		Limit:      params.Limit,
	}
	sort.Ints(norm.Ratings)
	encoded, _ := json.Marshal(norm)
	sum := sha256.Sum256(encoded)
	return "catalog:products:list:" + hex.EncodeToString(sum[:16])
}

func sortedCopy(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}
