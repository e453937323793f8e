package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CatalogQueriesTotal counts catalog searches by effective sort key.
	CatalogQueriesTotal *prometheus.CounterVec
	// CatalogCacheTotal counts catalog result cache lookups by outcome (hit, miss, error).
	CatalogCacheTotal *prometheus.CounterVec
	// CartMutationsTotal counts cart reducer outcomes by operation and status (applied, unchanged, error).
	CartMutationsTotal *prometheus.CounterVec
	// PromoAttemptsTotal counts promo code submissions by result (accepted, rejected).
	PromoAttemptsTotal *prometheus.CounterVec
	// OrdersPlacedTotal counts simulated orders.
	OrdersPlacedTotal prometheus.Counter
	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers storefront Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CatalogQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_queries_total",
			Help:      "Count of catalog searches by sort key.",
		}, []string{"sort"})
		CatalogCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_total",
			Help:      "Catalog result cache lookups by outcome.",
		}, []string{"result"})
		CartMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_mutations_total",
			Help:      "Cart mutations by operation and outcome.",
		}, []string{"op", "status"})
		PromoAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_attempts_total",
			Help:      "Promo code submissions by result.",
		}, []string{"result"})
		OrdersPlacedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Number of simulated orders placed.",
		})
		RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter.",
		})

		mustRegisterCollector(reg, CatalogQueriesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CatalogQueriesTotal = v
			}
		})
		mustRegisterCollector(reg, CatalogCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CatalogCacheTotal = v
			}
		})
		mustRegisterCollector(reg, CartMutationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CartMutationsTotal = v
			}
		})
		mustRegisterCollector(reg, PromoAttemptsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PromoAttemptsTotal = v
			}
		})
		mustRegisterCollector(reg, OrdersPlacedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				OrdersPlacedTotal = v
			}
		})
		mustRegisterCollector(reg, RateLimitedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				RateLimitedTotal = v
			}
		})
	})
}

// The helpers below are no-ops until MustRegisterDomainMetrics has run, so
// packages can record unconditionally.

// ObserveCatalogQuery records a catalog search.
func ObserveCatalogQuery(sort string) {
	if CatalogQueriesTotal != nil {
		CatalogQueriesTotal.WithLabelValues(sort).Inc()
	}
}

// ObserveCatalogCache records a cache lookup outcome.
func ObserveCatalogCache(result string) {
	if CatalogCacheTotal != nil {
		CatalogCacheTotal.WithLabelValues(result).Inc()
	}
}

// ObserveCartMutation records a cart reducer outcome.
func ObserveCartMutation(op, status string) {
	if CartMutationsTotal != nil {
		CartMutationsTotal.WithLabelValues(op, status).Inc()
	}
}

// ObservePromoAttempt records whether a submitted promo code was accepted.
func ObservePromoAttempt(accepted bool) {
	if PromoAttemptsTotal == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	PromoAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveOrderPlaced records a simulated order.
func ObserveOrderPlaced() {
	if OrdersPlacedTotal != nil {
		OrdersPlacedTotal.Inc()
	}
}

// ObserveRateLimited records a rejected request.
func ObserveRateLimited() {
	if RateLimitedTotal != nil {
		RateLimitedTotal.Inc()
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
