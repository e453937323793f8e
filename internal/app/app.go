package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/config"
	"github.com/noah-isme/toko-storefront/internal/events"
	"github.com/noah-isme/toko-storefront/internal/health"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/ratelimit"
	"github.com/noah-isme/toko-storefront/internal/resilience"
	"github.com/noah-isme/toko-storefront/internal/security"
	"github.com/noah-isme/toko-storefront/internal/voucher"
)

const serviceName = "toko-storefront"

// Dependencies enumerates the shared infrastructure the storefront runs on.
// A nil Redis client selects the in-process stores, locks and limiters.
type Dependencies struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Redis   *redis.Client
	Metrics *obs.HTTPMetrics
	// Gatherer backs /metrics; nil falls back to the default registry.
	Gatherer prometheus.Gatherer
	Tracing  bool
}

// App holds the wired services and the HTTP handler serving them.
type App struct {
	Router   http.Handler
	Catalog  *catalog.Service
	Carts    *cart.Service
	Checkout *checkout.Service
	Events   *events.Bus
}

// NewRedis connects to cfg.RedisURL and instruments the client. It returns
// nil when no URL is configured.
func NewRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.EnablePrometheus {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// New wires the storefront services and builds the router.
func New(deps Dependencies) (*App, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	logger := deps.Logger
	prefix := cfg.RedisKeyPrefix

	products, err := catalog.LoadSeed()
	if err != nil {
		return nil, err
	}
	promos, err := cfg.Promos()
	if err != nil {
		return nil, err
	}

	var (
		cacheClient redis.Cmdable
		cartStore   cart.Store
		sessions    checkout.Store
		locker      lock.Locker
		eventStore  events.EventStore
		apiLimiter  ratelimit.Limiter
		placeLimit  ratelimit.Limiter
	)
	if deps.Redis != nil {
		cacheClient = deps.Redis
		cartStore = cart.RedisStore{R: deps.Redis, TTL: cfg.CartTTL, Prefix: prefix}
		sessions = checkout.RedisStore{R: deps.Redis, TTL: cfg.CheckoutTTL, Prefix: prefix}
		locker = lock.RedisLocker{R: deps.Redis, Prefix: prefix, TTL: cfg.LockTTL}
		eventStore = events.StreamStore{R: deps.Redis, Prefix: prefix, MaxLen: 10000}
		apiLimiter = ratelimit.SlidingWindow{Client: deps.Redis, Prefix: prefix + "rl:"}
		fixed, err := ratelimit.NewRedisFixed(deps.Redis, prefix+"rl-place")
		if err != nil {
			return nil, fmt.Errorf("place limiter: %w", err)
		}
		placeLimit = fixed
	} else {
		logger.Warn().Msg("REDIS_URL not set: carts, checkouts and events are kept in memory")
		cartStore = cart.NewMemoryStore(cfg.CartTTL)
		sessions = checkout.NewMemoryStore()
		locker = lock.NewLocalLocker()
		eventStore = &events.MemoryStore{}
		apiLimiter = ratelimit.NewMemory(prefix + "rl")
		placeLimit = ratelimit.NewMemory(prefix + "rl-place")
	}

	cacheBreaker := resilience.NewBreaker("catalog_cache", 5, 0.5, 30*time.Second)
	cacheBreaker.Logger = logger
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Products:     products,
		Cache:        catalog.NewCache(cacheClient, cfg.CatalogCacheTTL, prefix).WithBreaker(cacheBreaker),
		Logger:       logger.With().Str("component", "catalog").Logger(),
		DefaultLimit: cfg.CatalogPageSize,
		MaxLimit:     cfg.CatalogMaxPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise catalog service: %w", err)
	}
	carts := &cart.Service{
		Store:    cartStore,
		Locker:   locker,
		Products: catalogSvc,
		Promos:   promos,
		Policy:   cfg.Policy(),
		Logger:   logger.With().Str("component", "cart").Logger(),
	}
	bus := &events.Bus{
		Store:     eventStore,
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger.With().Str("component", "events").Logger()}},
	}
	checkoutSvc := &checkout.Service{
		Store:  sessions,
		Locker: locker,
		Carts:  carts,
		Events: bus,
		Logger: logger.With().Str("component", "checkout").Logger(),
	}

	onLimiterError := func(err error) {
		logger.Error().Err(err).Msg("rate limiter unavailable")
	}
	idem := common.Idem{R: cacheClient, TTL: cfg.IdempotencyTTL}
	placeGuard := ratelimit.Handler{
		Limiter: placeLimit,
		Config:  ratelimit.Config{Key: ratelimit.ByClientIP("place"), Window: cfg.RateLimitWindow, Max: cfg.PlaceRateLimitMax},
		OnError: onLimiterError,
	}

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogSvc})
	cartHandler := &cart.Handler{Svc: carts}
	checkoutHandler := &checkout.Handler{
		Svc: checkoutSvc,
		PlaceMiddleware: func(next http.Handler) http.Handler {
			return placeGuard.Middleware(idem.Middleware(next))
		},
	}
	voucherHandler := &voucher.Handler{Registry: promos}

	var probes []health.Probe
	if deps.Redis != nil {
		probes = append(probes, health.RedisProbe(deps.Redis, cfg.HealthRedisTimeout))
	}
	healthHandler := health.Handler{Probes: probes}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if deps.Tracing {
		r.Use(obs.Tracing(serviceName))
	}
	if deps.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: deps.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecureHeaders, EnableHSTS: cfg.EnableHSTS}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", common.IdempotencyHeader},
		ExposedHeaders:   []string{"Location", "X-RateLimit-Remaining", common.ReplayHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.EnablePrometheus {
		r.Handle("/metrics", metricsHandler(deps.Gatherer))
	}
	if cfg.EnablePprof {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass))
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
		v.Use(ratelimit.Handler{
			Limiter: apiLimiter,
			Config:  ratelimit.Config{Key: ratelimit.ByClientIP("api"), Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
			OnError: onLimiterError,
		}.Middleware)
		catalogHandler.Routes(v)
		cartHandler.Routes(v)
		checkoutHandler.Routes(v)
		voucherHandler.Routes(v)
	})

	return &App{
		Router:   r,
		Catalog:  catalogSvc,
		Carts:    carts,
		Checkout: checkoutSvc,
		Events:   bus,
	}, nil
}

func metricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
