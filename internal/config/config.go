package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/voucher"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	RedisKeyPrefix     string
	CORSAllowedOrigins []string

	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	ShippingFees          pricing.Fees
	PromoCodes            []voucher.Promo

	CatalogPageSize    int
	CatalogMaxPageSize int
	CatalogCacheTTL    time.Duration
	CartTTL            time.Duration
	CheckoutTTL        time.Duration
	IdempotencyTTL     time.Duration
	LockTTL            time.Duration

	RateLimitMax      int
	RateLimitWindow   time.Duration
	PlaceRateLimitMax int

	LogFormat            string
	LogLevel             string
	MetricsNamespace     string
	MetricsBucketsMS     string
	EnablePrometheus     bool
	EnableTracing        bool
	TracingExporter      string
	OTLPEndpoint         string
	TracingSamplingRatio float64
	EnablePprof          bool
	PprofUser            string
	PprofPass            string

	SecureHeaders bool
	EnableHSTS    bool
	MaxBodyBytes  int64

	HealthRedisTimeout time.Duration
	ShutdownTimeout    time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	p := parser{k: k}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		RedisKeyPrefix:     valueOrDefault(k.String("REDIS_KEY_PREFIX"), "toko:"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		TaxRate:               p.decimal("PRICING_TAX_RATE", "0.08"),
		FreeShippingThreshold: p.decimal("PRICING_FREE_SHIPPING_THRESHOLD", "50"),
		ShippingFees: pricing.Fees{
			Standard:  p.decimal("SHIPPING_STANDARD_FEE", "0"),
			Express:   p.decimal("SHIPPING_EXPRESS_FEE", "15.99"),
			Overnight: p.decimal("SHIPPING_OVERNIGHT_FEE", "29.99"),
		},

		CatalogPageSize:    p.int("CATALOG_PAGE_SIZE", 12),
		CatalogMaxPageSize: p.int("CATALOG_MAX_PAGE_SIZE", 48),
		CatalogCacheTTL:    p.duration("CATALOG_CACHE_TTL", "5m"),
		CartTTL:            p.duration("CART_TTL", "168h"),
		CheckoutTTL:        p.duration("CHECKOUT_TTL", "24h"),
		IdempotencyTTL:     p.duration("IDEMPOTENCY_TTL", "24h"),
		LockTTL:            p.duration("LOCK_TTL", "5s"),

		RateLimitMax:      p.int("RATE_LIMIT_MAX", 120),
		RateLimitWindow:   p.duration("RATE_LIMIT_WINDOW", "1m"),
		PlaceRateLimitMax: p.int("RATE_LIMIT_PLACE_MAX", 10),

		LogFormat:            valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:             valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsNamespace:     valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "toko"),
		MetricsBucketsMS:     strings.TrimSpace(k.String("OBS_METRICS_BUCKETS_MS")),
		EnablePrometheus:     p.bool("OBS_ENABLE_PROMETHEUS", true),
		EnableTracing:        p.bool("OBS_ENABLE_TRACING", false),
		TracingExporter:      valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
		OTLPEndpoint:         strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSamplingRatio: p.float("OBS_TRACING_SAMPLING_RATIO", 1.0),
		EnablePprof:          p.bool("OBS_ENABLE_PPROF", false),
		PprofUser:            strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
		PprofPass:            strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),

		SecureHeaders: p.bool("SECURE_HEADERS_ENABLE", true),
		EnableHSTS:    p.bool("SECURE_HSTS_ENABLE", false),
		MaxBodyBytes:  int64(p.int("SECURE_MAX_BODY_BYTES", 1<<20)),

		HealthRedisTimeout: p.duration("HEALTH_READY_REDIS_TIMEOUT", "300ms"),
		ShutdownTimeout:    p.duration("SHUTDOWN_TIMEOUT", "10s"),
	}

	promos, err := voucher.ParseCodes(valueOrDefault(k.String("PROMO_CODES"), "SAVE10:0.10"))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("PROMO_CODES: %w", err))
	}
	cfg.PromoCodes = promos

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	one := decimal.NewFromInt(1)
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThan(one) {
		errs = append(errs, errors.New("PRICING_TAX_RATE must be within [0, 1]"))
	}
	if c.FreeShippingThreshold.IsNegative() {
		errs = append(errs, errors.New("PRICING_FREE_SHIPPING_THRESHOLD must not be negative"))
	}
	for key, fee := range map[string]decimal.Decimal{
		"SHIPPING_STANDARD_FEE":  c.ShippingFees.Standard,
		"SHIPPING_EXPRESS_FEE":   c.ShippingFees.Express,
		"SHIPPING_OVERNIGHT_FEE": c.ShippingFees.Overnight,
	} {
		if fee.IsNegative() {
			errs = append(errs, fmt.Errorf("%s must not be negative", key))
		}
	}
	if c.CatalogPageSize < 1 || c.CatalogMaxPageSize < c.CatalogPageSize {
		errs = append(errs, errors.New("CATALOG_PAGE_SIZE must be at least 1 and not exceed CATALOG_MAX_PAGE_SIZE"))
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("SECURE_MAX_BODY_BYTES must not be negative"))
	}
	if c.RateLimitMax < 0 || c.PlaceRateLimitMax < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX and RATE_LIMIT_PLACE_MAX must not be negative"))
	}
	return errors.Join(errs...)
}

// Policy builds the pricing policy from the configured constants.
func (c *Config) Policy() pricing.Policy {
	return pricing.NewPolicy(c.TaxRate, c.FreeShippingThreshold, c.ShippingFees)
}

// Promos builds the promo registry.
func (c *Config) Promos() (*voucher.Registry, error) {
	return voucher.NewRegistry(c.PromoCodes...)
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

type parser struct {
	k    *koanf.Koanf
	errs []error
}

func (p *parser) raw(key string) string {
	return strings.TrimSpace(p.k.String(key))
}

func (p *parser) decimal(key, fallback string) decimal.Decimal {
	value := p.raw(key)
	if value == "" {
		value = fallback
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid decimal %q", key, value))
		return decimal.RequireFromString(fallback)
	}
	return d
}

func (p *parser) int(key string, fallback int) int {
	value := p.raw(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return fallback
	}
	return n
}

func (p *parser) float(key string, fallback float64) float64 {
	value := p.raw(key)
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid number %q", key, value))
		return fallback
	}
	return f
}

func (p *parser) duration(key, fallback string) time.Duration {
	value := p.raw(key)
	if value == "" {
		value = fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, value))
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func (p *parser) bool(key string, fallback bool) bool {
	switch strings.ToLower(p.raw(key)) {
	case "":
		return fallback
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		p.errs = append(p.errs, fmt.Errorf("%s: invalid boolean %q", key, p.raw(key)))
		return fallback
	}
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
