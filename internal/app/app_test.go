package app_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/app"
	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/config"
	"github.com/noah-isme/toko-storefront/internal/events"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/voucher"
)

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                "test",
		RedisKeyPrefix:        "toko:",
		TaxRate:               decimal.RequireFromString("0.08"),
		FreeShippingThreshold: decimal.NewFromInt(50),
		ShippingFees:          pricing.DefaultFees(),
		PromoCodes:            []voucher.Promo{{Code: "SAVE10", Rate: decimal.RequireFromString("0.10")}},
		CatalogPageSize:       12,
		CatalogMaxPageSize:    48,
		CatalogCacheTTL:       time.Minute,
		CartTTL:               time.Hour,
		CheckoutTTL:           time.Hour,
		IdempotencyTTL:        time.Hour,
		LockTTL:               time.Second,
		RateLimitMax:          1000,
		RateLimitWindow:       time.Minute,
		PlaceRateLimitMax:     10,
		EnablePrometheus:      true,
		SecureHeaders:         true,
		MaxBodyBytes:          1 << 20,
		HealthRedisTimeout:    time.Second,
	}
}

func newApp(t *testing.T, cfg *config.Config, client *redis.Client) *app.App {
	t.Helper()
	a, err := app.New(app.Dependencies{
		Config:   cfg,
		Logger:   zerolog.Nop(),
		Redis:    client,
		Gatherer: obs.NewRegistry(),
	})
	require.NoError(t, err)
	return a
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error common.ErrorBody `json:"error"`
}

func call(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

// placeOrder drives a shopper from an empty cart to a placed order.
func placeOrder(t *testing.T, h http.Handler, key string) (string, checkout.Order) {
	t.Helper()
	rec, env := call(t, h, http.MethodPost, "/api/v1/carts", "", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created cart.View
	require.NoError(t, json.Unmarshal(env.Data, &created))
	cartPath := "/api/v1/carts/" + created.Cart.ID

	rec, _ = call(t, h, http.MethodPost, cartPath+"/items", `{"productId":"1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = call(t, h, http.MethodPost, cartPath+"/items", `{"productId":"9","quantity":2}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = call(t, h, http.MethodPost, cartPath+"/promo", `{"code":"save10"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = call(t, h, http.MethodPost, "/api/v1/checkouts", `{"cartId":"`+created.Cart.ID+`"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var view checkout.View
	require.NoError(t, json.Unmarshal(env.Data, &view))
	base := "/api/v1/checkouts/" + view.Checkout.ID

	addr, err := json.Marshal(map[string]any{"address": checkout.ShippingAddress{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Phone: "555-0100",
		Address: "1 Analytical Way", City: "Springfield", State: "CA", ZipCode: "90210",
	}})
	require.NoError(t, err)
	rec, _ = call(t, h, http.MethodPut, base+"/address", string(addr), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = call(t, h, http.MethodPost, base+"/continue", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = call(t, h, http.MethodPut, base+"/payment", `{"method":"card"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = call(t, h, http.MethodPost, base+"/continue", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var headers map[string]string
	if key != "" {
		headers = map[string]string{common.IdempotencyHeader: key}
	}
	rec, env = call(t, h, http.MethodPost, base+"/place", "", headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order checkout.Order
	require.NoError(t, json.Unmarshal(env.Data, &order))
	return base, order
}

func TestInMemoryStorefrontFlow(t *testing.T) {
	a := newApp(t, testConfig(), nil)
	h := a.Router

	_, order := placeOrder(t, h, "")
	require.Equal(t, "709.53", order.Totals.Total.StringFixed(2))
	require.Equal(t, "$52.56", order.TotalsDisplay.Tax)

	rec, env := call(t, h, http.MethodGet, "/api/v1/orders/"+order.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched checkout.Order
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	require.Equal(t, order.ID, fetched.ID)

	rec, _ = call(t, h, http.MethodGet, "/api/v1/carts/"+order.CartID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = call(t, h, http.MethodGet, "/api/v1/products?category=Electronics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec, _ = call(t, h, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = call(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRedisBackedPlacementIsIdempotent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a := newApp(t, testConfig(), client)
	base, order := placeOrder(t, a.Router, "order-1")

	rec, env := call(t, a.Router, http.MethodPost, base+"/place", "", map[string]string{common.IdempotencyHeader: "order-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "true", rec.Header().Get(common.ReplayHeader))
	var replayed checkout.Order
	require.NoError(t, json.Unmarshal(env.Data, &replayed))
	require.Equal(t, order.ID, replayed.ID)

	require.True(t, mr.Exists("toko:cart:"+order.CartID))
	stream := events.StreamStore{Prefix: "toko:"}.StreamKey(events.TopicOrderPlaced)
	require.True(t, mr.Exists(stream))

	rec, _ = call(t, a.Router, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitMax = 2
	h := newApp(t, cfg, nil).Router

	for i := 0; i < 2; i++ {
		rec, _ := call(t, h, http.MethodGet, "/api/v1/products", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, env := call(t, h, http.MethodGet, "/api/v1/products", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, common.CodeRateLimit, env.Error.Code)

	rec, _ = call(t, h, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBodyLimitApplies(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodyBytes = 16
	h := newApp(t, cfg, nil).Router

	rec, env := call(t, h, http.MethodPost, "/api/v1/promos/preview", `{"code":"SAVE10","subtotal":"100"}`, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Equal(t, "PAYLOAD_TOO_LARGE", env.Error.Code)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := app.New(app.Dependencies{Logger: zerolog.Nop()})
	require.Error(t, err)
}
