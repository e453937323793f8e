package cart_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/voucher"
)

func newCartService(t *testing.T) *cart.Service {
	t.Helper()
	products, err := catalog.LoadSeed()
	require.NoError(t, err)
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{Products: products, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return &cart.Service{
		Store:    cart.NewMemoryStore(time.Hour),
		Locker:   lock.NewLocalLocker(),
		Products: catalogSvc,
		Promos:   voucher.DefaultRegistry(),
		Policy:   pricing.DefaultPolicy(),
		Logger:   zerolog.Nop(),
	}
}

func TestServiceCheckoutScenario(t *testing.T) {
	svc := newCartService(t)
	ctx := context.Background()

	view, err := svc.Create(ctx)
	require.NoError(t, err)
	id := view.Cart.ID

	_, err = svc.AddItem(ctx, id, "1", 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, id, "9", 2)
	require.NoError(t, err)
	out, err := svc.ApplyPromo(ctx, id, "SAVE10")
	require.NoError(t, err)
	require.True(t, out.Applied)

	require.Equal(t, 3, out.ItemCount)
	require.True(t, decimal.RequireFromString("729.97").Equal(out.Totals.Subtotal))
	require.True(t, decimal.RequireFromString("709.53").Equal(out.Totals.Total))
	require.Equal(t, "$52.56", out.TotalsDisplay.Tax)
	require.Equal(t, "$0.00", out.TotalsDisplay.Shipping)

	quote, err := svc.Quote(ctx, id)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("52.55784").Equal(quote.Tax))
}

func TestServiceUnknownPromoIsNotApplied(t *testing.T) {
	svc := newCartService(t)
	ctx := context.Background()
	view, err := svc.Create(ctx)
	require.NoError(t, err)

	out, err := svc.ApplyPromo(ctx, view.Cart.ID, "FREE100")
	require.NoError(t, err)
	require.False(t, out.Applied)
	require.Equal(t, cart.ReasonUnknownPromo, out.Reason)
	require.Nil(t, out.Cart.Promo)
}

func TestServiceErrors(t *testing.T) {
	svc := newCartService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "missing")
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)

	view, err := svc.Create(ctx)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, view.Cart.ID, "404", 1)
	appErr, ok = common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)

	_, err = svc.SelectShipping(ctx, view.Cart.ID, pricing.Method("drone"))
	appErr, ok = common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)

	_, err = (&cart.Service{}).Create(ctx)
	require.Error(t, err)
}

func TestServiceConcurrentAddsRespectMax(t *testing.T) {
	svc := newCartService(t)
	ctx := context.Background()
	view, err := svc.Create(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(ctx, view.Cart.ID, "2", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := svc.Get(ctx, view.Cart.ID)
	require.NoError(t, err)
	require.Len(t, final.Cart.Items, 1)
	require.Equal(t, 10, final.Cart.Items[0].Quantity)
}

func TestServiceWithCartAndClear(t *testing.T) {
	svc := newCartService(t)
	ctx := context.Background()
	view, err := svc.Create(ctx)
	require.NoError(t, err)
	id := view.Cart.ID

	_, err = svc.AddItem(ctx, id, "4", 1)
	require.NoError(t, err)
	out, err := svc.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, out.OutOfStock, 1)
	require.Empty(t, out.InStock)

	var seen int
	res, err := svc.WithCart(ctx, id, func(s cart.State) (cart.Result, error) {
		seen = len(s.Items)
		return cart.Clear(s), nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, seen)
	require.True(t, res.Applied)
	require.Zero(t, res.ItemCount)

	cleared, err := svc.Clear(ctx, id)
	require.NoError(t, err)
	require.False(t, cleared.Applied)
	require.Equal(t, cart.ReasonAlreadyEmpty, cleared.Reason)
}

type envelope struct {
	Data  cart.Outcome     `json:"data"`
	Error common.ErrorBody `json:"error"`
}

func newCartRouter(svc *cart.Service) http.Handler {
	r := chi.NewRouter()
	h := &cart.Handler{Svc: svc}
	r.Route("/api/v1", h.Routes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestCartHandlers(t *testing.T) {
	router := newCartRouter(newCartService(t))

	rec, env := do(t, router, http.MethodPost, "/api/v1/carts", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := env.Data.Cart.ID
	require.NotEmpty(t, id)
	require.Equal(t, "/api/v1/carts/"+id, rec.Header().Get("Location"))
	base := "/api/v1/carts/" + id

	rec, env = do(t, router, http.MethodPost, base+"/items", `{"productId":"1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, env.Data.Cart.Items[0].Quantity)

	rec, _ = do(t, router, http.MethodPost, base+"/items", `{"productId":"9","quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, router, http.MethodPost, base+"/promo", `{"code":"NOPE"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, env.Data.Applied)
	require.Equal(t, cart.ReasonUnknownPromo, env.Data.Reason)

	rec, env = do(t, router, http.MethodPost, base+"/promo", `{"code":"SAVE10"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Data.Applied)
	require.Equal(t, "$709.53", env.Data.TotalsDisplay.Total)

	rec, env = do(t, router, http.MethodPatch, base+"/items/9", `{"quantity":7}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, cart.ReasonQuantityClamped, env.Data.Reason)
	require.Equal(t, 3, env.Data.Cart.Items[1].Quantity)

	rec, env = do(t, router, http.MethodPatch, base+"/items/9", `{"quantity":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, env.Data.Applied)

	rec, env = do(t, router, http.MethodPut, base+"/shipping", `{"method":"express"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, pricing.MethodExpress, env.Data.Cart.Shipping)
	require.Equal(t, "$15.99", env.Data.TotalsDisplay.Shipping)

	rec, env = do(t, router, http.MethodPut, base+"/shipping", `{"method":"drone"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, common.CodeBadRequest, env.Error.Code)

	rec, _ = do(t, router, http.MethodPost, base+"/items", `{"productId":"1","color":"red"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodPost, base+"/items", `{"quantity":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, router, http.MethodDelete, base+"/items/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.Data.Cart.Items, 1)

	rec, env = do(t, router, http.MethodPost, base+"/items/9/wishlist", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, env.Data.Cart.Items)

	rec, env = do(t, router, http.MethodDelete, base+"/promo", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, env.Data.Cart.Promo)

	rec, env = do(t, router, http.MethodGet, "/api/v1/carts/unknown", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, common.CodeNotFound, env.Error.Code)
}

func TestShippingOptionsHandler(t *testing.T) {
	router := newCartRouter(newCartService(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shipping-options", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []struct {
			ID           string `json:"id"`
			PriceDisplay string `json:"priceDisplay"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 3)
	require.Equal(t, "standard", body.Data[0].ID)
	require.Equal(t, "$29.99", body.Data[2].PriceDisplay)
}
