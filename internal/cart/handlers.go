package cart

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc *Service
}

// Routes mounts cart and shipping option endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/shipping-options", h.ShippingOptions)
	r.Route("/carts", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Post("/items", h.AddItem)
			r.Patch("/items/{productId}", h.UpdateItem)
			r.Delete("/items/{productId}", h.RemoveItem)
			r.Post("/items/{productId}/wishlist", h.MoveToWishlist)
			r.Post("/promo", h.ApplyPromo)
			r.Delete("/promo", h.RemovePromo)
			r.Put("/shipping", h.SelectShipping)
		})
	})
}

// Create starts an empty cart.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "cart service not configured", nil)
		return
	}
	view, err := h.Svc.Create(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/carts/"+view.Cart.ID)
	common.Data(w, http.StatusCreated, view)
}

// Get returns cart contents and totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "cart service not configured", nil)
		return
	}
	view, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  *int   `json:"quantity"`
}

// AddItem adds or increments a cart line item. Quantity defaults to 1.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload addItemRequest
	if !h.decode(w, r, &payload, false) {
		return
	}
	qty := 1
	if payload.Quantity != nil {
		qty = *payload.Quantity
	}
	h.respond(w)(h.Svc.AddItem(r.Context(), chi.URLParam(r, "id"), payload.ProductID, qty))
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// UpdateItem sets the quantity of a line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var payload updateItemRequest
	if !h.decode(w, r, &payload, false) {
		return
	}
	h.respond(w)(h.Svc.UpdateQuantity(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productId"), *payload.Quantity))
}

// RemoveItem deletes a cart line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "cart service not configured", nil)
		return
	}
	h.respond(w)(h.Svc.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productId")))
}

// MoveToWishlist removes a line the shopper saved for later.
func (h *Handler) MoveToWishlist(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "cart service not configured", nil)
		return
	}
	h.respond(w)(h.Svc.MoveToWishlist(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productId")))
}

type promoRequest struct {
	Code string `json:"code" validate:"required"`
}

// ApplyPromo applies a promo code. Unknown codes answer 200 with applied=false.
func (h *Handler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var payload promoRequest
	if !h.decode(w, r, &payload, false) {
		return
	}
	h.respond(w)(h.Svc.ApplyPromo(r.Context(), chi.URLParam(r, "id"), payload.Code))
}

// RemovePromo removes the active promo.
func (h *Handler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "cart service not configured", nil)
		return
	}
	h.respond(w)(h.Svc.RemovePromo(r.Context(), chi.URLParam(r, "id")))
}

type shippingRequest struct {
	Method string `json:"method" validate:"required,oneof=standard express overnight"`
}

// SelectShipping changes the shipping method.
func (h *Handler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	var payload shippingRequest
	if !h.decode(w, r, &payload, false) {
		return
	}
	h.respond(w)(h.Svc.SelectShipping(r.Context(), chi.URLParam(r, "id"), pricing.Method(payload.Method)))
}

// ShippingOptions lists the configured shipping methods.
func (h *Handler) ShippingOptions(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "cart service not configured", nil)
		return
	}
	type option struct {
		pricing.ShippingOption
		PriceDisplay string `json:"priceDisplay"`
	}
	opts := make([]option, 0, len(h.Svc.Policy.Options))
	for _, o := range h.Svc.Policy.Options {
		opts = append(opts, option{ShippingOption: o, PriceDisplay: pricing.Display(o.Fee)})
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": opts,
		"meta": map[string]any{
			"freeStandardShippingOver": h.Svc.Policy.FreeShippingThreshold,
			"taxRate":                  h.Svc.Policy.TaxRate,
		},
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "cart service not configured", nil)
		return false
	}
	if err := common.DecodeJSON(w, r, dst, allowEmpty); err != nil {
		common.WriteError(w, err)
		return false
	}
	if err := common.Validate(dst); err != nil {
		common.WriteError(w, err)
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter) func(Outcome, error) {
	return func(out Outcome, err error) {
		if err != nil {
			common.WriteError(w, err)
			return
		}
		common.Data(w, http.StatusOK, out)
	}
}
