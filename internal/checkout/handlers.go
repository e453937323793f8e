package checkout

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Handler exposes checkout endpoints.
type Handler struct {
	Svc *Service
	// PlaceMiddleware wraps order placement, typically with idempotency replay.
	PlaceMiddleware func(http.Handler) http.Handler
}

// Routes mounts checkout and order endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/checkouts", func(r chi.Router) {
		r.Post("/", h.Start)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/address", h.SetAddress)
			r.Put("/shipping", h.SelectShipping)
			r.Put("/payment", h.SetPayment)
			r.Post("/continue", h.Continue)
			r.Post("/back", h.Back)
			if h.PlaceMiddleware != nil {
				r.With(h.PlaceMiddleware).Post("/place", h.Place)
			} else {
				r.Post("/place", h.Place)
			}
		})
	})
	r.Get("/orders/{id}", h.GetOrder)
}

type startRequest struct {
	CartID string `json:"cartId" validate:"required"`
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.Svc.Start(r.Context(), req.CartID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/checkouts/"+view.Checkout.ID)
	common.Data(w, http.StatusCreated, view)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	view, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, view)
}

type addressRequest struct {
	Address     ShippingAddress `json:"address"`
	SaveAddress bool            `json:"saveAddress"`
}

func (h *Handler) SetAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w)(h.Svc.SetAddress(r.Context(), chi.URLParam(r, "id"), req.Address, req.SaveAddress))
}

type shippingRequest struct {
	Method string `json:"method" validate:"required,oneof=standard express overnight"`
}

func (h *Handler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	var req shippingRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w)(h.Svc.SelectShipping(r.Context(), chi.URLParam(r, "id"), pricing.Method(req.Method)))
}

type paymentRequest struct {
	Method                string `json:"method" validate:"required,oneof=card"`
	BillingSameAsShipping *bool  `json:"billingSameAsShipping"`
}

func (h *Handler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	billingSame := true
	if req.BillingSameAsShipping != nil {
		billingSame = *req.BillingSameAsShipping
	}
	h.respond(w)(h.Svc.SetPayment(r.Context(), chi.URLParam(r, "id"), req.Method, billingSame))
}

func (h *Handler) Continue(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	h.respond(w)(h.Svc.Continue(r.Context(), chi.URLParam(r, "id")))
}

type backRequest struct {
	Step int `json:"step" validate:"required,min=1,max=3"`
}

func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	var req backRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respond(w)(h.Svc.Back(r.Context(), chi.URLParam(r, "id"), Step(req.Step)))
}

// Place submits the order. Payment is simulated.
func (h *Handler) Place(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	order, err := h.Svc.PlaceOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+order.ID)
	common.Data(w, http.StatusCreated, order)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	if !h.configured(w) {
		return
	}
	order, err := h.Svc.Order(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.Data(w, http.StatusOK, order)
}

func (h *Handler) configured(w http.ResponseWriter) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "checkout service not configured", nil)
		return false
	}
	return true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !h.configured(w) {
		return false
	}
	if err := common.DecodeJSON(w, r, dst, false); err != nil {
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
