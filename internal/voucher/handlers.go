package voucher

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Handler exposes promo code lookups.
type Handler struct {
	Registry *Registry
}

// Routes mounts the promo endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/promos/preview", h.Preview)
}

type previewRequest struct {
	Code     string           `json:"code" validate:"required"`
	Subtotal *decimal.Decimal `json:"subtotal" validate:"required"`
}

type previewResponse struct {
	Code            string          `json:"code"`
	Rate            decimal.Decimal `json:"rate"`
	Discount        decimal.Decimal `json:"discount"`
	DiscountDisplay string          `json:"discountDisplay"`
}

// Preview returns the discount a promo code would grant on a subtotal without
// touching any cart.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Registry == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "promo registry not configured", nil)
		return
	}
	var req previewRequest
	if err := common.DecodeJSON(w, r, &req, false); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.Validate(req); err != nil {
		common.WriteError(w, err)
		return
	}
	if req.Subtotal.IsNegative() {
		common.WriteError(w, common.BadRequest("subtotal", "subtotal must not be negative", nil))
		return
	}
	promo, err := h.Registry.Lookup(req.Code)
	if err != nil {
		if errors.Is(err, ErrUnknownCode) {
			common.JSONError(w, http.StatusBadRequest, "NOT_ELIGIBLE", "promo code is not valid", nil)
			return
		}
		common.WriteError(w, err)
		return
	}
	discount := promo.Discount(*req.Subtotal)
	common.Data(w, http.StatusOK, previewResponse{
		Code:            promo.Code,
		Rate:            promo.Rate,
		Discount:        discount.Round(2),
		DiscountDisplay: pricing.Display(discount),
	})
}
