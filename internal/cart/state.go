package cart

import (
	"time"

	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/voucher"
)

// Status tags the outcome of a reducer.
type Status string

const (
	// StatusApplied means the reducer produced a new state.
	StatusApplied Status = "applied"
	// StatusUnchanged means the request was ignored; the state is returned as is.
	StatusUnchanged Status = "unchanged"
)

// Reasons attached to results.
const (
	ReasonInvalidQuantity = "invalid_quantity"
	ReasonQuantityClamped = "quantity_clamped"
	ReasonMaxQuantity     = "max_quantity_reached"
	ReasonSameQuantity    = "same_quantity"
	ReasonItemNotFound    = "item_not_found"
	ReasonUnknownPromo    = "unknown_promo"
	ReasonPromoActive     = "promo_already_applied"
	ReasonNoPromo         = "no_promo"
	ReasonSameShipping    = "shipping_unchanged"
	ReasonAlreadyEmpty    = "cart_empty"
)

// State is an explicit cart snapshot. Reducers never modify the state they
// are given.
type State struct {
	ID        string         `json:"id"`
	Items     []pricing.Item `json:"items"`
	Promo     *voucher.Promo `json:"promo,omitempty"`
	Shipping  pricing.Method `json:"shipping"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Result is a reducer outcome.
type Result struct {
	State  State
	Status Status
	Reason string
}

// Applied reports whether the state changed.
func (r Result) Applied() bool { return r.Status == StatusApplied }

func applied(s State, reason string) Result {
	return Result{State: s, Status: StatusApplied, Reason: reason}
}

func unchanged(s State, reason string) Result {
	return Result{State: s, Status: StatusUnchanged, Reason: reason}
}

// New returns an empty cart using standard shipping.
func New(id string, now time.Time) State {
	return State{ID: id, Items: []pricing.Item{}, Shipping: pricing.MethodStandard, UpdatedAt: now}
}

func (s State) clone() State {
	out := s
	out.Items = append([]pricing.Item{}, s.Items...)
	if s.Promo != nil {
		p := *s.Promo
		out.Promo = &p
	}
	return out
}

func (s State) indexOf(productID string) int {
	for i, it := range s.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItem merges item into the cart. An existing line grows by item.Quantity,
// clamped to its max quantity. Quantities below 1 are ignored. An item that is
// malformed apart from its quantity is an error.
func AddItem(s State, item pricing.Item) (Result, error) {
	if item.Quantity < 1 {
		return unchanged(s, ReasonInvalidQuantity), nil
	}
	if i := s.indexOf(item.ProductID); i >= 0 {
		current := s.Items[i]
		qty, changed := pricing.ClampQuantity(current.Quantity, current.Quantity+item.Quantity, current.MaxQuantity)
		if !changed {
			return unchanged(s, ReasonMaxQuantity), nil
		}
		next := s.clone()
		next.Items[i].Quantity = qty
		if qty < current.Quantity+item.Quantity {
			return applied(next, ReasonQuantityClamped), nil
		}
		return applied(next, ""), nil
	}

	requested := item.Quantity
	item.Quantity, _ = pricing.ClampQuantity(0, requested, item.MaxQuantity)
	if err := item.Validate(); err != nil {
		return Result{}, err
	}
	next := s.clone()
	next.Items = append(next.Items, item)
	if item.Quantity < requested {
		return applied(next, ReasonQuantityClamped), nil
	}
	return applied(next, ""), nil
}

// SetQuantity applies the lenient quantity policy: below 1 is ignored, above
// the line's max is clamped to the max.
func SetQuantity(s State, productID string, qty int) Result {
	i := s.indexOf(productID)
	if i < 0 {
		return unchanged(s, ReasonItemNotFound)
	}
	if qty < 1 {
		return unchanged(s, ReasonInvalidQuantity)
	}
	current := s.Items[i]
	next, changed := pricing.ClampQuantity(current.Quantity, qty, current.MaxQuantity)
	if !changed {
		if next < qty {
			return unchanged(s, ReasonMaxQuantity)
		}
		return unchanged(s, ReasonSameQuantity)
	}
	out := s.clone()
	out.Items[i].Quantity = next
	if next < qty {
		return applied(out, ReasonQuantityClamped)
	}
	return applied(out, "")
}

// RemoveItem drops the line for productID.
func RemoveItem(s State, productID string) Result {
	i := s.indexOf(productID)
	if i < 0 {
		return unchanged(s, ReasonItemNotFound)
	}
	out := s.clone()
	out.Items = append(out.Items[:i], out.Items[i+1:]...)
	return applied(out, "")
}

// MoveToWishlist removes the line. Wishlists are not stored.
func MoveToWishlist(s State, productID string) Result {
	return RemoveItem(s, productID)
}

// ApplyPromo activates code when the registry knows it, replacing any active
// promo. Unknown codes leave the cart untouched and the code is not kept.
func ApplyPromo(s State, reg *voucher.Registry, code string) Result {
	promo, err := reg.Lookup(code)
	if err != nil {
		return unchanged(s, ReasonUnknownPromo)
	}
	if s.Promo != nil && s.Promo.Code == promo.Code {
		return unchanged(s, ReasonPromoActive)
	}
	out := s.clone()
	out.Promo = &promo
	return applied(out, "")
}

// RemovePromo clears the active promo.
func RemovePromo(s State) Result {
	if s.Promo == nil {
		return unchanged(s, ReasonNoPromo)
	}
	out := s.clone()
	out.Promo = nil
	return applied(out, "")
}

// SelectShipping switches the shipping method. Methods the policy does not
// offer are an error.
func SelectShipping(s State, policy pricing.Policy, method pricing.Method) (Result, error) {
	if _, err := policy.Option(method); err != nil {
		return Result{}, err
	}
	if s.Shipping == method {
		return unchanged(s, ReasonSameShipping), nil
	}
	out := s.clone()
	out.Shipping = method
	return applied(out, ""), nil
}

// Clear empties the cart and drops the promo. Shipping selection is kept.
func Clear(s State) Result {
	if len(s.Items) == 0 && s.Promo == nil {
		return unchanged(s, ReasonAlreadyEmpty)
	}
	out := s.clone()
	out.Items = []pricing.Item{}
	out.Promo = nil
	return applied(out, "")
}

// Totals prices the cart under policy.
func Totals(s State, policy pricing.Policy) (pricing.Summary, error) {
	rate := pricing.Money{}
	if s.Promo != nil {
		rate = s.Promo.Rate
	}
	return pricing.Compute(s.Items, rate, s.Shipping, policy)
}

// InStock returns the lines that can ship now.
func InStock(s State) []pricing.Item {
	return partition(s, true)
}

// OutOfStock returns the lines that are currently unavailable.
func OutOfStock(s State) []pricing.Item {
	return partition(s, false)
}

func partition(s State, inStock bool) []pricing.Item {
	out := []pricing.Item{}
	for _, it := range s.Items {
		if it.InStock == inStock {
			out = append(out, it)
		}
	}
	return out
}

// ItemCount sums the quantities of every line.
func ItemCount(s State) int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}
