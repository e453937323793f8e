package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value kept at full precision. Rounding to cents only
// happens when a value is rendered.
type Money = decimal.Decimal

var (
	// ErrInvalidLineItem is returned when a line item violates its price or quantity contract.
	ErrInvalidLineItem = errors.New("pricing: invalid line item")
	// ErrInvalidPromoRate is returned when a promo rate falls outside [0, 1].
	ErrInvalidPromoRate = errors.New("pricing: promo rate out of range")
	// ErrUnknownShippingMethod is returned when the requested method is not offered.
	ErrUnknownShippingMethod = errors.New("pricing: unknown shipping method")
)

var hundred = decimal.NewFromInt(100)

// Item describes a cart row used for pricing calculation.
type Item struct {
	ProductID       string  `json:"productId"`
	Name            string  `json:"name"`
	Vendor          string  `json:"vendor,omitempty"`
	UnitPrice       Money   `json:"unitPrice"`
	Quantity        int     `json:"quantity"`
	MaxQuantity     int     `json:"maxQuantity"`
	DiscountPercent float64 `json:"discountPercent,omitempty"`
	InStock         bool    `json:"inStock"`
}

// EffectiveUnitPrice applies the informational per-item discount to the unit price.
// It does not feed the subtotal.
func (it Item) EffectiveUnitPrice() Money {
	if it.DiscountPercent <= 0 {
		return it.UnitPrice
	}
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(it.DiscountPercent).Div(hundred))
	return it.UnitPrice.Mul(factor)
}

// LineTotal returns UnitPrice × Quantity.
func (it Item) LineTotal() Money {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Validate rejects items that would otherwise produce negative or meaningless totals.
func (it Item) Validate() error {
	switch {
	case strings.TrimSpace(it.ProductID) == "":
		return fmt.Errorf("product id is required: %w", ErrInvalidLineItem)
	case it.UnitPrice.IsNegative():
		return fmt.Errorf("item %s: unit price must not be negative: %w", it.ProductID, ErrInvalidLineItem)
	case it.MaxQuantity < 1:
		return fmt.Errorf("item %s: max quantity must be at least 1: %w", it.ProductID, ErrInvalidLineItem)
	case it.Quantity < 1 || it.Quantity > it.MaxQuantity:
		return fmt.Errorf("item %s: quantity %d outside [1, %d]: %w", it.ProductID, it.Quantity, it.MaxQuantity, ErrInvalidLineItem)
	case it.DiscountPercent < 0 || it.DiscountPercent > 100:
		return fmt.Errorf("item %s: discount percent outside [0, 100]: %w", it.ProductID, ErrInvalidLineItem)
	}
	return nil
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal      Money `json:"subtotal"`
	PromoDiscount Money `json:"promoDiscount"`
	Shipping      Money `json:"shipping"`
	Tax           Money `json:"tax"`
	Total         Money `json:"total"`
}

// Rounded returns a copy with every component rounded to cents for presentation.
func (s Summary) Rounded() Summary {
	return Summary{
		Subtotal:      s.Subtotal.Round(2),
		PromoDiscount: s.PromoDiscount.Round(2),
		Shipping:      s.Shipping.Round(2),
		Tax:           s.Tax.Round(2),
		Total:         s.Total.Round(2),
	}
}

// Subtotal sums UnitPrice × Quantity over the items. The per-item discount percent is
// informational and does not reduce the subtotal.
func Subtotal(items []Item) Money {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	return subtotal
}

// Compute calculates cart totals for the items, the active promo rate (zero when no
// promo is applied) and the selected shipping method.
func Compute(items []Item, promoRate Money, method Method, policy Policy) (Summary, error) {
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return Summary{}, err
		}
	}
	if promoRate.IsNegative() || promoRate.GreaterThan(decimal.NewFromInt(1)) {
		return Summary{}, fmt.Errorf("rate %s: %w", promoRate, ErrInvalidPromoRate)
	}

	subtotal := Subtotal(items)
	discount := subtotal.Mul(promoRate)
	shipping, err := policy.ShippingFee(method, subtotal)
	if err != nil {
		return Summary{}, err
	}
	taxable := subtotal.Sub(discount)
	tax := taxable.Mul(policy.TaxRate)
	return Summary{
		Subtotal:      subtotal,
		PromoDiscount: discount,
		Shipping:      shipping,
		Tax:           tax,
		Total:         taxable.Add(shipping).Add(tax),
	}, nil
}

// ClampQuantity applies the lenient quantity policy: requests below 1 are ignored and
// requests above max are reduced to max. It reports whether the quantity changed.
func ClampQuantity(current, requested, max int) (int, bool) {
	if requested < 1 {
		return current, false
	}
	if max >= 1 && requested > max {
		requested = max
	}
	return requested, requested != current
}
