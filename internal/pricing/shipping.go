package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Method identifies a shipping option.
type Method string

const (
	MethodStandard  Method = "standard"
	MethodExpress   Method = "express"
	MethodOvernight Method = "overnight"
)

// ParseMethod normalises user input into a Method. Empty input selects standard.
func ParseMethod(value string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(value))); m {
	case "":
		return MethodStandard, nil
	case MethodStandard, MethodExpress, MethodOvernight:
		return m, nil
	default:
		return "", fmt.Errorf("%q: %w", value, ErrUnknownShippingMethod)
	}
}

// ShippingOption is a flat-fee delivery choice independent of cart contents.
type ShippingOption struct {
	Method      Method `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Fee         Money  `json:"price"`
}

// Policy holds the store-wide pricing constants.
type Policy struct {
	TaxRate               Money
	FreeShippingThreshold Money
	Options               []ShippingOption
}

// Fees configures the flat fee of each shipping method.
type Fees struct {
	Standard  Money
	Express   Money
	Overnight Money
}

// DefaultFees returns the storefront's published shipping fees.
func DefaultFees() Fees {
	return Fees{
		Standard:  decimal.Zero,
		Express:   decimal.RequireFromString("15.99"),
		Overnight: decimal.RequireFromString("29.99"),
	}
}

// NewPolicy builds a policy from a tax rate, a free-shipping threshold and method fees.
func NewPolicy(taxRate, freeShippingThreshold Money, fees Fees) Policy {
	return Policy{
		TaxRate:               taxRate,
		FreeShippingThreshold: freeShippingThreshold,
		Options: []ShippingOption{
			{Method: MethodStandard, Name: "Standard Shipping", Description: "5-7 business days", Fee: fees.Standard},
			{Method: MethodExpress, Name: "Express Shipping", Description: "2-3 business days", Fee: fees.Express},
			{Method: MethodOvernight, Name: "Overnight Shipping", Description: "Next business day", Fee: fees.Overnight},
		},
	}
}

// DefaultPolicy is 8% tax, free standard shipping above 50.00 and the default fees.
func DefaultPolicy() Policy {
	return NewPolicy(decimal.RequireFromString("0.08"), decimal.NewFromInt(50), DefaultFees())
}

// Option returns the configured option for the method.
func (p Policy) Option(method Method) (ShippingOption, error) {
	for _, opt := range p.Options {
		if opt.Method == method {
			return opt, nil
		}
	}
	return ShippingOption{}, fmt.Errorf("%q: %w", method, ErrUnknownShippingMethod)
}

// ShippingFee returns the fee for the method. Standard shipping is free once the
// pre-discount subtotal exceeds the free-shipping threshold.
func (p Policy) ShippingFee(method Method, subtotal Money) (Money, error) {
	if method == "" {
		method = MethodStandard
	}
	opt, err := p.Option(method)
	if err != nil {
		return decimal.Zero, err
	}
	if method == MethodStandard && subtotal.GreaterThan(p.FreeShippingThreshold) {
		return decimal.Zero, nil
	}
	return opt.Fee, nil
}
