package voucher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownCode is returned when a code is not part of the registry.
	ErrUnknownCode = errors.New("voucher: unknown promo code")
	// ErrInvalidPromo is returned when a promo definition is malformed.
	ErrInvalidPromo = errors.New("voucher: invalid promo")
)

// Promo is a percentage discount applied to the whole cart subtotal.
type Promo struct {
	Code string          `json:"code"`
	Rate decimal.Decimal `json:"rate"`
}

// Discount returns subtotal × Rate.
func (p Promo) Discount(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(p.Rate)
}

// Validate ensures the code is present and the rate lies within [0, 1].
func (p Promo) Validate() error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("code is required: %w", ErrInvalidPromo)
	}
	if p.Rate.IsNegative() || p.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s: rate %s outside [0, 1]: %w", p.Code, p.Rate, ErrInvalidPromo)
	}
	return nil
}

// Registry is the closed set of accepted promo codes.
type Registry struct {
	promos map[string]Promo
}

// NewRegistry validates and indexes the promos. Duplicate codes (compared
// case-insensitively) are rejected.
func NewRegistry(promos ...Promo) (*Registry, error) {
	reg := &Registry{promos: make(map[string]Promo, len(promos))}
	for _, p := range promos {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		key := strings.ToUpper(p.Code)
		if _, dup := reg.promos[key]; dup {
			return nil, fmt.Errorf("%s: duplicate code: %w", p.Code, ErrInvalidPromo)
		}
		reg.promos[key] = Promo{Code: key, Rate: p.Rate}
	}
	return reg, nil
}

// DefaultRegistry contains SAVE10 at 10%.
func DefaultRegistry() *Registry {
	reg, _ := NewRegistry(Promo{Code: "SAVE10", Rate: decimal.RequireFromString("0.10")})
	return reg
}

// Lookup matches code case-insensitively. The input is not trimmed, so " save10"
// is not a match.
func (r *Registry) Lookup(code string) (Promo, error) {
	if r == nil || code == "" {
		return Promo{}, ErrUnknownCode
	}
	p, ok := r.promos[strings.ToUpper(code)]
	if !ok {
		return Promo{}, fmt.Errorf("%q: %w", code, ErrUnknownCode)
	}
	return p, nil
}

// Len returns the number of registered promos.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.promos)
}

// ParseCodes reads a "CODE:RATE,CODE:RATE" list, e.g. "SAVE10:0.10".
func ParseCodes(raw string) ([]Promo, error) {
	var promos []Promo
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, rate, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("%q: expected CODE:RATE: %w", part, ErrInvalidPromo)
		}
		value, err := decimal.NewFromString(strings.TrimSpace(rate))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", part, errors.Join(ErrInvalidPromo, err))
		}
		promos = append(promos, Promo{Code: strings.TrimSpace(code), Rate: value})
	}
	return promos, nil
}
