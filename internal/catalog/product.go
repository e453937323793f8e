package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// ErrProductNotFound is returned when no product has the requested id.
var ErrProductNotFound = errors.New("catalog: product not found")

// Vendor is the seller of a product.
type Vendor struct {
	Name     string `yaml:"name" json:"name" validate:"required"`
	Verified bool   `yaml:"verified" json:"verified"`
}

// Product is an immutable catalog record.
type Product struct {
	ID              string           `yaml:"id" json:"id" validate:"required"`
	Name            string           `yaml:"name" json:"name" validate:"required"`
	Price           decimal.Decimal  `yaml:"price" json:"price" validate:"gte=0"`
	OriginalPrice   *decimal.Decimal `yaml:"original_price,omitempty" json:"originalPrice,omitempty" validate:"omitempty,gte=0"`
	Category        string           `yaml:"category" json:"category" validate:"required"`
	Vendor          Vendor           `yaml:"vendor" json:"vendor"`
	Rating          float64          `yaml:"rating" json:"rating" validate:"gte=0,lte=5"`
	ReviewCount     int              `yaml:"review_count" json:"reviewCount" validate:"gte=0"`
	DiscountPercent float64          `yaml:"discount_percent,omitempty" json:"discountPercent,omitempty" validate:"gte=0,lte=100"`
	IsNew           bool             `yaml:"is_new,omitempty" json:"isNew,omitempty"`
	IsFeatured      bool             `yaml:"is_featured,omitempty" json:"isFeatured,omitempty"`
	Image           string           `yaml:"image" json:"image" validate:"omitempty,url"`
	InStock         bool             `yaml:"in_stock" json:"inStock"`
	MaxQuantity     int              `yaml:"max_quantity" json:"maxQuantity" validate:"gte=1"`
}

// LineItem converts the product into a cart row of the given quantity.
func (p Product) LineItem(quantity int) pricing.Item {
	return pricing.Item{
		ProductID:       p.ID,
		Name:            p.Name,
		Vendor:          p.Vendor.Name,
		UnitPrice:       p.Price,
		Quantity:        quantity,
		MaxQuantity:     p.MaxQuantity,
		DiscountPercent: p.DiscountPercent,
		InStock:         p.InStock,
	}
}

//go:embed seed.yaml
var seedYAML []byte

type seedDocument struct {
	Products []Product `yaml:"products" validate:"required,min=1,dive"`
}

// LoadSeed parses and validates the embedded storefront catalog.
func LoadSeed() ([]Product, error) {
	return ParseProducts(seedYAML)
}

// ParseProducts decodes a YAML product document and validates every record.
// Product ids must be unique.
func ParseProducts(data []byte) ([]Product, error) {
	var doc seedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode products: %w", err)
	}
	if err := newValidator().Struct(doc); err != nil {
		return nil, fmt.Errorf("catalog: invalid products: %w", err)
	}
	seen := make(map[string]struct{}, len(doc.Products))
	for _, p := range doc.Products {
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate product id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return doc.Products, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}
