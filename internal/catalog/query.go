package catalog

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// SortKey selects the ordering of query results.
type SortKey string

const (
	SortRelevance SortKey = "relevance"
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
	SortRating    SortKey = "rating"
	SortNewest    SortKey = "newest"
)

// NormalizeSort maps raw input onto a known sort key. Unknown keys fall back to relevance.
func NormalizeSort(raw string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(raw))); k {
	case SortPriceLow, SortPriceHigh, SortRating, SortNewest:
		return k
	default:
		return SortRelevance
	}
}

// PriceRange is an inclusive [Low, High] price filter.
type PriceRange struct {
	Low  decimal.Decimal `json:"low"`
	High decimal.Decimal `json:"high"`
}

// DefaultPriceRange is the full slider range, [0, 1000].
func DefaultPriceRange() PriceRange {
	return PriceRange{Low: decimal.Zero, High: decimal.NewFromInt(1000)}
}

// Contains reports whether price lies within the range, bounds included.
func (r PriceRange) Contains(price decimal.Decimal) bool {
	return price.GreaterThanOrEqual(r.Low) && price.LessThanOrEqual(r.High)
}

// Equal compares both bounds numerically.
func (r PriceRange) Equal(other PriceRange) bool {
	return r.Low.Equal(other.Low) && r.High.Equal(other.High)
}

// Query is a read-only catalog search request. Empty sets are pass-through.
// A nil PriceRange means the default range.
type Query struct {
	SearchTerm string      `json:"searchTerm,omitempty"`
	Categories []string    `json:"categories,omitempty"`
	Vendors    []string    `json:"vendors,omitempty"`
	MinRatings []int       `json:"minRatings,omitempty"`
	PriceRange *PriceRange `json:"priceRange,omitempty"`
	Sort       SortKey     `json:"sort,omitempty"`
}

// EffectivePriceRange returns the configured range or the default.
func (q Query) EffectivePriceRange() PriceRange {
	if q.PriceRange == nil {
		return DefaultPriceRange()
	}
	return *q.PriceRange
}

// Matches applies every filter predicate. Predicates combine with AND; the
// rating thresholds combine with OR among themselves.
func (q Query) Matches(p Product) bool {
	if q.SearchTerm != "" &&
		!strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.SearchTerm)) {
		return false
	}
	if len(q.Categories) > 0 && !contains(q.Categories, p.Category) {
		return false
	}
	if !q.EffectivePriceRange().Contains(p.Price) {
		return false
	}
	if len(q.MinRatings) > 0 {
		ok := false
		for _, min := range q.MinRatings {
			if p.Rating >= float64(min) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(q.Vendors) > 0 && !contains(q.Vendors, p.Vendor.Name) {
		return false
	}
	return true
}

// ActiveFilterCount counts active filter dimensions, not selected values.
func (q Query) ActiveFilterCount() int {
	count := 0
	if len(q.Categories) > 0 {
		count++
	}
	if len(q.MinRatings) > 0 {
		count++
	}
	if len(q.Vendors) > 0 {
		count++
	}
	if !q.EffectivePriceRange().Equal(DefaultPriceRange()) {
		count++
	}
	return count
}

// Result is the filtered, ordered product sequence.
type Result struct {
	Items             []Product `json:"items"`
	ActiveFilterCount int       `json:"activeFilterCount"`
}

// Run filters then stably sorts products. The input slice is not modified and
// ties keep their catalog order.
func Run(products []Product, q Query) Result {
	items := make([]Product, 0, len(products))
	for _, p := range products {
		if q.Matches(p) {
			items = append(items, p)
		}
	}
	SortProducts(items, q.Sort)
	return Result{Items: items, ActiveFilterCount: q.ActiveFilterCount()}
}

// SortProducts stably orders items in place by key.
func SortProducts(items []Product, key SortKey) {
	var less func(a, b Product) bool
	switch NormalizeSort(string(key)) {
	case SortPriceLow:
		less = func(a, b Product) bool { return a.Price.LessThan(b.Price) }
	case SortPriceHigh:
		less = func(a, b Product) bool { return a.Price.GreaterThan(b.Price) }
	case SortRating:
		less = func(a, b Product) bool { return a.Rating > b.Rating }
	case SortNewest:
		less = func(a, b Product) bool { return a.IsNew && !b.IsNew }
	default:
		less = func(a, b Product) bool { return a.IsFeatured && !b.IsFeatured }
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

// Paginate returns the 1-based page of items and the total count. Pages past
// the end are empty.
func Paginate(items []Product, page, perPage int) ([]Product, int) {
	total := len(items)
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = total
	}
	start := (page - 1) * perPage
	if start >= total {
		return []Product{}, total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return items[start:end], total
}

// FacetValue is a distinct attribute value with the number of products carrying it.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Facets lists the filterable values of a catalog in first-seen order.
type Facets struct {
	Categories []FacetValue `json:"categories"`
	Vendors    []FacetValue `json:"vendors"`
	Ratings    []int        `json:"ratings"`
	PriceRange PriceRange   `json:"priceRange"`
}

// BuildFacets derives the facets of products.
func BuildFacets(products []Product) Facets {
	f := Facets{
		Categories: tally(products, func(p Product) string { return p.Category }),
		Vendors:    tally(products, func(p Product) string { return p.Vendor.Name }),
		Ratings:    []int{5, 4, 3, 2, 1},
		PriceRange: DefaultPriceRange(),
	}
	return f
}

func tally(products []Product, attr func(Product) string) []FacetValue {
	index := make(map[string]int)
	out := []FacetValue{}
	for _, p := range products {
		v := attr(p)
		if i, ok := index[v]; ok {
			out[i].Count++
			continue
		}
		index[v] = len(out)
		out = append(out, FacetValue{Value: v, Count: 1})
	}
	return out
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
