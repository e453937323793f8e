package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) []Product {
	t.Helper()
	products, err := LoadSeed()
	require.NoError(t, err)
	return products
}

func ids(products []Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func rated(id string, rating float64) Product {
	return Product{ID: id, Name: "Item " + id, Price: decimal.NewFromInt(10), Category: "Misc", Vendor: Vendor{Name: "Acme"}, Rating: rating, MaxQuantity: 1}
}

func TestLoadSeed(t *testing.T) {
	products := seed(t)
	require.Len(t, products, 9)
	require.Equal(t, "Premium Wireless Headphones", products[0].Name)
	require.True(t, products[0].Price.Equal(decimal.RequireFromString("129.99")))
	require.NotNil(t, products[0].OriginalPrice)
	require.False(t, products[3].InStock)
	require.Equal(t, 3, products[8].MaxQuantity)
}

func TestParseProductsRejectsInvalidRecords(t *testing.T) {
	_, err := ParseProducts([]byte(`products:
  - id: "x"
    name: Broken
    price: "-1"
    category: Misc
    vendor: {name: Acme}
    rating: 4
    max_quantity: 1
`))
	require.Error(t, err)

	_, err = ParseProducts([]byte(`products:
  - {id: "a", name: A, price: "1", category: C, vendor: {name: V}, rating: 6, max_quantity: 1}
`))
	require.Error(t, err)

	_, err = ParseProducts([]byte(`products:
  - {id: "a", name: A, price: "1", category: C, vendor: {name: V}, rating: 1, max_quantity: 1}
  - {id: "a", name: B, price: "1", category: C, vendor: {name: V}, rating: 1, max_quantity: 1}
`))
	require.ErrorContains(t, err, "duplicate")

	_, err = ParseProducts([]byte(`products: []`))
	require.Error(t, err)
}

func TestRatingThresholdsCombineWithOr(t *testing.T) {
	products := []Product{rated("a", 3.9), rated("b", 4.0), rated("c", 4.8)}
	res := Run(products, Query{MinRatings: []int{4, 5}})
	require.Equal(t, []string{"b", "c"}, ids(res.Items))
	require.Equal(t, 1, res.ActiveFilterCount)
}

func TestSearchWithoutMatchesIsEmpty(t *testing.T) {
	res := Run(seed(t), Query{SearchTerm: "submarine"})
	require.NotNil(t, res.Items)
	require.Empty(t, res.Items)
}

func TestSearchIsCaseInsensitiveOnNameOnly(t *testing.T) {
	products := seed(t)
	res := Run(products, Query{SearchTerm: "WIRELESS"})
	require.Equal(t, []string{"1", "8"}, ids(res.Items))

	// vendor names are not searched
	res = Run(products, Query{SearchTerm: "audiotech"})
	require.Empty(t, res.Items)
}

func TestSearchTermIsMatchedVerbatim(t *testing.T) {
	products := seed(t)
	res := Run(products, Query{SearchTerm: "wireless "})
	require.Equal(t, []string{"1", "8"}, ids(res.Items))

	// "Wireless Charging Pad" has no space before its first word
	res = Run(products, Query{SearchTerm: " wireless"})
	require.Equal(t, []string{"1"}, ids(res.Items))

	res = Run(products, Query{SearchTerm: "headphones "})
	require.Empty(t, res.Items)

	res = Run(products, Query{SearchTerm: "   "})
	require.Empty(t, res.Items)
}

func TestFiltersAreConjunctive(t *testing.T) {
	products := seed(t)
	low := decimal.NewFromInt(20)
	queries := []Query{
		{Categories: []string{"Electronics"}, Vendors: []string{"TechGiant"}},
		{Categories: []string{"Electronics", "Toys"}, MinRatings: []int{4}},
		{SearchTerm: "s", PriceRange: &PriceRange{Low: low, High: decimal.NewFromInt(200)}},
		{Vendors: []string{"EcoLife", "KidsToys"}, MinRatings: []int{5}},
		{PriceRange: &PriceRange{Low: decimal.RequireFromString("29.99"), High: decimal.RequireFromString("49.99")}},
	}
	for _, q := range queries {
		res := Run(products, q)
		kept := make(map[string]bool)
		for _, p := range res.Items {
			require.True(t, q.Matches(p), "product %s should satisfy every predicate", p.ID)
			kept[p.ID] = true
		}
		for _, p := range products {
			if !kept[p.ID] {
				require.False(t, q.Matches(p), "product %s was dropped but matches", p.ID)
			}
		}
	}

	res := Run(products, Query{Categories: []string{"Electronics"}, Vendors: []string{"TechGiant"}})
	require.Equal(t, []string{"2", "8"}, ids(res.Items))
}

func TestPriceRangeIsInclusive(t *testing.T) {
	rng := PriceRange{Low: decimal.RequireFromString("29.99"), High: decimal.RequireFromString("49.99")}
	res := Run(seed(t), Query{PriceRange: &rng, Sort: SortPriceLow})
	require.Equal(t, []string{"8", "6", "5"}, ids(res.Items))
}

func TestSortOrders(t *testing.T) {
	products := seed(t)
	cases := map[SortKey][]string{
		SortPriceLow:  {"7", "3", "8", "6", "5", "1", "2", "4", "9"},
		SortPriceHigh: {"9", "4", "2", "1", "5", "6", "8", "3", "7"},
		SortRating:    {"6", "4", "9", "1", "8", "5", "2", "7", "3"},
		SortNewest:    {"2", "1", "3", "4", "5", "6", "7", "8", "9"},
		SortRelevance: {"1", "2", "3", "4", "5", "6", "7", "8", "9"},
		"bogus":       {"1", "2", "3", "4", "5", "6", "7", "8", "9"},
	}
	for key, want := range cases {
		require.Equal(t, want, ids(Run(products, Query{Sort: key}).Items), "sort %s", key)
	}
}

func TestSortIsStableAndIdempotent(t *testing.T) {
	products := seed(t)
	for _, key := range []SortKey{SortPriceLow, SortPriceHigh, SortRating, SortNewest, SortRelevance} {
		once := Run(products, Query{Sort: key}).Items
		twice := Run(once, Query{Sort: key}).Items
		require.Equal(t, ids(once), ids(twice), "sort %s", key)
	}

	// ties keep catalog order
	tied := []Product{rated("x", 4), rated("y", 4), rated("z", 4)}
	require.Equal(t, []string{"x", "y", "z"}, ids(Run(tied, Query{Sort: SortRating}).Items))
}

func TestRunDoesNotMutateInput(t *testing.T) {
	products := seed(t)
	before := ids(products)
	Run(products, Query{Sort: SortPriceHigh})
	require.Equal(t, before, ids(products))
}

func TestActiveFilterCountCountsDimensions(t *testing.T) {
	require.Zero(t, Query{}.ActiveFilterCount())
	def := DefaultPriceRange()
	require.Zero(t, Query{PriceRange: &def, SearchTerm: "watch"}.ActiveFilterCount())

	narrowed := PriceRange{Low: decimal.Zero, High: decimal.NewFromInt(500)}
	q := Query{
		Categories: []string{"Electronics", "Fashion", "Toys"},
		Vendors:    []string{"TechGiant", "AudioTech"},
		MinRatings: []int{3, 4},
		PriceRange: &narrowed,
	}
	require.Equal(t, 4, q.ActiveFilterCount())
}

func TestPaginate(t *testing.T) {
	products := seed(t)
	page, total := Paginate(products, 2, 4)
	require.Equal(t, 9, total)
	require.Equal(t, []string{"5", "6", "7", "8"}, ids(page))

	page, _ = Paginate(products, 3, 4)
	require.Equal(t, []string{"9"}, ids(page))

	page, total = Paginate(products, 5, 4)
	require.Empty(t, page)
	require.Equal(t, 9, total)
}

func TestBuildFacets(t *testing.T) {
	f := BuildFacets(seed(t))
	require.Equal(t, FacetValue{Value: "Electronics", Count: 4}, f.Categories[0])
	require.Len(t, f.Categories, 5)
	require.Equal(t, "AudioTech", f.Vendors[0].Value)
	require.Equal(t, FacetValue{Value: "TechGiant", Count: 2}, f.Vendors[1])
}

func TestNormalizeSort(t *testing.T) {
	require.Equal(t, SortPriceHigh, NormalizeSort(" PRICE-HIGH "))
	require.Equal(t, SortRelevance, NormalizeSort(""))
	require.Equal(t, SortRelevance, NormalizeSort("price:asc"))
}
