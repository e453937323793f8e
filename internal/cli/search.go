package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

type searchFlags struct {
	query      string
	categories []string
	vendors    []string
	ratings    []int
	minPrice   string
	maxPrice   string
	sort       string
	page       int
	limit      int
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	f := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Filter and sort the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(rootOpts, f, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "case-insensitive name search")
	cmd.Flags().StringArrayVar(&f.categories, "category", nil, "category filter (repeatable)")
	cmd.Flags().StringArrayVar(&f.vendors, "vendor", nil, "vendor filter (repeatable)")
	cmd.Flags().IntSliceVar(&f.ratings, "rating", nil, "minimum rating, any of (repeatable)")
	cmd.Flags().StringVar(&f.minPrice, "min-price", "", "lowest price")
	cmd.Flags().StringVar(&f.maxPrice, "max-price", "", "highest price")
	cmd.Flags().StringVar(&f.sort, "sort", "relevance", "relevance|price-low|price-high|rating|newest")
	cmd.Flags().IntVar(&f.page, "page", 1, "page number")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "page size (default from config)")
	return cmd
}

func (f *searchFlags) values() url.Values {
	v := url.Values{}
	if f.query != "" {
		v.Set("q", f.query)
	}
	for _, c := range f.categories {
		v.Add("category", c)
	}
	for _, vendor := range f.vendors {
		v.Add("vendor", vendor)
	}
	for _, r := range f.ratings {
		v.Add("rating", strconv.Itoa(r))
	}
	if f.minPrice != "" {
		v.Set("minPrice", f.minPrice)
	}
	if f.maxPrice != "" {
		v.Set("maxPrice", f.maxPrice)
	}
	v.Set("sort", f.sort)
	v.Set("page", strconv.Itoa(f.page))
	if f.limit > 0 {
		v.Set("limit", strconv.Itoa(f.limit))
	}
	return v
}

func runSearch(opts *RootOptions, f *searchFlags, w io.Writer) error {
	_, svc, err := opts.catalog()
	if err != nil {
		return err
	}
	params, err := svc.ParseListParams(f.values())
	if err != nil {
		return err
	}
	res, err := svc.ListProducts(context.Background(), params)
	if err != nil {
		return err
	}
	if opts.Format == "json" {
		return writeJSON(w, res)
	}
	return writeSearchText(w, res)
}

func writeSearchText(w io.Writer, res catalog.ListResult) error {
	if _, err := fmt.Fprintf(w, "%-4s %-30s %10s %6s  %s\n", "ID", "NAME", "PRICE", "RATING", "VENDOR"); err != nil {
		return err
	}
	for _, p := range res.Items {
		vendor := p.Vendor.Name
		if !p.InStock {
			vendor += " (out of stock)"
		}
		if _, err := fmt.Fprintf(w, "%-4s %-30s %10s %6.1f  %s\n", p.ID, p.Name, pricing.Display(p.Price), p.Rating, vendor); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\nshowing %d of %d products, page %d, active filters: %d\n",
		len(res.Items), res.Total, res.Page, res.ActiveFilterCount)
	return err
}
