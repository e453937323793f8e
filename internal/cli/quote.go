package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

type quoteFlags struct {
	promo    string
	shipping string
}

// QuoteResult is the JSON shape of the quote command.
type QuoteResult struct {
	Items    []pricing.Item         `json:"items"`
	Promo    string                 `json:"promo,omitempty"`
	Shipping pricing.Method         `json:"shipping"`
	Totals   pricing.Summary        `json:"totals"`
	Display  pricing.SummaryDisplay `json:"display"`
	Notes    []string               `json:"notes,omitempty"`
}

// NewQuoteCommand creates the quote command.
func NewQuoteCommand(rootOpts *RootOptions) *cobra.Command {
	f := &quoteFlags{}
	cmd := &cobra.Command{
		Use:   "quote <product-id[:qty]>...",
		Short: "Price a cart built from catalog products",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuote(rootOpts, f, args, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&f.promo, "promo", "", "promo code")
	cmd.Flags().StringVar(&f.shipping, "shipping", "standard", "standard|express|overnight")
	return cmd
}

func parseLine(arg string) (string, int, error) {
	id, qty, found := strings.Cut(strings.TrimSpace(arg), ":")
	if id == "" {
		return "", 0, fmt.Errorf("%q: product id is required", arg)
	}
	if !found {
		return id, 1, nil
	}
	n, err := strconv.Atoi(qty)
	if err != nil {
		return "", 0, fmt.Errorf("%q: invalid quantity", arg)
	}
	return id, n, nil
}

func runQuote(opts *RootOptions, f *quoteFlags, args []string, w io.Writer) error {
	cfg, svc, err := opts.catalog()
	if err != nil {
		return err
	}
	promos, err := cfg.Promos()
	if err != nil {
		return err
	}
	policy := cfg.Policy()
	method, err := pricing.ParseMethod(f.shipping)
	if err != nil {
		return err
	}

	ctx := context.Background()
	state := cart.New("cli", time.Time{})
	var notes []string
	for _, arg := range args {
		id, qty, err := parseLine(arg)
		if err != nil {
			return err
		}
		product, err := svc.GetProduct(ctx, id)
		if err != nil {
			return fmt.Errorf("product %s: %w", id, err)
		}
		res, err := cart.AddItem(state, product.LineItem(qty))
		if err != nil {
			return err
		}
		switch res.Reason {
		case cart.ReasonQuantityClamped, cart.ReasonMaxQuantity:
			notes = append(notes, fmt.Sprintf("%s: quantity limited to %d", product.Name, product.MaxQuantity))
		case cart.ReasonInvalidQuantity:
			notes = append(notes, fmt.Sprintf("%s: quantity %d ignored", product.Name, qty))
		}
		state = res.State
	}
	if f.promo != "" {
		res := cart.ApplyPromo(state, promos, f.promo)
		if res.Reason == cart.ReasonUnknownPromo {
			notes = append(notes, fmt.Sprintf("promo code %q not recognised", f.promo))
		}
		state = res.State
	}
	res, err := cart.SelectShipping(state, policy, method)
	if err != nil {
		return err
	}
	state = res.State
	for _, it := range cart.OutOfStock(state) {
		notes = append(notes, fmt.Sprintf("%s is out of stock", it.Name))
	}

	totals, err := cart.Totals(state, policy)
	if err != nil {
		return err
	}
	out := QuoteResult{
		Items:    state.Items,
		Shipping: state.Shipping,
		Totals:   totals.Rounded(),
		Display:  totals.Display(),
		Notes:    notes,
	}
	if state.Promo != nil {
		out.Promo = state.Promo.Code
	}
	if opts.Format == "json" {
		return writeJSON(w, out)
	}
	return writeQuoteText(w, out)
}

func writeQuoteText(w io.Writer, q QuoteResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%-30s %5s %12s %12s\n", "ITEM", "QTY", "UNIT PRICE", "LINE TOTAL")
	for _, it := range q.Items {
		fmt.Fprintf(&b, "%-30s %5d %12s %12s\n", it.Name, it.Quantity, pricing.Display(it.UnitPrice), pricing.Display(it.LineTotal()))
	}
	b.WriteString("\n")
	promoLabel := "Promo"
	if q.Promo != "" {
		promoLabel = "Promo (" + q.Promo + ")"
	}
	rows := [][2]string{
		{"Subtotal", q.Display.Subtotal},
		{promoLabel, "-" + q.Display.PromoDiscount},
		{"Shipping (" + string(q.Shipping) + ")", q.Display.Shipping},
		{"Tax", q.Display.Tax},
		{"Total", q.Display.Total},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "%-22s %12s\n", row[0], row[1])
	}
	for _, n := range q.Notes {
		fmt.Fprintf(&b, "note: %s\n", n)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
