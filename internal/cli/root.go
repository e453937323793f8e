package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/config"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags and the configuration source shared by commands.
type RootOptions struct {
	Format string
	Load   func() (*config.Config, error)
}

// NewRootCommand creates the storefront command reading configuration from the environment.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(config.Load)
}

// NewRootCommandWith creates the root command with an explicit configuration source.
func NewRootCommandWith(load func() (*config.Config, error)) *cobra.Command {
	opts := &RootOptions{Load: load}

	cmd := &cobra.Command{
		Use:   "storefront",
		Short: "Query the catalog and price carts offline",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewQuoteCommand(opts))
	return cmd
}

func (o *RootOptions) catalog() (*config.Config, *catalog.Service, error) {
	cfg, err := o.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	products, err := catalog.LoadSeed()
	if err != nil {
		return nil, nil, err
	}
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Products:     products,
		Logger:       zerolog.Nop(),
		DefaultLimit: cfg.CatalogPageSize,
		MaxLimit:     cfg.CatalogMaxPageSize,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, svc, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
