package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/resilience"
)

const relatedLimit = 4

// Service serves catalog queries over an immutable product list.
type Service struct {
	products     []Product
	byID         map[string]int
	cache        *Cache
	logger       zerolog.Logger
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Products     []Product
	Cache        *Cache
	Logger       zerolog.Logger
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures a query plus the requested page.
type ListParams struct {
	Query Query
	Page  int
	Limit int
}

// ListResult contains one page of results and pagination metadata.
type ListResult struct {
	Items             []Product `json:"items"`
	Total             int       `json:"total"`
	Page              int       `json:"page"`
	Limit             int       `json:"limit"`
	ActiveFilterCount int       `json:"activeFilterCount"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if len(cfg.Products) == 0 {
		return nil, errors.New("catalog: products are required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 12
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 48
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	products := append([]Product(nil), cfg.Products...)
	byID := make(map[string]int, len(products))
	for i, p := range products {
		byID[p.ID] = i
	}
	return &Service{
		products:     products,
		byID:         byID,
		cache:        cfg.Cache,
		logger:       cfg.Logger,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// Products returns a copy of the catalog in its original order.
func (s *Service) Products() []Product {
	return append([]Product(nil), s.products...)
}

// ParseListParams normalises raw query values into a typed query. Categories
// and vendors are taken from repeated keys only, since names may contain
// commas; ratings also accept a comma separated list.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	q := Query{
		SearchTerm: strings.TrimSpace(values.Get("q")),
		Categories: multiValue(values, "category", false),
		Vendors:    multiValue(values, "vendor", false),
		Sort:       NormalizeSort(values.Get("sort")),
	}

	for _, raw := range multiValue(values, "rating", true) {
		rating, err := strconv.Atoi(raw)
		if err != nil || rating < 1 || rating > 5 {
			return params, common.BadRequest("rating", "rating must be an integer between 1 and 5", err)
		}
		q.MinRatings = append(q.MinRatings, rating)
	}

	minRaw := strings.TrimSpace(values.Get("minPrice"))
	maxRaw := strings.TrimSpace(values.Get("maxPrice"))
	if minRaw != "" || maxRaw != "" {
		rng := DefaultPriceRange()
		if minRaw != "" {
			v, err := decimal.NewFromString(minRaw)
			if err != nil || v.IsNegative() {
				return params, common.BadRequest("minPrice", "minPrice must be a non-negative number", err)
			}
			rng.Low = v
		}
		if maxRaw != "" {
			v, err := decimal.NewFromString(maxRaw)
			if err != nil || v.IsNegative() {
				return params, common.BadRequest("maxPrice", "maxPrice must be a non-negative number", err)
			}
			rng.High = v
		}
		if rng.Low.GreaterThan(rng.High) {
			return params, common.BadRequest("price", "minPrice cannot be greater than maxPrice", fmt.Errorf("invalid price range"))
		}
		q.PriceRange = &rng
	}

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, common.BadRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, common.BadRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = limit
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}
	params.Query = q
	return params, nil
}

// ListProducts runs the query and returns the requested page. Results are
// cached by normalised parameters when a cache is configured; cache failures
// degrade to computing the result.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ListResult, error) {
	sortKey := NormalizeSort(string(params.Query.Sort))
	ctx, span := obs.Tracer().Start(ctx, "catalog.ListProducts", trace.WithAttributes(
		attribute.String("catalog.sort", string(sortKey)),
		attribute.Int("catalog.page", params.Page),
	))
	defer span.End()
	obs.ObserveCatalogQuery(string(sortKey))

	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 || params.Limit > s.maxLimit {
		params.Limit = s.defaultLimit
	}

	key := ""
	if s.cache.Enabled() {
		key = listCacheKey(params)
		var cached ListResult
		ok, err := s.cache.GetJSON(ctx, key, &cached)
		switch {
		case errors.Is(err, resilience.ErrOpenCircuit):
			obs.ObserveCatalogCache("bypass")
		case err != nil:
			obs.ObserveCatalogCache("error")
			s.logger.Warn().Err(err).Msg("catalog cache read failed")
		case ok:
			obs.ObserveCatalogCache("hit")
			span.SetAttributes(attribute.Bool("catalog.cache_hit", true))
			return cached, nil
		default:
			obs.ObserveCatalogCache("miss")
		}
	}

	res := Run(s.products, params.Query)
	page, total := Paginate(res.Items, params.Page, params.Limit)
	out := ListResult{
		Items:             page,
		Total:             total,
		Page:              params.Page,
		Limit:             params.Limit,
		ActiveFilterCount: res.ActiveFilterCount,
	}
	span.SetAttributes(attribute.Int("catalog.total", total))

	if key != "" {
		if err := s.cache.SetJSON(ctx, key, out); err != nil && !errors.Is(err, resilience.ErrOpenCircuit) {
			s.logger.Warn().Err(err).Msg("catalog cache write failed")
		}
	}
	return out, nil
}

// GetProduct returns the product with id.
func (s *Service) GetProduct(_ context.Context, id string) (Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, common.BadRequest("id", "product id is required", nil)
	}
	i, ok := s.byID[id]
	if !ok {
		return Product{}, common.NotFound("product not found", fmt.Errorf("%s: %w", id, ErrProductNotFound))
	}
	return s.products[i], nil
}

// ListRelated returns up to four other products of the same category.
func (s *Service) ListRelated(ctx context.Context, id string) ([]Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	related := make([]Product, 0, relatedLimit)
	for _, p := range s.products {
		if p.ID == product.ID || p.Category != product.Category {
			continue
		}
		related = append(related, p)
		if len(related) == relatedLimit {
			break
		}
	}
	return related, nil
}

// Facets returns the filterable values of the catalog.
func (s *Service) Facets(context.Context) Facets {
	return BuildFacets(s.products)
}

func multiValue(values url.Values, key string, splitCommas bool) []string {
	var out []string
	for _, raw := range values[key] {
		parts := []string{raw}
		if splitCommas {
			parts = strings.Split(raw, ",")
		}
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
