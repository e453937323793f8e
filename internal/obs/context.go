package obs

import (
	"context"

	"github.com/go-chi/chi/v5"
)

type routeKey struct{}

// WithRoutePattern pins the route label for requests served outside a chi
// router, such as handlers exercised directly in tests.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routeKey{}, pattern)
}

// RoutePatternFromContext returns the pinned route, falling back to the
// pattern chi has resolved so far. Call it after the router ran so the full
// pattern of mounted sub-routers is visible.
func RoutePatternFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(routeKey{}).(string); ok && v != "" {
		return v
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}
