package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// routePattern resolves the chi route pattern for a request once routing
// has happened. Returns "" for unmatched requests.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}
