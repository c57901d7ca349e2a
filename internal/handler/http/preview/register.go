package preview

import (
	"net/http"

	"centscape-preview/internal/observability/tracing"
)

// Pattern is the route the preview endpoint is served on.
const Pattern = "POST /preview"

// Register registers the preview endpoint with the given mux.
func Register(mux *http.ServeMux, svc Previewer) {
	mux.Handle(Pattern, tracing.Route(Handler{Svc: svc}))
}
