package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/deposit/pkg/metrics"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	deps Dependencies
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps Dependencies) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// HandleHealth handles GET /healthz requests. The body is the Prometheus
// exposition; X-Pipeline-Status tells whether scoring is possible.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "loaded"
	if h.deps != nil && h.deps.PipelineErr(r.Context()) != nil {
		status = "unavailable"
	}
	w.Header().Set("X-Pipeline-Status", status)

	// Use our custom metrics registry to serve metrics
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
