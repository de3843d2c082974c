package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/dronesoccer/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Readiness reports whether the backing store answers.
type Readiness interface {
	Ready(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthHandler handles health check and metrics requests.
type HealthHandler struct {
	ready   Readiness
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(ready Readiness) *HealthHandler {
	return &HealthHandler{
		ready:   ready,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz requests.
// If the Accept header asks for "application/openmetrics-text" or
// "text/plain", it returns Prometheus metrics. Otherwise it returns JSON
// readiness.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if wantsMetrics(r.Header.Get("Accept")) {
		h.metrics.ServeHTTP(w, r)
		return
	}
	if err := h.ready.Ready(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// HandleMetrics handles GET /metrics requests.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

func wantsMetrics(accept string) bool {
	return strings.Contains(accept, "application/openmetrics-text") || strings.Contains(accept, "text/plain")
}
