package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler serves a Prometheus registry in exposition format.
type MetricsHandler struct {
	exposition http.Handler
}

// NewMetricsHandler creates a MetricsHandler over gatherer.
func NewMetricsHandler(gatherer prometheus.Gatherer) *MetricsHandler {
	return &MetricsHandler{
		exposition: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}
}

// Metrics handles GET /metrics.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	h.exposition.ServeHTTP(w, r)
}
