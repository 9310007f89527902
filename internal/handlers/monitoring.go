package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/kvcache/internal/monitoring"
	"github.com/charlesng35/kvcache/internal/services"
	"github.com/charlesng35/kvcache/pkg/response"
)

// MonitoringHandler reports process counters next to the cache's current occupancy.
type MonitoringHandler struct {
	module          *monitoring.Module
	cache           *services.CacheService
	metricsEndpoint string
}

// NewMonitoringHandler returns nil when there is no module to report on.
// metricsEndpoint is empty when Prometheus scraping is disabled.
func NewMonitoringHandler(module *monitoring.Module, cache *services.CacheService, metricsEndpoint string) *MonitoringHandler {
	if module == nil {
		return nil
	}
	return &MonitoringHandler{module: module, cache: cache, metricsEndpoint: metricsEndpoint}
}

type monitoringSummary struct {
	Summary    monitoring.Summary    `json:"summary"`
	Occupancy  *services.CacheStats  `json:"occupancy,omitempty"`
	Prometheus prometheusDescription `json:"prometheus"`
}

type prometheusDescription struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint,omitempty"`
}

// Summary handles GET /api/monitoring/summary. A failing store only drops
// the occupancy block; counters are still reported.
func (h *MonitoringHandler) Summary(c *gin.Context) {
	payload := monitoringSummary{
		Summary: h.module.Summary(),
		Prometheus: prometheusDescription{
			Enabled:  h.metricsEndpoint != "",
			Endpoint: h.metricsEndpoint,
		},
	}

	if h.cache != nil {
		if stats, err := h.cache.Stats(requestContext(c)); err == nil {
			payload.Occupancy = &stats
		}
	}

	response.Success(c, http.StatusOK, payload)
}
