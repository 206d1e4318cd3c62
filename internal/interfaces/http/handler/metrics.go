package handler

import (
	"github.com/erp/syncengine/internal/application/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsHandler handles metrics HTTP requests
type MetricsHandler struct {
	BaseHandler
	service *metrics.Service
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(service *metrics.Service) *MetricsHandler {
	return &MetricsHandler{service: service}
}

// Sync reports job throughput and latency, optionally vendor-scoped
func (h *MetricsHandler) Sync(c *gin.Context) {
	vendorID := c.Query("vendor_id")
	h.Success(c, h.service.GetSyncMetrics(c.Request.Context(), vendorID))
}

// Reconciliation reports reconciliation log metrics
func (h *MetricsHandler) Reconciliation(c *gin.Context) {
	vendorID := c.Query("vendor_id")
	h.Success(c, h.service.GetReconciliationMetrics(c.Request.Context(), vendorID))
}

// Agents reports per-agent health plus fleet totals
func (h *MetricsHandler) Agents(c *gin.Context) {
	h.Success(c, h.service.GetAgentHealth(c.Request.Context()))
}
