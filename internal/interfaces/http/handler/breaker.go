package handler

import (
	"github.com/erp/syncengine/internal/infrastructure/breaker"
	"github.com/gin-gonic/gin"
)

// BreakerHandler handles circuit breaker HTTP requests
type BreakerHandler struct {
	BaseHandler
	registry *breaker.Registry
}

// NewBreakerHandler creates a new breaker handler
func NewBreakerHandler(registry *breaker.Registry) *BreakerHandler {
	return &BreakerHandler{registry: registry}
}

// List snapshots every breaker's state and rolling counts
func (h *BreakerHandler) List(c *gin.Context) {
	h.Success(c, h.registry.GetStatus())
}

// Reset forces the breaker for a (vendor, API type) back to closed
func (h *BreakerHandler) Reset(c *gin.Context) {
	vendorID := c.Param("vendorId")
	apiType := c.Param("apiType")

	h.registry.Reset(vendorID, apiType)
	h.Success(c, gin.H{
		"vendor_id": vendorID,
		"api_type":  apiType,
		"state":     breaker.StateClosed.String(),
	})
}
