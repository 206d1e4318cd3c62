package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping() error
}

// HealthHandler handles liveness and readiness checks
type HealthHandler struct {
	BaseHandler
	db      Pinger
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version}
}

// Check reports service health including database reachability
func (h *HealthHandler) Check(c *gin.Context) {
	status := "ok"
	dbStatus := "up"
	code := http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			status = "degraded"
			dbStatus = "down"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status":   status,
		"version":  h.version,
		"database": dbStatus,
	})
}
