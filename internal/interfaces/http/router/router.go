package router

import (
	"net/http"

	"github.com/erp/syncengine/internal/interfaces/http/handler"
	"github.com/erp/syncengine/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers bundles every HTTP handler the router wires up
type Handlers struct {
	Agent          *handler.AgentHandler
	Job            *handler.JobHandler
	DeadLetter     *handler.DeadLetterHandler
	Breaker        *handler.BreakerHandler
	Metrics        *handler.MetricsHandler
	Reconciliation *handler.ReconciliationHandler
	Health         *handler.HealthHandler
}

// New builds the gin engine with all routes under /api/v1
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		middleware.Recovery(logger),
	)

	engine.GET("/health", h.Health.Check)

	api := engine.Group("/api/v1")
	{
		agents := api.Group("/agents")
		{
			agents.POST("", h.Agent.Register)
			agents.GET("", h.Agent.List)
			agents.GET("/stats", h.Agent.Stats)
			agents.GET("/:vendorId", h.Agent.Get)
			agents.POST("/:vendorId/heartbeat", h.Agent.Heartbeat)
			agents.DELETE("/:vendorId", h.Agent.Deregister)
		}

		jobs := api.Group("/jobs")
		{
			jobs.POST("", h.Job.Create)
			jobs.GET("", h.Job.List)
			jobs.GET("/:id", h.Job.Get)
			jobs.POST("/:id/complete", h.Job.Complete)
			jobs.POST("/:id/fail", h.Job.Fail)
		}

		dlq := api.Group("/dlq")
		{
			dlq.GET("", h.DeadLetter.List)
			dlq.GET("/count", h.DeadLetter.Count)
			dlq.POST("/cleanup", h.DeadLetter.Cleanup)
			dlq.GET("/:id", h.DeadLetter.Get)
			dlq.POST("/:id/retry", h.DeadLetter.Retry)
			dlq.POST("/:id/resolve", h.DeadLetter.Resolve)
		}

		breakers := api.Group("/breakers")
		{
			breakers.GET("", h.Breaker.List)
			breakers.POST("/:vendorId/:apiType/reset", h.Breaker.Reset)
		}

		metrics := api.Group("/metrics")
		{
			metrics.GET("/sync", h.Metrics.Sync)
			metrics.GET("/reconciliation", h.Metrics.Reconciliation)
			metrics.GET("/agents", h.Metrics.Agents)
		}

		recon := api.Group("/reconciliation")
		{
			recon.GET("/events", h.Reconciliation.List)
			recon.POST("/events", h.Reconciliation.Record)
		}
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   gin.H{"code": "NOT_FOUND", "message": "Route not found"},
		})
	})

	return engine
}
