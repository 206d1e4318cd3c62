package handler

import (
	"encoding/json"
	"time"

	apprecon "github.com/erp/syncengine/internal/application/recon"
	"github.com/erp/syncengine/internal/domain/recon"
	"github.com/erp/syncengine/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// ReconciliationHandler handles reconciliation log HTTP requests
type ReconciliationHandler struct {
	BaseHandler
	log *apprecon.LogService
}

// NewReconciliationHandler creates a new reconciliation handler
func NewReconciliationHandler(log *apprecon.LogService) *ReconciliationHandler {
	return &ReconciliationHandler{log: log}
}

// RecordEventRequest is the payload for appending a reconciliation event
type RecordEventRequest struct {
	VendorID   string          `json:"vendor_id" binding:"required"`
	EventType  string          `json:"event_type" binding:"required,oneof=DRIFT_DETECTED DRIFT_RESOLVED FULL_CHECKSUM INCREMENTAL_SYNC"`
	DurationMs int64           `json:"duration_ms"`
	Details    json.RawMessage `json:"details"`
}

// EventResponse is the API view of a reconciliation event
type EventResponse struct {
	ID         string          `json:"id"`
	VendorID   string          `json:"vendor_id"`
	EventType  string          `json:"event_type"`
	DurationMs int64           `json:"duration_ms"`
	Timestamp  time.Time       `json:"timestamp"`
	Details    json.RawMessage `json:"details,omitempty"`
}

func toEventResponse(e *recon.Event) EventResponse {
	return EventResponse{
		ID:         e.ID.String(),
		VendorID:   e.VendorID,
		EventType:  e.EventType.String(),
		DurationMs: e.DurationMs,
		Timestamp:  e.Timestamp,
		Details:    e.Details,
	}
}

// Record appends one reconciliation event
func (h *ReconciliationHandler) Record(c *gin.Context) {
	var req RecordEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	event := h.log.RecordEvent(c.Request.Context(), req.VendorID, recon.EventType(req.EventType), req.DurationMs, req.Details)
	if event == nil {
		h.BadRequest(c, "Event rejected")
		return
	}
	h.Created(c, toEventResponse(event))
}

// List retrieves events newest first, paginated and optionally vendor-scoped
func (h *ReconciliationHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid pagination parameters")
		return
	}
	req.Normalize()

	vendorID := c.Query("vendor_id")
	events, total := h.log.List(c.Request.Context(), vendorID, req.Page, req.PageSize)

	responses := make([]EventResponse, len(events))
	for i, e := range events {
		responses[i] = toEventResponse(e)
	}
	h.SuccessWithMeta(c, responses, total, req.Page, req.PageSize)
}
