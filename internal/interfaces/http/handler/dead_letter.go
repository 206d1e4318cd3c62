package handler

import (
	"encoding/json"
	"time"

	appsync "github.com/erp/syncengine/internal/application/sync"
	"github.com/erp/syncengine/internal/domain/sync"
	"github.com/erp/syncengine/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DeadLetterHandler handles dead letter queue HTTP requests
type DeadLetterHandler struct {
	BaseHandler
	dlq *appsync.DeadLetterService
}

// NewDeadLetterHandler creates a new dead letter handler
func NewDeadLetterHandler(dlq *appsync.DeadLetterService) *DeadLetterHandler {
	return &DeadLetterHandler{dlq: dlq}
}

// ResolveRequest is the payload for resolving an entry
type ResolveRequest struct {
	ResolvedBy string `json:"resolved_by" binding:"required"`
}

// CleanupRequest is the payload for cleaning up resolved entries
type CleanupRequest struct {
	OlderThanDays int `json:"older_than_days"`
}

// DeadLetterResponse is the API view of a dead letter entry. The list
// view omits the payload and error stack; the detail view carries both.
type DeadLetterResponse struct {
	ID            string          `json:"id"`
	OriginalJobID *string         `json:"original_job_id,omitempty"`
	VendorID      string          `json:"vendor_id"`
	Operation     string          `json:"operation"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	FailureReason string          `json:"failure_reason"`
	FailureStack  string          `json:"failure_stack,omitempty"`
	AttemptCount  int             `json:"attempt_count"`
	LastAttemptAt time.Time       `json:"last_attempt_at"`
	Resolved      bool            `json:"resolved"`
	ResolvedBy    string          `json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toDeadLetterResponse(e *sync.DeadLetterEntry, withDetail bool) DeadLetterResponse {
	resp := DeadLetterResponse{
		ID:            e.ID.String(),
		VendorID:      e.VendorID,
		Operation:     e.Operation,
		FailureReason: e.FailureReason,
		AttemptCount:  e.AttemptCount,
		LastAttemptAt: e.LastAttemptAt,
		Resolved:      e.Resolved,
		ResolvedBy:    e.ResolvedBy,
		ResolvedAt:    e.ResolvedAt,
		CreatedAt:     e.CreatedAt,
	}
	if e.OriginalJobID != nil {
		id := e.OriginalJobID.String()
		resp.OriginalJobID = &id
	}
	if withDetail {
		resp.Payload = e.Payload
		resp.FailureStack = e.FailureStack
	}
	return resp
}

// List retrieves unresolved entries, paginated
func (h *DeadLetterHandler) List(c *gin.Context) {
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid pagination parameters")
		return
	}
	req.Normalize()

	entries, total := h.dlq.GetUnresolved(c.Request.Context(), c.Query("vendor_id"), req.Page, req.PageSize)
	responses := make([]DeadLetterResponse, len(entries))
	for i, e := range entries {
		responses[i] = toDeadLetterResponse(e, false)
	}
	h.SuccessWithMeta(c, responses, total, req.Page, req.PageSize)
}

// Get retrieves one entry with payload and error stack
func (h *DeadLetterHandler) Get(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid entry ID")
		return
	}

	entry := h.dlq.GetDetails(c.Request.Context(), entryID)
	if entry == nil {
		h.NotFound(c, "Dead letter entry not found")
		return
	}
	h.Success(c, toDeadLetterResponse(entry, true))
}

// Retry re-submits an entry's payload to the sync queue
func (h *DeadLetterHandler) Retry(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid entry ID")
		return
	}

	if !h.dlq.Retry(c.Request.Context(), entryID) {
		h.Conflict(c, "Entry missing, resolved, or retry failed")
		return
	}
	h.Success(c, gin.H{"entry_id": entryID.String(), "requeued": true})
}

// Resolve marks an entry handled by an operator
func (h *DeadLetterHandler) Resolve(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid entry ID")
		return
	}

	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	entry := h.dlq.Resolve(c.Request.Context(), entryID, req.ResolvedBy)
	if entry == nil {
		h.Conflict(c, "Entry missing or already resolved")
		return
	}
	h.Success(c, toDeadLetterResponse(entry, false))
}

// Cleanup deletes resolved entries older than the requested age
func (h *DeadLetterHandler) Cleanup(c *gin.Context) {
	var req CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.BadRequest(c, "Invalid request body")
		return
	}

	olderThan := time.Duration(req.OlderThanDays) * 24 * time.Hour
	deleted := h.dlq.Cleanup(c.Request.Context(), olderThan)
	h.Success(c, gin.H{"deleted": deleted})
}

// Count returns the number of unresolved entries
func (h *DeadLetterHandler) Count(c *gin.Context) {
	h.Success(c, gin.H{"unresolved": h.dlq.GetUnresolvedCount(c.Request.Context(), c.Query("vendor_id"))})
}
