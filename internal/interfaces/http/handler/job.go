package handler

import (
	"encoding/json"
	"strconv"
	"time"

	appsync "github.com/erp/syncengine/internal/application/sync"
	"github.com/erp/syncengine/internal/domain/sync"
	"github.com/erp/syncengine/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// JobHandler handles sync job HTTP requests
type JobHandler struct {
	BaseHandler
	jobs *appsync.JobService
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobs *appsync.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// CreateJobRequest is the payload for sync job creation
type CreateJobRequest struct {
	VendorID      string          `json:"vendor_id" binding:"required"`
	Operation     string          `json:"operation" binding:"required,oneof=create_order stock_update catalog_update"`
	Reference     string          `json:"reference" binding:"required"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlation_id"`
}

// CompleteJobRequest is the vendor callback payload for a finished job
type CompleteJobRequest struct {
	ExternalReference string `json:"external_reference"`
}

// FailJobRequest is the vendor callback payload for a failed job
type FailJobRequest struct {
	Error      string `json:"error" binding:"required"`
	ErrorStack string `json:"error_stack"`
}

// JobResponse is the API view of a sync job
type JobResponse struct {
	ID                string     `json:"id"`
	VendorID          string     `json:"vendor_id"`
	Operation         string     `json:"operation"`
	Reference         string     `json:"reference"`
	Status            string     `json:"status"`
	RetryCount        int        `json:"retry_count"`
	MaxRetries        int        `json:"max_retries"`
	NextRetryAt       *time.Time `json:"next_retry_at,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	ExternalReference string     `json:"external_reference,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

func toJobResponse(j *sync.Job) JobResponse {
	return JobResponse{
		ID:                j.ID.String(),
		VendorID:          j.VendorID,
		Operation:         j.Operation,
		Reference:         j.Reference,
		Status:            j.Status.String(),
		RetryCount:        j.RetryCount,
		MaxRetries:        j.MaxRetries,
		NextRetryAt:       j.NextRetryAt,
		ErrorMessage:      j.ErrorMessage,
		ExternalReference: j.ExternalReference,
		CreatedAt:         j.CreatedAt,
		StartedAt:         j.StartedAt,
		CompletedAt:       j.CompletedAt,
	}
}

func toJobResponses(jobs []*sync.Job) []JobResponse {
	responses := make([]JobResponse, len(jobs))
	for i, j := range jobs {
		responses[i] = toJobResponse(j)
	}
	return responses
}

// Create ingests a commerce event as a sync job. Resubmitting the same
// (vendor, reference) while a job is still in flight returns the
// existing job instead of creating a duplicate.
func (h *JobHandler) Create(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	var job *sync.Job
	switch req.Operation {
	case appsync.OperationStockUpdate:
		job = h.jobs.CreateStockUpdateJob(c.Request.Context(), req.VendorID, req.Reference, req.Payload, req.CorrelationID)
	case appsync.OperationCatalogUpdate:
		job = h.jobs.CreateCatalogUpdateJob(c.Request.Context(), req.VendorID, req.Reference, req.Payload, req.CorrelationID)
	default:
		job = h.jobs.CreateOrderJob(c.Request.Context(), req.VendorID, req.Reference, req.Payload, req.CorrelationID)
	}

	if job == nil {
		h.BadRequest(c, "Job creation failed")
		return
	}
	h.Created(c, toJobResponse(job))
}

// Get retrieves one job by ID
func (h *JobHandler) Get(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	job := h.jobs.GetJob(c.Request.Context(), jobID)
	if job == nil {
		h.NotFound(c, "Job not found")
		return
	}
	h.Success(c, toJobResponse(job))
}

// List retrieves recent jobs, paginated and optionally vendor-scoped.
// With status=pending only pending jobs are returned.
func (h *JobHandler) List(c *gin.Context) {
	vendorID := c.Query("vendor_id")

	if c.Query("status") == "pending" {
		limit := 50
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		jobs := h.jobs.GetPendingJobs(c.Request.Context(), vendorID, limit)
		h.Success(c, toJobResponses(jobs))
		return
	}

	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid pagination parameters")
		return
	}
	req.Normalize()

	jobs, total := h.jobs.GetRecentJobs(c.Request.Context(), vendorID, req.Page, req.PageSize)
	h.SuccessWithMeta(c, toJobResponses(jobs), total, req.Page, req.PageSize)
}

// Complete is the vendor callback reporting a job finished downstream
func (h *JobHandler) Complete(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	var req CompleteJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	job := h.jobs.MarkCompleted(c.Request.Context(), jobID, req.ExternalReference)
	if job == nil {
		h.Conflict(c, "Job missing or already settled")
		return
	}
	h.Success(c, toJobResponse(job))
}

// Fail is the vendor callback reporting a job failed downstream
func (h *JobHandler) Fail(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	var req FailJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	existing := h.jobs.GetJob(c.Request.Context(), jobID)
	if existing == nil {
		h.NotFound(c, "Job not found")
		return
	}

	job := h.jobs.MarkFailed(c.Request.Context(), jobID, req.Error, req.ErrorStack, existing.RetryCount, nil)
	if job == nil {
		h.Conflict(c, "Job missing or already settled")
		return
	}
	h.Success(c, toJobResponse(job))
}
