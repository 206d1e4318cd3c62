package sync

import (
	"context"
	"errors"
	"time"

	"github.com/erp/syncengine/internal/domain/sync"
	"github.com/erp/syncengine/internal/infrastructure/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TaskVendorSync is the queue task name for ERP-bound sync work
const TaskVendorSync = "vendor-sync"

// Operations propagated to vendor agents
const (
	OperationCreateOrder   = "create_order"
	OperationStockUpdate   = "stock_update"
	OperationCatalogUpdate = "catalog_update"
)

// correlationTTL bounds how long a correlation ID is remembered
const correlationTTL = 24 * time.Hour

// TaskPayload is the queue payload that drives the sync dispatcher
type TaskPayload struct {
	JobID     uuid.UUID `json:"job_id"`
	VendorID  string    `json:"vendor_id"`
	Operation string    `json:"operation"`
	Reference string    `json:"reference"`
	Payload   []byte    `json:"payload"`
}

// JobServiceConfig holds enqueue policy for new jobs
type JobServiceConfig struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// DefaultJobServiceConfig returns the default enqueue policy
func DefaultJobServiceConfig() JobServiceConfig {
	return JobServiceConfig{
		MaxAttempts: sync.DefaultMaxRetries,
		BackoffBase: sync.DefaultBaseBackoff,
	}
}

// JobService owns the sync job lifecycle: idempotent creation, status
// transitions driven by the worker, and job reads. Store failures are
// logged and surfaced as nil/empty so a store outage degrades rather
// than crashes callers.
type JobService struct {
	repo        sync.JobRepository
	enqueuer    queue.Enqueuer
	idempotency sync.IdempotencyStore
	config      JobServiceConfig
	logger      *zap.Logger
}

// NewJobService creates a new sync job service. The idempotency store
// is optional; pass nil to rely solely on the durable reference check.
func NewJobService(
	repo sync.JobRepository,
	enqueuer queue.Enqueuer,
	idempotency sync.IdempotencyStore,
	config JobServiceConfig,
	logger *zap.Logger,
) *JobService {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultJobServiceConfig().MaxAttempts
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = DefaultJobServiceConfig().BackoffBase
	}

	return &JobService{
		repo:        repo,
		enqueuer:    enqueuer,
		idempotency: idempotency,
		config:      config,
		logger:      logger,
	}
}

// CreateOrderJob ingests an order-creation event for a vendor
func (s *JobService) CreateOrderJob(ctx context.Context, vendorID, reference string, payload []byte, correlationID string) *sync.Job {
	return s.createJob(ctx, vendorID, OperationCreateOrder, reference, payload, correlationID)
}

// CreateStockUpdateJob ingests a stock-update event for a vendor
func (s *JobService) CreateStockUpdateJob(ctx context.Context, vendorID, reference string, payload []byte, correlationID string) *sync.Job {
	return s.createJob(ctx, vendorID, OperationStockUpdate, reference, payload, correlationID)
}

// CreateCatalogUpdateJob ingests a catalog-change event for a vendor
func (s *JobService) CreateCatalogUpdateJob(ctx context.Context, vendorID, reference string, payload []byte, correlationID string) *sync.Job {
	return s.createJob(ctx, vendorID, OperationCatalogUpdate, reference, payload, correlationID)
}

// createJob persists a job and enqueues it for dispatch. A pending or
// processing job for the same (vendorID, reference) is returned as-is
// with no new enqueue, so retried inbound calls never cause duplicate
// downstream writes. A prior job that already completed or failed does
// not block a fresh one; re-sync is permitted.
func (s *JobService) createJob(ctx context.Context, vendorID, operation, reference string, payload []byte, correlationID string) *sync.Job {
	if correlationID != "" && s.idempotency != nil {
		fresh, err := s.idempotency.MarkProcessed(ctx, correlationID, correlationTTL)
		if err != nil {
			// Cache trouble must not block ingest; the durable check below governs.
			s.logger.Warn("idempotency cache unavailable",
				zap.String("correlation_id", correlationID),
				zap.Error(err),
			)
		} else if !fresh {
			s.logger.Debug("duplicate correlation id, returning active job",
				zap.String("correlation_id", correlationID),
				zap.String("vendor_id", vendorID),
			)
			return s.findActive(ctx, vendorID, reference)
		}
	}

	if existing := s.findActive(ctx, vendorID, reference); existing != nil {
		s.logger.Debug("active job already exists, skipping enqueue",
			zap.String("vendor_id", vendorID),
			zap.String("reference", reference),
			zap.String("job_id", existing.ID.String()),
		)
		return existing
	}

	job, err := sync.NewJob(vendorID, operation, reference, payload)
	if err != nil {
		s.logger.Warn("rejected sync job",
			zap.String("vendor_id", vendorID),
			zap.String("reference", reference),
			zap.Error(err),
		)
		return nil
	}
	job.MaxRetries = s.config.MaxAttempts

	if err := s.repo.Save(ctx, job); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent duplicate won the insert race; treat as an idempotent hit.
			return s.findActive(ctx, vendorID, reference)
		}
		s.logger.Error("failed to persist sync job",
			zap.String("vendor_id", vendorID),
			zap.String("reference", reference),
			zap.Error(err),
		)
		return nil
	}

	s.enqueue(ctx, job, queue.Options{
		MaxAttempts: s.config.MaxAttempts,
		BackoffBase: s.config.BackoffBase,
	})
	return job
}

// Enqueue submits an existing job's work to the queue. Used for job
// creation and for manual dead-letter retries.
func (s *JobService) enqueue(ctx context.Context, job *sync.Job, opts queue.Options) {
	payload, err := encodeTaskPayload(TaskPayload{
		JobID:     job.ID,
		VendorID:  job.VendorID,
		Operation: job.Operation,
		Reference: job.Reference,
		Payload:   job.Payload,
	})
	if err != nil {
		s.logger.Error("failed to encode task payload",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return
	}

	if _, err := s.enqueuer.Enqueue(ctx, TaskVendorSync, payload, opts); err != nil {
		s.logger.Error("failed to enqueue sync job",
			zap.String("job_id", job.ID.String()),
			zap.String("vendor_id", job.VendorID),
			zap.Error(err),
		)
	}
}

// MarkProcessing transitions a job to processing, nil when the job is
// missing or terminal.
func (s *JobService) MarkProcessing(ctx context.Context, jobID uuid.UUID) *sync.Job {
	job := s.GetJob(ctx, jobID)
	if job == nil {
		return nil
	}

	if err := job.MarkProcessing(); err != nil {
		s.logger.Warn("rejected processing transition",
			zap.String("job_id", jobID.String()),
			zap.String("status", job.Status.String()),
			zap.Error(err),
		)
		return nil
	}
	return s.update(ctx, job)
}

// MarkCompleted transitions a job to completed and records the external
// system's reference. Terminal jobs are left untouched.
func (s *JobService) MarkCompleted(ctx context.Context, jobID uuid.UUID, externalReference string) *sync.Job {
	job := s.GetJob(ctx, jobID)
	if job == nil {
		return nil
	}

	if err := job.MarkCompleted(externalReference); err != nil {
		s.logger.Warn("rejected completed transition",
			zap.String("job_id", jobID.String()),
			zap.String("status", job.Status.String()),
			zap.Error(err),
		)
		return nil
	}
	return s.update(ctx, job)
}

// MarkFailed transitions a job to failed with error detail and retry
// bookkeeping. Whether the job is re-enqueued is the queue's decision,
// not this method's.
func (s *JobService) MarkFailed(ctx context.Context, jobID uuid.UUID, errMsg, errStack string, retryCount int, nextRetryAt *time.Time) *sync.Job {
	job := s.GetJob(ctx, jobID)
	if job == nil {
		return nil
	}

	if err := job.MarkFailed(errMsg, errStack, retryCount, nextRetryAt); err != nil {
		s.logger.Warn("rejected failed transition",
			zap.String("job_id", jobID.String()),
			zap.String("status", job.Status.String()),
			zap.Error(err),
		)
		return nil
	}
	return s.update(ctx, job)
}

// GetJob retrieves a job, nil+warn when missing
func (s *JobService) GetJob(ctx context.Context, jobID uuid.UUID) *sync.Job {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		s.logger.Error("failed to load sync job",
			zap.String("job_id", jobID.String()),
			zap.Error(err),
		)
		return nil
	}
	if job == nil {
		s.logger.Warn("sync job not found", zap.String("job_id", jobID.String()))
		return nil
	}
	return job
}

// GetPendingJobs retrieves pending jobs, optionally scoped to a vendor
func (s *JobService) GetPendingJobs(ctx context.Context, vendorID string, limit int) []*sync.Job {
	if limit <= 0 {
		limit = 50
	}
	jobs, err := s.repo.FindPending(ctx, vendorID, limit)
	if err != nil {
		s.logger.Error("failed to load pending jobs",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return []*sync.Job{}
	}
	return jobs
}

// GetRecentJobs retrieves jobs newest first with pagination
func (s *JobService) GetRecentJobs(ctx context.Context, vendorID string, page, pageSize int) ([]*sync.Job, int64) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	jobs, total, err := s.repo.FindRecent(ctx, vendorID, page, pageSize)
	if err != nil {
		s.logger.Error("failed to load recent jobs",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return []*sync.Job{}, 0
	}
	return jobs, total
}

func (s *JobService) findActive(ctx context.Context, vendorID, reference string) *sync.Job {
	job, err := s.repo.FindActiveByReference(ctx, vendorID, reference)
	if err != nil {
		s.logger.Error("failed to look up active job",
			zap.String("vendor_id", vendorID),
			zap.String("reference", reference),
			zap.Error(err),
		)
		return nil
	}
	return job
}

func (s *JobService) update(ctx context.Context, job *sync.Job) *sync.Job {
	if err := s.repo.Update(ctx, job); err != nil {
		s.logger.Error("failed to update sync job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return nil
	}
	return job
}
