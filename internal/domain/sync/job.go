package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle status of a sync job
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// IsValid returns true if the status is a known job status
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further status transitions are allowed
// except an externally driven retry out of FAILED.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// Default retry configuration for sync jobs
const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = 60 * time.Second
	DefaultJobTTL      = 30 * 24 * time.Hour
)

// Job represents one ERP-bound operation tracked from creation to a
// terminal state. At most one non-terminal job may exist per
// (vendor_id, reference) pair.
type Job struct {
	ID                uuid.UUID
	VendorID          string
	Operation         string
	Reference         string
	Payload           []byte
	Status            JobStatus
	RetryCount        int
	MaxRetries        int
	NextRetryAt       *time.Time
	ErrorMessage      string
	ErrorStack        string
	ExternalReference string
	CreatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	ExpiresAt         *time.Time
}

// NewJob creates a new pending sync job
func NewJob(vendorID, operation, reference string, payload []byte) (*Job, error) {
	if vendorID == "" {
		return nil, ErrVendorIDRequired
	}
	if operation == "" {
		return nil, ErrOperationRequired
	}
	if reference == "" {
		return nil, ErrReferenceRequired
	}

	now := time.Now()
	expires := now.Add(DefaultJobTTL)
	return &Job{
		ID:         uuid.New(),
		VendorID:   vendorID,
		Operation:  operation,
		Reference:  reference,
		Payload:    payload,
		Status:     JobStatusPending,
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  now,
		ExpiresAt:  &expires,
	}, nil
}

// MarkProcessing transitions the job from pending (or failed, for an
// externally driven retry) to processing.
func (j *Job) MarkProcessing() error {
	if j.Status == JobStatusCompleted {
		return ErrJobTerminal
	}
	if j.Status == JobStatusProcessing {
		return ErrInvalidTransition
	}
	now := time.Now()
	j.Status = JobStatusProcessing
	j.StartedAt = &now
	return nil
}

// MarkCompleted transitions the job to completed and records the
// external system's reference for the written entity.
func (j *Job) MarkCompleted(externalReference string) error {
	if j.Status.IsTerminal() {
		return ErrJobTerminal
	}
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.ExternalReference = externalReference
	return nil
}

// MarkFailed transitions the job to failed and records retry bookkeeping.
// It does not decide whether the job is re-enqueued; that is the queue's call.
func (j *Job) MarkFailed(errMsg, errStack string, retryCount int, nextRetryAt *time.Time) error {
	if j.Status.IsTerminal() {
		return ErrJobTerminal
	}
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.ErrorStack = errStack
	j.RetryCount = retryCount
	j.NextRetryAt = nextRetryAt
	return nil
}

// Latency returns the wall-clock duration between creation and completion,
// or false if the job never completed.
func (j *Job) Latency() (time.Duration, bool) {
	if j.CompletedAt == nil {
		return 0, false
	}
	return j.CompletedAt.Sub(j.CreatedAt), true
}

// JobRepository defines persistence operations for sync jobs
type JobRepository interface {
	// Save inserts a new job row
	Save(ctx context.Context, job *Job) error
	// Update persists the current state of an existing job
	Update(ctx context.Context, job *Job) error
	// FindByID retrieves a job by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Job, error)
	// FindActiveByReference finds a non-terminal job for the (vendorID, reference) key
	FindActiveByReference(ctx context.Context, vendorID, reference string) (*Job, error)
	// FindPending retrieves pending jobs, optionally scoped to a vendor
	FindPending(ctx context.Context, vendorID string, limit int) ([]*Job, error)
	// FindRecent retrieves jobs ordered by creation time descending, paginated
	FindRecent(ctx context.Context, vendorID string, page, pageSize int) ([]*Job, int64, error)
	// CountByStatus returns job counts per status, optionally scoped to a vendor
	CountByStatus(ctx context.Context, vendorID string) (map[JobStatus]int64, error)
	// CountRetried counts jobs that needed at least one retry
	CountRetried(ctx context.Context, vendorID string) (int64, error)
	// AverageLatencyMs returns the mean completion latency over completed jobs
	AverageLatencyMs(ctx context.Context, vendorID string) (float64, error)
	// DeleteExpired removes terminal jobs whose expires_at has passed
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
