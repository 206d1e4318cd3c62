package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/syncengine/internal/domain/sync"
	"github.com/erp/syncengine/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncJobRepository implements sync.JobRepository using GORM
type SyncJobRepository struct {
	db *gorm.DB
}

// NewSyncJobRepository creates a new GORM-based sync job repository
func NewSyncJobRepository(db *gorm.DB) *SyncJobRepository {
	return &SyncJobRepository{db: db}
}

// Save inserts a new job row. A unique-constraint violation on the
// (vendor_id, reference) active-job index surfaces as
// gorm.ErrDuplicatedKey for the service layer to treat as an
// idempotent hit.
func (r *SyncJobRepository) Save(ctx context.Context, job *sync.Job) error {
	var model models.SyncJobModel
	model.FromDomain(job)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Update persists the current state of an existing job
func (r *SyncJobRepository) Update(ctx context.Context, job *sync.Job) error {
	var model models.SyncJobModel
	model.FromDomain(job)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByID retrieves a job by ID, nil when absent
func (r *SyncJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*sync.Job, error) {
	var model models.SyncJobModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByReference finds the non-terminal job for the
// (vendorID, reference) key, nil when there is none.
func (r *SyncJobRepository) FindActiveByReference(ctx context.Context, vendorID, reference string) (*sync.Job, error) {
	var model models.SyncJobModel
	err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND reference = ? AND status IN ?", vendorID, reference, []sync.JobStatus{
			sync.JobStatusPending,
			sync.JobStatusProcessing,
		}).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindPending retrieves pending jobs oldest first, optionally scoped to a vendor
func (r *SyncJobRepository) FindPending(ctx context.Context, vendorID string, limit int) ([]*sync.Job, error) {
	query := r.db.WithContext(ctx).Where("status = ?", sync.JobStatusPending)
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}

	var results []models.SyncJobModel
	err := query.Order("created_at ASC").Limit(limit).Find(&results).Error
	if err != nil {
		return nil, err
	}

	jobs := make([]*sync.Job, len(results))
	for i := range results {
		jobs[i] = results[i].ToDomain()
	}
	return jobs, nil
}

// FindRecent retrieves jobs newest first with pagination, optionally
// scoped to a vendor.
func (r *SyncJobRepository) FindRecent(ctx context.Context, vendorID string, page, pageSize int) ([]*sync.Job, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SyncJobModel{})
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	var results []models.SyncJobModel
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&results).Error
	if err != nil {
		return nil, 0, err
	}

	jobs := make([]*sync.Job, len(results))
	for i := range results {
		jobs[i] = results[i].ToDomain()
	}
	return jobs, total, nil
}

// CountByStatus returns job counts per status, optionally scoped to a vendor
func (r *SyncJobRepository) CountByStatus(ctx context.Context, vendorID string) (map[sync.JobStatus]int64, error) {
	type statusCount struct {
		Status sync.JobStatus
		Count  int64
	}

	query := r.db.WithContext(ctx).Model(&models.SyncJobModel{})
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}

	var results []statusCount
	err := query.Select("status, count(*) as count").Group("status").Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[sync.JobStatus]int64)
	for _, rc := range results {
		counts[rc.Status] = rc.Count
	}
	return counts, nil
}

// CountRetried counts jobs that needed at least one retry, optionally
// scoped to a vendor.
func (r *SyncJobRepository) CountRetried(ctx context.Context, vendorID string) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.SyncJobModel{}).
		Where("retry_count > 0")
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

// AverageLatencyMs returns the mean creation-to-completion latency over
// completed jobs. Timestamp arithmetic is done in Go so the query stays
// portable across postgres and the sqlite test databases.
func (r *SyncJobRepository) AverageLatencyMs(ctx context.Context, vendorID string) (float64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.SyncJobModel{}).
		Where("status = ? AND completed_at IS NOT NULL", sync.JobStatusCompleted)
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}

	type span struct {
		CreatedAt   time.Time
		CompletedAt *time.Time
	}
	var spans []span
	if err := query.Select("created_at, completed_at").Find(&spans).Error; err != nil {
		return 0, err
	}
	if len(spans) == 0 {
		return 0, nil
	}

	var totalMs float64
	for _, s := range spans {
		totalMs += float64(s.CompletedAt.Sub(s.CreatedAt).Milliseconds())
	}
	return totalMs / float64(len(spans)), nil
}

// DeleteExpired removes terminal jobs whose expiry has passed
func (r *SyncJobRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status IN ? AND expires_at < ?", []sync.JobStatus{
			sync.JobStatusCompleted,
			sync.JobStatusFailed,
		}, before).
		Delete(&models.SyncJobModel{})
	return result.RowsAffected, result.Error
}

// Ensure SyncJobRepository implements sync.JobRepository
var _ sync.JobRepository = (*SyncJobRepository)(nil)
