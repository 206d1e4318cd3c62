package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/syncengine/internal/domain/recon"
	"github.com/erp/syncengine/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// ReconciliationRepository implements recon.Repository using GORM
type ReconciliationRepository struct {
	db *gorm.DB
}

// NewReconciliationRepository creates a new GORM-based reconciliation log repository
func NewReconciliationRepository(db *gorm.DB) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

// Save appends an event
func (r *ReconciliationRepository) Save(ctx context.Context, event *recon.Event) error {
	var model models.ReconciliationEventModel
	model.FromDomain(event)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindAll retrieves events newest first with pagination, optionally
// scoped to a vendor.
func (r *ReconciliationRepository) FindAll(ctx context.Context, vendorID string, page, pageSize int) ([]*recon.Event, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ReconciliationEventModel{})
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	var results []models.ReconciliationEventModel
	err := query.Order("timestamp DESC").Offset(offset).Limit(pageSize).Find(&results).Error
	if err != nil {
		return nil, 0, err
	}

	events := make([]*recon.Event, len(results))
	for i := range results {
		events[i] = results[i].ToDomain()
	}
	return events, total, nil
}

// FindRecent retrieves the most recent events, optionally scoped to a vendor
func (r *ReconciliationRepository) FindRecent(ctx context.Context, vendorID string, limit int) ([]*recon.Event, error) {
	query := r.db.WithContext(ctx)
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}

	var results []models.ReconciliationEventModel
	err := query.Order("timestamp DESC").Limit(limit).Find(&results).Error
	if err != nil {
		return nil, err
	}

	events := make([]*recon.Event, len(results))
	for i := range results {
		events[i] = results[i].ToDomain()
	}
	return events, nil
}

// CountByType returns event counts per type, optionally scoped to a vendor
func (r *ReconciliationRepository) CountByType(ctx context.Context, vendorID string) (map[recon.EventType]int64, error) {
	type typeCount struct {
		EventType recon.EventType
		Count     int64
	}

	query := r.db.WithContext(ctx).Model(&models.ReconciliationEventModel{})
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}

	var results []typeCount
	err := query.Select("event_type, count(*) as count").Group("event_type").Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[recon.EventType]int64)
	for _, tc := range results {
		counts[tc.EventType] = tc.Count
	}
	return counts, nil
}

// LastTimestamp returns the timestamp of the newest event, nil when the
// log is empty for the scope.
func (r *ReconciliationRepository) LastTimestamp(ctx context.Context, vendorID string) (*time.Time, error) {
	query := r.db.WithContext(ctx)
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}

	var model models.ReconciliationEventModel
	err := query.Order("timestamp DESC").First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &model.Timestamp, nil
}

// DeleteOlderThan prunes events older than the cutoff
func (r *ReconciliationRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.ReconciliationEventModel{})
	return result.RowsAffected, result.Error
}

// Ensure ReconciliationRepository implements recon.Repository
var _ recon.Repository = (*ReconciliationRepository)(nil)
