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

// DeadLetterRepository implements sync.DeadLetterRepository using GORM
type DeadLetterRepository struct {
	db *gorm.DB
}

// NewDeadLetterRepository creates a new GORM-based dead letter repository
func NewDeadLetterRepository(db *gorm.DB) *DeadLetterRepository {
	return &DeadLetterRepository{db: db}
}

// Save inserts a new entry
func (r *DeadLetterRepository) Save(ctx context.Context, entry *sync.DeadLetterEntry) error {
	var model models.DeadLetterModel
	model.FromDomain(entry)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Update persists the current state of an existing entry
func (r *DeadLetterRepository) Update(ctx context.Context, entry *sync.DeadLetterEntry) error {
	var model models.DeadLetterModel
	model.FromDomain(entry)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByID retrieves an entry by ID, nil when absent
func (r *DeadLetterRepository) FindByID(ctx context.Context, id uuid.UUID) (*sync.DeadLetterEntry, error) {
	var model models.DeadLetterModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindUnresolved retrieves unresolved entries newest first with
// pagination, optionally scoped to a vendor.
func (r *DeadLetterRepository) FindUnresolved(ctx context.Context, vendorID string, page, pageSize int) ([]*sync.DeadLetterEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.DeadLetterModel{}).Where("resolved = ?", false)
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	var results []models.DeadLetterModel
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&results).Error
	if err != nil {
		return nil, 0, err
	}

	entries := make([]*sync.DeadLetterEntry, len(results))
	for i := range results {
		entries[i] = results[i].ToDomain()
	}
	return entries, total, nil
}

// CountUnresolved counts unresolved entries, optionally scoped to a vendor
func (r *DeadLetterRepository) CountUnresolved(ctx context.Context, vendorID string) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.DeadLetterModel{}).Where("resolved = ?", false)
	if vendorID != "" {
		query = query.Where("vendor_id = ?", vendorID)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

// DeleteResolvedOlderThan removes resolved entries created before the
// cutoff. Unresolved entries are never auto-deleted.
func (r *DeadLetterRepository) DeleteResolvedOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("resolved = ? AND created_at < ?", true, before).
		Delete(&models.DeadLetterModel{})
	return result.RowsAffected, result.Error
}

// Ensure DeadLetterRepository implements sync.DeadLetterRepository
var _ sync.DeadLetterRepository = (*DeadLetterRepository)(nil)
