package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskModel is the persistence model for queued tasks
type TaskModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key"`
	Name          string     `gorm:"type:varchar(100);not null;index"`
	Payload       []byte     `gorm:"type:bytea"`
	Status        TaskStatus `gorm:"type:varchar(20);not null;index:idx_queue_tasks_due,priority:1"`
	Attempts      int        `gorm:"not null;default:0"`
	MaxAttempts   int        `gorm:"not null;default:5"`
	BackoffBaseMs int64      `gorm:"not null"`
	NextRunAt     time.Time  `gorm:"not null;index:idx_queue_tasks_due,priority:2"`
	LastError     string     `gorm:"type:text"`
	CompletedAt   *time.Time `gorm:"index"`
	CreatedAt     time.Time  `gorm:"not null"`
	UpdatedAt     time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TaskModel) TableName() string {
	return "queue_tasks"
}

// ToDomain converts the persistence model to a domain Task
func (m *TaskModel) ToDomain() *Task {
	return &Task{
		ID:          m.ID,
		Name:        m.Name,
		Payload:     m.Payload,
		Status:      m.Status,
		Attempts:    m.Attempts,
		MaxAttempts: m.MaxAttempts,
		BackoffBase: time.Duration(m.BackoffBaseMs) * time.Millisecond,
		NextRunAt:   m.NextRunAt,
		LastError:   m.LastError,
		CompletedAt: m.CompletedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Task
func (m *TaskModel) FromDomain(t *Task) {
	m.ID = t.ID
	m.Name = t.Name
	m.Payload = t.Payload
	m.Status = t.Status
	m.Attempts = t.Attempts
	m.MaxAttempts = t.MaxAttempts
	m.BackoffBaseMs = t.BackoffBase.Milliseconds()
	m.NextRunAt = t.NextRunAt
	m.LastError = t.LastError
	m.CompletedAt = t.CompletedAt
	m.CreatedAt = t.CreatedAt
	m.UpdatedAt = t.UpdatedAt
}

// GormTaskRepository implements Repository using GORM
type GormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a new GORM-based task repository
func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

// Save inserts a new task
func (r *GormTaskRepository) Save(ctx context.Context, task *Task) error {
	var model TaskModel
	model.FromDomain(task)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Update persists the current state of an existing task
func (r *GormTaskRepository) Update(ctx context.Context, task *Task) error {
	task.UpdatedAt = time.Now()
	var model TaskModel
	model.FromDomain(task)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByID retrieves a task by ID
func (r *GormTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	var model TaskModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindDue retrieves pending and retryable failed tasks whose scheduled
// run time has passed, oldest first.
func (r *GormTaskRepository) FindDue(ctx context.Context, before time.Time, limit int) ([]*Task, error) {
	var models []TaskModel
	err := r.db.WithContext(ctx).
		Where("status IN ? AND next_run_at <= ?", []TaskStatus{TaskStatusPending, TaskStatusFailed}, before).
		Order("next_run_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	tasks := make([]*Task, len(models))
	for i := range models {
		tasks[i] = models[i].ToDomain()
	}
	return tasks, nil
}

// ClaimProcessing atomically marks due tasks as processing and returns
// them. Uses FOR UPDATE SKIP LOCKED so concurrent workers never claim
// the same task twice.
func (r *GormTaskRepository) ClaimProcessing(ctx context.Context, ids []uuid.UUID) ([]*Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var models []TaskModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Options:  "SKIP LOCKED",
			}).
			Where("id IN ? AND status IN ?", ids, []TaskStatus{
				TaskStatusPending,
				TaskStatusFailed,
			}).
			Find(&models).Error; err != nil {
			return err
		}

		if len(models) == 0 {
			return nil
		}

		claimedIDs := make([]uuid.UUID, len(models))
		for i, m := range models {
			claimedIDs[i] = m.ID
		}

		now := time.Now()
		if err := tx.Model(&TaskModel{}).
			Where("id IN ?", claimedIDs).
			Updates(map[string]interface{}{
				"status":     TaskStatusProcessing,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		for i := range models {
			models[i].Status = TaskStatusProcessing
			models[i].UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	tasks := make([]*Task, len(models))
	for i := range models {
		tasks[i] = models[i].ToDomain()
	}
	return tasks, nil
}

// DeleteCompletedOlderThan prunes completed tasks past the retention window.
// Dead and failed tasks are retained for diagnostics.
func (r *GormTaskRepository) DeleteCompletedOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND completed_at < ?", TaskStatusCompleted, before).
		Delete(&TaskModel{})
	return result.RowsAffected, result.Error
}

// CountByStatus returns task counts per status
func (r *GormTaskRepository) CountByStatus(ctx context.Context) (map[TaskStatus]int64, error) {
	type statusCount struct {
		Status TaskStatus
		Count  int64
	}

	var results []statusCount
	err := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[TaskStatus]int64)
	for _, rc := range results {
		counts[rc.Status] = rc.Count
	}
	return counts, nil
}

// Ensure GormTaskRepository implements Repository
var _ Repository = (*GormTaskRepository)(nil)
