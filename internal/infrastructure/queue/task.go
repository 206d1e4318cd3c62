package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the status of a queued task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusProcessing TaskStatus = "PROCESSING"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusFailed     TaskStatus = "FAILED"
	TaskStatusDead       TaskStatus = "DEAD"
)

// Default queue policy
const (
	DefaultMaxAttempts = 5
	DefaultBackoffBase = 60 * time.Second
)

// Task is one unit of deferred work. The queue guarantees each task is
// claimed by exactly one worker at a time, not exactly-once execution;
// handlers must tolerate duplicate delivery.
type Task struct {
	ID          uuid.UUID
	Name        string
	Payload     []byte
	Status      TaskStatus
	Attempts    int
	MaxAttempts int
	BackoffBase time.Duration
	NextRunAt   time.Time
	LastError   string
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Options configures retry policy for an enqueued task
type Options struct {
	// MaxAttempts is the total attempt budget; zero means DefaultMaxAttempts
	MaxAttempts int
	// BackoffBase is the first retry delay, doubled per attempt; zero means DefaultBackoffBase
	BackoffBase time.Duration
	// Delay postpones the first run
	Delay time.Duration
}

// NewTask creates a pending task ready for its first run
func NewTask(name string, payload []byte, opts Options) *Task {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}

	now := time.Now()
	return &Task{
		ID:          uuid.New(),
		Name:        name,
		Payload:     payload,
		Status:      TaskStatusPending,
		Attempts:    0,
		MaxAttempts: opts.MaxAttempts,
		BackoffBase: opts.BackoffBase,
		NextRunAt:   now.Add(opts.Delay),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MarkCompleted marks the task as done
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
}

// MarkFailed records a failed attempt and schedules the next run with
// exponential backoff, or moves the task to dead when the attempt
// budget is exhausted.
func (t *Task) MarkFailed(errMsg string) {
	t.Attempts++
	t.LastError = errMsg
	t.UpdatedAt = time.Now()

	if t.Attempts >= t.MaxAttempts {
		t.Status = TaskStatusDead
		return
	}

	t.Status = TaskStatusFailed
	backoff := t.BackoffBase * time.Duration(1<<uint(t.Attempts-1))
	t.NextRunAt = time.Now().Add(backoff)
}

// IsDead returns true if the task exhausted its attempt budget
func (t *Task) IsDead() bool {
	return t.Status == TaskStatusDead
}

// Repository defines persistence operations for queued tasks
type Repository interface {
	// Save inserts a new task
	Save(ctx context.Context, task *Task) error
	// Update persists the current state of an existing task
	Update(ctx context.Context, task *Task) error
	// FindByID retrieves a task by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Task, error)
	// FindDue retrieves pending/failed tasks whose next_run_at has passed
	FindDue(ctx context.Context, before time.Time, limit int) ([]*Task, error)
	// ClaimProcessing atomically flips due tasks to processing and returns them
	ClaimProcessing(ctx context.Context, ids []uuid.UUID) ([]*Task, error)
	// DeleteCompletedOlderThan prunes completed tasks past the retention window
	DeleteCompletedOlderThan(ctx context.Context, before time.Time) (int64, error)
	// CountByStatus returns task counts per status
	CountByStatus(ctx context.Context) (map[TaskStatus]int64, error)
}

// Enqueuer is the narrow producer-side contract handed to services
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload []byte, opts Options) (uuid.UUID, error)
}

// Handler executes one task. A returned error reschedules the task with
// backoff until the attempt budget runs out.
type Handler func(ctx context.Context, task *Task) error

// ExhaustedHook is invoked once when a task moves to dead
type ExhaustedHook func(ctx context.Context, task *Task)
