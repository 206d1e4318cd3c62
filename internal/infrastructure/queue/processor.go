package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProcessorConfig holds configuration for the queue processor
type ProcessorConfig struct {
	Workers          int
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultProcessorConfig returns default configuration
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		Workers:          4,
		BatchSize:        50,
		PollInterval:     5 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 24 * time.Hour,
		CleanupInterval:  1 * time.Hour,
	}
}

// Processor polls the task table and dispatches claimed tasks to
// registered handlers on a worker pool. Delivery is at-least-once.
type Processor struct {
	repo      Repository
	config    ProcessorConfig
	logger    *zap.Logger
	handlers  map[string]Handler
	exhausted ExhaustedHook

	tasks  chan *Task
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewProcessor creates a new queue processor
func NewProcessor(repo Repository, config ProcessorConfig, logger *zap.Logger) *Processor {
	defaults := DefaultProcessorConfig()
	if config.Workers <= 0 {
		config.Workers = defaults.Workers
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}

	return &Processor{
		repo:     repo,
		config:   config,
		logger:   logger,
		handlers: make(map[string]Handler),
		tasks:    make(chan *Task, config.BatchSize),
	}
}

// Register binds a handler to a task name. Must be called before Start.
func (p *Processor) Register(name string, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[name] = handler
}

// OnExhausted sets the hook invoked when a task runs out of attempts
func (p *Processor) OnExhausted(hook ExhaustedHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exhausted = hook
}

// Enqueue persists a new task for later execution
func (p *Processor) Enqueue(ctx context.Context, name string, payload []byte, opts Options) (uuid.UUID, error) {
	task := NewTask(name, payload, opts)
	if err := p.repo.Save(ctx, task); err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue task %s: %w", name, err)
	}

	p.logger.Debug("task enqueued",
		zap.String("task_id", task.ID.String()),
		zap.String("name", name),
		zap.Int("max_attempts", task.MaxAttempts),
	)
	return task.ID, nil
}

// Start launches the poll loop, the worker pool and the cleanup loop
func (p *Processor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go p.pollLoop(ctx)

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	if p.config.CleanupEnabled {
		p.wg.Add(1)
		go p.cleanupLoop(ctx)
	}

	p.logger.Info("queue processor started",
		zap.Int("workers", p.config.Workers),
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
	)
	return nil
}

// Stop gracefully stops the processor
func (p *Processor) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("queue processor stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn("queue processor stop timed out")
		return ctx.Err()
	}
}

// pollLoop periodically claims due tasks and feeds the worker pool
func (p *Processor) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.claimBatch(ctx)
		}
	}
}

func (p *Processor) claimBatch(ctx context.Context) {
	due, err := p.repo.FindDue(ctx, time.Now(), p.config.BatchSize)
	if err != nil {
		p.logger.Error("failed to find due tasks", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	ids := make([]uuid.UUID, len(due))
	for i, t := range due {
		ids[i] = t.ID
	}

	claimed, err := p.repo.ClaimProcessing(ctx, ids)
	if err != nil {
		p.logger.Error("failed to claim tasks", zap.Error(err))
		return
	}

	for _, task := range claimed {
		select {
		case p.tasks <- task:
		case <-ctx.Done():
			return
		}
	}
}

// worker consumes claimed tasks
func (p *Processor) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-p.tasks:
			p.processTask(ctx, task, workerID)
		}
	}
}

// processTask runs the handler for one task and persists the outcome
func (p *Processor) processTask(ctx context.Context, task *Task, workerID int) {
	p.mu.Lock()
	handler, ok := p.handlers[task.Name]
	exhausted := p.exhausted
	p.mu.Unlock()

	if !ok {
		task.MarkFailed(fmt.Sprintf("no handler registered for task %q", task.Name))
		p.logger.Error("unroutable task",
			zap.String("task_id", task.ID.String()),
			zap.String("name", task.Name),
		)
		p.finishTask(ctx, task, exhausted)
		return
	}

	err := handler(ctx, task)
	if err != nil {
		task.MarkFailed(err.Error())
		p.logger.Warn("task attempt failed",
			zap.Int("worker_id", workerID),
			zap.String("task_id", task.ID.String()),
			zap.String("name", task.Name),
			zap.Int("attempts", task.Attempts),
			zap.Int("max_attempts", task.MaxAttempts),
			zap.Error(err),
		)
		p.finishTask(ctx, task, exhausted)
		return
	}

	task.MarkCompleted()
	if updateErr := p.repo.Update(ctx, task); updateErr != nil {
		p.logger.Error("failed to mark task completed",
			zap.String("task_id", task.ID.String()),
			zap.Error(updateErr),
		)
		return
	}
	p.logger.Debug("task completed",
		zap.Int("worker_id", workerID),
		zap.String("task_id", task.ID.String()),
		zap.String("name", task.Name),
	)
}

func (p *Processor) finishTask(ctx context.Context, task *Task, exhausted ExhaustedHook) {
	if err := p.repo.Update(ctx, task); err != nil {
		p.logger.Error("failed to update task",
			zap.String("task_id", task.ID.String()),
			zap.Error(err),
		)
		return
	}

	if task.IsDead() {
		p.logger.Warn("task exhausted retry budget",
			zap.String("task_id", task.ID.String()),
			zap.String("name", task.Name),
			zap.Int("attempts", task.Attempts),
			zap.String("last_error", task.LastError),
		)
		if exhausted != nil {
			exhausted(ctx, task)
		}
	}
}

// cleanupLoop periodically prunes completed tasks
func (p *Processor) cleanupLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cleanup(ctx)
		}
	}
}

func (p *Processor) cleanup(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteCompletedOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to clean up completed tasks", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("cleaned up completed tasks",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}

// Ensure Processor implements Enqueuer
var _ Enqueuer = (*Processor)(nil)
