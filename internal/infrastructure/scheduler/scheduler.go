package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobFunc is one periodic maintenance job
type JobFunc func(ctx context.Context)

// job is a registered periodic job
type job struct {
	name     string
	interval time.Duration
	run      JobFunc
}

// Scheduler runs registered maintenance jobs on fixed intervals: the
// agent health sweep, reconciliation log pruning, and expired job
// cleanup. Each job gets its own ticker goroutine; a slow job delays
// only its own next run.
type Scheduler struct {
	logger *zap.Logger

	mu     sync.Mutex
	jobs   []job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an empty scheduler
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Register adds a periodic job. Must be called before Start.
func (s *Scheduler) Register(name string, interval time.Duration, run JobFunc) {
	if interval <= 0 {
		s.logger.Warn("skipping job with non-positive interval", zap.String("job", name))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job{name: name, interval: interval, run: run})
}

// Start launches one loop per registered job
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	jobs := make([]job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	for _, j := range jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}

	s.logger.Info("scheduler started", zap.Int("jobs", len(jobs)))
}

// Stop cancels all job loops and waits for them to finish
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) loop(ctx context.Context, j job) {
	defer s.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, j)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, j job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled job panicked",
				zap.String("job", j.name),
				zap.Any("panic", r),
			)
		}
	}()

	start := time.Now()
	j.run(ctx)
	s.logger.Debug("scheduled job finished",
		zap.String("job", j.name),
		zap.Duration("elapsed", time.Since(start)),
	)
}
