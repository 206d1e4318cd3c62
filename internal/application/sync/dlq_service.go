package sync

import (
	"context"
	"time"

	"github.com/erp/syncengine/internal/domain/sync"
	"github.com/erp/syncengine/internal/infrastructure/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeadLetterService manages jobs that exhausted their retry budget.
// Entries are kept for operator inspection, manual retry, and audit.
// Store failures are logged and reported as empty/zero so a broken
// store never takes the API down with it.
type DeadLetterService struct {
	repo     sync.DeadLetterRepository
	enqueuer queue.Enqueuer
	config   JobServiceConfig
	logger   *zap.Logger
}

// NewDeadLetterService creates a new dead letter service
func NewDeadLetterService(
	repo sync.DeadLetterRepository,
	enqueuer queue.Enqueuer,
	config JobServiceConfig,
	logger *zap.Logger,
) *DeadLetterService {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultJobServiceConfig().MaxAttempts
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = DefaultJobServiceConfig().BackoffBase
	}

	return &DeadLetterService{
		repo:     repo,
		enqueuer: enqueuer,
		config:   config,
		logger:   logger,
	}
}

// Add records a permanently failed job. Returns the stored entry, nil
// when persistence failed.
func (s *DeadLetterService) Add(ctx context.Context, originalJobID *uuid.UUID, vendorID, operation string, payload []byte, failureReason, failureStack string, attemptCount int) *sync.DeadLetterEntry {
	entry, err := sync.NewDeadLetterEntry(originalJobID, vendorID, operation, payload, failureReason, failureStack, attemptCount)
	if err != nil {
		s.logger.Warn("rejected dead letter entry",
			zap.String("vendor_id", vendorID),
			zap.String("operation", operation),
			zap.Error(err),
		)
		return nil
	}

	if err := s.repo.Save(ctx, entry); err != nil {
		s.logger.Error("failed to persist dead letter entry",
			zap.String("vendor_id", vendorID),
			zap.String("operation", operation),
			zap.Error(err),
		)
		return nil
	}

	s.logger.Warn("job moved to dead letter queue",
		zap.String("entry_id", entry.ID.String()),
		zap.String("vendor_id", vendorID),
		zap.String("operation", operation),
		zap.Int("attempt_count", attemptCount),
		zap.String("reason", failureReason),
	)
	return entry
}

// GetUnresolved lists unresolved entries newest first with pagination,
// optionally scoped to a vendor.
func (s *DeadLetterService) GetUnresolved(ctx context.Context, vendorID string, page, pageSize int) ([]*sync.DeadLetterEntry, int64) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	entries, total, err := s.repo.FindUnresolved(ctx, vendorID, page, pageSize)
	if err != nil {
		s.logger.Error("failed to load dead letter entries", zap.Error(err))
		return []*sync.DeadLetterEntry{}, 0
	}
	return entries, total
}

// GetDetails retrieves one entry with its full payload and error stack
func (s *DeadLetterService) GetDetails(ctx context.Context, entryID uuid.UUID) *sync.DeadLetterEntry {
	entry, err := s.repo.FindByID(ctx, entryID)
	if err != nil {
		s.logger.Error("failed to load dead letter entry",
			zap.String("entry_id", entryID.String()),
			zap.Error(err),
		)
		return nil
	}
	if entry == nil {
		s.logger.Warn("dead letter entry not found", zap.String("entry_id", entryID.String()))
		return nil
	}
	return entry
}

// Retry re-submits an entry's stored payload to the sync queue, carrying
// the attempt budget the entry recorded when it died. The entry stays
// unresolved until an operator resolves it; a successful retry does not
// do that automatically.
func (s *DeadLetterService) Retry(ctx context.Context, entryID uuid.UUID) bool {
	entry := s.GetDetails(ctx, entryID)
	if entry == nil {
		return false
	}
	if entry.Resolved {
		s.logger.Warn("refusing to retry resolved dead letter entry",
			zap.String("entry_id", entryID.String()),
		)
		return false
	}

	taskPayload := TaskPayload{
		VendorID:  entry.VendorID,
		Operation: entry.Operation,
		Payload:   entry.Payload,
	}
	if entry.OriginalJobID != nil {
		taskPayload.JobID = *entry.OriginalJobID
	}

	encoded, err := encodeTaskPayload(taskPayload)
	if err != nil {
		s.logger.Error("failed to encode retry payload",
			zap.String("entry_id", entryID.String()),
			zap.Error(err),
		)
		return false
	}

	if _, err := s.enqueuer.Enqueue(ctx, TaskVendorSync, encoded, queue.Options{
		MaxAttempts: entry.AttemptCount,
		BackoffBase: s.config.BackoffBase,
	}); err != nil {
		s.logger.Error("failed to re-enqueue dead letter entry",
			zap.String("entry_id", entryID.String()),
			zap.Error(err),
		)
		return false
	}

	s.logger.Info("dead letter entry re-enqueued",
		zap.String("entry_id", entryID.String()),
		zap.String("vendor_id", entry.VendorID),
		zap.String("operation", entry.Operation),
	)
	return true
}

// Resolve marks an entry handled by an operator. Resolving an already
// resolved entry is rejected.
func (s *DeadLetterService) Resolve(ctx context.Context, entryID uuid.UUID, resolvedBy string) *sync.DeadLetterEntry {
	entry := s.GetDetails(ctx, entryID)
	if entry == nil {
		return nil
	}

	if err := entry.Resolve(resolvedBy); err != nil {
		s.logger.Warn("rejected dead letter resolution",
			zap.String("entry_id", entryID.String()),
			zap.Error(err),
		)
		return nil
	}

	if err := s.repo.Update(ctx, entry); err != nil {
		s.logger.Error("failed to update dead letter entry",
			zap.String("entry_id", entryID.String()),
			zap.Error(err),
		)
		return nil
	}

	s.logger.Info("dead letter entry resolved",
		zap.String("entry_id", entryID.String()),
		zap.String("resolved_by", resolvedBy),
	)
	return entry
}

// Cleanup deletes resolved entries older than the cutoff age.
// Unresolved entries are never cleaned up regardless of age.
func (s *DeadLetterService) Cleanup(ctx context.Context, olderThan time.Duration) int64 {
	if olderThan <= 0 {
		olderThan = sync.DefaultCleanupAge
	}
	cutoff := time.Now().Add(-olderThan)

	deleted, err := s.repo.DeleteResolvedOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to clean up dead letter entries", zap.Error(err))
		return 0
	}
	if deleted > 0 {
		s.logger.Info("cleaned up resolved dead letter entries", zap.Int64("deleted", deleted))
	}
	return deleted
}

// GetUnresolvedCount returns the number of unresolved entries,
// optionally scoped to a vendor.
func (s *DeadLetterService) GetUnresolvedCount(ctx context.Context, vendorID string) int64 {
	count, err := s.repo.CountUnresolved(ctx, vendorID)
	if err != nil {
		s.logger.Error("failed to count dead letter entries", zap.Error(err))
		return 0
	}
	return count
}
