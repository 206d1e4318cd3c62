package recon

import (
	"context"
	"time"

	"github.com/erp/syncengine/internal/domain/recon"
	"go.uber.org/zap"
)

// DefaultRetention is how long reconciliation events are kept
const DefaultRetention = 90 * 24 * time.Hour

// LogService manages the append-only reconciliation log. Store failures
// are logged and reported as nil/empty.
type LogService struct {
	repo   recon.Repository
	logger *zap.Logger
}

// NewLogService creates a new reconciliation log service
func NewLogService(repo recon.Repository, logger *zap.Logger) *LogService {
	return &LogService{
		repo:   repo,
		logger: logger,
	}
}

// RecordEvent appends one reconciliation event. Drift detections are
// logged at warn so they stand out in the operational log.
func (s *LogService) RecordEvent(ctx context.Context, vendorID string, eventType recon.EventType, durationMs int64, details []byte) *recon.Event {
	event, err := recon.NewEvent(vendorID, eventType, durationMs, details)
	if err != nil {
		s.logger.Warn("rejected reconciliation event",
			zap.String("vendor_id", vendorID),
			zap.String("event_type", eventType.String()),
			zap.Error(err),
		)
		return nil
	}

	if err := s.repo.Save(ctx, event); err != nil {
		s.logger.Error("failed to persist reconciliation event",
			zap.String("vendor_id", vendorID),
			zap.String("event_type", eventType.String()),
			zap.Error(err),
		)
		return nil
	}

	if eventType == recon.EventDriftDetected {
		s.logger.Warn("reconciliation drift detected",
			zap.String("vendor_id", vendorID),
			zap.Int64("duration_ms", durationMs),
		)
	} else {
		s.logger.Debug("reconciliation event recorded",
			zap.String("vendor_id", vendorID),
			zap.String("event_type", eventType.String()),
		)
	}
	return event
}

// List retrieves events newest first with pagination, optionally scoped
// to a vendor.
func (s *LogService) List(ctx context.Context, vendorID string, page, pageSize int) ([]*recon.Event, int64) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	events, total, err := s.repo.FindAll(ctx, vendorID, page, pageSize)
	if err != nil {
		s.logger.Error("failed to load reconciliation events",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return []*recon.Event{}, 0
	}
	return events, total
}

// Recent retrieves the most recent n events
func (s *LogService) Recent(ctx context.Context, vendorID string, limit int) []*recon.Event {
	if limit <= 0 {
		limit = 20
	}
	events, err := s.repo.FindRecent(ctx, vendorID, limit)
	if err != nil {
		s.logger.Error("failed to load recent reconciliation events",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return []*recon.Event{}
	}
	return events
}

// CountByType returns event counts per type
func (s *LogService) CountByType(ctx context.Context, vendorID string) map[recon.EventType]int64 {
	counts, err := s.repo.CountByType(ctx, vendorID)
	if err != nil {
		s.logger.Error("failed to count reconciliation events",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return map[recon.EventType]int64{}
	}
	return counts
}

// LastRun returns when the newest event was recorded, nil for an empty log
func (s *LogService) LastRun(ctx context.Context, vendorID string) *time.Time {
	ts, err := s.repo.LastTimestamp(ctx, vendorID)
	if err != nil {
		s.logger.Error("failed to load last reconciliation timestamp",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return nil
	}
	return ts
}

// Prune deletes events older than the retention window
func (s *LogService) Prune(ctx context.Context, retention time.Duration) int64 {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := time.Now().Add(-retention)

	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to prune reconciliation events", zap.Error(err))
		return 0
	}
	if deleted > 0 {
		s.logger.Info("pruned reconciliation events", zap.Int64("deleted", deleted))
	}
	return deleted
}
