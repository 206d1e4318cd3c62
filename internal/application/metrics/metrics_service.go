package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/erp/syncengine/internal/domain/agent"
	"github.com/erp/syncengine/internal/domain/recon"
	"github.com/erp/syncengine/internal/domain/sync"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SyncMetrics summarizes sync job throughput and health. Rates are
// pre-formatted with one decimal so every consumer renders them the
// same way; "0.0" stands in when there is no data to rate.
type SyncMetrics struct {
	TotalJobs        int64  `json:"total_jobs"`
	Pending          int64  `json:"pending"`
	Processing       int64  `json:"processing"`
	Completed        int64  `json:"completed"`
	Failed           int64  `json:"failed"`
	SuccessRate      string `json:"success_rate"`
	RetryRate        string `json:"retry_rate"`
	AverageLatencyMs string `json:"average_latency_ms"`
	P95LatencyMs     string `json:"p95_latency_ms"`
	DeadLetterCount  int64  `json:"dead_letter_count"`
}

// ReconciliationMetrics summarizes the reconciliation log
type ReconciliationMetrics struct {
	TotalEvents    int64                     `json:"total_events"`
	CountsByType   map[recon.EventType]int64 `json:"counts_by_type"`
	DriftFrequency string                    `json:"drift_frequency"`
	LastRun        *time.Time                `json:"last_run"`
}

// AgentHealth is one agent's health line in the fleet report
type AgentHealth struct {
	VendorID      string    `json:"vendor_id"`
	ERPType       string    `json:"erp_type"`
	Status        string    `json:"status"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	UptimePercent string    `json:"uptime_percent"`
}

// AgentHealthReport is the fleet-wide health summary
type AgentHealthReport struct {
	Agents []AgentHealth `json:"agents"`
	Stats  agent.Stats   `json:"stats"`
}

// Service aggregates read-only metrics across the sync, reconciliation
// and agent stores. It holds no state of its own; every call recomputes
// from the stores, and a store failure yields zeroed metrics rather
// than an error.
type Service struct {
	jobs   sync.JobRepository
	dlq    sync.DeadLetterRepository
	events recon.Repository
	agents agent.Repository
	logger *zap.Logger
}

// NewService creates a new metrics service
func NewService(
	jobs sync.JobRepository,
	dlq sync.DeadLetterRepository,
	events recon.Repository,
	agents agent.Repository,
	logger *zap.Logger,
) *Service {
	return &Service{
		jobs:   jobs,
		dlq:    dlq,
		events: events,
		agents: agents,
		logger: logger,
	}
}

// GetSyncMetrics computes job counts, success rate and latency,
// optionally scoped to a vendor.
func (s *Service) GetSyncMetrics(ctx context.Context, vendorID string) SyncMetrics {
	m := SyncMetrics{
		SuccessRate:      formatRate(0),
		RetryRate:        formatRate(0),
		AverageLatencyMs: formatRate(0),
		P95LatencyMs:     formatRate(0),
	}

	counts, err := s.jobs.CountByStatus(ctx, vendorID)
	if err != nil {
		s.logger.Error("failed to count sync jobs",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return m
	}

	m.Pending = counts[sync.JobStatusPending]
	m.Processing = counts[sync.JobStatusProcessing]
	m.Completed = counts[sync.JobStatusCompleted]
	m.Failed = counts[sync.JobStatusFailed]
	m.TotalJobs = m.Pending + m.Processing + m.Completed + m.Failed

	// Rates are over all jobs; in-flight work counts against both until
	// it settles.
	if m.TotalJobs > 0 {
		m.SuccessRate = formatRate(float64(m.Completed) / float64(m.TotalJobs) * 100)

		retried, err := s.jobs.CountRetried(ctx, vendorID)
		if err != nil {
			s.logger.Error("failed to count retried jobs",
				zap.String("vendor_id", vendorID),
				zap.Error(err),
			)
		} else {
			m.RetryRate = formatRate(float64(retried) / float64(m.TotalJobs) * 100)
		}
	}

	avg, err := s.jobs.AverageLatencyMs(ctx, vendorID)
	if err != nil {
		s.logger.Error("failed to compute average latency",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
	} else if avg > 0 {
		m.AverageLatencyMs = formatRate(avg)
		// Estimated from the mean; a real percentile needs a histogram
		// the store does not keep.
		m.P95LatencyMs = formatRate(avg * 1.5)
	}

	dead, err := s.dlq.CountUnresolved(ctx, vendorID)
	if err != nil {
		s.logger.Error("failed to count dead letter entries", zap.Error(err))
	} else {
		m.DeadLetterCount = dead
	}
	return m
}

// GetJobDetails retrieves one job with its full payload and error
// detail for drill-down from the metrics views, nil+warn when missing.
func (s *Service) GetJobDetails(ctx context.Context, jobID uuid.UUID) *sync.Job {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		s.logger.Error("failed to load sync job",
			zap.String("job_id", jobID.String()),
			zap.Error(err),
		)
		return nil
	}
	if job == nil {
		s.logger.Warn("sync job not found", zap.String("job_id", jobID.String()))
		return nil
	}
	return job
}

// GetReconciliationMetrics computes event counts and drift frequency,
// optionally scoped to a vendor.
func (s *Service) GetReconciliationMetrics(ctx context.Context, vendorID string) ReconciliationMetrics {
	m := ReconciliationMetrics{
		CountsByType:   map[recon.EventType]int64{},
		DriftFrequency: formatRate(0),
	}

	counts, err := s.events.CountByType(ctx, vendorID)
	if err != nil {
		s.logger.Error("failed to count reconciliation events",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return m
	}

	m.CountsByType = counts
	for _, c := range counts {
		m.TotalEvents += c
	}
	if m.TotalEvents > 0 {
		m.DriftFrequency = formatRate(float64(counts[recon.EventDriftDetected]) / float64(m.TotalEvents) * 100)
	}

	last, err := s.events.LastTimestamp(ctx, vendorID)
	if err != nil {
		s.logger.Error("failed to load last reconciliation timestamp",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
	} else {
		m.LastRun = last
	}
	return m
}

// GetAgentHealth reports per-agent status plus fleet totals. Uptime is
// a coarse proxy from the current status band, not a measured series.
func (s *Service) GetAgentHealth(ctx context.Context) AgentHealthReport {
	report := AgentHealthReport{Agents: []AgentHealth{}}

	agents, err := s.agents.FindAll(ctx)
	if err != nil {
		s.logger.Error("failed to list agents", zap.Error(err))
		return report
	}

	for _, a := range agents {
		report.Agents = append(report.Agents, AgentHealth{
			VendorID:      a.VendorID,
			ERPType:       a.ERPType,
			Status:        a.Status.String(),
			LastHeartbeat: a.LastHeartbeat,
			UptimePercent: uptimeForStatus(a.Status),
		})

		switch a.Status {
		case agent.StatusOnline:
			report.Stats.Online++
		case agent.StatusDegraded:
			report.Stats.Degraded++
		case agent.StatusOffline:
			report.Stats.Offline++
		}
		report.Stats.Total++
	}
	return report
}

// uptimeForStatus maps a status band to its uptime proxy
func uptimeForStatus(status agent.Status) string {
	switch status {
	case agent.StatusOnline:
		return formatRate(100)
	case agent.StatusDegraded:
		return formatRate(75)
	default:
		return formatRate(0)
	}
}

// formatRate renders a metric with exactly one decimal place
func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
