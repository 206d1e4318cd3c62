package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/erp/syncengine/internal/domain/agent"
	"github.com/erp/syncengine/internal/domain/recon"
	"github.com/erp/syncengine/internal/domain/sync"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubJobRepo serves scripted aggregates for metrics tests
type stubJobRepo struct {
	counts  map[sync.JobStatus]int64
	retried int64
	avgMs   float64
	job     *sync.Job
}

func (r *stubJobRepo) Save(_ context.Context, _ *sync.Job) error   { return nil }
func (r *stubJobRepo) Update(_ context.Context, _ *sync.Job) error { return nil }
func (r *stubJobRepo) FindByID(_ context.Context, id uuid.UUID) (*sync.Job, error) {
	if r.job != nil && r.job.ID == id {
		return r.job, nil
	}
	return nil, nil
}
func (r *stubJobRepo) FindActiveByReference(_ context.Context, _, _ string) (*sync.Job, error) {
	return nil, nil
}
func (r *stubJobRepo) FindPending(_ context.Context, _ string, _ int) ([]*sync.Job, error) {
	return nil, nil
}
func (r *stubJobRepo) FindRecent(_ context.Context, _ string, _, _ int) ([]*sync.Job, int64, error) {
	return nil, 0, nil
}
func (r *stubJobRepo) CountByStatus(_ context.Context, _ string) (map[sync.JobStatus]int64, error) {
	return r.counts, nil
}
func (r *stubJobRepo) CountRetried(_ context.Context, _ string) (int64, error) {
	return r.retried, nil
}
func (r *stubJobRepo) AverageLatencyMs(_ context.Context, _ string) (float64, error) {
	return r.avgMs, nil
}
func (r *stubJobRepo) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// stubDeadLetterRepo serves a scripted unresolved count
type stubDeadLetterRepo struct {
	unresolved int64
}

func (r *stubDeadLetterRepo) Save(_ context.Context, _ *sync.DeadLetterEntry) error   { return nil }
func (r *stubDeadLetterRepo) Update(_ context.Context, _ *sync.DeadLetterEntry) error { return nil }
func (r *stubDeadLetterRepo) FindByID(_ context.Context, _ uuid.UUID) (*sync.DeadLetterEntry, error) {
	return nil, nil
}
func (r *stubDeadLetterRepo) FindUnresolved(_ context.Context, _ string, _, _ int) ([]*sync.DeadLetterEntry, int64, error) {
	return nil, 0, nil
}
func (r *stubDeadLetterRepo) CountUnresolved(_ context.Context, _ string) (int64, error) {
	return r.unresolved, nil
}
func (r *stubDeadLetterRepo) DeleteResolvedOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// stubReconRepo serves scripted event aggregates
type stubReconRepo struct {
	counts map[recon.EventType]int64
	last   *time.Time
}

func (r *stubReconRepo) Save(_ context.Context, _ *recon.Event) error { return nil }
func (r *stubReconRepo) FindAll(_ context.Context, _ string, _, _ int) ([]*recon.Event, int64, error) {
	return nil, 0, nil
}
func (r *stubReconRepo) FindRecent(_ context.Context, _ string, _ int) ([]*recon.Event, error) {
	return nil, nil
}
func (r *stubReconRepo) CountByType(_ context.Context, _ string) (map[recon.EventType]int64, error) {
	return r.counts, nil
}
func (r *stubReconRepo) LastTimestamp(_ context.Context, _ string) (*time.Time, error) {
	return r.last, nil
}
func (r *stubReconRepo) DeleteOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// stubAgentRepo serves a scripted agent list
type stubAgentRepo struct {
	agents []*agent.Agent
}

func (r *stubAgentRepo) Save(_ context.Context, _ *agent.Agent) error   { return nil }
func (r *stubAgentRepo) Update(_ context.Context, _ *agent.Agent) error { return nil }
func (r *stubAgentRepo) FindByVendorID(_ context.Context, _ string) (*agent.Agent, error) {
	return nil, nil
}
func (r *stubAgentRepo) FindAll(_ context.Context) ([]*agent.Agent, error) {
	return r.agents, nil
}
func (r *stubAgentRepo) FindNotOffline(_ context.Context) ([]*agent.Agent, error) {
	return nil, nil
}
func (r *stubAgentRepo) CountByStatus(_ context.Context) (map[agent.Status]int64, error) {
	return nil, nil
}

func newTestService(jobs *stubJobRepo, dlq *stubDeadLetterRepo, events *stubReconRepo, agents *stubAgentRepo) *Service {
	if jobs == nil {
		jobs = &stubJobRepo{counts: map[sync.JobStatus]int64{}}
	}
	if dlq == nil {
		dlq = &stubDeadLetterRepo{}
	}
	if events == nil {
		events = &stubReconRepo{counts: map[recon.EventType]int64{}}
	}
	if agents == nil {
		agents = &stubAgentRepo{}
	}
	return NewService(jobs, dlq, events, agents, zap.NewNop())
}

func TestGetSyncMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store yields zeroed rates", func(t *testing.T) {
		svc := newTestService(nil, nil, nil, nil)

		m := svc.GetSyncMetrics(ctx, "")
		assert.Zero(t, m.TotalJobs)
		assert.Equal(t, "0.0", m.SuccessRate)
		assert.Equal(t, "0.0", m.RetryRate)
		assert.Equal(t, "0.0", m.AverageLatencyMs)
		assert.Equal(t, "0.0", m.P95LatencyMs)
		assert.Zero(t, m.DeadLetterCount)
	})

	t.Run("rates are over all jobs", func(t *testing.T) {
		svc := newTestService(&stubJobRepo{
			counts: map[sync.JobStatus]int64{
				sync.JobStatusPending:    10,
				sync.JobStatusProcessing: 4,
				sync.JobStatusCompleted:  15,
				sync.JobStatusFailed:     1,
			},
			retried: 3,
		}, &stubDeadLetterRepo{unresolved: 2}, nil, nil)

		m := svc.GetSyncMetrics(ctx, "vendor-1")
		assert.Equal(t, int64(30), m.TotalJobs)
		assert.Equal(t, int64(10), m.Pending)
		assert.Equal(t, "50.0", m.SuccessRate)
		assert.Equal(t, "10.0", m.RetryRate)
		assert.Equal(t, int64(2), m.DeadLetterCount)
	})

	t.Run("latency estimates come from the average", func(t *testing.T) {
		svc := newTestService(&stubJobRepo{
			counts: map[sync.JobStatus]int64{sync.JobStatusCompleted: 1},
			avgMs:  200,
		}, nil, nil, nil)

		m := svc.GetSyncMetrics(ctx, "")
		assert.Equal(t, "200.0", m.AverageLatencyMs)
		assert.Equal(t, "300.0", m.P95LatencyMs)
	})

	t.Run("all failed is a zero rate, not a division error", func(t *testing.T) {
		svc := newTestService(&stubJobRepo{
			counts: map[sync.JobStatus]int64{sync.JobStatusFailed: 4},
		}, nil, nil, nil)

		m := svc.GetSyncMetrics(ctx, "")
		assert.Equal(t, "0.0", m.SuccessRate)
	})
}

func TestGetJobDetails(t *testing.T) {
	ctx := context.Background()

	job, err := sync.NewJob("vendor-1", "create_order", "order-1", []byte(`{"total":10}`))
	require.NoError(t, err)
	svc := newTestService(&stubJobRepo{job: job}, nil, nil, nil)

	t.Run("returns the full job", func(t *testing.T) {
		found := svc.GetJobDetails(ctx, job.ID)
		require.NotNil(t, found)
		assert.Equal(t, job.ID, found.ID)
		assert.Equal(t, "vendor-1", found.VendorID)
		assert.Equal(t, []byte(`{"total":10}`), found.Payload)
	})

	t.Run("missing job yields nil", func(t *testing.T) {
		assert.Nil(t, svc.GetJobDetails(ctx, uuid.New()))
	})
}

func TestGetReconciliationMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("empty log", func(t *testing.T) {
		svc := newTestService(nil, nil, nil, nil)

		m := svc.GetReconciliationMetrics(ctx, "")
		assert.Zero(t, m.TotalEvents)
		assert.Equal(t, "0.0", m.DriftFrequency)
		assert.Nil(t, m.LastRun)
	})

	t.Run("drift frequency over all events", func(t *testing.T) {
		last := time.Now().Add(-time.Hour)
		svc := newTestService(nil, nil, &stubReconRepo{
			counts: map[recon.EventType]int64{
				recon.EventFullChecksum:  3,
				recon.EventDriftDetected: 1,
			},
			last: &last,
		}, nil)

		m := svc.GetReconciliationMetrics(ctx, "vendor-1")
		assert.Equal(t, int64(4), m.TotalEvents)
		assert.Equal(t, "25.0", m.DriftFrequency)
		require.NotNil(t, m.LastRun)
		assert.WithinDuration(t, last, *m.LastRun, time.Second)
	})
}

func TestGetAgentHealth(t *testing.T) {
	ctx := context.Background()

	online, err := agent.NewAgent("vendor-on", "https://a.example", "sap", "tok", "")
	require.NoError(t, err)
	degraded, err := agent.NewAgent("vendor-deg", "https://b.example", "sap", "tok", "")
	require.NoError(t, err)
	degraded.Status = agent.StatusDegraded
	offline, err := agent.NewAgent("vendor-off", "https://c.example", "sap", "tok", "")
	require.NoError(t, err)
	offline.Status = agent.StatusOffline

	svc := newTestService(nil, nil, nil, &stubAgentRepo{
		agents: []*agent.Agent{online, degraded, offline},
	})

	report := svc.GetAgentHealth(ctx)
	require.Len(t, report.Agents, 3)
	assert.Equal(t, int64(3), report.Stats.Total)
	assert.Equal(t, int64(1), report.Stats.Online)
	assert.Equal(t, int64(1), report.Stats.Degraded)
	assert.Equal(t, int64(1), report.Stats.Offline)

	uptimes := map[string]string{}
	for _, a := range report.Agents {
		uptimes[a.VendorID] = a.UptimePercent
	}
	assert.Equal(t, "100.0", uptimes["vendor-on"])
	assert.Equal(t, "75.0", uptimes["vendor-deg"])
	assert.Equal(t, "0.0", uptimes["vendor-off"])
}
