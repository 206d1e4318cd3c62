package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	agentdomain "github.com/erp/syncengine/internal/domain/agent"
	domain "github.com/erp/syncengine/internal/domain/sync"
	"github.com/erp/syncengine/internal/infrastructure/breaker"
	"github.com/erp/syncengine/internal/infrastructure/queue"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockAgentRepo is a map-backed implementation for testing the dispatcher
type mockAgentRepo struct {
	agents map[string]*agentdomain.Agent
}

func newMockAgentRepo() *mockAgentRepo {
	return &mockAgentRepo{agents: make(map[string]*agentdomain.Agent)}
}

func (r *mockAgentRepo) Save(_ context.Context, a *agentdomain.Agent) error {
	r.agents[a.VendorID] = a
	return nil
}

func (r *mockAgentRepo) Update(_ context.Context, a *agentdomain.Agent) error {
	r.agents[a.VendorID] = a
	return nil
}

func (r *mockAgentRepo) FindByVendorID(_ context.Context, vendorID string) (*agentdomain.Agent, error) {
	return r.agents[vendorID], nil
}

func (r *mockAgentRepo) FindAll(_ context.Context) ([]*agentdomain.Agent, error) {
	var result []*agentdomain.Agent
	for _, a := range r.agents {
		result = append(result, a)
	}
	return result, nil
}

func (r *mockAgentRepo) FindNotOffline(_ context.Context) ([]*agentdomain.Agent, error) {
	var result []*agentdomain.Agent
	for _, a := range r.agents {
		if a.Status != agentdomain.StatusOffline {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *mockAgentRepo) CountByStatus(_ context.Context) (map[agentdomain.Status]int64, error) {
	counts := make(map[agentdomain.Status]int64)
	for _, a := range r.agents {
		counts[a.Status]++
	}
	return counts, nil
}

// mockAgentClient returns a scripted result and records invocations
type mockAgentClient struct {
	result *agentdomain.CallResult
	err    error
	calls  int
}

func (c *mockAgentClient) Execute(_ context.Context, _ *agentdomain.Agent, _ string, _ []byte) (*agentdomain.CallResult, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

type dispatcherFixture struct {
	jobs     *JobService
	jobRepo  *mockJobRepo
	agents   *mockAgentRepo
	client   *mockAgentClient
	breakers *breaker.Registry
	d        *Dispatcher
}

func newDispatcherFixture(client *mockAgentClient) *dispatcherFixture {
	logger := zap.NewNop()
	jobRepo := newMockJobRepo()
	jobs := NewJobService(jobRepo, &recordingEnqueuer{}, nil, JobServiceConfig{
		MaxAttempts: 3,
		BackoffBase: time.Second,
	}, logger)
	agents := newMockAgentRepo()
	breakers := breaker.NewRegistry(breaker.Config{
		MinVolume:    3,
		ErrorPercent: 50,
		Window:       time.Minute,
		ResetTimeout: time.Minute,
	}, logger)

	return &dispatcherFixture{
		jobs:     jobs,
		jobRepo:  jobRepo,
		agents:   agents,
		client:   client,
		breakers: breakers,
		d:        NewDispatcher(jobs, agents, client, breakers, DispatcherConfig{AgentTimeout: time.Second}, logger),
	}
}

func (f *dispatcherFixture) registerAgent(t *testing.T, vendorID string) *agentdomain.Agent {
	t.Helper()
	a, err := agentdomain.NewAgent(vendorID, "https://"+vendorID+".example", "sap", "tok", "1.0.0")
	require.NoError(t, err)
	require.NoError(t, f.agents.Save(context.Background(), a))
	return a
}

func (f *dispatcherFixture) enqueueJob(t *testing.T, vendorID, reference string) (*domain.Job, *queue.Task) {
	t.Helper()
	job, err := domain.NewJob(vendorID, OperationCreateOrder, reference, []byte(`{"total":10}`))
	require.NoError(t, err)
	require.NoError(t, f.jobRepo.Save(context.Background(), job))

	payload, err := encodeTaskPayload(TaskPayload{
		JobID:     job.ID,
		VendorID:  job.VendorID,
		Operation: job.Operation,
		Reference: job.Reference,
		Payload:   job.Payload,
	})
	require.NoError(t, err)

	task := queue.NewTask(TaskVendorSync, payload, queue.Options{
		MaxAttempts: 3,
		BackoffBase: time.Second,
	})
	return job, task
}

func TestDispatcherHandle(t *testing.T) {
	ctx := context.Background()

	t.Run("successful call completes the job", func(t *testing.T) {
		f := newDispatcherFixture(&mockAgentClient{
			result: &agentdomain.CallResult{ExternalReference: "SAP-1001"},
		})
		f.registerAgent(t, "vendor-1")
		job, task := f.enqueueJob(t, "vendor-1", "order-1")

		require.NoError(t, f.d.Handle(ctx, task))
		assert.Equal(t, 1, f.client.calls)

		stored := f.jobs.GetJob(ctx, job.ID)
		require.NotNil(t, stored)
		assert.Equal(t, domain.JobStatusCompleted, stored.Status)
		assert.Equal(t, "SAP-1001", stored.ExternalReference)
		assert.NotNil(t, stored.StartedAt)
	})

	t.Run("duplicate delivery of a completed job is a no-op", func(t *testing.T) {
		f := newDispatcherFixture(&mockAgentClient{
			result: &agentdomain.CallResult{ExternalReference: "SAP-1002"},
		})
		f.registerAgent(t, "vendor-1")
		_, task := f.enqueueJob(t, "vendor-1", "order-2")

		require.NoError(t, f.d.Handle(ctx, task))
		require.NoError(t, f.d.Handle(ctx, task))
		assert.Equal(t, 1, f.client.calls)
	})

	t.Run("missing agent fails the task", func(t *testing.T) {
		f := newDispatcherFixture(&mockAgentClient{})
		_, task := f.enqueueJob(t, "vendor-unknown", "order-3")

		assert.Error(t, f.d.Handle(ctx, task))
		assert.Zero(t, f.client.calls)
	})

	t.Run("offline agent fails the task without calling", func(t *testing.T) {
		f := newDispatcherFixture(&mockAgentClient{})
		a := f.registerAgent(t, "vendor-1")
		a.Status = agentdomain.StatusOffline
		_, task := f.enqueueJob(t, "vendor-1", "order-4")

		assert.Error(t, f.d.Handle(ctx, task))
		assert.Zero(t, f.client.calls)
	})

	t.Run("failed call records retry bookkeeping on the job", func(t *testing.T) {
		f := newDispatcherFixture(&mockAgentClient{err: errors.New("agent timeout")})
		f.registerAgent(t, "vendor-1")
		job, task := f.enqueueJob(t, "vendor-1", "order-5")

		assert.Error(t, f.d.Handle(ctx, task))

		stored := f.jobs.GetJob(ctx, job.ID)
		require.NotNil(t, stored)
		assert.Equal(t, domain.JobStatusFailed, stored.Status)
		assert.Equal(t, "agent timeout", stored.ErrorMessage)
		assert.Equal(t, 1, stored.RetryCount)
		require.NotNil(t, stored.NextRetryAt)
		assert.True(t, stored.NextRetryAt.After(time.Now()))
	})

	t.Run("final attempt leaves no next retry time", func(t *testing.T) {
		f := newDispatcherFixture(&mockAgentClient{err: errors.New("agent timeout")})
		f.registerAgent(t, "vendor-1")
		job, task := f.enqueueJob(t, "vendor-1", "order-6")
		task.Attempts = 2

		assert.Error(t, f.d.Handle(ctx, task))

		stored := f.jobs.GetJob(ctx, job.ID)
		require.NotNil(t, stored)
		assert.Equal(t, 3, stored.RetryCount)
		assert.Nil(t, stored.NextRetryAt)
	})

	t.Run("open breaker rejects without reaching the agent", func(t *testing.T) {
		f := newDispatcherFixture(&mockAgentClient{err: errors.New("agent down")})
		f.registerAgent(t, "vendor-1")

		for i := 0; i < 3; i++ {
			_, err := f.breakers.Execute("vendor-1", "order", func() (interface{}, error) {
				return nil, errors.New("agent down")
			})
			require.Error(t, err)
		}

		_, task := f.enqueueJob(t, "vendor-1", "order-7")
		err := f.d.Handle(ctx, task)
		assert.ErrorIs(t, err, breaker.ErrCircuitOpen)
		assert.Zero(t, f.client.calls)
	})

	t.Run("task without a job id executes without bookkeeping", func(t *testing.T) {
		f := newDispatcherFixture(&mockAgentClient{
			result: &agentdomain.CallResult{ExternalReference: "SAP-1003"},
		})
		f.registerAgent(t, "vendor-1")

		payload, err := encodeTaskPayload(TaskPayload{
			VendorID:  "vendor-1",
			Operation: OperationStockUpdate,
			Payload:   []byte(`{}`),
		})
		require.NoError(t, err)
		task := queue.NewTask(TaskVendorSync, payload, queue.Options{})

		require.NoError(t, f.d.Handle(ctx, task))
		assert.Equal(t, 1, f.client.calls)
	})

	t.Run("garbage payload is an error", func(t *testing.T) {
		f := newDispatcherFixture(&mockAgentClient{})
		task := queue.NewTask(TaskVendorSync, []byte("not-json"), queue.Options{})
		assert.Error(t, f.d.Handle(ctx, task))
	})
}

func TestAPITypeForOperation(t *testing.T) {
	assert.Equal(t, "order", APITypeForOperation(OperationCreateOrder))
	assert.Equal(t, "stock", APITypeForOperation(OperationStockUpdate))
	assert.Equal(t, "catalog", APITypeForOperation(OperationCatalogUpdate))
	assert.Equal(t, "generic", APITypeForOperation("unknown_op"))
}

func TestExhaustedHook(t *testing.T) {
	ctx := context.Background()
	dlqRepo := newMockDeadLetterRepo()
	dlq := NewDeadLetterService(dlqRepo, &recordingEnqueuer{}, JobServiceConfig{}, zap.NewNop())
	hook := NewExhaustedHook(dlq, zap.NewNop())

	t.Run("captures exhausted task into the dead letter queue", func(t *testing.T) {
		jobID := uuid.New()
		payload, err := encodeTaskPayload(TaskPayload{
			JobID:     jobID,
			VendorID:  "vendor-1",
			Operation: OperationCreateOrder,
			Payload:   []byte(`{"total":10}`),
		})
		require.NoError(t, err)

		task := queue.NewTask(TaskVendorSync, payload, queue.Options{MaxAttempts: 2, BackoffBase: time.Second})
		task.MarkFailed("agent timeout")
		task.MarkFailed("agent timeout")
		require.True(t, task.IsDead())

		hook(ctx, task)

		entries, total := dlq.GetUnresolved(ctx, "vendor-1", 1, 10)
		require.Equal(t, int64(1), total)
		entry := entries[0]
		require.NotNil(t, entry.OriginalJobID)
		assert.Equal(t, jobID, *entry.OriginalJobID)
		assert.Equal(t, OperationCreateOrder, entry.Operation)
		assert.Equal(t, "agent timeout", entry.FailureReason)
		assert.Equal(t, 2, entry.AttemptCount)
	})

	t.Run("undecodable payload is dropped", func(t *testing.T) {
		task := queue.NewTask(TaskVendorSync, []byte("not-json"), queue.Options{})
		hook(ctx, task)

		count := dlq.GetUnresolvedCount(ctx, "")
		assert.Equal(t, int64(1), count)
	})
}
