package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/syncengine/internal/domain/agent"
	"github.com/erp/syncengine/internal/domain/sync"
	"github.com/erp/syncengine/internal/infrastructure/breaker"
	"github.com/erp/syncengine/internal/infrastructure/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DispatcherConfig holds dispatch-time settings
type DispatcherConfig struct {
	// AgentTimeout bounds one outbound agent call
	AgentTimeout time.Duration
}

// DefaultDispatcherConfig returns default dispatcher settings
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{AgentTimeout: 30 * time.Second}
}

// Dispatcher executes queued sync tasks: it resolves the target agent,
// moves the job through its lifecycle, and routes the outbound call
// through the per-(vendor, API type) circuit breaker. A returned error
// hands the task back to the queue for backoff and retry.
type Dispatcher struct {
	jobs     *JobService
	agents   agent.Repository
	client   agent.Client
	breakers *breaker.Registry
	config   DispatcherConfig
	logger   *zap.Logger
}

// NewDispatcher creates a new sync dispatcher
func NewDispatcher(
	jobs *JobService,
	agents agent.Repository,
	client agent.Client,
	breakers *breaker.Registry,
	config DispatcherConfig,
	logger *zap.Logger,
) *Dispatcher {
	if config.AgentTimeout <= 0 {
		config.AgentTimeout = DefaultDispatcherConfig().AgentTimeout
	}

	return &Dispatcher{
		jobs:     jobs,
		agents:   agents,
		client:   client,
		breakers: breakers,
		config:   config,
		logger:   logger,
	}
}

// Handle processes one vendor-sync task
func (d *Dispatcher) Handle(ctx context.Context, task *queue.Task) error {
	payload, err := DecodeTaskPayload(task.Payload)
	if err != nil {
		return err
	}

	// Duplicate delivery of an already synced job is a no-op.
	if payload.JobID != uuid.Nil {
		if job := d.jobs.GetJob(ctx, payload.JobID); job != nil && job.Status == sync.JobStatusCompleted {
			d.logger.Debug("skipping already completed job",
				zap.String("job_id", payload.JobID.String()),
			)
			return nil
		}
	}

	target, err := d.agents.FindByVendorID(ctx, payload.VendorID)
	if err != nil {
		return fmt.Errorf("failed to look up agent for vendor %s: %w", payload.VendorID, err)
	}
	if target == nil {
		return fmt.Errorf("no agent registered for vendor %s", payload.VendorID)
	}
	if target.Status == agent.StatusOffline {
		return fmt.Errorf("agent for vendor %s is offline", payload.VendorID)
	}

	if payload.JobID != uuid.Nil {
		d.jobs.MarkProcessing(ctx, payload.JobID)
	}

	result, callErr := d.execute(ctx, target, payload)
	if callErr != nil {
		d.recordFailure(ctx, task, payload, callErr)
		return callErr
	}

	if payload.JobID != uuid.Nil {
		d.jobs.MarkCompleted(ctx, payload.JobID, result.ExternalReference)
	}
	d.logger.Info("sync operation completed",
		zap.String("vendor_id", payload.VendorID),
		zap.String("operation", payload.Operation),
		zap.String("reference", payload.Reference),
		zap.String("external_reference", result.ExternalReference),
	)
	return nil
}

// execute routes the agent call through the vendor's circuit breaker
func (d *Dispatcher) execute(ctx context.Context, target *agent.Agent, payload TaskPayload) (*agent.CallResult, error) {
	apiType := APITypeForOperation(payload.Operation)

	out, err := d.breakers.Execute(payload.VendorID, apiType, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, d.config.AgentTimeout)
		defer cancel()
		return d.client.Execute(callCtx, target, payload.Operation, payload.Payload)
	})
	if err != nil {
		if errors.Is(err, breaker.ErrCircuitOpen) {
			// The call was rejected without reaching the agent; retry
			// after backoff gives the breaker time to half-open.
			d.logger.Warn("sync call rejected by open circuit",
				zap.String("vendor_id", payload.VendorID),
				zap.String("api_type", apiType),
			)
		}
		return nil, err
	}

	result, ok := out.(*agent.CallResult)
	if !ok || result == nil {
		return nil, fmt.Errorf("agent returned no result for vendor %s", payload.VendorID)
	}
	return result, nil
}

// recordFailure writes error detail and retry bookkeeping onto the job
func (d *Dispatcher) recordFailure(ctx context.Context, task *queue.Task, payload TaskPayload, callErr error) {
	if payload.JobID == uuid.Nil {
		return
	}

	// This attempt has not been counted on the task yet.
	attempts := task.Attempts + 1
	var nextRetryAt *time.Time
	if attempts < task.MaxAttempts {
		backoff := task.BackoffBase * time.Duration(1<<uint(attempts-1))
		next := time.Now().Add(backoff)
		nextRetryAt = &next
	}

	d.jobs.MarkFailed(ctx, payload.JobID, callErr.Error(), "", attempts, nextRetryAt)
}

// APITypeForOperation maps an operation to the API surface it exercises
// on the vendor's ERP. Breakers trip per surface so an order API outage
// does not block stock updates.
func APITypeForOperation(operation string) string {
	switch operation {
	case OperationCreateOrder:
		return "order"
	case OperationStockUpdate:
		return "stock"
	case OperationCatalogUpdate:
		return "catalog"
	default:
		return "generic"
	}
}

// NewExhaustedHook builds the queue hook that captures permanently
// failed sync tasks into the dead letter queue. The job itself is
// already in failed status from its last attempt; the hook only adds
// the operator-facing record.
func NewExhaustedHook(dlq *DeadLetterService, logger *zap.Logger) queue.ExhaustedHook {
	return func(ctx context.Context, task *queue.Task) {
		payload, err := DecodeTaskPayload(task.Payload)
		if err != nil {
			logger.Error("failed to decode exhausted task payload",
				zap.String("task_id", task.ID.String()),
				zap.Error(err),
			)
			return
		}

		var originalJobID *uuid.UUID
		if payload.JobID != uuid.Nil {
			id := payload.JobID
			originalJobID = &id
		}

		dlq.Add(ctx, originalJobID, payload.VendorID, payload.Operation,
			payload.Payload, task.LastError, "", task.Attempts)
	}
}
