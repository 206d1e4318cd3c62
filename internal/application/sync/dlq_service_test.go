package sync

import (
	"context"
	"testing"
	"time"

	domain "github.com/erp/syncengine/internal/domain/sync"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockDeadLetterRepo is a map-backed implementation for testing DeadLetterService
type mockDeadLetterRepo struct {
	entries map[uuid.UUID]*domain.DeadLetterEntry
}

func newMockDeadLetterRepo() *mockDeadLetterRepo {
	return &mockDeadLetterRepo{entries: make(map[uuid.UUID]*domain.DeadLetterEntry)}
}

func (r *mockDeadLetterRepo) Save(_ context.Context, entry *domain.DeadLetterEntry) error {
	r.entries[entry.ID] = entry
	return nil
}

func (r *mockDeadLetterRepo) Update(_ context.Context, entry *domain.DeadLetterEntry) error {
	r.entries[entry.ID] = entry
	return nil
}

func (r *mockDeadLetterRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.DeadLetterEntry, error) {
	return r.entries[id], nil
}

func (r *mockDeadLetterRepo) FindUnresolved(_ context.Context, vendorID string, page, pageSize int) ([]*domain.DeadLetterEntry, int64, error) {
	var result []*domain.DeadLetterEntry
	for _, e := range r.entries {
		if e.Resolved {
			continue
		}
		if vendorID != "" && e.VendorID != vendorID {
			continue
		}
		result = append(result, e)
	}
	return result, int64(len(result)), nil
}

func (r *mockDeadLetterRepo) CountUnresolved(_ context.Context, vendorID string) (int64, error) {
	var count int64
	for _, e := range r.entries {
		if e.Resolved {
			continue
		}
		if vendorID != "" && e.VendorID != vendorID {
			continue
		}
		count++
	}
	return count, nil
}

func (r *mockDeadLetterRepo) DeleteResolvedOlderThan(_ context.Context, before time.Time) (int64, error) {
	var deleted int64
	for id, e := range r.entries {
		if e.Resolved && e.CreatedAt.Before(before) {
			delete(r.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func newTestDeadLetterService(repo *mockDeadLetterRepo, enq *recordingEnqueuer) *DeadLetterService {
	return NewDeadLetterService(repo, enq, JobServiceConfig{
		MaxAttempts: 3,
		BackoffBase: time.Second,
	}, zap.NewNop())
}

func addEntry(t *testing.T, svc *DeadLetterService, vendorID string) *domain.DeadLetterEntry {
	t.Helper()
	jobID := uuid.New()
	entry := svc.Add(context.Background(), &jobID, vendorID, OperationCreateOrder, []byte(`{"total":10}`), "agent timeout", "stack", 5)
	require.NotNil(t, entry)
	return entry
}

func TestDeadLetterServiceAdd(t *testing.T) {
	ctx := context.Background()
	repo := newMockDeadLetterRepo()
	svc := newTestDeadLetterService(repo, &recordingEnqueuer{})

	t.Run("records an unresolved entry", func(t *testing.T) {
		entry := addEntry(t, svc, "vendor-1")
		assert.False(t, entry.Resolved)
		assert.Equal(t, "agent timeout", entry.FailureReason)
		assert.Equal(t, 5, entry.AttemptCount)

		stored := svc.GetDetails(ctx, entry.ID)
		require.NotNil(t, stored)
		assert.Equal(t, entry.ID, stored.ID)
	})

	t.Run("rejects entries without a vendor", func(t *testing.T) {
		assert.Nil(t, svc.Add(ctx, nil, "", OperationCreateOrder, nil, "x", "", 1))
	})
}

func TestDeadLetterServiceRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("re-enqueues the stored payload", func(t *testing.T) {
		repo := newMockDeadLetterRepo()
		enq := &recordingEnqueuer{}
		svc := newTestDeadLetterService(repo, enq)
		entry := addEntry(t, svc, "vendor-1")

		require.True(t, svc.Retry(ctx, entry.ID))
		require.Len(t, enq.names, 1)
		assert.Equal(t, TaskVendorSync, enq.names[0])
		// The re-run keeps the attempt budget the entry recorded, not
		// the service default of 3.
		assert.Equal(t, 5, enq.opts[0].MaxAttempts)
		assert.Equal(t, entry.AttemptCount, enq.opts[0].MaxAttempts)

		decoded, err := DecodeTaskPayload(enq.payloads[0])
		require.NoError(t, err)
		assert.Equal(t, *entry.OriginalJobID, decoded.JobID)
		assert.Equal(t, "vendor-1", decoded.VendorID)
		assert.Equal(t, OperationCreateOrder, decoded.Operation)
		assert.Equal(t, entry.Payload, decoded.Payload)

		// A retry alone never resolves the entry.
		stored := svc.GetDetails(ctx, entry.ID)
		require.NotNil(t, stored)
		assert.False(t, stored.Resolved)
	})

	t.Run("refuses resolved entries", func(t *testing.T) {
		repo := newMockDeadLetterRepo()
		enq := &recordingEnqueuer{}
		svc := newTestDeadLetterService(repo, enq)
		entry := addEntry(t, svc, "vendor-1")

		require.NotNil(t, svc.Resolve(ctx, entry.ID, "ops"))
		assert.False(t, svc.Retry(ctx, entry.ID))
		assert.Empty(t, enq.names)
	})

	t.Run("unknown entry returns false", func(t *testing.T) {
		svc := newTestDeadLetterService(newMockDeadLetterRepo(), &recordingEnqueuer{})
		assert.False(t, svc.Retry(ctx, uuid.New()))
	})
}

func TestDeadLetterServiceResolve(t *testing.T) {
	ctx := context.Background()
	repo := newMockDeadLetterRepo()
	svc := newTestDeadLetterService(repo, &recordingEnqueuer{})
	entry := addEntry(t, svc, "vendor-1")

	resolved := svc.Resolve(ctx, entry.ID, "ops@example.com")
	require.NotNil(t, resolved)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, "ops@example.com", resolved.ResolvedBy)
	assert.NotNil(t, resolved.ResolvedAt)

	// Second resolution is rejected.
	assert.Nil(t, svc.Resolve(ctx, entry.ID, "someone-else"))
}

func TestDeadLetterServiceCleanup(t *testing.T) {
	ctx := context.Background()
	repo := newMockDeadLetterRepo()
	svc := newTestDeadLetterService(repo, &recordingEnqueuer{})

	oldResolved := addEntry(t, svc, "vendor-1")
	require.NotNil(t, svc.Resolve(ctx, oldResolved.ID, "ops"))
	oldResolved.CreatedAt = time.Now().Add(-60 * 24 * time.Hour)

	oldUnresolved := addEntry(t, svc, "vendor-1")
	oldUnresolved.CreatedAt = time.Now().Add(-60 * 24 * time.Hour)

	freshResolved := addEntry(t, svc, "vendor-1")
	require.NotNil(t, svc.Resolve(ctx, freshResolved.ID, "ops"))

	deleted := svc.Cleanup(ctx, 30*24*time.Hour)
	assert.Equal(t, int64(1), deleted)

	assert.Nil(t, svc.GetDetails(ctx, oldResolved.ID))
	assert.NotNil(t, svc.GetDetails(ctx, oldUnresolved.ID))
	assert.NotNil(t, svc.GetDetails(ctx, freshResolved.ID))
	assert.Equal(t, int64(1), svc.GetUnresolvedCount(ctx, "vendor-1"))
}
