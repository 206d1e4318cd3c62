package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/syncengine/internal/domain/recon"
	"github.com/erp/syncengine/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupReconciliationTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.ReconciliationEventModel{})
	require.NoError(t, err)

	return db
}

func mustEvent(t *testing.T, vendorID string, eventType recon.EventType, at time.Time) *recon.Event {
	t.Helper()
	event, err := recon.NewEvent(vendorID, eventType, 500, nil)
	require.NoError(t, err)
	event.Timestamp = at
	return event
}

func TestReconciliationRepository_FindAll(t *testing.T) {
	db := setupReconciliationTestDB(t)
	repo := NewReconciliationRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	require.NoError(t, repo.Save(ctx, mustEvent(t, "vendor-1", recon.EventFullChecksum, base)))
	require.NoError(t, repo.Save(ctx, mustEvent(t, "vendor-1", recon.EventDriftDetected, base.Add(time.Minute))))
	require.NoError(t, repo.Save(ctx, mustEvent(t, "vendor-2", recon.EventFullChecksum, base.Add(2*time.Minute))))

	t.Run("newest first within vendor scope", func(t *testing.T) {
		events, total, err := repo.FindAll(ctx, "vendor-1", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, events, 2)
		assert.Equal(t, recon.EventDriftDetected, events[0].EventType)
	})

	t.Run("unscoped spans vendors", func(t *testing.T) {
		events, total, err := repo.FindAll(ctx, "", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Equal(t, "vendor-2", events[0].VendorID)
	})

	t.Run("recent honors limit", func(t *testing.T) {
		events, err := repo.FindRecent(ctx, "", 2)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "vendor-2", events[0].VendorID)
	})
}

func TestReconciliationRepository_CountByType(t *testing.T) {
	db := setupReconciliationTestDB(t)
	repo := NewReconciliationRepository(db)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, repo.Save(ctx, mustEvent(t, "vendor-1", recon.EventFullChecksum, now)))
	require.NoError(t, repo.Save(ctx, mustEvent(t, "vendor-1", recon.EventFullChecksum, now)))
	require.NoError(t, repo.Save(ctx, mustEvent(t, "vendor-1", recon.EventDriftDetected, now)))

	counts, err := repo.CountByType(ctx, "vendor-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[recon.EventFullChecksum])
	assert.Equal(t, int64(1), counts[recon.EventDriftDetected])
}

func TestReconciliationRepository_LastTimestamp(t *testing.T) {
	db := setupReconciliationTestDB(t)
	repo := NewReconciliationRepository(db)
	ctx := context.Background()

	t.Run("nil when log is empty", func(t *testing.T) {
		last, err := repo.LastTimestamp(ctx, "vendor-1")
		require.NoError(t, err)
		assert.Nil(t, last)
	})

	t.Run("returns newest timestamp", func(t *testing.T) {
		older := time.Now().Add(-time.Hour)
		newer := time.Now().Add(-time.Minute)
		require.NoError(t, repo.Save(ctx, mustEvent(t, "vendor-1", recon.EventFullChecksum, older)))
		require.NoError(t, repo.Save(ctx, mustEvent(t, "vendor-1", recon.EventFullChecksum, newer)))

		last, err := repo.LastTimestamp(ctx, "vendor-1")
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.WithinDuration(t, newer, *last, time.Second)
	})
}

func TestReconciliationRepository_DeleteOlderThan(t *testing.T) {
	db := setupReconciliationTestDB(t)
	repo := NewReconciliationRepository(db)
	ctx := context.Background()

	cutoff := time.Now().Add(-90 * 24 * time.Hour)
	require.NoError(t, repo.Save(ctx, mustEvent(t, "vendor-1", recon.EventFullChecksum, cutoff.Add(-time.Hour))))
	require.NoError(t, repo.Save(ctx, mustEvent(t, "vendor-1", recon.EventFullChecksum, time.Now())))

	deleted, err := repo.DeleteOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	events, err := repo.FindRecent(ctx, "vendor-1", 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
