package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/erp/syncengine/internal/domain/sync"
	"github.com/erp/syncengine/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDeadLetterTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.DeadLetterModel{})
	require.NoError(t, err)

	return db
}

func mustDeadLetter(t *testing.T, vendorID string) *sync.DeadLetterEntry {
	t.Helper()
	jobID := uuid.New()
	entry, err := sync.NewDeadLetterEntry(&jobID, vendorID, "create_order", []byte(`{}`), "timeout", "stack", 5)
	require.NoError(t, err)
	return entry
}

func TestDeadLetterRepository_SaveAndFind(t *testing.T) {
	db := setupDeadLetterTestDB(t)
	repo := NewDeadLetterRepository(db)
	ctx := context.Background()

	t.Run("round-trips an entry", func(t *testing.T) {
		entry := mustDeadLetter(t, "vendor-1")
		require.NoError(t, repo.Save(ctx, entry))

		found, err := repo.FindByID(ctx, entry.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, entry.ID, found.ID)
		assert.Equal(t, "timeout", found.FailureReason)
		assert.Equal(t, 5, found.AttemptCount)
		assert.False(t, found.Resolved)
		require.NotNil(t, found.OriginalJobID)
		assert.Equal(t, *entry.OriginalJobID, *found.OriginalJobID)
	})

	t.Run("returns nil for missing entry", func(t *testing.T) {
		found, err := repo.FindByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("update persists resolution", func(t *testing.T) {
		entry := mustDeadLetter(t, "vendor-1")
		require.NoError(t, repo.Save(ctx, entry))

		require.NoError(t, entry.Resolve("ops@example.com"))
		require.NoError(t, repo.Update(ctx, entry))

		found, err := repo.FindByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.True(t, found.Resolved)
		assert.Equal(t, "ops@example.com", found.ResolvedBy)
		assert.NotNil(t, found.ResolvedAt)
	})
}

func TestDeadLetterRepository_FindUnresolved(t *testing.T) {
	db := setupDeadLetterTestDB(t)
	repo := NewDeadLetterRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		entry := mustDeadLetter(t, "vendor-1")
		entry.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		entry.FailureReason = fmt.Sprintf("failure-%d", i)
		require.NoError(t, repo.Save(ctx, entry))
	}
	resolved := mustDeadLetter(t, "vendor-1")
	require.NoError(t, resolved.Resolve("ops"))
	require.NoError(t, repo.Save(ctx, resolved))

	other := mustDeadLetter(t, "vendor-2")
	require.NoError(t, repo.Save(ctx, other))

	t.Run("excludes resolved entries", func(t *testing.T) {
		entries, total, err := repo.FindUnresolved(ctx, "vendor-1", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, entries, 3)
		assert.Equal(t, "failure-2", entries[0].FailureReason)
	})

	t.Run("paginates", func(t *testing.T) {
		entries, total, err := repo.FindUnresolved(ctx, "vendor-1", 2, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, entries, 1)
		assert.Equal(t, "failure-0", entries[0].FailureReason)
	})

	t.Run("unscoped spans vendors", func(t *testing.T) {
		count, err := repo.CountUnresolved(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)
	})

	t.Run("counts per vendor", func(t *testing.T) {
		count, err := repo.CountUnresolved(ctx, "vendor-2")
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestDeadLetterRepository_DeleteResolvedOlderThan(t *testing.T) {
	db := setupDeadLetterTestDB(t)
	repo := NewDeadLetterRepository(db)
	ctx := context.Background()

	cutoff := time.Now().Add(-30 * 24 * time.Hour)

	oldResolved := mustDeadLetter(t, "vendor-1")
	require.NoError(t, oldResolved.Resolve("ops"))
	oldResolved.CreatedAt = cutoff.Add(-time.Hour)
	require.NoError(t, repo.Save(ctx, oldResolved))

	// Old but unresolved: never auto-deleted.
	oldUnresolved := mustDeadLetter(t, "vendor-1")
	oldUnresolved.CreatedAt = cutoff.Add(-time.Hour)
	require.NoError(t, repo.Save(ctx, oldUnresolved))

	freshResolved := mustDeadLetter(t, "vendor-1")
	require.NoError(t, freshResolved.Resolve("ops"))
	require.NoError(t, repo.Save(ctx, freshResolved))

	deleted, err := repo.DeleteResolvedOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	found, err := repo.FindByID(ctx, oldResolved.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	found, err = repo.FindByID(ctx, oldUnresolved.ID)
	require.NoError(t, err)
	assert.NotNil(t, found)

	found, err = repo.FindByID(ctx, freshResolved.ID)
	require.NoError(t, err)
	assert.NotNil(t, found)
}
