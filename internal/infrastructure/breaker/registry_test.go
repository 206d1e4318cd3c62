package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errDownstream = errors.New("downstream failure")

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(Config{
		MinVolume:    3,
		ErrorPercent: 50,
		Window:       time.Minute,
		ResetTimeout: 50 * time.Millisecond,
	}, zap.NewNop())
}

func trip(t *testing.T, r *Registry, vendorID, apiType string) {
	t.Helper()
	for i := 0; i < 3; i++ {
		_, err := r.Execute(vendorID, apiType, func() (interface{}, error) {
			return nil, errDownstream
		})
		require.Error(t, err)
	}
}

func TestRegistryExecute(t *testing.T) {
	t.Run("closed breaker passes results through", func(t *testing.T) {
		r := newTestRegistry(t)

		result, err := r.Execute("vendor-1", "order", func() (interface{}, error) {
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, StateClosed, r.GetState("vendor-1", "order"))
	})

	t.Run("genuine failures are not ErrCircuitOpen", func(t *testing.T) {
		r := newTestRegistry(t)

		_, err := r.Execute("vendor-1", "order", func() (interface{}, error) {
			return nil, errDownstream
		})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	})

	t.Run("trips after error threshold and rejects without calling", func(t *testing.T) {
		r := newTestRegistry(t)
		trip(t, r, "vendor-1", "order")

		assert.Equal(t, StateOpen, r.GetState("vendor-1", "order"))

		called := false
		_, err := r.Execute("vendor-1", "order", func() (interface{}, error) {
			called = true
			return "ok", nil
		})
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.False(t, called)
	})

	t.Run("breakers are isolated per vendor and api type", func(t *testing.T) {
		r := newTestRegistry(t)
		trip(t, r, "vendor-1", "order")

		// Same vendor, different API surface stays closed.
		result, err := r.Execute("vendor-1", "stock", func() (interface{}, error) {
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", result)

		// Different vendor, same API surface stays closed.
		_, err = r.Execute("vendor-2", "order", func() (interface{}, error) {
			return "ok", nil
		})
		assert.NoError(t, err)
	})

	t.Run("recovers through half open after reset timeout", func(t *testing.T) {
		r := newTestRegistry(t)
		trip(t, r, "vendor-1", "order")
		require.Equal(t, StateOpen, r.GetState("vendor-1", "order"))

		time.Sleep(60 * time.Millisecond)

		result, err := r.Execute("vendor-1", "order", func() (interface{}, error) {
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, StateClosed, r.GetState("vendor-1", "order"))
	})

	t.Run("half open failure reopens", func(t *testing.T) {
		r := newTestRegistry(t)
		trip(t, r, "vendor-1", "order")

		time.Sleep(60 * time.Millisecond)

		_, err := r.Execute("vendor-1", "order", func() (interface{}, error) {
			return nil, errDownstream
		})
		require.Error(t, err)
		assert.Equal(t, StateOpen, r.GetState("vendor-1", "order"))
	})
}

func TestRegistryReset(t *testing.T) {
	r := newTestRegistry(t)
	trip(t, r, "vendor-1", "order")
	require.Equal(t, StateOpen, r.GetState("vendor-1", "order"))

	r.Reset("vendor-1", "order")
	assert.Equal(t, StateClosed, r.GetState("vendor-1", "order"))

	// Calls flow again immediately after a manual reset.
	_, err := r.Execute("vendor-1", "order", func() (interface{}, error) {
		return "ok", nil
	})
	assert.NoError(t, err)

	// Resetting an unknown breaker is a no-op.
	r.Reset("vendor-9", "order")
	assert.Equal(t, State(""), r.GetState("vendor-9", "order"))
}

func TestRegistryStatus(t *testing.T) {
	r := newTestRegistry(t)

	assert.Empty(t, r.GetStatus())

	_, _ = r.Execute("vendor-1", "order", func() (interface{}, error) { return "ok", nil })
	_, _ = r.Execute("vendor-1", "order", func() (interface{}, error) { return nil, errDownstream })

	statuses := r.GetStatus()
	require.Len(t, statuses, 1)
	assert.Equal(t, Key("vendor-1", "order"), statuses[0].Key)
	assert.Equal(t, StateClosed, statuses[0].State)
	assert.Equal(t, uint32(2), statuses[0].Requests)
	assert.Equal(t, uint32(1), statuses[0].Successes)
	assert.Equal(t, uint32(1), statuses[0].Failures)
}

func TestRegistryUnknownState(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t, State(""), r.GetState("never", "seen"))
}
