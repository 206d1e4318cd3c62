package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgent(t *testing.T) {
	t.Run("creates online agent with hashed token", func(t *testing.T) {
		a, err := NewAgent("vendor-1", "https://agent.vendor-1.example", "sap", "secret-token", "1.2.0")
		require.NoError(t, err)

		assert.Equal(t, StatusOnline, a.Status)
		assert.NotEqual(t, "secret-token", a.AuthTokenHash)
		assert.True(t, a.VerifyToken("secret-token"))
		assert.False(t, a.VerifyToken("wrong-token"))
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		_, err := NewAgent("", "https://a.example", "sap", "tok", "")
		assert.ErrorIs(t, err, ErrVendorIDRequired)

		_, err = NewAgent("vendor-1", "", "sap", "tok", "")
		assert.ErrorIs(t, err, ErrAgentURLRequired)

		_, err = NewAgent("vendor-1", "https://a.example", "sap", "", "")
		assert.ErrorIs(t, err, ErrAuthTokenRequired)
	})
}

func TestAgentReregister(t *testing.T) {
	a, err := NewAgent("vendor-1", "https://old.example", "sap", "old-token", "1.0.0")
	require.NoError(t, err)
	a.Status = StatusOffline

	require.NoError(t, a.Reregister("https://new.example", "dynamics", "new-token", "2.0.0"))

	assert.Equal(t, StatusOnline, a.Status)
	assert.Equal(t, "https://new.example", a.AgentURL)
	assert.Equal(t, "dynamics", a.ERPType)
	assert.Equal(t, "2.0.0", a.Version)
	assert.True(t, a.VerifyToken("new-token"))
	assert.False(t, a.VerifyToken("old-token"))
}

func TestAgentHeartbeat(t *testing.T) {
	a, err := NewAgent("vendor-1", "https://a.example", "sap", "tok", "1.0.0")
	require.NoError(t, err)

	a.Status = StatusOffline
	a.LastHeartbeat = time.Now().Add(-time.Hour)

	a.RecordHeartbeat("1.1.0")

	assert.Equal(t, StatusOnline, a.Status)
	assert.Equal(t, "1.1.0", a.Version)
	assert.WithinDuration(t, time.Now(), a.LastHeartbeat, time.Second)
}

func TestAgentDeriveStatus(t *testing.T) {
	a, err := NewAgent("vendor-1", "https://a.example", "sap", "tok", "")
	require.NoError(t, err)

	now := time.Now()

	t.Run("fresh heartbeat is online", func(t *testing.T) {
		a.LastHeartbeat = now.Add(-30 * time.Second)
		assert.Equal(t, StatusOnline, a.DeriveStatus(now))
	})

	t.Run("stale heartbeat is degraded", func(t *testing.T) {
		a.LastHeartbeat = now.Add(-90 * time.Second)
		assert.Equal(t, StatusDegraded, a.DeriveStatus(now))
	})

	t.Run("degraded boundary is inclusive", func(t *testing.T) {
		a.LastHeartbeat = now.Add(-DegradedAfter)
		assert.Equal(t, StatusDegraded, a.DeriveStatus(now))
	})

	t.Run("very stale heartbeat is offline", func(t *testing.T) {
		a.LastHeartbeat = now.Add(-10 * time.Minute)
		assert.Equal(t, StatusOffline, a.DeriveStatus(now))
	})

	t.Run("offline boundary is inclusive", func(t *testing.T) {
		a.LastHeartbeat = now.Add(-OfflineAfter)
		assert.Equal(t, StatusOffline, a.DeriveStatus(now))
	})
}

func TestAgentSanitized(t *testing.T) {
	a, err := NewAgent("vendor-1", "https://a.example", "sap", "tok", "")
	require.NoError(t, err)

	clean := a.Sanitized()
	assert.Empty(t, clean.AuthTokenHash)
	assert.NotEmpty(t, a.AuthTokenHash)
	assert.Equal(t, a.VendorID, clean.VendorID)
}

func TestAgentDeregister(t *testing.T) {
	a, err := NewAgent("vendor-1", "https://a.example", "sap", "tok", "")
	require.NoError(t, err)

	a.Deregister()
	assert.Equal(t, StatusOffline, a.Status)
}
