package agent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Status represents the derived health status of a vendor agent
type Status string

const (
	StatusOnline   Status = "ONLINE"
	StatusDegraded Status = "DEGRADED"
	StatusOffline  Status = "OFFLINE"
)

// IsValid returns true if the status is a known agent status
func (s Status) IsValid() bool {
	switch s {
	case StatusOnline, StatusDegraded, StatusOffline:
		return true
	default:
		return false
	}
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Heartbeat staleness thresholds. Health is derived purely from how long
// ago the agent last reported in.
const (
	DegradedAfter = 60 * time.Second
	OfflineAfter  = 300 * time.Second
)

// Token hashing cost for bcrypt
const bcryptCost = 12

// Agent represents a vendor-side ERP integration agent registered with
// the platform. The auth token is stored one-way hashed; deregistration
// is a soft status flip, records are never hard-deleted.
type Agent struct {
	ID            uuid.UUID
	VendorID      string
	AgentURL      string
	ERPType       string
	AuthTokenHash string
	Version       string
	Status        Status
	LastHeartbeat time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewAgent creates a new online agent with a hashed auth token
func NewAgent(vendorID, agentURL, erpType, authToken, version string) (*Agent, error) {
	if vendorID == "" {
		return nil, ErrVendorIDRequired
	}
	if agentURL == "" {
		return nil, ErrAgentURLRequired
	}
	if authToken == "" {
		return nil, ErrAuthTokenRequired
	}

	hash, err := hashToken(authToken)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Agent{
		ID:            uuid.New(),
		VendorID:      vendorID,
		AgentURL:      agentURL,
		ERPType:       erpType,
		AuthTokenHash: hash,
		Version:       version,
		Status:        StatusOnline,
		LastHeartbeat: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Reregister refreshes an existing agent's registration, rotating the
// auth token and forcing the status back to online.
func (a *Agent) Reregister(agentURL, erpType, authToken, version string) error {
	if agentURL == "" {
		return ErrAgentURLRequired
	}
	if authToken == "" {
		return ErrAuthTokenRequired
	}

	hash, err := hashToken(authToken)
	if err != nil {
		return err
	}

	now := time.Now()
	a.AgentURL = agentURL
	a.ERPType = erpType
	a.AuthTokenHash = hash
	a.Version = version
	a.Status = StatusOnline
	a.LastHeartbeat = now
	a.UpdatedAt = now
	return nil
}

// RecordHeartbeat records a liveness signal. A fresh heartbeat returns
// the agent to online from any state.
func (a *Agent) RecordHeartbeat(version string) {
	now := time.Now()
	a.LastHeartbeat = now
	a.Status = StatusOnline
	if version != "" {
		a.Version = version
	}
	a.UpdatedAt = now
}

// Deregister soft-flips the agent offline
func (a *Agent) Deregister() {
	a.Status = StatusOffline
	a.UpdatedAt = time.Now()
}

// VerifyToken checks a presented auth token against the stored hash
func (a *Agent) VerifyToken(token string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.AuthTokenHash), []byte(token)) == nil
}

// DeriveStatus computes the status the agent should be in at the given
// instant, based purely on heartbeat staleness.
func (a *Agent) DeriveStatus(now time.Time) Status {
	elapsed := now.Sub(a.LastHeartbeat)
	switch {
	case elapsed >= OfflineAfter:
		return StatusOffline
	case elapsed >= DegradedAfter:
		return StatusDegraded
	default:
		return StatusOnline
	}
}

// Sanitized returns a copy of the agent with the token hash stripped,
// safe to hand to callers.
func (a *Agent) Sanitized() *Agent {
	c := *a
	c.AuthTokenHash = ""
	return &c
}

func hashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Stats summarizes the fleet by current status
type Stats struct {
	Online   int64 `json:"online"`
	Degraded int64 `json:"degraded"`
	Offline  int64 `json:"offline"`
	Total    int64 `json:"total"`
}

// Repository defines persistence operations for agents
type Repository interface {
	// Save inserts a new agent row
	Save(ctx context.Context, agent *Agent) error
	// Update persists the current state of an existing agent
	Update(ctx context.Context, agent *Agent) error
	// FindByVendorID retrieves an agent by its unique vendor ID
	FindByVendorID(ctx context.Context, vendorID string) (*Agent, error)
	// FindAll retrieves every registered agent
	FindAll(ctx context.Context) ([]*Agent, error)
	// FindNotOffline retrieves agents whose stored status is online or degraded
	FindNotOffline(ctx context.Context) ([]*Agent, error)
	// CountByStatus returns agent counts per status
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
