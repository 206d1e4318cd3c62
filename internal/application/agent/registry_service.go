package agent

import (
	"context"
	"time"

	"github.com/erp/syncengine/internal/domain/agent"
	"go.uber.org/zap"
)

// RegistryService manages the vendor agent fleet: registration,
// heartbeats, and the periodic health sweep that derives status from
// heartbeat staleness. Store failures degrade to nil/empty results.
type RegistryService struct {
	repo   agent.Repository
	logger *zap.Logger
}

// NewRegistryService creates a new agent registry service
func NewRegistryService(repo agent.Repository, logger *zap.Logger) *RegistryService {
	return &RegistryService{
		repo:   repo,
		logger: logger,
	}
}

// Register registers an agent for a vendor, or refreshes the existing
// registration. Re-registering rotates the auth token and brings the
// agent back online; there is at most one agent per vendor.
func (s *RegistryService) Register(ctx context.Context, vendorID, agentURL, erpType, authToken, version string) *agent.Agent {
	existing, err := s.repo.FindByVendorID(ctx, vendorID)
	if err != nil {
		s.logger.Error("failed to look up agent",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return nil
	}

	if existing != nil {
		if err := existing.Reregister(agentURL, erpType, authToken, version); err != nil {
			s.logger.Warn("rejected agent re-registration",
				zap.String("vendor_id", vendorID),
				zap.Error(err),
			)
			return nil
		}
		if err := s.repo.Update(ctx, existing); err != nil {
			s.logger.Error("failed to update agent registration",
				zap.String("vendor_id", vendorID),
				zap.Error(err),
			)
			return nil
		}
		s.logger.Info("agent re-registered",
			zap.String("vendor_id", vendorID),
			zap.String("agent_url", agentURL),
			zap.String("erp_type", erpType),
		)
		return existing.Sanitized()
	}

	created, err := agent.NewAgent(vendorID, agentURL, erpType, authToken, version)
	if err != nil {
		s.logger.Warn("rejected agent registration",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return nil
	}
	if err := s.repo.Save(ctx, created); err != nil {
		s.logger.Error("failed to persist agent",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return nil
	}

	s.logger.Info("agent registered",
		zap.String("vendor_id", vendorID),
		zap.String("agent_url", agentURL),
		zap.String("erp_type", erpType),
	)
	return created.Sanitized()
}

// Heartbeat records a liveness signal from an agent. A heartbeat from
// any state returns the agent to online. Returns the refreshed agent
// without its token hash, nil when the vendor has no registered agent.
func (s *RegistryService) Heartbeat(ctx context.Context, vendorID, version string) *agent.Agent {
	found, err := s.repo.FindByVendorID(ctx, vendorID)
	if err != nil {
		s.logger.Error("failed to look up agent",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return nil
	}
	if found == nil {
		s.logger.Warn("heartbeat from unregistered vendor", zap.String("vendor_id", vendorID))
		return nil
	}

	wasOffline := found.Status != agent.StatusOnline
	found.RecordHeartbeat(version)

	if err := s.repo.Update(ctx, found); err != nil {
		s.logger.Error("failed to record heartbeat",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return nil
	}

	if wasOffline {
		s.logger.Info("agent recovered",
			zap.String("vendor_id", vendorID),
			zap.String("status", agent.StatusOnline.String()),
		)
	}
	return found.Sanitized()
}

// Deregister soft-flips an agent offline. The record is kept for audit
// and so a later registration reuses the same row.
func (s *RegistryService) Deregister(ctx context.Context, vendorID string) bool {
	found, err := s.repo.FindByVendorID(ctx, vendorID)
	if err != nil {
		s.logger.Error("failed to look up agent",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return false
	}
	if found == nil {
		s.logger.Warn("deregister for unregistered vendor", zap.String("vendor_id", vendorID))
		return false
	}

	found.Deregister()
	if err := s.repo.Update(ctx, found); err != nil {
		s.logger.Error("failed to deregister agent",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return false
	}

	s.logger.Info("agent deregistered", zap.String("vendor_id", vendorID))
	return true
}

// GetAgent retrieves one agent without its token hash
func (s *RegistryService) GetAgent(ctx context.Context, vendorID string) *agent.Agent {
	found, err := s.repo.FindByVendorID(ctx, vendorID)
	if err != nil {
		s.logger.Error("failed to look up agent",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return nil
	}
	if found == nil {
		return nil
	}
	return found.Sanitized()
}

// GetAllAgents lists every registered agent without token hashes
func (s *RegistryService) GetAllAgents(ctx context.Context) []*agent.Agent {
	agents, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.Error("failed to list agents", zap.Error(err))
		return []*agent.Agent{}
	}

	sanitized := make([]*agent.Agent, len(agents))
	for i, a := range agents {
		sanitized[i] = a.Sanitized()
	}
	return sanitized
}

// VerifyToken checks a presented auth token for a vendor's agent
func (s *RegistryService) VerifyToken(ctx context.Context, vendorID, token string) bool {
	found, err := s.repo.FindByVendorID(ctx, vendorID)
	if err != nil || found == nil {
		return false
	}
	return found.VerifyToken(token)
}

// StatusChange records one agent's transition made by a health sweep
type StatusChange struct {
	VendorID string       `json:"vendor_id"`
	From     agent.Status `json:"from"`
	To       agent.Status `json:"to"`
}

// CheckHealth sweeps all non-offline agents and downgrades those whose
// heartbeat has gone stale. Only transitions are written and logged;
// steady-state agents produce no writes. Returns one record per agent
// whose status changed.
func (s *RegistryService) CheckHealth(ctx context.Context) []StatusChange {
	agents, err := s.repo.FindNotOffline(ctx)
	if err != nil {
		s.logger.Error("failed to load agents for health sweep", zap.Error(err))
		return nil
	}

	now := time.Now()
	var changes []StatusChange
	for _, a := range agents {
		derived := a.DeriveStatus(now)
		if derived == a.Status {
			continue
		}

		previous := a.Status
		a.Status = derived
		a.UpdatedAt = now
		if err := s.repo.Update(ctx, a); err != nil {
			s.logger.Error("failed to update agent status",
				zap.String("vendor_id", a.VendorID),
				zap.Error(err),
			)
			continue
		}
		changes = append(changes, StatusChange{
			VendorID: a.VendorID,
			From:     previous,
			To:       derived,
		})

		elapsed := now.Sub(a.LastHeartbeat)
		switch derived {
		case agent.StatusOffline:
			s.logger.Error("agent went offline",
				zap.String("vendor_id", a.VendorID),
				zap.String("previous", previous.String()),
				zap.Duration("heartbeat_age", elapsed),
			)
		case agent.StatusDegraded:
			s.logger.Warn("agent degraded",
				zap.String("vendor_id", a.VendorID),
				zap.String("previous", previous.String()),
				zap.Duration("heartbeat_age", elapsed),
			)
		default:
			s.logger.Info("agent recovered",
				zap.String("vendor_id", a.VendorID),
				zap.String("previous", previous.String()),
			)
		}
	}
	return changes
}

// GetAgentStats summarizes the fleet by stored status
func (s *RegistryService) GetAgentStats(ctx context.Context) agent.Stats {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("failed to count agents", zap.Error(err))
		return agent.Stats{}
	}

	stats := agent.Stats{
		Online:   counts[agent.StatusOnline],
		Degraded: counts[agent.StatusDegraded],
		Offline:  counts[agent.StatusOffline],
	}
	stats.Total = stats.Online + stats.Degraded + stats.Offline
	return stats
}
