package persistence

import (
	"context"
	"errors"

	"github.com/erp/syncengine/internal/domain/agent"
	"github.com/erp/syncengine/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// AgentRepository implements agent.Repository using GORM
type AgentRepository struct {
	db *gorm.DB
}

// NewAgentRepository creates a new GORM-based agent repository
func NewAgentRepository(db *gorm.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

// Save inserts a new agent row
func (r *AgentRepository) Save(ctx context.Context, a *agent.Agent) error {
	var model models.AgentModel
	model.FromDomain(a)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Update persists the current state of an existing agent
func (r *AgentRepository) Update(ctx context.Context, a *agent.Agent) error {
	var model models.AgentModel
	model.FromDomain(a)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByVendorID retrieves an agent by its unique vendor ID, nil when absent
func (r *AgentRepository) FindByVendorID(ctx context.Context, vendorID string) (*agent.Agent, error) {
	var model models.AgentModel
	err := r.db.WithContext(ctx).Where("vendor_id = ?", vendorID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll retrieves every registered agent, newest registration first
func (r *AgentRepository) FindAll(ctx context.Context) ([]*agent.Agent, error) {
	var results []models.AgentModel
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}

	agents := make([]*agent.Agent, len(results))
	for i := range results {
		agents[i] = results[i].ToDomain()
	}
	return agents, nil
}

// FindNotOffline retrieves agents whose stored status is online or degraded
func (r *AgentRepository) FindNotOffline(ctx context.Context) ([]*agent.Agent, error) {
	var results []models.AgentModel
	err := r.db.WithContext(ctx).
		Where("status IN ?", []agent.Status{agent.StatusOnline, agent.StatusDegraded}).
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	agents := make([]*agent.Agent, len(results))
	for i := range results {
		agents[i] = results[i].ToDomain()
	}
	return agents, nil
}

// CountByStatus returns agent counts per status
func (r *AgentRepository) CountByStatus(ctx context.Context) (map[agent.Status]int64, error) {
	type statusCount struct {
		Status agent.Status
		Count  int64
	}

	var results []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.AgentModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[agent.Status]int64)
	for _, rc := range results {
		counts[rc.Status] = rc.Count
	}
	return counts, nil
}

// Ensure AgentRepository implements agent.Repository
var _ agent.Repository = (*AgentRepository)(nil)
