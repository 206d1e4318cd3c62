package models

import (
	"time"

	"github.com/erp/syncengine/internal/domain/agent"
	"github.com/google/uuid"
)

// AgentModel is the persistence model for the agent.Agent entity
type AgentModel struct {
	ID            uuid.UUID    `gorm:"type:uuid;primary_key"`
	VendorID      string       `gorm:"type:varchar(100);not null;uniqueIndex"`
	AgentURL      string       `gorm:"type:varchar(500);not null"`
	ERPType       string       `gorm:"type:varchar(50)"`
	AuthTokenHash string       `gorm:"type:varchar(100);not null"`
	Version       string       `gorm:"type:varchar(50)"`
	Status        agent.Status `gorm:"type:varchar(20);not null;index"`
	LastHeartbeat time.Time    `gorm:"not null"`
	CreatedAt     time.Time    `gorm:"not null"`
	UpdatedAt     time.Time    `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AgentModel) TableName() string {
	return "agents"
}

// ToDomain converts the persistence model to a domain Agent
func (m *AgentModel) ToDomain() *agent.Agent {
	return &agent.Agent{
		ID:            m.ID,
		VendorID:      m.VendorID,
		AgentURL:      m.AgentURL,
		ERPType:       m.ERPType,
		AuthTokenHash: m.AuthTokenHash,
		Version:       m.Version,
		Status:        m.Status,
		LastHeartbeat: m.LastHeartbeat,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Agent
func (m *AgentModel) FromDomain(a *agent.Agent) {
	m.ID = a.ID
	m.VendorID = a.VendorID
	m.AgentURL = a.AgentURL
	m.ERPType = a.ERPType
	m.AuthTokenHash = a.AuthTokenHash
	m.Version = a.Version
	m.Status = a.Status
	m.LastHeartbeat = a.LastHeartbeat
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = a.UpdatedAt
}
