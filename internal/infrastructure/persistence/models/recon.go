package models

import (
	"time"

	"github.com/erp/syncengine/internal/domain/recon"
	"github.com/google/uuid"
)

// ReconciliationEventModel is the persistence model for the recon.Event entity
type ReconciliationEventModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	VendorID   string          `gorm:"type:varchar(100);not null;index"`
	EventType  recon.EventType `gorm:"type:varchar(30);not null;index"`
	DurationMs int64           `gorm:"not null;default:0"`
	Timestamp  time.Time       `gorm:"not null;index"`
	Details    []byte          `gorm:"type:bytea"`
}

// TableName returns the table name for GORM
func (ReconciliationEventModel) TableName() string {
	return "reconciliation_events"
}

// ToDomain converts the persistence model to a domain Event
func (m *ReconciliationEventModel) ToDomain() *recon.Event {
	return &recon.Event{
		ID:         m.ID,
		VendorID:   m.VendorID,
		EventType:  m.EventType,
		DurationMs: m.DurationMs,
		Timestamp:  m.Timestamp,
		Details:    m.Details,
	}
}

// FromDomain populates the persistence model from a domain Event
func (m *ReconciliationEventModel) FromDomain(e *recon.Event) {
	m.ID = e.ID
	m.VendorID = e.VendorID
	m.EventType = e.EventType
	m.DurationMs = e.DurationMs
	m.Timestamp = e.Timestamp
	m.Details = e.Details
}
