package models

import (
	"time"

	"github.com/erp/syncengine/internal/domain/sync"
	"github.com/google/uuid"
)

// SyncJobModel is the persistence model for the sync.Job entity.
// A partial unique index on (vendor_id, reference) for non-terminal
// statuses backs the one-active-job-per-reference invariant; see the
// corresponding migration.
type SyncJobModel struct {
	ID                uuid.UUID      `gorm:"type:uuid;primary_key"`
	VendorID          string         `gorm:"type:varchar(100);not null;index:idx_sync_jobs_vendor_ref,priority:1"`
	Operation         string         `gorm:"type:varchar(50);not null;index"`
	Reference         string         `gorm:"type:varchar(255);not null;index:idx_sync_jobs_vendor_ref,priority:2"`
	Payload           []byte         `gorm:"type:bytea"`
	Status            sync.JobStatus `gorm:"type:varchar(20);not null;index"`
	RetryCount        int            `gorm:"not null;default:0"`
	MaxRetries        int            `gorm:"not null;default:5"`
	NextRetryAt       *time.Time
	ErrorMessage      string `gorm:"type:text"`
	ErrorStack        string `gorm:"type:text"`
	ExternalReference string `gorm:"type:varchar(255)"`
	CreatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	ExpiresAt         *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (SyncJobModel) TableName() string {
	return "sync_jobs"
}

// ToDomain converts the persistence model to a domain Job
func (m *SyncJobModel) ToDomain() *sync.Job {
	return &sync.Job{
		ID:                m.ID,
		VendorID:          m.VendorID,
		Operation:         m.Operation,
		Reference:         m.Reference,
		Payload:           m.Payload,
		Status:            m.Status,
		RetryCount:        m.RetryCount,
		MaxRetries:        m.MaxRetries,
		NextRetryAt:       m.NextRetryAt,
		ErrorMessage:      m.ErrorMessage,
		ErrorStack:        m.ErrorStack,
		ExternalReference: m.ExternalReference,
		CreatedAt:         m.CreatedAt,
		StartedAt:         m.StartedAt,
		CompletedAt:       m.CompletedAt,
		ExpiresAt:         m.ExpiresAt,
	}
}

// FromDomain populates the persistence model from a domain Job
func (m *SyncJobModel) FromDomain(j *sync.Job) {
	m.ID = j.ID
	m.VendorID = j.VendorID
	m.Operation = j.Operation
	m.Reference = j.Reference
	m.Payload = j.Payload
	m.Status = j.Status
	m.RetryCount = j.RetryCount
	m.MaxRetries = j.MaxRetries
	m.NextRetryAt = j.NextRetryAt
	m.ErrorMessage = j.ErrorMessage
	m.ErrorStack = j.ErrorStack
	m.ExternalReference = j.ExternalReference
	m.CreatedAt = j.CreatedAt
	m.StartedAt = j.StartedAt
	m.CompletedAt = j.CompletedAt
	m.ExpiresAt = j.ExpiresAt
}

// DeadLetterModel is the persistence model for the sync.DeadLetterEntry entity
type DeadLetterModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key"`
	OriginalJobID *uuid.UUID `gorm:"type:uuid;index"`
	VendorID      string     `gorm:"type:varchar(100);not null;index"`
	Operation     string     `gorm:"type:varchar(50);not null"`
	Payload       []byte     `gorm:"type:bytea"`
	FailureReason string     `gorm:"type:text"`
	FailureStack  string     `gorm:"type:text"`
	AttemptCount  int        `gorm:"not null;default:0"`
	LastAttemptAt time.Time  `gorm:"not null"`
	Resolved      bool       `gorm:"not null;default:false;index"`
	ResolvedAt    *time.Time
	ResolvedBy    string    `gorm:"type:varchar(100)"`
	CreatedAt     time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (DeadLetterModel) TableName() string {
	return "dead_letter_entries"
}

// ToDomain converts the persistence model to a domain DeadLetterEntry
func (m *DeadLetterModel) ToDomain() *sync.DeadLetterEntry {
	return &sync.DeadLetterEntry{
		ID:            m.ID,
		OriginalJobID: m.OriginalJobID,
		VendorID:      m.VendorID,
		Operation:     m.Operation,
		Payload:       m.Payload,
		FailureReason: m.FailureReason,
		FailureStack:  m.FailureStack,
		AttemptCount:  m.AttemptCount,
		LastAttemptAt: m.LastAttemptAt,
		Resolved:      m.Resolved,
		ResolvedAt:    m.ResolvedAt,
		ResolvedBy:    m.ResolvedBy,
		CreatedAt:     m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain DeadLetterEntry
func (m *DeadLetterModel) FromDomain(e *sync.DeadLetterEntry) {
	m.ID = e.ID
	m.OriginalJobID = e.OriginalJobID
	m.VendorID = e.VendorID
	m.Operation = e.Operation
	m.Payload = e.Payload
	m.FailureReason = e.FailureReason
	m.FailureStack = e.FailureStack
	m.AttemptCount = e.AttemptCount
	m.LastAttemptAt = e.LastAttemptAt
	m.Resolved = e.Resolved
	m.ResolvedAt = e.ResolvedAt
	m.ResolvedBy = e.ResolvedBy
	m.CreatedAt = e.CreatedAt
}
