package recon

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType classifies a reconciliation log entry
type EventType string

const (
	EventDriftDetected   EventType = "DRIFT_DETECTED"
	EventDriftResolved   EventType = "DRIFT_RESOLVED"
	EventFullChecksum    EventType = "FULL_CHECKSUM"
	EventIncrementalSync EventType = "INCREMENTAL_SYNC"
)

// IsValid returns true if the event type is known
func (t EventType) IsValid() bool {
	switch t {
	case EventDriftDetected, EventDriftResolved, EventFullChecksum, EventIncrementalSync:
		return true
	default:
		return false
	}
}

// String returns the string representation of EventType
func (t EventType) String() string {
	return string(t)
}

// AllEventTypes returns every reconciliation event type
func AllEventTypes() []EventType {
	return []EventType{
		EventDriftDetected,
		EventDriftResolved,
		EventFullChecksum,
		EventIncrementalSync,
	}
}

// Event is one append-only reconciliation log entry: a drift detection
// or a completed comparison run, with duration and free-form details.
type Event struct {
	ID         uuid.UUID
	VendorID   string
	EventType  EventType
	DurationMs int64
	Timestamp  time.Time
	Details    []byte
}

// NewEvent creates a reconciliation event stamped with the current time
func NewEvent(vendorID string, eventType EventType, durationMs int64, details []byte) (*Event, error) {
	if vendorID == "" {
		return nil, ErrVendorIDRequired
	}
	if !eventType.IsValid() {
		return nil, ErrInvalidEventType
	}

	return &Event{
		ID:         uuid.New(),
		VendorID:   vendorID,
		EventType:  eventType,
		DurationMs: durationMs,
		Timestamp:  time.Now(),
		Details:    details,
	}, nil
}

// Repository defines persistence operations for the reconciliation log.
// The log is append-only; the only mutation is age-based pruning.
type Repository interface {
	// Save appends an event
	Save(ctx context.Context, event *Event) error
	// FindAll retrieves events newest first, optionally scoped to a vendor, paginated
	FindAll(ctx context.Context, vendorID string, page, pageSize int) ([]*Event, int64, error)
	// FindRecent retrieves the most recent n events, optionally scoped to a vendor
	FindRecent(ctx context.Context, vendorID string, limit int) ([]*Event, error)
	// CountByType returns event counts per type, optionally scoped to a vendor
	CountByType(ctx context.Context, vendorID string) (map[EventType]int64, error)
	// LastTimestamp returns the timestamp of the newest event, nil when the log is empty
	LastTimestamp(ctx context.Context, vendorID string) (*time.Time, error)
	// DeleteOlderThan prunes events older than the cutoff
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// DomainError represents a reconciliation-domain error with a stable code
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Common reconciliation domain errors
var (
	ErrVendorIDRequired = &DomainError{Code: "VENDOR_ID_REQUIRED", Message: "Vendor ID is required"}
	ErrInvalidEventType = &DomainError{Code: "INVALID_EVENT_TYPE", Message: "Unknown reconciliation event type"}
)
