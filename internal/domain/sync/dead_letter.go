package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultCleanupAge is how long resolved dead letter entries are kept
// before age-based cleanup may remove them.
const DefaultCleanupAge = 30 * 24 * time.Hour

// DeadLetterEntry captures a job that exhausted automated retry. Entries
// are only ever removed by age-based cleanup of resolved rows; unresolved
// entries stay until a human resolves them.
type DeadLetterEntry struct {
	ID            uuid.UUID
	OriginalJobID *uuid.UUID
	VendorID      string
	Operation     string
	Payload       []byte
	FailureReason string
	FailureStack  string
	AttemptCount  int
	LastAttemptAt time.Time
	Resolved      bool
	ResolvedAt    *time.Time
	ResolvedBy    string
	CreatedAt     time.Time
}

// NewDeadLetterEntry creates an unresolved dead letter entry
func NewDeadLetterEntry(originalJobID *uuid.UUID, vendorID, operation string, payload []byte, failureReason, failureStack string, attemptCount int) (*DeadLetterEntry, error) {
	if vendorID == "" {
		return nil, ErrVendorIDRequired
	}
	if operation == "" {
		return nil, ErrOperationRequired
	}

	now := time.Now()
	return &DeadLetterEntry{
		ID:            uuid.New(),
		OriginalJobID: originalJobID,
		VendorID:      vendorID,
		Operation:     operation,
		Payload:       payload,
		FailureReason: failureReason,
		FailureStack:  failureStack,
		AttemptCount:  attemptCount,
		LastAttemptAt: now,
		Resolved:      false,
		CreatedAt:     now,
	}, nil
}

// Resolve marks the entry as handled by an operator. Resolution is a
// human judgement, never an automatic side effect of a retry.
func (e *DeadLetterEntry) Resolve(resolvedBy string) error {
	if e.Resolved {
		return ErrEntryResolved
	}
	now := time.Now()
	e.Resolved = true
	e.ResolvedAt = &now
	e.ResolvedBy = resolvedBy
	return nil
}

// DeadLetterRepository defines persistence operations for dead letter entries
type DeadLetterRepository interface {
	// Save inserts a new entry
	Save(ctx context.Context, entry *DeadLetterEntry) error
	// Update persists the current state of an existing entry
	Update(ctx context.Context, entry *DeadLetterEntry) error
	// FindByID retrieves an entry by ID
	FindByID(ctx context.Context, id uuid.UUID) (*DeadLetterEntry, error)
	// FindUnresolved retrieves unresolved entries, newest first, paginated
	FindUnresolved(ctx context.Context, vendorID string, page, pageSize int) ([]*DeadLetterEntry, int64, error)
	// CountUnresolved counts unresolved entries, optionally scoped to a vendor
	CountUnresolved(ctx context.Context, vendorID string) (int64, error)
	// DeleteResolvedOlderThan removes resolved entries created before the cutoff
	DeleteResolvedOlderThan(ctx context.Context, before time.Time) (int64, error)
}
