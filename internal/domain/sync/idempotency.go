package sync

import (
	"context"
	"time"
)

// IdempotencyStore short-circuits duplicate inbound events by
// correlation ID before they reach the job store. It is a best-effort
// cache in front of the durable (vendor_id, reference) check, not a
// replacement for it.
type IdempotencyStore interface {
	// MarkProcessed marks a correlation ID as seen with a TTL.
	// Returns true if it was newly marked, false if already present.
	MarkProcessed(ctx context.Context, correlationID string, ttl time.Duration) (bool, error)
	// IsProcessed checks whether a correlation ID has been seen
	IsProcessed(ctx context.Context, correlationID string) (bool, error)
}
