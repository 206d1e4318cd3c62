package agent

import "context"

// CallResult is the outcome of one operation executed by a vendor agent
type CallResult struct {
	// ExternalReference is the identifier the ERP assigned to the written entity
	ExternalReference string
	// Metadata carries any extra fields the agent reported
	Metadata map[string]string
}

// Client is the outbound port for invoking a vendor agent. The caller
// owns cancellation and timeout through ctx; a timed-out call counts as
// a failure for circuit breaking purposes.
type Client interface {
	// Execute sends one operation with its payload to the agent
	Execute(ctx context.Context, a *Agent, operation string, payload []byte) (*CallResult, error)
}
