package sync

// DomainError represents a sync-domain error with a stable code
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Common sync domain errors
var (
	ErrVendorIDRequired  = NewDomainError("VENDOR_ID_REQUIRED", "Vendor ID is required")
	ErrOperationRequired = NewDomainError("OPERATION_REQUIRED", "Operation is required")
	ErrReferenceRequired = NewDomainError("REFERENCE_REQUIRED", "Reference is required")
	ErrJobTerminal       = NewDomainError("JOB_TERMINAL", "Job is in a terminal state and cannot be mutated")
	ErrInvalidTransition = NewDomainError("INVALID_TRANSITION", "Status transition not allowed")
	ErrEntryResolved     = NewDomainError("DLQ_ENTRY_RESOLVED", "Dead letter entry is already resolved")
)
