package agent

// DomainError represents an agent-domain error with a stable code
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

// Common agent domain errors
var (
	ErrVendorIDRequired  = NewDomainError("VENDOR_ID_REQUIRED", "Vendor ID is required")
	ErrAgentURLRequired  = NewDomainError("AGENT_URL_REQUIRED", "Agent URL is required")
	ErrAuthTokenRequired = NewDomainError("AUTH_TOKEN_REQUIRED", "Auth token is required")
)
