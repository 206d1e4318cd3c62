package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/erp/syncengine/internal/domain/agent"
	"go.uber.org/zap"
)

// Config holds HTTP client settings for outbound agent calls
type Config struct {
	// Timeout bounds one outbound call end to end
	Timeout time.Duration
	// UserAgent is sent on every request
	UserAgent string
}

// DefaultConfig returns default client settings
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		UserAgent: "syncengine/1.0",
	}
}

// HTTPClient implements agent.Client over plain HTTP+JSON. Each
// operation is POSTed to the agent's execute endpoint; the agent
// responds with the external reference it created.
type HTTPClient struct {
	httpClient *http.Client
	config     Config
	logger     *zap.Logger
}

// NewHTTPClient creates a new agent HTTP client
func NewHTTPClient(config Config, logger *zap.Logger) *HTTPClient {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultConfig().UserAgent
	}

	return &HTTPClient{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
		logger:     logger,
	}
}

type executeRequest struct {
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload"`
}

type executeResponse struct {
	Success           bool              `json:"success"`
	ExternalReference string            `json:"external_reference"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	Error             string            `json:"error,omitempty"`
}

// Execute sends one operation with its payload to the agent's execute
// endpoint and decodes the outcome.
func (c *HTTPClient) Execute(ctx context.Context, a *agent.Agent, operation string, payload []byte) (*agent.CallResult, error) {
	body, err := json.Marshal(executeRequest{
		Operation: operation,
		Payload:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode agent request: %w", err)
	}

	url := a.AgentURL + "/api/v1/execute"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent call failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	c.logger.Debug("agent call finished",
		zap.String("vendor_id", a.VendorID),
		zap.String("operation", operation),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("agent returned status %d", resp.StatusCode)
	}

	var decoded executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode agent response: %w", err)
	}
	if !decoded.Success {
		return nil, fmt.Errorf("agent rejected operation %s: %s", operation, decoded.Error)
	}

	return &agent.CallResult{
		ExternalReference: decoded.ExternalReference,
		Metadata:          decoded.Metadata,
	}, nil
}

// Ensure HTTPClient implements agent.Client
var _ agent.Client = (*HTTPClient)(nil)
