package handler

import (
	"time"

	appagent "github.com/erp/syncengine/internal/application/agent"
	"github.com/erp/syncengine/internal/domain/agent"
	"github.com/gin-gonic/gin"
)

// AgentHandler handles agent registry HTTP requests
type AgentHandler struct {
	BaseHandler
	registry *appagent.RegistryService
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(registry *appagent.RegistryService) *AgentHandler {
	return &AgentHandler{registry: registry}
}

// RegisterAgentRequest is the payload for agent registration
type RegisterAgentRequest struct {
	VendorID  string `json:"vendor_id" binding:"required"`
	AgentURL  string `json:"agent_url" binding:"required,url"`
	ERPType   string `json:"erp_type"`
	AuthToken string `json:"auth_token" binding:"required"`
	Version   string `json:"version"`
}

// HeartbeatRequest is the payload for an agent heartbeat
type HeartbeatRequest struct {
	Version string `json:"version"`
}

// AgentResponse is the API view of an agent, token hash never included
type AgentResponse struct {
	ID            string    `json:"id"`
	VendorID      string    `json:"vendor_id"`
	AgentURL      string    `json:"agent_url"`
	ERPType       string    `json:"erp_type"`
	Version       string    `json:"version"`
	Status        string    `json:"status"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	CreatedAt     time.Time `json:"created_at"`
}

func toAgentResponse(a *agent.Agent) AgentResponse {
	return AgentResponse{
		ID:            a.ID.String(),
		VendorID:      a.VendorID,
		AgentURL:      a.AgentURL,
		ERPType:       a.ERPType,
		Version:       a.Version,
		Status:        a.Status.String(),
		LastHeartbeat: a.LastHeartbeat,
		CreatedAt:     a.CreatedAt,
	}
}

// Register registers or refreshes a vendor agent
func (h *AgentHandler) Register(c *gin.Context) {
	var req RegisterAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	registered := h.registry.Register(c.Request.Context(), req.VendorID, req.AgentURL, req.ERPType, req.AuthToken, req.Version)
	if registered == nil {
		h.BadRequest(c, "Agent registration failed")
		return
	}
	h.Created(c, toAgentResponse(registered))
}

// Heartbeat records a liveness signal from an agent
func (h *AgentHandler) Heartbeat(c *gin.Context) {
	vendorID := c.Param("vendorId")

	var req HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.BadRequest(c, "Invalid request body")
		return
	}

	updated := h.registry.Heartbeat(c.Request.Context(), vendorID, req.Version)
	if updated == nil {
		h.NotFound(c, "No agent registered for vendor")
		return
	}
	h.Success(c, toAgentResponse(updated))
}

// Deregister soft-flips an agent offline
func (h *AgentHandler) Deregister(c *gin.Context) {
	vendorID := c.Param("vendorId")

	if !h.registry.Deregister(c.Request.Context(), vendorID) {
		h.NotFound(c, "No agent registered for vendor")
		return
	}
	h.NoContent(c)
}

// Get retrieves one agent
func (h *AgentHandler) Get(c *gin.Context) {
	vendorID := c.Param("vendorId")

	found := h.registry.GetAgent(c.Request.Context(), vendorID)
	if found == nil {
		h.NotFound(c, "No agent registered for vendor")
		return
	}
	h.Success(c, toAgentResponse(found))
}

// List retrieves all registered agents
func (h *AgentHandler) List(c *gin.Context) {
	agents := h.registry.GetAllAgents(c.Request.Context())

	responses := make([]AgentResponse, len(agents))
	for i, a := range agents {
		responses[i] = toAgentResponse(a)
	}
	h.Success(c, responses)
}

// Stats summarizes the fleet by status
func (h *AgentHandler) Stats(c *gin.Context) {
	h.Success(c, h.registry.GetAgentStats(c.Request.Context()))
}
