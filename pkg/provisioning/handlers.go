package provisioning

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the provisioning registry's REST surface (spec
// §4.5 "register/heartbeat").
type Handlers struct {
	registry *Registry
}

// NewHandlers builds the provisioning HTTP handlers.
func NewHandlers(registry *Registry) *Handlers {
	return &Handlers{registry: registry}
}

// Register mounts the provisioning routes onto a gin.RouterGroup.
func (h *Handlers) Register(rg *gin.RouterGroup) {
	rg.POST("/provisioning/servers/register", h.RegisterServer)
	rg.DELETE("/provisioning/servers/:serverId", h.DeregisterServer)
	rg.GET("/provisioning/servers", h.ListServers)
}

type registerRequest struct {
	ServerID    string   `json:"serverId" binding:"required"`
	Host        string   `json:"host" binding:"required"`
	Port        int      `json:"port" binding:"required"`
	ConnectHost string   `json:"connectHost"`
	ConnectPort int      `json:"connectPort"`
	LandTypes   []string `json:"landTypes" binding:"required,min=1"`
	LandCount   int      `json:"landCount"`
}

// RegisterServer handles POST /v1/provisioning/servers/register, used
// both for a gameserver's initial registration and its periodic
// heartbeat refresh (spec §4.5 "register/heartbeat").
func (h *Handlers) RegisterServer(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry := ServerEntry{
		ServerID:    req.ServerID,
		Host:        req.Host,
		Port:        req.Port,
		ConnectHost: req.ConnectHost,
		ConnectPort: req.ConnectPort,
		LandTypes:   req.LandTypes,
		LandCount:   req.LandCount,
	}
	if entry.ConnectHost == "" {
		entry.ConnectHost = entry.Host
	}
	if entry.ConnectPort == 0 {
		entry.ConnectPort = entry.Port
	}

	if err := h.registry.Register(c.Request.Context(), entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"serverId": entry.ServerID, "status": "registered"})
}

// DeregisterServer handles DELETE /v1/provisioning/servers/:serverId.
func (h *Handlers) DeregisterServer(c *gin.Context) {
	serverID := c.Param("serverId")
	if err := h.registry.Deregister(c.Request.Context(), serverID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"serverId": serverID, "status": "deregistered"})
}

// ListServers handles GET /v1/provisioning/servers, used by operators
// to inspect the registry's current view.
func (h *Handlers) ListServers(c *gin.Context) {
	entries, err := h.registry.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}
