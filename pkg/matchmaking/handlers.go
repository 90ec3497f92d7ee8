package matchmaking

import (
	"net/http"

	"landkeeper/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers exposes the matchmaking REST surface (spec §4.5 "REST
// surface"): ticket intake, cancellation, status lookup, and the JWKS
// document the gameserver uses to verify match tokens.
type Handlers struct {
	store  *Store
	issuer *TokenIssuer
}

// NewHandlers builds the matchmaking HTTP handlers.
func NewHandlers(store *Store, issuer *TokenIssuer) *Handlers {
	return &Handlers{store: store, issuer: issuer}
}

// Register mounts the matchmaking routes onto a gin.RouterGroup.
func (h *Handlers) Register(rg *gin.RouterGroup) {
	rg.POST("/matchmaking/enqueue", h.Enqueue)
	rg.POST("/matchmaking/cancel", h.Cancel)
	rg.GET("/matchmaking/status/:ticketId", h.Status)
	rg.GET("/.well-known/jwks.json", h.JWKS)
}

type enqueueRequest struct {
	QueueKey    string         `json:"queueKey" binding:"required"`
	Members     []string       `json:"members" binding:"required,min=1"`
	GroupID     string         `json:"groupId"`
	Region      string         `json:"region"`
	Constraints map[string]any `json:"constraints"`
}

// Enqueue handles POST /v1/matchmaking/enqueue.
func (h *Handlers) Enqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validation.ValidateQueueKey(req.QueueKey); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, groupSize := ParseQueueKey(req.QueueKey)

	ticket := &Ticket{
		TicketID:    uuid.NewString(),
		QueueKey:    req.QueueKey,
		GroupID:     req.GroupID,
		Members:     req.Members,
		GroupSize:   groupSize,
		Region:      req.Region,
		Constraints: req.Constraints,
	}

	result, err := h.store.Enqueue(c.Request.Context(), ticket)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

type cancelRequest struct {
	TicketID string `json:"ticketId" binding:"required"`
}

// Cancel handles POST /v1/matchmaking/cancel.
func (h *Handlers) Cancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cancelled, err := h.store.Cancel(c.Request.Context(), req.TicketID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !cancelled {
		c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found or not queued"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ticketId": req.TicketID, "status": StatusCancelled})
}

// Status handles GET /v1/matchmaking/status/:ticketId.
func (h *Handlers) Status(c *gin.Context) {
	ticketID := c.Param("ticketId")

	ticket, err := h.store.Get(c.Request.Context(), ticketID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ticket not found"})
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// JWKS handles GET /.well-known/jwks.json.
func (h *Handlers) JWKS(c *gin.Context) {
	c.JSON(http.StatusOK, h.issuer.JWKS())
}
