package admin

import (
	"net/http"
	"time"

	"landkeeper/pkg/land"
	"landkeeper/pkg/realm"
	"landkeeper/pkg/replay"
	"landkeeper/pkg/server"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the admin REST surface (spec §4.6).
type Handlers struct {
	registry *realm.Registry
	runner   *replay.Runner
	keys     KeyStore
	started  time.Time
}

// NewHandlers builds the admin HTTP handlers.
func NewHandlers(registry *realm.Registry, runner *replay.Runner, keys KeyStore) *Handlers {
	return &Handlers{registry: registry, runner: runner, keys: keys, started: time.Now()}
}

// Mount registers the admin routes under rg, each behind the role its
// action requires (spec §4.6 "role hierarchy").
func (h *Handlers) Mount(rg *gin.RouterGroup) {
	rg.Use(server.RequestIDMiddleware())
	rg.GET("/lands", RequireRole(h.keys, RoleViewer), h.ListLands)
	rg.GET("/lands/:landId", RequireRole(h.keys, RoleViewer), h.GetLand)
	rg.DELETE("/lands/:landId", RequireRole(h.keys, RoleAdmin), h.RetireLand)
	rg.GET("/stats", RequireRole(h.keys, RoleViewer), h.Stats)
	rg.POST("/reevaluation/replay/start", RequireRole(h.keys, RoleOperator), h.StartReplay)
}

type landView struct {
	LandType  string    `json:"landType"`
	LandID    string    `json:"landId"`
	Sessions  int       `json:"sessions"`
	Tick      uint64    `json:"tick"`
	CreatedAt time.Time `json:"createdAt"`
	Idle      bool      `json:"idle"`
}

func viewOf(k *land.Keeper) landView {
	stats := k.Stats()
	return landView{
		LandType:  k.LandType(),
		LandID:    k.InstanceID(),
		Sessions:  stats.SessionCount,
		Tick:      stats.Tick,
		CreatedAt: stats.CreatedAt,
		Idle:      stats.Idle,
	}
}

// ListLands handles GET /admin/lands, optionally filtered by
// ?landType=.
func (h *Handlers) ListLands(c *gin.Context) {
	var keepers []*land.Keeper
	if landType := c.Query("landType"); landType != "" {
		keepers = h.registry.InstancesOf(landType)
	} else {
		keepers = h.registry.Instances()
	}

	views := make([]landView, 0, len(keepers))
	for _, k := range keepers {
		views = append(views, viewOf(k))
	}
	c.JSON(http.StatusOK, views)
}

// GetLand handles GET /admin/lands/:landId, where :landId is of the
// form "<landType>:<instanceId>".
func (h *Handlers) GetLand(c *gin.Context) {
	landType, instanceID, ok := splitLandID(c.Param("landId"))
	if !ok {
		server.AbortWithError(c, http.StatusBadRequest, "invalid_land_id", "landId must be of the form landType:instanceId")
		return
	}

	k, found := h.registry.Lookup(landType, instanceID)
	if !found {
		server.AbortWithError(c, http.StatusNotFound, "land_not_found", "land instance not found")
		return
	}
	c.JSON(http.StatusOK, viewOf(k))
}

// RetireLand handles DELETE /admin/lands/:landId.
func (h *Handlers) RetireLand(c *gin.Context) {
	landType, instanceID, ok := splitLandID(c.Param("landId"))
	if !ok {
		server.AbortWithError(c, http.StatusBadRequest, "invalid_land_id", "landId must be of the form landType:instanceId")
		return
	}

	reason := c.Query("reason")
	if reason == "" {
		reason = "admin requested retirement"
	}

	if err := h.registry.Retire(landType, instanceID, reason); err != nil {
		server.AbortWithError(c, http.StatusNotFound, "land_not_found", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"landId": c.Param("landId"), "status": "retiring"})
}

// Stats handles GET /admin/stats: an aggregate view across every live
// land instance.
func (h *Handlers) Stats(c *gin.Context) {
	instances := h.registry.Instances()

	byType := make(map[string]int)
	totalSessions := 0
	for _, k := range instances {
		byType[k.LandType()]++
		totalSessions += k.Stats().SessionCount
	}

	c.JSON(http.StatusOK, gin.H{
		"uptimeSeconds": time.Since(h.started).Seconds(),
		"totalLands":    len(instances),
		"totalSessions": totalSessions,
		"landsByType":   byType,
	})
}

type startReplayRequest struct {
	RunID      string `json:"runId" binding:"required"`
	LandType   string `json:"landType" binding:"required"`
	InstanceID string `json:"instanceId" binding:"required"`
}

// StartReplay handles POST /admin/reevaluation/replay/start (spec
// §4.6 "kick off a replay re-evaluation run").
func (h *Handlers) StartReplay(c *gin.Context) {
	var req startReplayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.AbortWithError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.runner.Start(req.RunID, req.LandType, req.InstanceID)
	if err != nil {
		server.AbortWithError(c, http.StatusConflict, "replay_start_failed", err.Error())
		return
	}
	c.JSON(http.StatusAccepted, result)
}

func splitLandID(id string) (landType, instanceID string, ok bool) {
	for i := 0; i < len(id); i++ {
		if id[i] == ':' {
			if i == 0 || i == len(id)-1 {
				return "", "", false
			}
			return id[:i], id[i+1:], true
		}
	}
	return "", "", false
}
