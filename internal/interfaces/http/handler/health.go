package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping() error
}

// HealthHandler handles liveness and readiness probes
type HealthHandler struct {
	BaseHandler
	db      Pinger
	version string
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version}
}

// RegisterRoutes registers health routes on the given group
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
	rg.GET("/ready", h.Ready)
}

// Health reports process liveness
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready reports whether the service can reach its database
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"reason": "database unreachable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
