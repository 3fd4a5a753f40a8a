// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"printer-bridge/internal/config"
	"printer-bridge/internal/utils"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	manager   Manager
	config    *config.Config
	logger    *zap.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(manager Manager, cfg *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		manager:   manager,
		config:    cfg,
		logger:    logger,
		startTime: time.Now(),
	}
}

// HealthCheck returns overall service health including printer state
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Service healthy", gin.H{
		"status":        "ok",
		"version":       h.config.App.Version,
		"environment":   h.config.App.Environment,
		"uptime":        time.Since(h.startTime).String(),
		"printer_state": h.manager.State(),
	})
}

// LivenessCheck reports that the process is alive
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// ReadinessCheck reports whether the service can accept print traffic
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ready",
		"printer_state": h.manager.State(),
	})
}
