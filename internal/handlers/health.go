package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sam-thetutor/herlock/internal/services"
	"github.com/sam-thetutor/herlock/pkg/metrics"
)

// HealthHandler handles health and metrics endpoints
type HealthHandler struct {
	health  *services.HealthService
	metrics *metrics.Collector
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(health *services.HealthService, collector *metrics.Collector) *HealthHandler {
	return &HealthHandler{health: health, metrics: collector}
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    services.HealthStatus   `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Services  []*services.HealthCheck `json:"services"`
	Version   string                  `json:"version,omitempty"`
}

// GetHealth returns the overall health status
func (h *HealthHandler) GetHealth(c *gin.Context) {
	status, checks := h.health.Overall()

	statusCode := http.StatusOK
	if status == services.HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  checks,
		Version:   "1.0.0",
	})
}

// GetLiveness is a minimal liveness probe
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive", "timestamp": time.Now()})
}

// GetReadiness reports whether both upstreams accept traffic
func (h *HealthHandler) GetReadiness(c *gin.Context) {
	status, _ := h.health.Overall()
	if status == services.HealthStatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

// GetMetrics returns the collector snapshot
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	snapshot := h.metrics.GetMetrics()
	c.JSON(http.StatusOK, gin.H{
		"metrics":         snapshot,
		"uptime":          h.metrics.GetUptime().String(),
		"cache_hit_ratio": h.metrics.GetCacheHitRatio(),
		"success_rate":    h.metrics.GetSuccessRate(),
	})
}
