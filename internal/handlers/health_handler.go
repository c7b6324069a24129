package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visual-analysis-service/internal/config"
	"visual-analysis-service/internal/models"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	config *config.Config
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(config *config.Config) *HealthHandler {
	return &HealthHandler{config: config}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready returns the readiness status of the service. The service is ready
// once the model API credential is configured.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.config.GeminiAPIKey == "" {
		c.JSON(http.StatusServiceUnavailable, models.ReadyResponse{
			Status: "missing model API credential",
		})
		return
	}
	c.JSON(http.StatusOK, models.ReadyResponse{
		Status: "ok",
	})
}
