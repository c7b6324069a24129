package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visual-analysis-service/internal/models"
)

// ModeHandler handles analysis-mode discovery requests
type ModeHandler struct{}

// NewModeHandler creates a new mode handler
func NewModeHandler() *ModeHandler {
	return &ModeHandler{}
}

// GetModes returns the list of supported analysis modes
func (h *ModeHandler) GetModes(c *gin.Context) {
	c.JSON(http.StatusOK, models.ModeListResponse{
		Modes: models.Modes,
	})
}
