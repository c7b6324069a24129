package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"visual-analysis-service/internal/apperrors"
	"visual-analysis-service/internal/models"
	"visual-analysis-service/internal/services"
)

// AnalyzeHandler handles image analysis requests
type AnalyzeHandler struct {
	service  *services.AnalysisService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAnalyzeHandler creates a new analyze handler
func NewAnalyzeHandler(service *services.AnalysisService, logger *zap.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// Analyze handles a single analysis request end to end.
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	var req models.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Code:    "INVALID_REQUEST",
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Code:    "INVALID_REQUEST",
			Message: "Validation failed: " + err.Error(),
		})
		return
	}

	resp, err := h.service.Analyze(c.Request.Context(), &req)
	if err != nil {
		appErr := apperrors.As(err)
		h.logger.Error("Analysis failed",
			zap.String("mode", req.AnalysisSettings.Mode),
			zap.String("kind", string(appErr.Kind)),
			zap.Error(err),
		)
		c.JSON(appErr.StatusCode, models.ErrorResponse{
			Error:   string(appErr.Kind),
			Code:    appErr.Code,
			Message: appErr.Message,
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}
