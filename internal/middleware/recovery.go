package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"visual-analysis-service/internal/models"
)

// RecoveryMiddleware handles panic recovery
type RecoveryMiddleware struct {
	logger *zap.Logger
}

// NewRecoveryMiddleware creates a new recovery middleware
func NewRecoveryMiddleware(logger *zap.Logger) *RecoveryMiddleware {
	return &RecoveryMiddleware{
		logger: logger,
	}
}

// RecoveryWithZap recovers from panics and logs the error. The response body
// keeps the standard error shape so the frontend never sees a raw panic.
func (m *RecoveryMiddleware) RecoveryWithZap() gin.HandlerFunc {
	return gin.RecoveryWithWriter(gin.DefaultErrorWriter, func(c *gin.Context, err interface{}) {
		m.logger.Error("Panic recovered", zap.Any("error", err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Code:    "INTERNAL_ERROR",
			Message: "An unexpected error occurred. Please try again.",
		})
		c.Abort()
	})
}
