package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visual-analysis-service/internal/config"
	"visual-analysis-service/internal/models"
)

// AuthMiddleware handles API key authentication
type AuthMiddleware struct {
	config *config.Config
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(config *config.Config) *AuthMiddleware {
	return &AuthMiddleware{
		config: config,
	}
}

// AuthRequired validates the X-API-KEY header. Enforcement is opt-in: when
// no service API key is configured the deployment is assumed to sit behind
// the application's own frontend and all requests pass.
func (m *AuthMiddleware) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.config.ServiceAPIKey == "" {
			c.Next()
			return
		}

		apiKey := c.GetHeader("X-API-KEY")
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "unauthorized",
				Code:    "API_KEY_REQUIRED",
				Message: "API key is required",
			})
			c.Abort()
			return
		}

		if apiKey != m.config.ServiceAPIKey {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "unauthorized",
				Code:    "INVALID_API_KEY",
				Message: "Invalid API key",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
