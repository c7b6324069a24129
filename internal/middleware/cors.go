package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

// CORSMiddleware handles Cross-Origin Resource Sharing
type CORSMiddleware struct {
	cors *cors.Cors
}

// NewCORSMiddleware creates a new CORS middleware. The service is called
// directly from the web frontend, so any origin is allowed.
func NewCORSMiddleware() *CORSMiddleware {
	return &CORSMiddleware{
		cors: cors.New(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{"Content-Length"},
			MaxAge:         86400,
		}),
	}
}

// SetupCORS applies permissive CORS headers and answers preflights with 204.
func (m *CORSMiddleware) SetupCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.cors.HandlerFunc(c.Writer, c.Request)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
