package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"visual-analysis-service/internal/models"
)

// RateLimitMiddleware limits requests per client IP.
type RateLimitMiddleware struct {
	logger   *zap.Logger
	mutex    sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimitMiddleware creates a rate limit middleware allowing
// perMinute requests per IP, with a burst of the same size.
func NewRateLimitMiddleware(logger *zap.Logger, perMinute int) *RateLimitMiddleware {
	m := &RateLimitMiddleware{
		logger:   logger,
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
	}

	go m.cleanupOldEntries()

	return m
}

// RateLimit rejects requests from clients that exceed their per-IP budget.
func (m *RateLimitMiddleware) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		m.mutex.Lock()
		v, exists := m.visitors[ip]
		if !exists {
			v = &visitor{limiter: rate.NewLimiter(m.limit, m.burst)}
			m.visitors[ip] = v
		}
		v.lastSeen = time.Now()
		allowed := v.limiter.Allow()
		m.mutex.Unlock()

		if !allowed {
			m.logger.Warn("Rate limit exceeded", zap.String("ip", ip))
			c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:   "rate_limited",
				Code:    429,
				Message: "Too many requests, please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// cleanupOldEntries periodically drops idle visitors to bound memory use.
func (m *RateLimitMiddleware) cleanupOldEntries() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m.mutex.Lock()
		cutoff := time.Now().Add(-1 * time.Hour)
		for ip, v := range m.visitors {
			if v.lastSeen.Before(cutoff) {
				delete(m.visitors, ip)
			}
		}
		m.mutex.Unlock()
	}
}
