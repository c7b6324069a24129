package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the process-wide configuration, read once at startup and
// immutable afterwards.
type Config struct {
	Port               string
	GeminiAPIKey       string
	GeminiModel        string
	GeminiBaseURL      string
	ServiceAPIKey      string
	RateLimitPerMinute int
	LogLevel           string
}

// LoadConfig reads configuration from a .env file (if present) and the
// process environment. A missing Gemini API key is a fatal precondition:
// the service must not start without it.
func LoadConfig(logger *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	port := getEnvOrDefault("PORT", "8080")
	geminiAPIKey := getEnvOrDefault("GEMINI_API_KEY", "")
	geminiModel := getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash")
	geminiBaseURL := getEnvOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")
	serviceAPIKey := getEnvOrDefault("SERVICE_API_KEY", "")
	rateLimitStr := getEnvOrDefault("RATE_LIMIT_PER_MINUTE", "60")
	logLevel := getEnvOrDefault("LOG_LEVEL", "info")

	if geminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil || rateLimit <= 0 {
		return nil, fmt.Errorf("invalid rate limit: %q", rateLimitStr)
	}

	config := &Config{
		Port:               port,
		GeminiAPIKey:       geminiAPIKey,
		GeminiModel:        geminiModel,
		GeminiBaseURL:      geminiBaseURL,
		ServiceAPIKey:      serviceAPIKey,
		RateLimitPerMinute: rateLimit,
		LogLevel:           logLevel,
	}

	return config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
