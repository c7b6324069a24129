package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"visual-analysis-service/internal/config"
	"visual-analysis-service/internal/handlers"
	"visual-analysis-service/internal/middleware"
	"visual-analysis-service/internal/services"
)

func main() {
	// Initialize logger
	logger, err := initLogger()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration; a missing model API key aborts startup
	cfg, err := config.LoadConfig(logger)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Initialize analysis service
	analysisService := services.NewAnalysisService(cfg, logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg)
	analyzeHandler := handlers.NewAnalyzeHandler(analysisService, logger)
	modeHandler := handlers.NewModeHandler()
	statsHandler := handlers.NewStatsHandler(analysisService)

	// Initialize middlewares
	authMiddleware := middleware.NewAuthMiddleware(cfg)
	loggerMiddleware := middleware.NewLoggerMiddleware(logger)
	recoveryMiddleware := middleware.NewRecoveryMiddleware(logger)
	corsMiddleware := middleware.NewCORSMiddleware()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(logger, cfg.RateLimitPerMinute)

	// Set Gin to release mode
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := gin.New()

	// Apply global middlewares
	router.Use(loggerMiddleware.RequestLogger())
	router.Use(recoveryMiddleware.RecoveryWithZap())
	router.Use(corsMiddleware.SetupCORS())
	router.Use(rateLimitMiddleware.RateLimit())

	// Health and readiness endpoints (no auth required)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// Protected endpoints (auth enforced when a service API key is configured)
	protected := router.Group("/")
	protected.Use(authMiddleware.AuthRequired())
	{
		protected.POST("/analyze", analyzeHandler.Analyze)
		protected.GET("/modes", modeHandler.GetModes)
		protected.GET("/stats", statsHandler.GetStats)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Run server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Create a deadline for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown the server gracefully
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	} else {
		logger.Info("Server exited gracefully")
	}
}

// initLogger initializes the logger with proper configuration
func initLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)

	return config.Build()
}
