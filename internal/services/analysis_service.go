package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"visual-analysis-service/internal/config"
	"visual-analysis-service/internal/models"
)

// AnalysisService orchestrates the analysis pipeline for one request:
// materialize images, invoke the model, parse its output, normalize the
// result. Every invocation is fully independent; the only shared state is
// the stats counters.
type AnalysisService struct {
	config     *config.Config
	logger     *zap.Logger
	images     *ImageService
	gemini     *GeminiService
	parser     *ResponseParser
	normalizer *SchemaNormalizer

	stats      stats
	statsMutex sync.RWMutex
}

type stats struct {
	totalAnalyses       int64
	degradedResults     int64
	totalProcessingTime time.Duration
	strategyFires       map[string]int64
}

// NewAnalysisService creates a new analysis service.
func NewAnalysisService(cfg *config.Config, logger *zap.Logger) *AnalysisService {
	return &AnalysisService{
		config:     cfg,
		logger:     logger,
		images:     NewImageService(logger),
		gemini:     NewGeminiService(cfg, logger),
		parser:     NewResponseParser(logger),
		normalizer: NewSchemaNormalizer(logger),
		stats:      stats{strategyFires: make(map[string]int64)},
	}
}

// Analyze runs the full pipeline. Failures before the parse stage return a
// typed error for the HTTP layer to map; a parse failure degrades into a
// synthetic schema-valid result so the caller always gets something
// renderable.
func (s *AnalysisService) Analyze(ctx context.Context, req *models.AnalysisRequest) (*models.AnalysisResponse, error) {
	start := time.Now()
	settings := &req.AnalysisSettings

	images, err := s.images.MaterializeAll(ctx, req.PrimaryImage, req.AdditionalImages)
	if err != nil {
		return nil, err
	}

	systemPrompt := SystemPrompt(settings.Mode, settings.Fast())
	userPrompt := UserPrompt(settings.Mode, settings.Fast(), settings.FocusAreas)

	text, err := s.gemini.Generate(ctx, systemPrompt, userPrompt, images, settings)
	if err != nil {
		return nil, err
	}

	var analysis map[string]interface{}
	parsed, strategy, parseErr := s.parser.Parse(text, settings.Mode)
	if parseErr != nil {
		// Image analysis is best-effort: an uninterpretable model response
		// becomes a degraded result, never an HTTP error.
		s.logger.Warn("Degrading to synthetic result",
			zap.String("mode", settings.Mode),
			zap.Error(parseErr),
		)
		analysis = degradedAnalysis()
	} else {
		analysis = s.normalizer.Normalize(parsed, settings)
	}

	inner := analysisObject(analysis)
	inner["processing_time_ms"] = time.Since(start).Milliseconds()
	inner["fast_mode"] = settings.Fast()

	s.recordAnalysis(time.Since(start), strategy, parseErr != nil)

	return &models.AnalysisResponse{Analysis: inner}, nil
}

// degradedAnalysis builds the synthetic low-confidence result returned when
// no parse strategy recovered JSON from the model's text.
func degradedAnalysis() map[string]interface{} {
	return map[string]interface{}{
		"analysis": map[string]interface{}{
			"parse_error": true,
			"findings": []interface{}{
				map[string]interface{}{
					"description":    "The AI could not produce a structured analysis for this photo.",
					"eicr_code":      models.EICRCodeFI,
					"confidence":     0.1,
					"bs7671_clauses": []interface{}{"N/A"},
					"fix_guidance":   "Retake the photo and try again. A qualified electrician should inspect anything you are unsure about.",
				},
			},
			"recovery_tips": []interface{}{
				"Retake the photo in better lighting",
				"Move closer so the equipment fills the frame",
				"Make sure printed labels and markings are legible",
				"Try again with a single clear photo",
			},
		},
	}
}

func (s *AnalysisService) recordAnalysis(elapsed time.Duration, strategy string, degraded bool) {
	s.statsMutex.Lock()
	defer s.statsMutex.Unlock()

	s.stats.totalAnalyses++
	s.stats.totalProcessingTime += elapsed
	if degraded {
		s.stats.degradedResults++
	} else if strategy != "" {
		s.stats.strategyFires[strategy]++
	}
}

// GetStats returns a snapshot of the service counters.
func (s *AnalysisService) GetStats() models.StatsResponse {
	s.statsMutex.RLock()
	defer s.statsMutex.RUnlock()

	avg := 0.0
	if s.stats.totalAnalyses > 0 {
		avg = float64(s.stats.totalProcessingTime.Milliseconds()) / float64(s.stats.totalAnalyses)
	}

	fires := make(map[string]int64, len(s.stats.strategyFires))
	for k, v := range s.stats.strategyFires {
		fires[k] = v
	}

	return models.StatsResponse{
		TotalAnalyses:       s.stats.totalAnalyses,
		DegradedResults:     s.stats.degradedResults,
		AvgProcessingTimeMs: avg,
		ParseStrategyFires:  fires,
	}
}
