package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"visual-analysis-service/internal/apperrors"
	"visual-analysis-service/internal/config"
	"visual-analysis-service/internal/models"
)

// In fast mode only this many additional images are attached on top of the
// primary, as a latency and cost cap.
const fastModeMaxAdditionalImages = 2

// invocationBudget is the per-call wall-clock and output-token budget.
// component_identify gets materially more of both because its prompt and
// expected output are larger.
type invocationBudget struct {
	Timeout   time.Duration
	MaxTokens int
}

func budgetFor(mode string, fast bool) invocationBudget {
	if mode == models.ModeComponentIdentify {
		if fast {
			return invocationBudget{Timeout: 24 * time.Second, MaxTokens: 1500}
		}
		return invocationBudget{Timeout: 30 * time.Second, MaxTokens: 3000}
	}
	if fast {
		return invocationBudget{Timeout: 12 * time.Second, MaxTokens: 800}
	}
	return invocationBudget{Timeout: 20 * time.Second, MaxTokens: 2000}
}

// GeminiService issues vision-language model calls against the Gemini
// generateContent REST endpoint.
type GeminiService struct {
	config     *config.Config
	logger     *zap.Logger
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGeminiService creates a new Gemini service.
func NewGeminiService(cfg *config.Config, logger *zap.Logger) *GeminiService {
	return &GeminiService{
		config: cfg,
		logger: logger,
		// Per-call deadlines come from the request context, not the client.
		httpClient: &http.Client{},
		// Cap concurrent upstream pressure independently of per-IP limits.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
}

type geminiAPIResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate sends one multi-part request (prompt text followed by every image)
// and returns the raw response text, or a typed error classifying the failure.
func (s *GeminiService) Generate(ctx context.Context, systemPrompt, userPrompt string, images []models.ImagePayload, settings *models.AnalysisSettings) (string, error) {
	budget := budgetFor(settings.Mode, settings.Fast())

	if err := s.limiter.Wait(ctx); err != nil {
		return "", apperrors.NewUpstreamFailure(err)
	}

	ctx, cancel := context.WithTimeout(ctx, budget.Timeout)
	defer cancel()

	attached := images
	if settings.Fast() && len(images) > fastModeMaxAdditionalImages+1 {
		attached = images[:fastModeMaxAdditionalImages+1]
	}

	parts := make([]geminiPart, 0, len(attached)+1)
	parts = append(parts, geminiPart{Text: systemPrompt + "\n\n" + userPrompt})
	for _, img := range attached {
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MimeType: img.MediaType,
				Data:     img.Data,
			},
		})
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
		GenerationConfig: geminiGenConfig{
			ResponseMimeType: "application/json",
			Temperature:      0.3,
			MaxOutputTokens:  budget.MaxTokens,
		},
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return "", apperrors.NewUpstreamFailure(fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		s.config.GeminiBaseURL, s.config.GeminiModel, s.config.GeminiAPIKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqJSON))
	if err != nil {
		return "", apperrors.NewUpstreamFailure(fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	s.logger.Info("Model request",
		zap.String("mode", settings.Mode),
		zap.Bool("fast_mode", settings.Fast()),
		zap.Int("images", len(attached)),
		zap.Int("max_tokens", budget.MaxTokens),
		zap.Duration("timeout", budget.Timeout),
	)

	start := time.Now()
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return "", apperrors.NewTimeout(err)
		}
		return "", apperrors.NewUpstreamFailure(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", apperrors.NewTimeout(err)
		}
		return "", apperrors.NewUpstreamFailure(fmt.Errorf("read response: %w", err))
	}

	s.logger.Info("Model response",
		zap.Int("status", resp.StatusCode),
		zap.Int("body_bytes", len(body)),
		zap.Duration("latency", time.Since(start)),
	)

	return s.classify(resp.StatusCode, body)
}

// classify maps the raw HTTP outcome onto the closed invocation error set,
// or returns the usable response text on success.
func (s *GeminiService) classify(status int, body []byte) (string, error) {
	if status == http.StatusTooManyRequests {
		return "", apperrors.NewRateLimited()
	}

	if status < 200 || status >= 300 {
		// Provider error detail stays server-side; only the class is surfaced.
		if isMalformedImageBody(body) {
			return "", apperrors.NewMalformedImage(fmt.Errorf("model API rejected inline image data (status %d)", status))
		}
		s.logger.Error("Model API error",
			zap.Int("status", status),
			zap.String("body_preview", preview(string(body), 300)),
		)
		return "", apperrors.NewUpstreamFailure(fmt.Errorf("model API returned status %d", status))
	}

	var apiResp geminiAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", apperrors.NewUpstreamFailure(fmt.Errorf("decode model response: %w", err))
	}

	if apiResp.Error != nil {
		return "", apperrors.NewUpstreamFailure(fmt.Errorf("model API error %d: %s", apiResp.Error.Code, apiResp.Error.Message))
	}

	if apiResp.PromptFeedback != nil && apiResp.PromptFeedback.BlockReason != "" {
		s.logger.Warn("Model blocked request", zap.String("block_reason", apiResp.PromptFeedback.BlockReason))
		return "", apperrors.NewSafetyBlocked()
	}

	var text strings.Builder
	for _, cand := range apiResp.Candidates {
		if cand.FinishReason == "SAFETY" {
			s.logger.Warn("Model candidate blocked", zap.String("finish_reason", cand.FinishReason))
			return "", apperrors.NewSafetyBlocked()
		}
		for _, part := range cand.Content.Parts {
			text.WriteString(part.Text)
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return "", apperrors.NewEmptyResponse()
	}

	return text.String(), nil
}

// isMalformedImageBody recognises the provider's invalid-inline-image errors.
// The substring check lives here so nothing upstream has to sniff messages.
func isMalformedImageBody(body []byte) bool {
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "invalid inlinedata") ||
		strings.Contains(lower, "invalid inline_data") ||
		strings.Contains(lower, "unable to process input image")
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
