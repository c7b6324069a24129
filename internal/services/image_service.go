package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"visual-analysis-service/internal/apperrors"
	"visual-analysis-service/internal/models"
)

// Remote images are capped to keep model request bodies bounded.
const maxRemoteImageBytes = 10 * 1024 * 1024

var dataURIPattern = regexp.MustCompile(`^data:([^;]+);base64,(.+)$`)

// ImageService materializes image references (data URIs or remote URLs) into
// payloads ready for embedding in a model request.
type ImageService struct {
	logger     *zap.Logger
	httpClient *http.Client
}

// NewImageService creates a new image service.
func NewImageService(logger *zap.Logger) *ImageService {
	return &ImageService{
		logger: logger,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Materialize turns one image reference into an ImagePayload. A data URI is
// decoded in place; anything else is fetched over HTTP. A failed fetch
// propagates immediately, there is no retry.
func (s *ImageService) Materialize(ctx context.Context, ref string) (*models.ImagePayload, error) {
	if strings.HasPrefix(ref, "data:") {
		return s.fromDataURI(ref)
	}
	return s.fetchRemote(ctx, ref)
}

// MaterializeAll materializes the primary image followed by every additional
// image. All must succeed before a model request can be built.
func (s *ImageService) MaterializeAll(ctx context.Context, primary string, additional []string) ([]models.ImagePayload, error) {
	payloads := make([]models.ImagePayload, 0, len(additional)+1)

	p, err := s.Materialize(ctx, primary)
	if err != nil {
		return nil, fmt.Errorf("primary image: %w", err)
	}
	payloads = append(payloads, *p)

	for i, ref := range additional {
		p, err := s.Materialize(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("additional image %d: %w", i, err)
		}
		payloads = append(payloads, *p)
	}

	return payloads, nil
}

func (s *ImageService) fromDataURI(ref string) (*models.ImagePayload, error) {
	matches := dataURIPattern.FindStringSubmatch(ref)
	if matches == nil {
		return nil, apperrors.NewInvalidImageFormat(fmt.Errorf("data URI does not match data:<type>;base64,<payload>"))
	}

	payload := &models.ImagePayload{
		MediaType: matches[1],
		Data:      matches[2],
	}

	s.logger.Info("Materialized image",
		zap.String("source", "data_uri"),
		zap.String("media_type", payload.MediaType),
		zap.Int("encoded_length", len(payload.Data)),
	)

	return payload, nil
}

func (s *ImageService) fetchRemote(ctx context.Context, url string) (*models.ImagePayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewInvalidImageFormat(fmt.Errorf("invalid image URL: %w", err))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewImageFetchFailed(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewImageFetchFailed(resp.StatusCode, fmt.Errorf("image fetch returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteImageBytes))
	if err != nil {
		return nil, apperrors.NewImageFetchFailed(resp.StatusCode, fmt.Errorf("reading image body: %w", err))
	}

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" || !strings.HasPrefix(mediaType, "image/") {
		mediaType = "image/jpeg"
	}
	if idx := strings.IndexByte(mediaType, ';'); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}

	payload := &models.ImagePayload{
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(body),
	}

	s.logger.Info("Materialized image",
		zap.String("source", "url"),
		zap.String("media_type", payload.MediaType),
		zap.Int("byte_length", len(body)),
	)

	return payload, nil
}
