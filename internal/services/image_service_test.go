package services

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"visual-analysis-service/internal/apperrors"
)

func newTestImageService() *ImageService {
	return NewImageService(zap.NewNop())
}

func TestMaterialize_DataURI(t *testing.T) {
	s := newTestImageService()

	payload, err := s.Materialize(context.Background(), "data:image/png;base64,aGVsbG8=")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.MediaType != "image/png" {
		t.Errorf("media type = %q, want image/png", payload.MediaType)
	}
	if payload.Data != "aGVsbG8=" {
		t.Errorf("data = %q, want aGVsbG8=", payload.Data)
	}
}

func TestMaterialize_InvalidDataURI(t *testing.T) {
	s := newTestImageService()

	cases := []string{
		"data:image/png,no-base64-marker",
		"data:;base64,abcd",
		"data:image/png;base64,",
	}
	for _, ref := range cases {
		_, err := s.Materialize(context.Background(), ref)
		if err == nil {
			t.Errorf("expected error for %q", ref)
			continue
		}
		var appErr *apperrors.AnalysisError
		if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindInvalidImageFormat {
			t.Errorf("ref %q: error = %v, want invalid_image_format", ref, err)
		}
	}
}

func TestMaterialize_RemoteFetch(t *testing.T) {
	body := []byte{0xff, 0xd8, 0xff, 0xe0}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(body)
	}))
	defer server.Close()

	s := newTestImageService()
	payload, err := s.Materialize(context.Background(), server.URL+"/photo.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.MediaType != "image/jpeg" {
		t.Errorf("media type = %q, want image/jpeg", payload.MediaType)
	}
	if payload.Data != base64.StdEncoding.EncodeToString(body) {
		t.Errorf("data not base64 of body: %q", payload.Data)
	}
}

func TestMaterialize_RemoteFetchDefaultsMediaType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("bytes"))
	}))
	defer server.Close()

	s := newTestImageService()
	payload, err := s.Materialize(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.MediaType != "image/jpeg" {
		t.Errorf("media type = %q, want image/jpeg default", payload.MediaType)
	}
}

func TestMaterialize_RemoteFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	s := newTestImageService()
	_, err := s.Materialize(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 404 fetch")
	}
	var appErr *apperrors.AnalysisError
	if !errors.As(err, &appErr) || appErr.Kind != apperrors.KindImageFetchFailed {
		t.Errorf("error = %v, want image_fetch_failed", err)
	}
}

func TestMaterializeAll_AdditionalFailureAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	s := newTestImageService()
	_, err := s.MaterializeAll(context.Background(),
		"data:image/png;base64,aGVsbG8=",
		[]string{server.URL})
	if err == nil {
		t.Fatal("expected failure when an additional image cannot be fetched")
	}
}
