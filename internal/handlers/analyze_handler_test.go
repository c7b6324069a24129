package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"visual-analysis-service/internal/config"
	"visual-analysis-service/internal/models"
	"visual-analysis-service/internal/services"
)

const testDataURI = "data:image/jpeg;base64,aGVsbG8="

func newTestRouter(geminiURL string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	cfg := &config.Config{
		GeminiAPIKey:  "test-key",
		GeminiModel:   "gemini-2.0-flash",
		GeminiBaseURL: geminiURL,
	}
	service := services.NewAnalysisService(cfg, logger)
	handler := NewAnalyzeHandler(service, logger)

	router := gin.New()
	router.POST("/analyze", handler.Analyze)
	return router
}

func geminiStub(t *testing.T, responseText string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"candidates": []interface{}{
				map[string]interface{}{
					"content": map[string]interface{}{
						"parts": []interface{}{map[string]interface{}{"text": responseText}},
					},
					"finishReason": "STOP",
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func analysisRequestBody(t *testing.T, mode string, threshold float64) []byte {
	t.Helper()
	body, err := json.Marshal(models.AnalysisRequest{
		PrimaryImage: testDataURI,
		AnalysisSettings: models.AnalysisSettings{
			Mode:                mode,
			ConfidenceThreshold: threshold,
			FocusAreas:          []string{"general"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func doAnalyze(router *gin.Engine, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAnalyze_HappyPathFaultDiagnosis(t *testing.T) {
	modelText := "Here you go:\n```json\n{\"analysis\":{\"findings\":[{\"description\":\"Missing earth\",\"eicr_code\":\"C1\",\"confidence\":0.95,\"bs7671_clauses\":[\"411.3.2\"],\"fix_guidance\":\"Install earth\"}]}}\n```"
	stub := geminiStub(t, modelText)
	defer stub.Close()

	router := newTestRouter(stub.URL)
	w := doAnalyze(router, analysisRequestBody(t, models.ModeFaultDiagnosis, 0.5))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Analysis map[string]interface{} `json:"analysis"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	findings, ok := resp.Analysis["findings"].([]interface{})
	if !ok || len(findings) != 1 {
		t.Fatalf("findings = %v, want one element", resp.Analysis["findings"])
	}
	finding := findings[0].(map[string]interface{})
	if finding["eicr_code"] != "C1" {
		t.Errorf("eicr_code = %v, want C1", finding["eicr_code"])
	}
	if _, ok := resp.Analysis["processing_time_ms"]; !ok {
		t.Error("response missing processing_time_ms stamp")
	}
	if resp.Analysis["fast_mode"] != false {
		t.Errorf("fast_mode = %v, want false", resp.Analysis["fast_mode"])
	}
}

func TestAnalyze_GracefulDegradationOnUnparseableResponse(t *testing.T) {
	stub := geminiStub(t, "I cannot help with that.")
	defer stub.Close()

	router := newTestRouter(stub.URL)
	w := doAnalyze(router, analysisRequestBody(t, models.ModeFaultDiagnosis, 0.5))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (degraded, not an error): %s", w.Code, w.Body.String())
	}

	var resp struct {
		Analysis map[string]interface{} `json:"analysis"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Analysis["parse_error"] != true {
		t.Errorf("parse_error = %v, want true", resp.Analysis["parse_error"])
	}
	findings := resp.Analysis["findings"].([]interface{})
	if len(findings) != 1 {
		t.Fatalf("findings = %v, want one synthetic finding", findings)
	}
	if findings[0].(map[string]interface{})["eicr_code"] != "FI" {
		t.Errorf("synthetic finding code = %v, want FI", findings[0].(map[string]interface{})["eicr_code"])
	}
}

func TestAnalyze_RateLimitPassthrough(t *testing.T) {
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer stub.Close()

	router := newTestRouter(stub.URL)
	w := doAnalyze(router, analysisRequestBody(t, models.ModeFaultDiagnosis, 0.5))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if code, ok := resp.Code.(float64); !ok || code != 429 {
		t.Errorf("code = %v, want 429", resp.Code)
	}
}

func TestAnalyze_Timeout(t *testing.T) {
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer stub.Close()

	router := newTestRouter(stub.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(analysisRequestBody(t, models.ModeFaultDiagnosis, 0.5)))
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500: %s", w.Code, w.Body.String())
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != "TIMEOUT" {
		t.Errorf("code = %v, want TIMEOUT", resp.Code)
	}
	if resp.Message == "" || !bytes.Contains([]byte(resp.Message), []byte("fast mode")) {
		t.Errorf("message should mention fast mode: %q", resp.Message)
	}
}

func TestAnalyze_SafetyBlocked(t *testing.T) {
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"promptFeedback": {"blockReason": "SAFETY"}, "candidates": []}`))
	}))
	defer stub.Close()

	router := newTestRouter(stub.URL)
	w := doAnalyze(router, analysisRequestBody(t, models.ModeFaultDiagnosis, 0.5))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAnalyze_EmptyUpstreamResponse(t *testing.T) {
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer stub.Close()

	router := newTestRouter(stub.URL)
	w := doAnalyze(router, analysisRequestBody(t, models.ModeFaultDiagnosis, 0.5))

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}

func TestAnalyze_ComponentIdentifyEndToEnd(t *testing.T) {
	modelText := `{"analysis": {"matches": [{"confidence": 40, "name": "A"}, {"confidence": 90, "name": "B"}]}}`
	stub := geminiStub(t, modelText)
	defer stub.Close()

	router := newTestRouter(stub.URL)
	w := doAnalyze(router, analysisRequestBody(t, models.ModeComponentIdentify, 0))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Analysis map[string]interface{} `json:"analysis"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	component, ok := resp.Analysis["component"].(map[string]interface{})
	if !ok {
		t.Fatalf("component missing: %v", resp.Analysis)
	}
	if component["name"] != "B" {
		t.Errorf("component.name = %v, want B", component["name"])
	}
	if component["confidence"] != float64(90) {
		t.Errorf("component.confidence = %v, want 90", component["confidence"])
	}
	if component["manufacturer"] != "Unknown" {
		t.Errorf("manufacturer = %v, want Unknown default", component["manufacturer"])
	}
}

func TestAnalyze_MissingPrimaryImage(t *testing.T) {
	stub := geminiStub(t, "{}")
	defer stub.Close()

	router := newTestRouter(stub.URL)
	body, _ := json.Marshal(map[string]interface{}{
		"analysis_settings": map[string]interface{}{"mode": "fault_diagnosis"},
	})
	w := doAnalyze(router, body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAnalyze_UnknownModeRejected(t *testing.T) {
	stub := geminiStub(t, "{}")
	defer stub.Close()

	router := newTestRouter(stub.URL)
	body, _ := json.Marshal(map[string]interface{}{
		"primary_image":     testDataURI,
		"analysis_settings": map[string]interface{}{"mode": "palm_reading"},
	})
	w := doAnalyze(router, body)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
