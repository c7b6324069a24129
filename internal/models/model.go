package models

// Analysis modes supported by the service.
const (
	ModeFaultDiagnosis     = "fault_diagnosis"
	ModeComponentIdentify  = "component_identify"
	ModeWiringInstruction  = "wiring_instruction"
	ModeInstallationVerify = "installation_verify"
)

// Modes lists every supported analysis mode.
var Modes = []string{
	ModeFaultDiagnosis,
	ModeComponentIdentify,
	ModeWiringInstruction,
	ModeInstallationVerify,
}

// EICR defect classification codes (BS 7671 condition reporting).
const (
	EICRCodeC1 = "C1"
	EICRCodeC2 = "C2"
	EICRCodeC3 = "C3"
	EICRCodeFI = "FI"
)

// AnalysisSettings configures one analysis request.
// EnableBoundingBoxes, RemoveBackground and BS7671Compliance are part of the
// client contract but currently have no effect downstream.
type AnalysisSettings struct {
	Mode                string   `json:"mode" validate:"required,oneof=fault_diagnosis component_identify wiring_instruction installation_verify"`
	ConfidenceThreshold float64  `json:"confidence_threshold" validate:"gte=0,lte=1"`
	EnableBoundingBoxes bool     `json:"enable_bounding_boxes"`
	FocusAreas          []string `json:"focus_areas"`
	RemoveBackground    bool     `json:"remove_background"`
	BS7671Compliance    bool     `json:"bs7671_compliance"`
	FastMode            *bool    `json:"fast_mode,omitempty"`
}

// Fast reports the effective fast-mode flag (defaults to false when omitted).
func (s *AnalysisSettings) Fast() bool {
	return s.FastMode != nil && *s.FastMode
}

// AnalysisRequest is the inbound request body for image analysis.
// Image references are either data URIs or fetchable URLs.
type AnalysisRequest struct {
	PrimaryImage     string           `json:"primary_image" validate:"required"`
	AdditionalImages []string         `json:"additional_images,omitempty"`
	AnalysisSettings AnalysisSettings `json:"analysis_settings" validate:"required"`
}

// ImagePayload is one materialized image ready for embedding in a model
// request: a media type plus the base64-encoded raw bytes.
type ImagePayload struct {
	MediaType string
	Data      string
}

// AnalysisResponse is the success response body. Analysis is mode-shaped and
// always carries processing_time_ms and fast_mode.
type AnalysisResponse struct {
	Analysis map[string]interface{} `json:"analysis"`
}

// ErrorResponse is the body of every error response. Code is a number for
// rate limits and a short string code otherwise.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Code    interface{} `json:"code"`
	Message string      `json:"message"`
}

// StatsResponse reports service counters since startup.
type StatsResponse struct {
	TotalAnalyses       int64            `json:"total_analyses"`
	DegradedResults     int64            `json:"degraded_results"`
	AvgProcessingTimeMs float64          `json:"avg_processing_time_ms"`
	ParseStrategyFires  map[string]int64 `json:"parse_strategy_fires"`
}

// ModeListResponse lists the supported analysis modes.
type ModeListResponse struct {
	Modes []string `json:"modes"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string `json:"status"`
}
