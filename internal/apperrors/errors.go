package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies one failure category of the analysis pipeline. The set is
// closed: every error returned by the service carries exactly one Kind, and
// the HTTP layer switches on it rather than inspecting error text.
type Kind string

const (
	KindInvalidRequest     Kind = "invalid_request"
	KindInvalidImageFormat Kind = "invalid_image_format"
	KindImageFetchFailed   Kind = "image_fetch_failed"
	KindRateLimited        Kind = "rate_limited"
	KindMalformedImage     Kind = "malformed_image"
	KindSafetyBlocked      Kind = "safety_blocked"
	KindEmptyResponse      Kind = "empty_response"
	KindTimeout            Kind = "timeout"
	KindUnparseable        Kind = "unparseable_response"
	KindUpstreamFailure    Kind = "upstream_failure"
)

// AnalysisError is a structured pipeline error. Code is the wire-level error
// code (a number for rate limits, a short string otherwise) and Message is
// safe to show to the end user verbatim.
type AnalysisError struct {
	Kind       Kind
	StatusCode int
	Code       interface{}
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// As extracts an *AnalysisError from err, or wraps err as an upstream failure
// so the HTTP layer always has a typed error to map.
func As(err error) *AnalysisError {
	var appErr *AnalysisError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewUpstreamFailure(err)
}

// NewInvalidRequest reports a request that failed validation.
func NewInvalidRequest(message string) *AnalysisError {
	return &AnalysisError{
		Kind:       KindInvalidRequest,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_REQUEST",
		Message:    message,
	}
}

// NewInvalidImageFormat reports an image reference that is neither a valid
// data URI nor a fetchable URL.
func NewInvalidImageFormat(cause error) *AnalysisError {
	return &AnalysisError{
		Kind:       KindInvalidImageFormat,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_IMAGE_FORMAT",
		Message:    "The image data is not in a recognised format. Please re-upload the photo.",
		Cause:      cause,
	}
}

// NewImageFetchFailed reports a remote image that could not be downloaded.
// The upstream HTTP status is preserved in the cause for server-side logs.
func NewImageFetchFailed(status int, cause error) *AnalysisError {
	return &AnalysisError{
		Kind:       KindImageFetchFailed,
		StatusCode: http.StatusBadGateway,
		Code:       "IMAGE_FETCH_FAILED",
		Message:    fmt.Sprintf("The image could not be downloaded (status %d). Check the image link and try again.", status),
		Cause:      cause,
	}
}

// NewRateLimited reports a 429 from the model API, passed through to the caller.
func NewRateLimited() *AnalysisError {
	return &AnalysisError{
		Kind:       KindRateLimited,
		StatusCode: http.StatusTooManyRequests,
		Code:       429,
		Message:    "The analysis service is receiving too many requests. Please wait a moment and try again.",
	}
}

// NewMalformedImage reports inline image data the model API rejected.
func NewMalformedImage(cause error) *AnalysisError {
	return &AnalysisError{
		Kind:       KindMalformedImage,
		StatusCode: http.StatusBadRequest,
		Code:       "MALFORMED_IMAGE",
		Message:    "The image data could not be processed. Please re-upload the photo and try again.",
		Cause:      cause,
	}
}

// NewSafetyBlocked reports a model refusal due to content safety filtering.
func NewSafetyBlocked() *AnalysisError {
	return &AnalysisError{
		Kind:       KindSafetyBlocked,
		StatusCode: http.StatusBadRequest,
		Code:       "SAFETY_BLOCKED",
		Message:    "The image was blocked by the AI's content filter. Please try a different image.",
	}
}

// NewEmptyResponse reports a 2xx from the model API with no usable text.
func NewEmptyResponse() *AnalysisError {
	return &AnalysisError{
		Kind:       KindEmptyResponse,
		StatusCode: http.StatusBadGateway,
		Code:       "EMPTY_RESPONSE",
		Message:    "The AI returned an empty response. Please try again.",
	}
}

// NewTimeout reports a model call that exceeded its wall-clock budget.
func NewTimeout(cause error) *AnalysisError {
	return &AnalysisError{
		Kind:       KindTimeout,
		StatusCode: http.StatusInternalServerError,
		Code:       "TIMEOUT",
		Message:    "The analysis took too long to complete. Try enabling fast mode or attaching fewer images.",
		Cause:      cause,
	}
}

// NewUnparseable reports model text that no recovery strategy could turn into
// JSON. The orchestrator absorbs this into a degraded result rather than
// returning it to the caller.
func NewUnparseable(cause error) *AnalysisError {
	return &AnalysisError{
		Kind:       KindUnparseable,
		StatusCode: http.StatusBadGateway,
		Code:       "UNPARSEABLE_RESPONSE",
		Message:    "The AI response could not be interpreted.",
		Cause:      cause,
	}
}

// NewUnparseableEmpty reports an empty or whitespace-only model text handed
// to the parser.
func NewUnparseableEmpty() *AnalysisError {
	return &AnalysisError{
		Kind:       KindUnparseable,
		StatusCode: http.StatusBadGateway,
		Code:       "UNPARSEABLE_RESPONSE",
		Message:    "The AI response was empty.",
	}
}

// NewUpstreamFailure reports an unclassified failure talking to the model API.
func NewUpstreamFailure(cause error) *AnalysisError {
	return &AnalysisError{
		Kind:       KindUpstreamFailure,
		StatusCode: http.StatusInternalServerError,
		Code:       "ANALYSIS_FAILED",
		Message:    "The analysis could not be completed. Please try again.",
		Cause:      cause,
	}
}
