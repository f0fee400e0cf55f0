package apperrors

import (
	"errors"
	"fmt"
)

// AppError is the common shape for every typed failure the engine surfaces.
// StatusCode follows HTTP conventions so the error middleware can map it
// directly; Recovery is a caller-facing hint.
type AppError struct {
	Code       string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Detail     string `json:"detail,omitempty"`
	Recovery   string `json:"recovery,omitempty"`
	SessionId  string `json:"session_id,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewSessionNotFound(sessionId string) *AppError {
	return &AppError{
		Code:       "session_not_found",
		Message:    "Analysis session not found or expired",
		StatusCode: 404,
		Detail:     fmt.Sprintf("Session %s does not exist or has expired", sessionId),
		Recovery:   "Please upload your document again to start a new analysis session.",
		SessionId:  sessionId,
	}
}

func NewAdmissionRejected(detail string) *AppError {
	return &AppError{
		Code:       "admission_rejected",
		Message:    "Server is at capacity. Please try again shortly.",
		StatusCode: 503,
		Detail:     detail,
		Recovery:   "Wait for a running analysis to finish, then retry.",
	}
}

func NewExtractionError(message, sessionId string) *AppError {
	return &AppError{
		Code:       "extraction_error",
		Message:    message,
		StatusCode: 500,
		Detail:     "Failed to extract text from document",
		Recovery:   "Ensure the document is a readable PDF and not password-protected.",
		SessionId:  sessionId,
	}
}

func NewAnalysisError(message, sessionId string) *AppError {
	return &AppError{
		Code:       "analysis_error",
		Message:    message,
		StatusCode: 500,
		Detail:     "Failed to analyze document with AI",
		Recovery:   "Please try again. If the problem persists, try a shorter document.",
		SessionId:  sessionId,
	}
}

func NewFileValidationError(message string) *AppError {
	return &AppError{
		Code:       "file_validation_error",
		Message:    message,
		StatusCode: 400,
		Detail:     "File does not meet requirements",
		Recovery:   "Ensure your file is a valid PDF and meets the size requirements.",
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:       "validation_error",
		Message:    message,
		StatusCode: 400,
		Detail:     "Request payload failed validation",
		Recovery:   "Correct the highlighted field and retry.",
	}
}

func NewConfigurationError(message string) *AppError {
	return &AppError{
		Code:       "configuration_error",
		Message:    message,
		StatusCode: 500,
		Detail:     "Server configuration error",
		Recovery:   "Please contact support if this error persists.",
	}
}

// RateLimitError is the typed rate-limit signal. It is raised by the token
// bucket on fail-fast acquisition, recognized by the scheduler as retryable,
// and surfaced with a retry-after estimate when retries are exhausted.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfterSeconds)
}

func NewRateLimitError(retryAfterSeconds int) *RateLimitError {
	return &RateLimitError{RetryAfterSeconds: retryAfterSeconds}
}

// IsRateLimit reports whether err carries a rate-limit signal anywhere in
// its chain. Provider 429s wrap a RateLimitError so this covers both the
// local bucket and provider-reported exhaustion.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// RetryAfter extracts the retry-after estimate from a rate-limit error chain.
func RetryAfter(err error) int {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfterSeconds
	}
	return 0
}
