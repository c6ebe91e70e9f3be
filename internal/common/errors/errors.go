// Package errors provides the standardized error taxonomy for gateway jobs.
//
// Every job-level failure is a StandardError whose Message is the exact text
// placed in the outbound {"error": ...} frame.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeUnsupportedRoute   ErrorCode = "UNSUPPORTED_ROUTE"
	ErrCodeUnsupportedMethod  ErrorCode = "UNSUPPORTED_METHOD"
	ErrCodeUpstreamHTTP       ErrorCode = "UPSTREAM_HTTP_ERROR"
	ErrCodeUpstreamConnection ErrorCode = "UPSTREAM_CONNECTION_ERROR"
	ErrCodeUpstreamTimeout    ErrorCode = "UPSTREAM_TIMEOUT"
	ErrCodeUpstreamDecode     ErrorCode = "UPSTREAM_DECODE_ERROR"
	ErrCodeStreamDecode       ErrorCode = "STREAM_DECODE_ERROR"

	ErrCodeAdmissionAborted    ErrorCode = "ADMISSION_ABORTED"
	ErrCodeReadinessExhausted  ErrorCode = "READINESS_EXHAUSTED"
	ErrCodeJobCompletionFailed ErrorCode = "JOB_COMPLETION_FAILED"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// InvalidInputMessage is the fixed frame text for a malformed job.
const InvalidInputMessage = "Invalid input: missing 'openai_route' or 'openai_input' must be a dictionary or None"

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches another StandardError by code, so errors.Is(err, &StandardError{Code: X}) works.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ==========================
// 2. Error Constructors
// ==========================

// NewInvalidInputError creates a non-retryable malformed-job error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   InvalidInputMessage,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnsupportedRouteError creates a terminal, non-retryable route error.
func NewUnsupportedRouteError(route string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupportedRoute,
		Message:   fmt.Sprintf("Unsupported route: %s", route),
		Details:   fmt.Sprintf("route: %s", route),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnsupportedMethodError creates a non-retryable method error.
func NewUnsupportedMethodError(method string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupportedMethod,
		Message:   fmt.Sprintf("Unsupported HTTP method: %s", method),
		Details:   fmt.Sprintf("method: %s", method),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamHTTPError carries the upstream's raw body text as the message.
func NewUpstreamHTTPError(statusCode int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamHTTP,
		Message:   body,
		Details:   fmt.Sprintf("status: %d", statusCode),
		Retryable: statusCode >= 500,
		Metadata:  map[string]interface{}{"statusCode": statusCode},
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamConnectionError creates a retryable transport error.
func NewUpstreamConnectionError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamConnection,
		Message:   err.Error(),
		Details:   "upstream connection failed",
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUpstreamTimeoutError creates a retryable timeout error.
func NewUpstreamTimeoutError(timeout time.Duration, err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	message := "Upstream request timed out"
	if timeout > 0 {
		message = fmt.Sprintf("Upstream request timed out after %s", timeout)
	}
	return &StandardError{
		Code:      ErrCodeUpstreamTimeout,
		Message:   message,
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUpstreamDecodeError is raised when a 2xx body is not valid JSON.
func NewUpstreamDecodeError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamDecode,
		Message:   err.Error(),
		Details:   "upstream response is not valid JSON",
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStreamDecodeError is local to one chunk of a streamed response.
func NewStreamDecodeError(reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStreamDecode,
		Message:   fmt.Sprintf("Failed to decode stream data: %s", reason),
		Details:   reason,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAdmissionAbortedError is raised when the job's context ends while it
// waits for a concurrency slot. No upstream call was made.
func NewAdmissionAbortedError(err error) *StandardError {
	message := "Cancelled while waiting for a concurrency slot"
	if stderrors.Is(err, context.DeadlineExceeded) {
		message = "Timed out waiting for a concurrency slot"
	}
	return &StandardError{
		Code:      ErrCodeAdmissionAborted,
		Message:   message,
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewReadinessExhaustedError is the one fatal startup condition.
func NewReadinessExhaustedError(url string, attempts int, lastErr error) *StandardError {
	details := fmt.Sprintf("url: %s, attempts: %d", url, attempts)
	if lastErr != nil {
		details += ", last error: " + lastErr.Error()
	}
	return &StandardError{
		Code:      ErrCodeReadinessExhausted,
		Message:   "Service not available after max retries.",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     lastErr,
	}
}

// NewJobCompletionFailedError is returned when the runtime rejects a finished job.
func NewJobCompletionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeJobCompletionFailed,
		Message:   "Failed to complete job",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewUpstreamTimeoutError(0, err)
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// GetRetryCount returns the recommended runtime retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeJobCompletionFailed:
		return 3
	case ErrCodeUpstreamConnection:
		return 2
	case ErrCodeUpstreamTimeout:
		return 1
	default:
		return 0 // frame-level outcomes: never retried by the runtime
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "UPSTREAM"):
		return "UPSTREAM"
	case strings.Contains(codeStr, "STREAM"):
		return "STREAM"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "UNSUPPORTED"):
		return "VALIDATION"
	case strings.Contains(codeStr, "READINESS") || strings.Contains(codeStr, "JOB") || strings.Contains(codeStr, "ADMISSION"):
		return "RUNTIME"
	default:
		return "OTHER"
	}
}
