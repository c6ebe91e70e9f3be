package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_FrameMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      *StandardError
		code     ErrorCode
		message  string
		category string
	}{
		{
			name:     "invalid input uses fixed text",
			err:      NewInvalidInputError("openai_route missing"),
			code:     ErrCodeInvalidInput,
			message:  "Invalid input: missing 'openai_route' or 'openai_input' must be a dictionary or None",
			category: "VALIDATION",
		},
		{
			name:     "unsupported route",
			err:      NewUnsupportedRouteError("/v2/unknown"),
			code:     ErrCodeUnsupportedRoute,
			message:  "Unsupported route: /v2/unknown",
			category: "VALIDATION",
		},
		{
			name:     "unsupported method",
			err:      NewUnsupportedMethodError("PATCH"),
			code:     ErrCodeUnsupportedMethod,
			message:  "Unsupported HTTP method: PATCH",
			category: "VALIDATION",
		},
		{
			name:     "upstream http keeps raw body",
			err:      NewUpstreamHTTPError(422, `{"detail":"bad prompt"}`),
			code:     ErrCodeUpstreamHTTP,
			message:  `{"detail":"bad prompt"}`,
			category: "UPSTREAM",
		},
		{
			name:     "stream decode",
			err:      NewStreamDecodeError("invalid UTF-8 at byte 3"),
			code:     ErrCodeStreamDecode,
			message:  "Failed to decode stream data: invalid UTF-8 at byte 3",
			category: "STREAM",
		},
		{
			name:     "timeout",
			err:      NewUpstreamTimeoutError(300*time.Second, context.DeadlineExceeded),
			code:     ErrCodeUpstreamTimeout,
			message:  "Upstream request timed out after 5m0s",
			category: "UPSTREAM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.message, tt.err.Message)
			assert.Equal(t, tt.category, GetErrorCategory(tt.err.Code))
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestUpstreamHTTPError_RetryableOnServerErrors(t *testing.T) {
	assert.True(t, NewUpstreamHTTPError(503, "overloaded").Retryable)
	assert.False(t, NewUpstreamHTTPError(400, "bad request").Retryable)
	assert.Equal(t, 503, NewUpstreamHTTPError(503, "x").Metadata["statusCode"])
}

func TestNormalize(t *testing.T) {
	t.Run("standard error passes through wrapped", func(t *testing.T) {
		original := NewUnsupportedRouteError("/x")
		wrapped := fmt.Errorf("translate: %w", original)

		got := Normalize(wrapped)
		assert.Same(t, original, got)
	})

	t.Run("deadline becomes timeout", func(t *testing.T) {
		got := Normalize(fmt.Errorf("call: %w", context.DeadlineExceeded))
		assert.Equal(t, ErrCodeUpstreamTimeout, got.Code)
		assert.Equal(t, "Upstream request timed out", got.Message)
		assert.True(t, stderrors.Is(got, context.DeadlineExceeded))
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		got := Normalize(stderrors.New("boom"))
		assert.Equal(t, ErrCodeInternal, got.Code)
		assert.Equal(t, "boom", got.Message)
	})
}

func TestAdmissionAbortedError(t *testing.T) {
	timedOut := NewAdmissionAbortedError(fmt.Errorf("acquire: %w", context.DeadlineExceeded))
	assert.Equal(t, ErrCodeAdmissionAborted, timedOut.Code)
	assert.Equal(t, "Timed out waiting for a concurrency slot", timedOut.Message)
	assert.True(t, stderrors.Is(timedOut, context.DeadlineExceeded))
	assert.Equal(t, "RUNTIME", GetErrorCategory(timedOut.Code))

	cancelled := NewAdmissionAbortedError(context.Canceled)
	assert.Equal(t, "Cancelled while waiting for a concurrency slot", cancelled.Message)
	assert.False(t, cancelled.Retryable)
}

func TestStandardError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewUpstreamConnectionError(stderrors.New("connection refused")))
	require.True(t, stderrors.Is(err, &StandardError{Code: ErrCodeUpstreamConnection}))
	assert.False(t, stderrors.Is(err, &StandardError{Code: ErrCodeUpstreamTimeout}))
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 3, GetRetryCount(ErrCodeJobCompletionFailed))
	assert.Equal(t, 2, GetRetryCount(ErrCodeUpstreamConnection))
	assert.Equal(t, 1, GetRetryCount(ErrCodeUpstreamTimeout))
	assert.Equal(t, 0, GetRetryCount(ErrCodeUnsupportedRoute))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidInput))
}

func TestToErrorVariables(t *testing.T) {
	vars := ToErrorVariables(NewJobCompletionFailedError(stderrors.New("broker gone")))
	assert.Equal(t, "JOB_COMPLETION_FAILED", vars["errorCode"])
	assert.Equal(t, "broker gone", vars["errorDetails"])
	assert.Equal(t, true, vars["retryable"])
}
