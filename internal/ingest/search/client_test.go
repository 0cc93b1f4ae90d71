package search

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_Retryable_Connection(t *testing.T) {
	err := &Error{Kind: ErrConnection, Err: errors.New("dial tcp: timeout")}
	require.True(t, err.Retryable())
}

func TestError_Retryable_RateLimited(t *testing.T) {
	err := &Error{Kind: ErrBulkIndex, StatusCode: http.StatusTooManyRequests, Err: errors.New("rate limited")}
	require.True(t, err.Retryable())
}

func TestError_Retryable_ServiceUnavailable(t *testing.T) {
	err := &Error{Kind: ErrUpdate, StatusCode: http.StatusServiceUnavailable, Err: errors.New("unavailable")}
	require.True(t, err.Retryable())
}

func TestError_NotRetryable_Validation(t *testing.T) {
	err := &Error{Kind: ErrInvalidQuery, StatusCode: http.StatusBadRequest, Err: errors.New("bad query")}
	require.False(t, err.Retryable())
}

func TestError_NotRetryable_NotFound(t *testing.T) {
	err := &Error{Kind: ErrNotFound, StatusCode: http.StatusNotFound, Err: errors.New("missing")}
	require.False(t, err.Retryable())
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &Error{Kind: ErrConnection, Err: inner}
	require.ErrorIs(t, err, inner)
}
