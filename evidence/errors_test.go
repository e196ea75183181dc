package evidence

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTable(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		message   string
		cause     error
		category  ErrorCategory
		retryable bool
	}{
		{"connection refused", 0, "dial tcp: connection refused", nil, CategoryNetwork, true},
		{"dns failure", 0, "lookup host: no such host", nil, CategoryNetwork, true},
		{"econnrefused marker", 0, "ECONNREFUSED", nil, CategoryNetwork, true},
		{"429", http.StatusTooManyRequests, "slow down", nil, CategoryRateLimit, true},
		{"quota message", 200, "monthly quota exceeded", nil, CategoryRateLimit, true},
		{"throttling message", 0, "request was throttled", nil, CategoryRateLimit, true},
		{"401", http.StatusUnauthorized, "bad key", nil, CategoryAuthentication, false},
		{"invalid token", 0, "invalid token provided", nil, CategoryAuthentication, false},
		{"403", http.StatusForbidden, "nope", nil, CategoryPermission, false},
		{"access denied", 0, "access denied to bucket", nil, CategoryPermission, false},
		{"404 plain", http.StatusNotFound, "no such bucket", nil, CategoryNotFound, false},
		{"404 recoverable index", http.StatusNotFound, "index_not_found_exception", nil, CategoryNotFound, true},
		{"400", http.StatusBadRequest, "bad request", nil, CategoryValidation, false},
		{"malformed", 0, "malformed payload", nil, CategoryValidation, false},
		{"500", http.StatusInternalServerError, "oops", nil, CategoryServerError, true},
		{"503", http.StatusServiceUnavailable, "maintenance", nil, CategoryServerError, true},
		{"unknown", 0, "mystery", errors.New("???"), CategoryUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.status, tt.message, tt.cause)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.retryable, got.Retryable)
		})
	}
}

func TestRateLimitFromHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "12")
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("X-RateLimit-Reset", "1700000000")

	info := RateLimitFromHeaders(h)
	require.NotNil(t, info)
	assert.Equal(t, 12, info.RetryAfter)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, int64(1700000000), info.Reset)

	assert.Nil(t, RateLimitFromHeaders(http.Header{}))
}

func TestIsRateLimit(t *testing.T) {
	assert.True(t, Classify(429, "x", nil).IsRateLimit())
	assert.True(t, (&CollectorError{Category: CategoryUnknown, Message: "hit the rate limit"}).IsRateLimit())
	assert.False(t, Classify(500, "x", nil).IsRateLimit())
}

func TestCollectorReferenceIDShapes(t *testing.T) {
	assert.Regexp(t, `^evaluation-run-run1-[0-9a-f-]{36}$`, CollectorReferenceID("run1", "", 0))
	assert.Regexp(t, `^evaluation-run-run1-test-case-tc-1-[0-9a-f-]{36}$`, CollectorReferenceID("run1", "tc 1", 0))
	assert.Regexp(t, `^evaluation-run-run1-test-case-tc1-iteration-3-[0-9a-f-]{36}$`, CollectorReferenceID("run1", "tc1", 3))
}
