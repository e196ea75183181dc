package evidence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biaslens/evalcore/vault"
)

func TestLogSearchCollectorTokenPath(t *testing.T) {
	var received map[string]any
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/services/collector/event", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewLogSearch(&vault.StoredCredentials{Endpoint: srv.URL, CollectorToken: "tok-123"})
	require.NoError(t, err)

	ref, err := c.StoreEvidence(context.Background(), EvidenceData{
		ReferenceID:     "test-case-a-1-0000",
		EvaluationRunID: "run-1",
		TestCaseID:      "a",
		Iteration:       1,
		Timestamp:       time.Unix(1700000000, 0),
		Prompt:          "p",
		Output:          "o",
	})
	require.NoError(t, err)

	assert.Equal(t, "Splunk tok-123", gotAuth)
	assert.Equal(t, "biaslens:evidence", received["sourcetype"])
	assert.Equal(t, StorageLogSearch, ref.StorageType)
	assert.Contains(t, ref.StorageLocation, "referenceId=test-case-a-1-0000")
}

func TestLogSearchCollectorRateLimitResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewLogSearch(&vault.StoredCredentials{Endpoint: srv.URL, CollectorToken: "tok"})
	require.NoError(t, err)

	_, err = c.StoreEvidence(context.Background(), EvidenceData{ReferenceID: "r"})
	require.Error(t, err)

	collErr, ok := err.(*CollectorError)
	require.True(t, ok)
	assert.Equal(t, CategoryRateLimit, collErr.Category)
	assert.True(t, collErr.Retryable)
	require.NotNil(t, collErr.RateLimit)
	assert.Equal(t, 3, collErr.RateLimit.RetryAfter)
}

func TestLogSearchCollectorAuthFailureNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewLogSearch(&vault.StoredCredentials{Endpoint: srv.URL, CollectorToken: "bad"})
	require.NoError(t, err)

	err = c.TestConnection(context.Background())
	require.Error(t, err)
	collErr, ok := err.(*CollectorError)
	require.True(t, ok)
	assert.Equal(t, CategoryAuthentication, collErr.Category)
	assert.False(t, collErr.Retryable)
}
