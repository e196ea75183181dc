package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biaslens/evalcore/apperr"
)

type staticAuth struct {
	token    string
	identity Identity
}

func (a *staticAuth) Authenticate(_ context.Context, bearerToken string) (*Identity, error) {
	if bearerToken != a.token {
		return nil, apperr.New(apperr.KindAuth, apperr.CodeUnauthorized, "invalid token")
	}
	id := a.identity
	return &id, nil
}

func testServer() *Server {
	return New(nil, &staticAuth{token: "good", identity: Identity{UserID: "u1", TeamID: "t1"}},
		HealthCheckers{SigningKey: true}, nil, nil)
}

func TestMissingBearerTokenIs401(t *testing.T) {
	srv := httptest.NewServer(testServer().Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/evaluate", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBadTokenIs401(t *testing.T) {
	srv := httptest.NewServer(testServer().Router())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/evaluate", strings.NewReader(`{}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestInvalidJSONBodyIs400(t *testing.T) {
	srv := httptest.NewServer(testServer().Router())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/evaluate", strings.NewReader(`{nope`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer good")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	errBlock := body["error"].(map[string]any)
	assert.Equal(t, apperr.CodeInvalidRequest, errBlock["code"])
}

func TestHealthzReportsChecks(t *testing.T) {
	srv := httptest.NewServer(testServer().Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	// Database and redis pingers are absent in this fixture, so the
	// endpoint reports unavailable.
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	checks := body["checks"].(map[string]any)
	assert.Contains(t, checks, "database")
	assert.Contains(t, checks, "redis")
	assert.Contains(t, checks, "signing_key")
}

func TestErrorKindMapping(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindInput, http.StatusBadRequest},
		{apperr.KindProvider, http.StatusBadRequest},
		{apperr.KindConfig, http.StatusBadRequest},
		{apperr.KindAuth, http.StatusUnauthorized},
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeError(rec, apperr.New(tt.kind, "X", "msg"))
		assert.Equal(t, tt.want, rec.Code, string(tt.kind))
	}
}
