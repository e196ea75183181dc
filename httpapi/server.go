// Package httpapi exposes the service's external interfaces: evaluation
// submission and fetch, repro-pack verification, the health endpoint, and
// Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/biaslens/evalcore/apperr"
	"github.com/biaslens/evalcore/evaltypes"
	"github.com/biaslens/evalcore/health"
	"github.com/biaslens/evalcore/orchestrator"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	TeamID string
}

// Authenticator resolves a bearer token to an identity. The profile/team
// lookup itself is an external collaborator; implementations adapt it.
type Authenticator interface {
	Authenticate(ctx context.Context, bearerToken string) (*Identity, error)
}

// Server wires the router.
type Server struct {
	orch    *orchestrator.Orchestrator
	auth    Authenticator
	logger  *zap.Logger
	checks  HealthCheckers
	gatherer prometheus.Gatherer
}

// HealthCheckers carries the ping-able dependencies for /healthz.
type HealthCheckers struct {
	Database   health.Pinger
	Redis      health.Pinger
	SigningKey bool
}

// New builds a Server.
func New(orch *orchestrator.Orchestrator, auth Authenticator, checks HealthCheckers, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{orch: orch, auth: auth, logger: logger, checks: checks, gatherer: gatherer}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/evaluate", s.handleSubmit)
		r.Get("/evaluate/{id}", s.handleFetch)
		r.Post("/verify-repro-pack", s.handleVerify)
	})

	return r
}

type ctxKey int

const identityKey ctxKey = 0

// authenticate validates the bearer token and stashes the identity.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, apperr.New(apperr.KindAuth, apperr.CodeUnauthorized, "missing bearer token"))
			return
		}
		identity, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func identityFrom(r *http.Request) *Identity {
	id, _ := r.Context().Value(identityKey).(*Identity)
	return id
}

// validate enforces the request struct tags before the orchestrator's
// semantic validation runs.
var validate = validator.New()

// handleSubmit is POST /evaluate.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)

	var req evaltypes.EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.KindInput, apperr.CodeInvalidRequest, "request body is not valid JSON").WithCause(err))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, apperr.New(apperr.KindInput, apperr.CodeInvalidRequest, err.Error()).WithCause(err))
		return
	}

	ev, err := s.orch.Submit(r.Context(), identity.UserID, identity.TeamID, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"evaluation": map[string]any{
			"id":              ev.ID,
			"aiSystemName":    ev.AISystemName,
			"heuristicTypes":  ev.HeuristicTypes,
			"iterationCount":  ev.IterationCount,
			"status":          ev.Status,
			"createdAt":       ev.CreatedAt,
			"determinismMode": ev.DeterminismMode,
			"seedValue":       ev.SeedValue,
			"parametersUsed":  ev.ParametersUsed,
		},
		"message": "Evaluation started; subscribe to the progress channel for updates.",
		"progress_subscription": map[string]any{
			"table":  "evaluation_progress",
			"filter": "evaluation_id=eq." + ev.ID,
		},
	})
}

// handleFetch is GET /evaluate/{id}.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	id := chi.URLParam(r, "id")

	res, err := s.orch.Fetch(r.Context(), identity.TeamID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleVerify is POST /verify-repro-pack.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.New(apperr.KindInput, apperr.CodeInvalidRequest, "request body is not valid JSON").WithCause(err))
		return
	}

	res, err := s.orch.VerifyReproPack(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleHealth is GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]health.Status{
		"database":    health.PingCheck(r.Context(), "database", s.checks.Database, 2*time.Second),
		"redis":       health.PingCheck(r.Context(), "redis", s.checks.Redis, 2*time.Second),
		"signing_key": health.KeyCheck(s.checks.SigningKey),
	}
	overall := health.Combine(checks)

	status := http.StatusOK
	if overall == health.StateUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": checks})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := apperr.CodeInternal
	message := "internal error"

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
		code = appErr.Code
		switch appErr.Kind {
		case apperr.KindInput, apperr.KindProvider, apperr.KindConfig:
			status = http.StatusBadRequest
		case apperr.KindAuth:
			status = http.StatusUnauthorized
		case apperr.KindNotFound:
			status = http.StatusNotFound
		default:
			status = http.StatusInternalServerError
		}
	}

	writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}
