// Package api exposes the generation pipeline over HTTP.
//
// The server is a thin layer: it maps JSON requests onto the pipeline and
// the validator, and keeps per-session conversation history in a
// session.Store so follow-up requests carry context. Routing is chi with
// request-ID and logging middleware.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ordlab/ordpilot/pkg/errors"
	"github.com/ordlab/ordpilot/pkg/llm"
	"github.com/ordlab/ordpilot/pkg/pipeline"
	"github.com/ordlab/ordpilot/pkg/session"
)

// SessionHeader carries the session ID on requests and responses.
const SessionHeader = "X-Session-ID"

// Pipeline is the part of pipeline.Runner the server uses.
type Pipeline interface {
	Run(ctx context.Context, message string, history []llm.Message) (*pipeline.Result, error)
}

var _ Pipeline = (*pipeline.Runner)(nil)

// Server handles HTTP requests against the pipeline.
type Server struct {
	pipeline  Pipeline
	validator pipeline.Validator
	sessions  session.Store
	logger    *log.Logger
}

// New creates a server. A nil store disables session history.
func New(p Pipeline, v pipeline.Validator, store session.Store, logger *log.Logger) *Server {
	if store == nil {
		store = session.NewMemoryStore()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{pipeline: p, validator: v, sessions: store, logger: logger}
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/generate", s.handleGenerate)
	r.Post("/v1/validate", s.handleValidate)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// POST /v1/generate
// =============================================================================

type generateRequest struct {
	Message string `json:"message"`
}

type generateResponse struct {
	SessionID string             `json:"session_id"`
	Intent    pipeline.Intent    `json:"intent"`
	Response  string             `json:"response"`
	Source    string             `json:"source,omitempty"`
	SVG       []byte             `json:"svg,omitempty"`
	Success   bool               `json:"success"`
	Attempts  []pipeline.Attempt `json:"attempts,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.ErrCodeInvalidRequest, "invalid JSON body"))
		return
	}

	sess, err := s.resolveSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.pipeline.Run(r.Context(), req.Message, sess.Messages)
	if err != nil {
		writeError(w, err)
		return
	}

	sess.Append(req.Message, result.Response)
	if result.Success() && result.Source != "" {
		sess.SetArtifact(result.Source, string(result.SVG))
	}
	if err := s.sessions.Set(r.Context(), sess); err != nil {
		s.logger.Warn("persisting session failed", "session", sess.ID, "err", err)
	}

	w.Header().Set(SessionHeader, sess.ID)
	writeJSON(w, http.StatusOK, generateResponse{
		SessionID: sess.ID,
		Intent:    result.Intent,
		Response:  result.Response,
		Source:    result.Source,
		SVG:       result.SVG,
		Success:   result.Success(),
		Attempts:  result.Attempts,
	})
}

// resolveSession loads the request's session or starts a new one.
func (s *Server) resolveSession(r *http.Request) (*session.Session, error) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		return session.New(session.DefaultTTL), nil
	}
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "loading session")
	}
	if sess == nil {
		return nil, errors.New(errors.ErrCodeSessionNotFound, "session %s not found", id)
	}
	return sess, nil
}

// =============================================================================
// POST /v1/validate
// =============================================================================

type validateRequest struct {
	Source     string            `json:"source"`
	TestParams map[string]string `json:"test_params,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.ErrCodeInvalidRequest, "invalid JSON body"))
		return
	}
	if err := errors.ValidateSource(req.Source); err != nil {
		writeError(w, err)
		return
	}

	out := s.validator.Validate(r.Context(), req.Source, req.TestParams)
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// Responses
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Default().Warn("encoding response failed", "err", err)
	}
}

type errorResponse struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code"`
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	writeJSON(w, statusFor(code), errorResponse{
		Error: errors.UserMessage(err),
		Code:  code,
	})
}

func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidRequest, errors.ErrCodeInvalidInput, errors.ErrCodeInvalidSource:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeSessionNotFound, errors.ErrCodeFileNotFound, errors.ErrCodeIndexNotFound:
		return http.StatusNotFound
	case errors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
