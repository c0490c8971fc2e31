// Package server exposes the ask API over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/housing-tools/handbook-qa/internal/answer"
	"github.com/housing-tools/handbook-qa/internal/model"
)

// Server routes handbook questions to the answer service.
type Server struct {
	svc        *answer.Service
	production bool
}

// New creates a Server. production suppresses internal error detail in
// responses.
func New(svc *answer.Service, production bool) *Server {
	return &Server{svc: svc, production: production}
}

// Router builds the HTTP handler with middleware attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/api/ask", s.handleAsk)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	// A malformed body is treated the same as a missing question.
	var req model.AskRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	resp, err := s.svc.Ask(r.Context(), req.Question, clientIP(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, answer.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, errorBody("Too many AI requests, try again soon."))
	case errors.Is(err, answer.ErrEmptyQuestion):
		writeJSON(w, http.StatusBadRequest, errorBody("Missing 'question' in request body."))
	case errors.Is(err, answer.ErrGeneration):
		msg := "AI service unavailable."
		if !s.production {
			msg = err.Error()
		}
		writeJSON(w, http.StatusServiceUnavailable, errorBody(msg))
	case errors.Is(err, answer.ErrEmbedding):
		writeJSON(w, http.StatusInternalServerError,
			errorBody("Failed to create embedding for the question. Please try rephrasing."))
	default:
		zap.L().Error("unhandled ask error", zap.Error(err))
		msg := "Internal error."
		if !s.production {
			msg = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, errorBody(msg))
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("response encoding failed", zap.Error(err))
	}
}

// clientIP identifies the caller for rate limiting. Proxy headers are
// trusted; the server is expected to sit behind a reverse proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
