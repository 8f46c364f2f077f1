// Package actionserver exposes the validation bridge to the upstream agent
// over HTTP. A goal request blocks until the operator decides, the goal is
// preempted, or the decision timeout elapses. Closing the request cancels the
// goal.
package actionserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/dyluth/vigil/internal/validator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

// Validator is the bridge surface the server drives. *validator.Bridge implements it.
type Validator interface {
	Submit(ctx context.Context, goal validator.Goal) (bool, error)
	Preempt() error
	Current() (validator.Snapshot, bool)
}

// Pinger checks the console transport. *console.Client implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP action server.
type Server struct {
	validator Validator
	pinger    Pinger
	addr      string

	listener net.Listener
	server   *http.Server
}

// GoalResult is the body of a resolved goal.
type GoalResult struct {
	VictimValid bool `json:"victim_valid"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Outcome string `json:"outcome"`
	Error   string `json:"error"`
}

// New creates a server that will listen on addr.
func New(v Validator, pinger Pinger, addr string) *Server {
	return &Server{
		validator: v,
		pinger:    pinger,
		addr:      addr,
	}
}

// Handler returns the router. Exposed for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthCheckHandler)
	r.Post("/goals", s.submitHandler)
	r.Post("/goals/preempt", s.preemptHandler)
	r.Get("/goals/current", s.currentHandler)

	return r
}

// Start binds the listen address and serves in the background.
// A bind failure is returned so the caller can abort startup.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	// No write timeout: goal requests block until the operator answers.
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[ERROR] Action server error: %v", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request) {
	var goal validator.Goal
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&goal); err != nil {
		writeError(w, http.StatusBadRequest, "invalid", fmt.Errorf("failed to decode goal: %w", err))
		return
	}

	valid, err := s.validator.Submit(r.Context(), goal)
	if err != nil {
		status, outcome := classify(err)
		writeError(w, status, outcome, err)
		return
	}

	writeJSON(w, http.StatusOK, GoalResult{VictimValid: valid})
}

func (s *Server) preemptHandler(w http.ResponseWriter, r *http.Request) {
	err := s.validator.Preempt()
	if errors.Is(err, validator.ErrNoActiveGoal) {
		writeError(w, http.StatusNotFound, "idle", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "error", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) currentHandler(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := s.validator.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// classify maps a Submit error to an HTTP status and outcome name.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, validator.ErrInvalidGoal):
		return http.StatusBadRequest, "invalid"
	case errors.Is(err, validator.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, validator.ErrPreempted):
		return http.StatusGone, "preempted"
	case errors.Is(err, validator.ErrTimedOut):
		return http.StatusGatewayTimeout, "timed_out"
	case errors.Is(err, validator.ErrPublishFailure):
		return http.StatusBadGateway, "publish_failure"
	case errors.Is(err, validator.ErrStopped):
		return http.StatusServiceUnavailable, "stopped"
	default:
		return http.StatusInternalServerError, "error"
	}
}

func writeError(w http.ResponseWriter, status int, outcome string, err error) {
	writeJSON(w, status, ErrorResponse{Outcome: outcome, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[DEBUG] Failed to write response: %v", err)
	}
}
