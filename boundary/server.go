// ABOUTME: Server wraps a chi.Router exposing every endpoint in the dialogue HTTP contract,
// ABOUTME: tracks in-flight request depth for overload shedding, and translates orchestrator
// ABOUTME: results into the {success, error, result} wire envelope.

package boundary

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389-research/dialogued/dialogue"
	"github.com/2389-research/dialogued/proactive"
	"github.com/2389-research/dialogued/store"
	"github.com/2389-research/dialogued/tools"
)

// defaultOverloadDepth is the in-flight request count above which the server
// returns 503 before touching the orchestrator.
const defaultOverloadDepth = 256

// defaultRequestTimeout bounds every request's context deadline, propagated
// through the orchestrator pipeline.
const defaultRequestTimeout = 90 * time.Second

// Server is the HTTP boundary: chi routing, success/error envelopes, the
// proactive push channel, and overload shedding.
type Server struct {
	router       chi.Router
	orchestrator *dialogue.Orchestrator
	scheduler    *proactive.Scheduler
	registry     *tools.Registry
	store        store.Store
	hub          *hub

	inFlight      int64
	overloadDepth int64
	timeout       time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithOverloadDepth overrides the default in-flight request threshold.
func WithOverloadDepth(depth int) Option {
	return func(s *Server) { s.overloadDepth = int64(depth) }
}

// WithRequestTimeout overrides the default per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// NewServer builds a Server and registers all routes.
func NewServer(orch *dialogue.Orchestrator, sched *proactive.Scheduler, registry *tools.Registry, st store.Store, opts ...Option) *Server {
	s := &Server{
		orchestrator:  orch,
		scheduler:     sched,
		registry:      registry,
		store:         st,
		hub:           newHub(),
		overloadDepth: defaultOverloadDepth,
		timeout:       defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.overloadMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/api/dialogue/input", s.handleDialogueInput)
	r.Post("/api/dialogue/sessions", s.handleCreateSession)
	r.Get("/api/dialogue/sessions", s.handleListSessions)
	r.Get("/api/dialogue/sessions/{id}", s.handleGetSession)
	r.Get("/api/dialogue/sessions/{id}/turns", s.handleGetTurns)
	r.Get("/api/dialogue/tools", s.handleListTools)
	r.Get("/api/frequency/settings", s.handleGetFrequencySettings)
	r.Post("/api/frequency/settings", s.handleSetFrequencySettings)
	r.Post("/api/frequency/trigger", s.handleFrequencyTrigger)
	r.Get("/api/frequency/stream", s.handleStream)

	s.router = r

	if sched != nil {
		go s.pumpFired()
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// overloadMiddleware sheds load with 503 + Retry-After once in-flight
// requests exceed the configured depth.
func (s *Server) overloadMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&s.inFlight, 1) > s.overloadDepth {
			atomic.AddInt64(&s.inFlight, -1)
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusServiceUnavailable, envelope{Success: false, Error: "overloaded"})
			return
		}
		defer atomic.AddInt64(&s.inFlight, -1)

		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// pumpFired drains the scheduler's Fired channel and broadcasts each
// dispatch to subscribed websocket clients.
func (s *Server) pumpFired() {
	for dispatch := range s.scheduler.Fired() {
		s.hub.broadcast(dispatch)
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Result  any    `json:"result,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("component=boundary action=write_response kind=encode_failed message=%q", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Error: message})
}
