// Package api provides HTTP handlers and the main API server logic for LeadFlow.
//
// It exposes RESTful endpoints for injecting channel-agnostic inbound signals,
// initiating outbound-first conversations, and reading conversation state and
// aggregate stats for the consultant dashboard.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/corevida/leadflow/internal/flow"
	"github.com/corevida/leadflow/internal/memory"
	"github.com/corevida/leadflow/internal/store"
)

// DefaultAddr is the listen address used when no override is configured.
const DefaultAddr = ":8080"

// shutdownTimeout bounds how long Run waits for in-flight requests on exit.
const shutdownTimeout = 10 * time.Second

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the HTTP surface to the dialogue state machine and the stores.
type Server struct {
	addr     string
	st       store.Store
	sessions *memory.SessionStore
	dialogue *flow.ConversationFlow
	mux      *http.ServeMux
}

// NewServer creates the API server over the injected store, session store,
// and dialogue flow.
func NewServer(st store.Store, sessions *memory.SessionStore, dialogue *flow.ConversationFlow, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		addr:     cfg.Addr,
		st:       st,
		sessions: sessions,
		dialogue: dialogue,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /messages", s.processMessageHandler)
	s.mux.HandleFunc("POST /conversations/initiate", s.initiateConversationHandler)
	s.mux.HandleFunc("GET /conversations", s.listConversationsHandler)
	s.mux.HandleFunc("GET /conversations/{id}", s.getConversationHandler)
	s.mux.HandleFunc("GET /leads/{phone}/xp", s.leadXPHandler)
	s.mux.HandleFunc("GET /stats", s.statsHandler)
}

// HandleFunc mounts an extra handler on the server mux. Channel webhooks that
// live outside this package register themselves through it.
func (s *Server) HandleFunc(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, handler)
}

// Handler exposes the routed mux. Tests drive it through httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves HTTP until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.mux}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: LeadFlow API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: graceful shutdown failed", "error", err)
			return err
		}
		slog.Info("Server.Run: API server stopped")
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server.Run: listener failed", "error", err, "addr", s.addr)
			return err
		}
		return nil
	}
}
