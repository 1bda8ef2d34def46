// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api serves the local read-only status surface of a playback session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/couchplay/internal/api/middleware"
	"github.com/ManuGH/couchplay/internal/domain/session/manager"
	"github.com/ManuGH/couchplay/internal/health"
	"github.com/ManuGH/couchplay/internal/log"
)

const (
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 15 * time.Second
	idleTimeout       = 60 * time.Second
)

// SessionSource exposes the current playback snapshot.
type SessionSource interface {
	State() manager.PlaybackState
}

// Config configures the status server.
type Config struct {
	ListenAddr string
	// RateLimit is requests per minute per client IP; zero disables limiting.
	RateLimit      int
	Version        string
	TracingService string
}

// Server is the status HTTP server.
type Server struct {
	cfg     Config
	session SessionSource
	health  *health.Manager
	router  chi.Router
	srv     *http.Server
}

// New wires routes onto a fresh router.
func New(cfg Config, session SessionSource, hm *health.Manager) *Server {
	s := &Server{cfg: cfg, session: session, health: hm}
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		SessionPhase:   s.phase,
		EnableLogging:  true,
		TracingService: cfg.TracingService,
		RateLimit:      cfg.RateLimit,
	})
	r.Get("/healthz", hm.ServeHealth)
	r.Get("/readyz", hm.ServeReady)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Get("/version", s.handleVersion)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
	s.router = r
	return s
}

func (s *Server) phase() string {
	if s.session == nil {
		return ""
	}
	return s.session.State().Phase.String()
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	if s.session == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no session"})
		return
	}
	writeJSON(w, http.StatusOK, s.session.State())
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.cfg.Version})
}

// Run listens on ListenAddr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	logger := log.WithComponent("api")
	logger.Info().Str(log.FieldEvent, "api.listen").Str("addr", ln.Addr().String()).Msg("status API listening")

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	logger.Info().Str(log.FieldEvent, "api.shutdown").Msg("shutting down status API")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status api shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
