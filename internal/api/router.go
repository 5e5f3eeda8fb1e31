// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/fleetctl/sm/internal/activity"
	"github.com/fleetctl/sm/internal/api/handlers"
	"github.com/fleetctl/sm/internal/api/middleware"
	"github.com/fleetctl/sm/internal/api/version"
	"github.com/fleetctl/sm/internal/arbiter"
	"github.com/fleetctl/sm/internal/events"
	"github.com/fleetctl/sm/internal/health"
	"github.com/fleetctl/sm/internal/queue"
	"github.com/fleetctl/sm/internal/session"
	"github.com/fleetctl/sm/internal/wake"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host    string
	Port    int
	TLSCert string // Path to TLS certificate file
	TLSKey  string // Path to TLS private key file
}

// Dependencies holds all dependencies for API handlers.
type Dependencies struct {
	Registry *session.Registry
	Queue    *queue.Queue
	Arbiter  *arbiter.Arbiter
	Activity *activity.Buffers
	EventBus events.EventBus
	Health   *health.Builder
	Wake     *wake.Scheduler
}

// NewRouter creates a new API router wired to deps.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)
	r.Use(version.Middleware)

	api := r.PathPrefix("/").Subrouter()

	sessionHandler := handlers.NewSessionHandler(deps.Registry, deps.Activity)
	api.HandleFunc("/sessions", sessionHandler.List).Methods("GET")
	api.HandleFunc("/sessions", sessionHandler.Create).Methods("POST")
	api.HandleFunc("/sessions/{id}", sessionHandler.Get).Methods("GET")
	api.HandleFunc("/sessions/{id}", sessionHandler.Update).Methods("PATCH")
	api.HandleFunc("/sessions/{id}", sessionHandler.Delete).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/task", sessionHandler.SetTask).Methods("PUT")
	api.HandleFunc("/sessions/{id}/send", sessionHandler.Send).Methods("POST")
	api.HandleFunc("/sessions/{id}/summary", sessionHandler.Summary).Methods("GET")
	api.HandleFunc("/sessions/{id}/activity", sessionHandler.Activity).Methods("PUT")

	queueHandler := handlers.NewQueueHandler(deps.Arbiter, deps.Queue)
	api.HandleFunc("/sessions/{id}/invalidate-cache", queueHandler.InvalidateCache).Methods("POST")

	if deps.Wake != nil {
		wakeHandler := handlers.NewWakeHandler(deps.Wake)
		api.HandleFunc("/sessions/{id}/dispatch", wakeHandler.Dispatch).Methods("POST")
	}

	hookHandler := handlers.NewHookHandler(deps.Registry, deps.Queue)
	api.HandleFunc("/hooks/context-usage", hookHandler.ContextUsage).Methods("POST")

	eventHandler := handlers.NewEventHandler(deps.EventBus)
	api.HandleFunc("/events", eventHandler.History).Methods("GET")
	api.HandleFunc("/events/ws", eventHandler.WebSocket).Methods("GET")

	healthHandler := handlers.NewHealthHandler(deps.Health)
	api.HandleFunc("/health", healthHandler.Simple).Methods("GET")
	api.HandleFunc("/health/detailed", healthHandler.Detailed).Methods("GET")

	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	return r
}

// Server represents the API server.
type Server struct {
	router *mux.Router
	cfg    ServerConfig
	server *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	return &Server{
		router: NewRouter(deps),
		cfg:    cfg,
	}
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ListenAndServe starts the server. If TLS is configured (tls_cert and
// tls_key), uses HTTPS. If a configured cert/key file does not exist, it
// returns an error; no certificate is generated.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	tlsEnabled, err := CheckTLSConfig(s.cfg.TLSCert, s.cfg.TLSKey)
	if err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	if tlsEnabled {
		certPath := expandPath(s.cfg.TLSCert)
		keyPath := expandPath(s.cfg.TLSKey)
		log.Printf("API server listening on https://%s (TLS enabled)", addr)
		return s.server.ListenAndServeTLS(certPath, keyPath)
	}

	log.Printf("API server listening on http://%s", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Println("Shutting down API server...")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return s.server.Shutdown(shutdownCtx)
}
