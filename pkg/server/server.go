// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes an agent executor over A2A JSON-RPC together with
// its agent card, extension schemas and operational endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/agentext/pkg/config"
	"github.com/kadirpekel/agentext/pkg/ext"
	"github.com/kadirpekel/agentext/pkg/observability"
)

// Server is the agent HTTP server.
type Server struct {
	cfg   config.ServerConfig
	card  *a2a.AgentCard
	exec  a2asrv.AgentExecutor
	obs   *observability.Manager
	store a2asrv.TaskStore

	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithObservability traces and measures every request and mounts the
// metrics endpoint.
func WithObservability(m *observability.Manager) Option {
	return func(s *Server) {
		s.obs = m
	}
}

// WithTaskStore replaces the in-memory task store of the request handler.
func WithTaskStore(store a2asrv.TaskStore) Option {
	return func(s *Server) {
		s.store = store
	}
}

// New creates a server for exec advertised by card.
func New(cfg config.ServerConfig, card *a2a.AgentCard, exec a2asrv.AgentExecutor, opts ...Option) *Server {
	s := &Server{cfg: cfg, card: card, exec: exec}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Card builds the agent card for agent served at url.
func Card(agent config.AgentConfig, url string, extensions []a2a.AgentExtension) *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:               agent.Name,
		Description:        agent.Description,
		URL:                url,
		Version:            agent.Version,
		ProtocolVersion:    "0.3.0",
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Skills: []a2a.AgentSkill{{
			ID:          agent.Name,
			Name:        agent.Name,
			Description: agent.Description,
			Tags:        []string{"assistant"},
		}},
		Capabilities: a2a.AgentCapabilities{
			Streaming:  true,
			Extensions: extensions,
		},
		PreferredTransport: a2a.TransportProtocolJSONRPC,
	}
}

// Handler returns the routed HTTP handler.
//
//   - GET  /.well-known/agent-card.json  agent card
//   - POST /                             A2A JSON-RPC
//   - GET  /health                       liveness
//   - GET  /schemas                      every extension schema
//   - GET  /schemas/{name}               one extension schema
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.obs != nil {
		r.Use(observability.HTTPMiddleware(s.obs.Tracer("agentext/server"), s.obs.Meter("agentext/server")))
	}
	r.Use(loggingMiddleware)

	var handlerOpts []a2asrv.RequestHandlerOption
	if s.store != nil {
		handlerOpts = append(handlerOpts, a2asrv.WithTaskStore(s.store))
	}
	r.Method(http.MethodPost, "/", a2asrv.NewJSONRPCHandler(a2asrv.NewHandler(s.exec, handlerOpts...)))
	r.Method(http.MethodGet, a2asrv.WellKnownAgentCardPath, a2asrv.NewStaticAgentCardHandler(s.card))

	r.Get("/health", handleHealth)
	r.Get("/schemas", handleSchemas)
	r.Get("/schemas/{name}", handleSchema)

	if s.obs != nil {
		if h := s.obs.MetricsHandler(); h != nil {
			r.Method(http.MethodGet, s.obs.MetricsPath(), h)
			slog.Info("Metrics endpoint enabled", "path", s.obs.MetricsPath())
		}
	}
	return r
}

// Start serves until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("HTTP server starting", "address", s.cfg.Address(), "agent", s.card.Name)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	slog.Info("HTTP server shutting down")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	return nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleSchemas(w http.ResponseWriter, _ *http.Request) {
	all := ext.All()
	out := make([]ext.Schemas, 0, len(all))
	for _, d := range all {
		out = append(out, d.Schemas())
	}
	writeJSON(w, http.StatusOK, out)
}

func handleSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	for _, d := range ext.All() {
		if d.Name() == name {
			writeJSON(w, http.StatusOK, d.Schemas())
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown extension %q", name)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// loggingMiddleware does not wrap the ResponseWriter so streaming responses
// keep their http.Flusher.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
