// Package httpapi serves the bot's HTTP endpoints: health, diagnostics,
// Prometheus metrics and the Telegram webhook.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/edgard/jarvis/internal/llm"
)

const (
	// WebhookPath is where Telegram delivers updates in webhook mode.
	WebhookPath = "/tgwebhook"

	shutdownTimeout = 10 * time.Second
	diagTimeout     = 30 * time.Second
)

// Deps are the collaborators of a Server. Metrics and Webhook are optional;
// their routes are mounted only when set.
type Deps struct {
	Logger  *slog.Logger
	Client  llm.Client
	Metrics http.Handler
	Webhook http.Handler
}

// Server is the bot's HTTP server.
type Server struct {
	addr string
	deps Deps
	log  *slog.Logger
}

// New creates a Server listening on addr.
func New(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{
		addr: addr,
		deps: deps,
		log:  deps.Logger.With("component", "http_server"),
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/diag", s.handleDiag)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}
	if s.deps.Webhook != nil {
		r.Method(http.MethodPost, WebhookPath, s.deps.Webhook)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", s.addr, "webhook", s.deps.Webhook != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to serve http: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Graceful shutdown failed", "error", err)
		_ = srv.Close()
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	s.log.Info("HTTP server stopped.")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleDiag checks that the completion provider answers a one-token ping.
func (s *Server) handleDiag(w http.ResponseWriter, r *http.Request) {
	if s.deps.Client == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "no completion client"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), diagTimeout)
	defer cancel()

	_, err := s.deps.Client.Complete(ctx, llm.CompletionRequest{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	// A one-token budget may legitimately produce no text.
	if err != nil && !errors.Is(err, llm.ErrEmptyResponse) {
		s.log.WarnContext(ctx, "Diagnostics completion failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "model": s.deps.Client.Model()})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
