// Package server provides the HTTP API over the lead pipeline.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/lead-tracker/internal/config"
	"github.com/jonathan/lead-tracker/internal/events"
	"github.com/jonathan/lead-tracker/internal/lifecycle"
	"github.com/jonathan/lead-tracker/internal/metrics"
	"github.com/jonathan/lead-tracker/internal/server/middleware"
	"github.com/jonathan/lead-tracker/internal/server/ratelimit"
	"github.com/jonathan/lead-tracker/internal/types"
)

// ClickRecorder persists click events so they survive a restart. The
// Postgres store implements it.
type ClickRecorder interface {
	RecordClick(ctx context.Context, evt types.ClickEvent) error
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	svc         *lifecycle.Service
	hub         *events.Hub
	clicks      ClickRecorder
	rateLimiter *ratelimit.Limiter
	logger      *slog.Logger
}

// Config holds server configuration
type Config struct {
	Port      int
	Service   *lifecycle.Service
	Hub       *events.Hub
	JWT       *config.JWTConfig
	Owner     uuid.UUID // tokens for other users are rejected; uuid.Nil accepts any
	Clicks    ClickRecorder
	RateLimit *ratelimit.Config // nil loads from the environment
	Logger    *slog.Logger
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("lifecycle service is required")
	}
	if cfg.JWT == nil {
		return nil, errors.New("JWT config is required")
	}

	s := &Server{
		svc:    cfg.Service,
		hub:    cfg.Hub,
		clicks: cfg.Clicks,
		logger: cfg.Logger,
	}
	if s.hub == nil {
		s.hub = events.NewHub()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	rlCfg := cfg.RateLimit
	if rlCfg == nil {
		rlCfg = ratelimit.LoadConfig()
	}
	s.rateLimiter = ratelimit.NewLimiter(rlCfg)

	auth := middleware.AuthMiddleware(NewJWTService(cfg.JWT).AsTokenValidator(), cfg.Owner)
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	// Pipeline
	mux.Handle("GET /pipeline", protected(s.handlePipeline))
	mux.Handle("POST /pipeline/refresh", protected(s.handleRefresh))
	mux.Handle("GET /events", protected(s.handleEvents))
	mux.Handle("POST /clicks", protected(s.handleIngestClick))

	// Lead actions
	mux.Handle("GET /leads/{id}", protected(s.handleGetLead))
	mux.Handle("POST /leads/{id}/applied", protected(s.handleApplied))
	mux.Handle("POST /leads/{id}/not-applying", protected(s.handleNotApplying))
	mux.Handle("POST /leads/{id}/interviews", protected(s.handleInterview))
	mux.Handle("POST /leads/{id}/got-the-job", protected(s.handleGotTheJob))
	mux.Handle("POST /leads/{id}/archive", protected(s.handleArchive))
	mux.Handle("POST /leads/{id}/collapse", protected(s.handleCollapse))
	mux.Handle("POST /leads/{id}/follow-up", protected(s.handleFollowUp))
	mux.Handle("POST /leads/{id}/move", protected(s.handleMove))
	mux.Handle("PATCH /leads/{id}/fields", protected(s.handleSaveField))

	// Contacts
	mux.Handle("POST /leads/{id}/contacts", protected(s.handleAddContact))
	mux.Handle("PUT /leads/{id}/contacts/{contact_id}", protected(s.handleUpdateContact))
	mux.Handle("DELETE /leads/{id}/contacts/{contact_id}", protected(s.handleDeleteContact))

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.withRateLimit(s.withLogging(s.withCORS(metrics.Middleware(mux)))),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: /events streams for as long as the client stays.
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.Close()
	s.logger.Info("server stopped")
	return nil
}

// Close releases background resources.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"leads":  s.svc.Leads().Len(),
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// actionError writes the status HTTPStatus picks for err.
func (s *Server) actionError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusUnauthorized {
		// The store's credential is not the caller's; don't leak details.
		s.errorResponse(w, status, "store session expired")
		return
	}
	s.errorResponse(w, status, err.Error())
}

// extractClientID extracts the client identifier from the request.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	s.logger.Warn("rate limit exceeded", "limit", info.Limit, "reset", info.ResetTime.Format(time.RFC3339))
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
