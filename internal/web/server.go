// Package web exposes the record stores to external collaborators over a
// small JSON API. Rendering is out of scope; the API only produces and
// consumes what the file stores hold.
package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/credentials"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
	"github.com/kozaktomas/face-attendance/internal/facemodel"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/registry"
)

// Server wires the stores behind a chi router with JWT-gated admin routes.
type Server struct {
	registry    *registry.Store
	ledger      *ledger.Ledger
	credentials *credentials.Store
	enrollment  *enrollment.Pipeline
	model       facemodel.Model
	secret      string
	logger      *zap.Logger

	router     *chi.Mux
	httpServer *http.Server
}

func NewServer(
	reg *registry.Store,
	led *ledger.Ledger,
	creds *credentials.Store,
	pipeline *enrollment.Pipeline,
	model facemodel.Model,
	host string, port int,
	secret string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if secret == "" {
		// Ephemeral secret: tokens do not survive a restart, which is the
		// safe default when no secret is configured.
		buf := make([]byte, 32)
		_, _ = rand.Read(buf)
		secret = hex.EncodeToString(buf)
	}

	s := &Server{
		registry:    reg,
		ledger:      led,
		credentials: creds,
		enrollment:  pipeline,
		model:       model,
		secret:      secret,
		logger:      logger,
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/api/status", s.handleStatus)
		r.Get("/api/students", s.handleListStudents)
		r.Delete("/api/students/{id}", s.handleRemoveStudent)
		r.Get("/api/attendance", s.handleQueryAttendance)
		r.Delete("/api/attendance/{date}", s.handleDeleteAttendance)
	})

	s.router = r
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting admin api", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down admin api")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
