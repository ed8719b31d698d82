// Package api exposes the booking and issue services over JSON/HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cottage/internal/config"
	"cottage/internal/service"

	"github.com/rs/zerolog"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Services groups what the handlers call into.
type Services struct {
	Auth     *service.AuthService
	Bookings *service.BookingService
	Issues   *service.IssueService
	Users    *service.UserService
	Health   HealthChecker
}

type HTTPServer struct {
	cfg      *config.Config
	svc      Services
	location *time.Location
	limiter  *rateLimiter
	server   *http.Server
	logger   zerolog.Logger
}

func NewHTTPServer(cfg *config.Config, svc Services, logger *zerolog.Logger) *HTTPServer {
	loc, err := time.LoadLocation(cfg.Google.TimeZone)
	if err != nil {
		loc = time.UTC
	}

	srv := &HTTPServer{
		cfg:      cfg,
		svc:      svc,
		location: loc,
		limiter:  newRateLimiter(cfg.RateLimit),
		logger:   zerolog.Nop(),
	}
	if logger != nil {
		srv.logger = logger.With().Str("component", "http").Logger()
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	return srv
}

func (s *HTTPServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/me", s.handleMe)
	mux.HandleFunc("GET /api/users", s.handleListUsers)

	mux.HandleFunc("GET /api/bookings", s.handleListBookings)
	mux.HandleFunc("POST /api/bookings", s.handleSubmitBooking)
	mux.HandleFunc("GET /api/bookings/{id}", s.handleGetBooking)
	mux.HandleFunc("PATCH /api/bookings/{id}", s.handleDecideBooking)
	mux.HandleFunc("DELETE /api/bookings/{id}", s.handleDeleteBooking)
	mux.HandleFunc("POST /api/calendar/resync", s.handleResync)

	mux.HandleFunc("GET /api/issues", s.handleListIssues)
	mux.HandleFunc("POST /api/issues", s.handleCreateIssue)
	mux.HandleFunc("GET /api/issues/{id}", s.handleGetIssue)
	mux.HandleFunc("PATCH /api/issues/{id}", s.handleEditIssue)
	mux.HandleFunc("DELETE /api/issues/{id}", s.handleDeleteIssue)
	mux.HandleFunc("POST /api/issues/{id}/updates", s.handleLogIssueUpdate)

	mux.HandleFunc("GET /api/export/bookings.xlsx", s.handleExportBookings)
	mux.HandleFunc("GET /api/export/issues.xlsx", s.handleExportIssues)

	return s.withRequestID(s.withIdentity(s.withRateLimit(s.withObservability(mux))))
}

// Handler returns the fully wrapped router.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health != nil {
		if err := s.svc.Health.Health(r.Context()); err != nil {
			s.logger.Error().Err(err).Msg("health check failed")
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
