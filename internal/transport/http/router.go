// Package httptransport is the thin HTTP layer. It delegates to the auth
// service without embedding business logic so transport concerns stay
// isolated.
package httptransport

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autogate/internal/auth/models"
	"autogate/internal/auth/service"
)

// AuthService is the slice of the auth orchestrator the transport needs.
type AuthService interface {
	Login(ctx context.Context, req service.LoginRequest) (*service.SessionView, error)
	LoginWithToken(ctx context.Context, token, ipAddress, userAgent string) (*service.SessionView, error)
	RefreshToken(ctx context.Context, sessionID, credential string) (*service.SessionView, error)
	Logout(ctx context.Context, req service.LogoutRequest) error
	Sessions(ctx context.Context, userID, currentSessionID string) ([]models.SessionSummary, error)
}

// HealthCheck reports readiness of one downstream dependency.
type HealthCheck func(ctx context.Context) error

// Handler holds the transport's collaborators.
type Handler struct {
	auth   AuthService
	health map[string]HealthCheck
	logger *slog.Logger
}

// NewHandler builds the HTTP handler. The health map keys name the dependency
// in the /healthz response.
func NewHandler(auth AuthService, health map[string]HealthCheck, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{auth: auth, health: health, logger: logger}
}

// NewRouter wires all public endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Post("/token", h.handleTokenLogin)
		r.Post("/refresh", h.handleRefresh)
		r.Post("/logout", h.handleLogout)
		r.Get("/sessions", h.handleSessions)
	})

	r.Get("/healthz", h.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// clientIP returns the request's remote address without the port; chi's
// RealIP middleware already resolved forwarding headers into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
