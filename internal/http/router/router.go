package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/globetrotter/identity-service/internal/config"
	"github.com/globetrotter/identity-service/internal/health"
	"github.com/globetrotter/identity-service/internal/http/handler"
	"github.com/globetrotter/identity-service/internal/http/middleware"
	"github.com/globetrotter/identity-service/internal/http/response"
	"github.com/globetrotter/identity-service/internal/service"
)

const maxBodyBytes = 1 << 20

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Cfg     *config.Config
	Auth    *handler.AuthHandler
	Admin   *handler.AdminHandler
	Admins  service.AdminServiceInterface
	Limiter middleware.Limiter
	Probes  *health.ProbeRunner
}

// New assembles the route tree and middleware chain.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(d.Cfg.CORSAllowedOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))
	r.Use(middleware.RateLimiter(d.Limiter, d.Cfg.APIRateLimitPerMin, time.Minute, middleware.FailOpen))

	authLimit := middleware.RateLimiter(d.Limiter, d.Cfg.AuthRateLimitPerMin, time.Minute, middleware.FailOpen)

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(authLimit)
		r.Post("/register", d.Auth.Register)
		r.Post("/verify-otp", d.Auth.VerifyOTP)
		r.Post("/resend-otp", d.Auth.ResendOTP)
		r.Post("/forgot-password", d.Auth.ForgotPassword)
		r.Post("/verify-token", d.Auth.VerifyResetToken)
		r.Post("/reset-password", d.Auth.ResetPassword)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.With(authLimit).Post("/login", d.Admin.Login)
		r.With(middleware.RequireAdmin(d.Admins)).Get("/auth", d.Admin.Auth)
	})

	r.Get("/health/live", func(w http.ResponseWriter, req *http.Request) {
		response.JSON(w, req, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		healthy, results := d.Probes.Ready(req.Context())
		status := http.StatusOK
		overall := "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = "unavailable"
		}
		response.JSON(w, req, status, map[string]any{"status": overall, "checks": results})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.Error(w, req, http.StatusNotFound, "not_found", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		response.Error(w, req, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
	})

	if d.Cfg.OTELTracingEnabled {
		return otelhttp.NewHandler(r, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
				return req.Method + " " + req.URL.Path
			}),
		)
	}
	return r
}
