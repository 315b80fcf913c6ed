package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/zenbilling/zenbilling-edge-go/internal/gate"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/observability"
	"github.com/zenbilling/zenbilling-edge-go/internal/port"
	"github.com/zenbilling/zenbilling-edge-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps bundles everything the router wires together.
type Deps struct {
	Gate      *gate.Gate
	Auth      *service.AuthService
	Bootstrap *service.BootstrapService
	Sessions  port.SessionSource
	Renderer  port.PageRenderer
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
// JSON endpoints live under /v1; everything else is treated as a page
// navigation and runs through the gate before reaching the renderer.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(d.Logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d.Sessions, d.Logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Navigation: gate decision, bootstrap, onboarding
		// =============================================
		r.Post("/gate/decision", gateDecisionHandler(d.Gate, d.Logger))
		r.Post("/bootstrap", bootstrapHandler(d.Bootstrap, d.Logger))
		r.Post("/onboarding/reconcile", onboardingReconcileHandler(d.Bootstrap, d.Logger))

		// =============================================
		// Auth state blob (shell rehydration)
		// =============================================
		r.Get("/state/auth", getStateHandler(d.Auth, d.Logger))
		r.Put("/state/auth", putStateHandler(d.Auth, d.Logger))

		// =============================================
		// Metrics snapshot
		// =============================================
		r.Get("/metrics/gate", gateMetricsHandler(d.Metrics, d.Logger))

		// =============================================
		// Auth
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authLoginHandler(d.Auth, d.Logger))
			r.Post("/logout", authLogoutHandler(d.Auth, d.Logger))
			r.Post("/password/reset-request", authPasswordResetRequestHandler(d.Auth, d.Logger))
			r.Post("/password/reset-confirm", authPasswordResetConfirmHandler(d.Auth, d.Logger))
		})

		// =============================================
		// Profile (requires a valid edge token)
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(EdgeAuthMiddleware(d.Auth, d.Logger))
			r.Get("/users/profile", getProfileHandler(d.Auth, d.Logger))
			r.Put("/users/profile", updateProfileHandler(d.Auth, d.Logger))
		})
	})

	// --- Pages: everything else is a navigation through the gate ---
	r.Handle("/*", d.Gate.Middleware(pageProxyHandler(d.Renderer, d.Logger)))

	return r
}

// ============================================================
// Health
// ============================================================

func healthzHandler(sessions port.SessionSource, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		now := time.Now().Format(time.RFC3339)
		authStatus := "healthy"

		// An empty cookie set resolves to "no session"; any error here
		// means the auth backend itself is unreachable.
		start := time.Now()
		if _, err := sessions.Resolve(ctx, ""); err != nil {
			authStatus = "degraded"
			logger.Warn("healthz: auth backend check failed", zap.Error(err))
		}
		latency := time.Since(start).Milliseconds()

		status := "healthy"
		if authStatus != "healthy" {
			status = "degraded"
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status": status,
			"services": []map[string]any{
				{"name": "zenbilling-edge", "status": "healthy", "latency_ms": 0, "last_checked": now},
				{"name": "auth-backend", "status": authStatus, "latency_ms": latency, "last_checked": now},
			},
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
