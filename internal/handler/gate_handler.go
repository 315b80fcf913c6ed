package handler

import (
	"encoding/json"
	"net/http"

	"github.com/zenbilling/zenbilling-edge-go/internal/gate"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/observability"
	"github.com/zenbilling/zenbilling-edge-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Gate & bootstrap — the shell's navigation endpoints
// ============================================================

// gateDecisionHandler exposes the gate to the client for re-validation
// of client-side navigations. Same rules, same code path as the
// request-level middleware.
func gateDecisionHandler(g *gate.Gate, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/gate/decision")
		defer span.End()

		var req struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Path == "" {
			writeError(w, http.StatusBadRequest, "path is required")
			return
		}
		span.SetAttributes(attribute.String("nav.path", req.Path))

		decision := g.Decide(ctx, req.Path, r.Header.Get("Cookie"))
		writeJSON(w, http.StatusOK, decision)
	}
}

func bootstrapHandler(bootSvc *service.BootstrapService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/bootstrap")
		defer span.End()

		var req struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Path == "" {
			req.Path = "/"
		}
		span.SetAttributes(attribute.String("nav.path", req.Path))

		resp, err := bootSvc.Evaluate(ctx, req.Path, r.Header.Get("Cookie"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func onboardingReconcileHandler(bootSvc *service.BootstrapService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/onboarding/reconcile")
		defer span.End()

		var req struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Path == "" {
			writeError(w, http.StatusBadRequest, "path is required")
			return
		}
		span.SetAttributes(attribute.String("nav.path", req.Path))

		resp, err := bootSvc.ReconcileOnboarding(ctx, req.Path, r.Header.Get("Cookie"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func gateMetricsHandler(metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := metrics.GetGateSnapshot()
		writeJSON(w, http.StatusOK, snapshot)
	}
}
