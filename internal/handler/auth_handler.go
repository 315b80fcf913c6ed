package handler

import (
	"encoding/json"
	"net/http"

	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
	"github.com/zenbilling/zenbilling-edge-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Auth — /v1/auth/*
// ============================================================

func authLoginHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		var req domain.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := authSvc.Login(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		// Pass the backend's session cookies straight through, then add
		// the gateway's own cookies.
		for _, c := range result.SetCookies {
			w.Header().Add("Set-Cookie", c)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     EdgeTokenCookie,
			Value:    result.EdgeToken,
			Path:     "/",
			MaxAge:   result.Response.ExpiresIn,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		if result.StateKey != "" {
			http.SetCookie(w, &http.Cookie{
				Name:     StateKeyCookie,
				Value:    result.StateKey,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		writeJSON(w, http.StatusOK, result.Response)
	}
}

func authLogoutHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/logout")
		defer span.End()

		if err := authSvc.Logout(ctx, r.Header.Get("Cookie"), cookieValue(r, StateKeyCookie)); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		clearCookie(w, EdgeTokenCookie)
		clearCookie(w, StateKeyCookie)

		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "logged out"})
	}
}

func authPasswordResetRequestHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/password/reset-request")
		defer span.End()

		var req domain.PasswordResetRequestBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := authSvc.PasswordResetRequest(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func authPasswordResetConfirmHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/password/reset-confirm")
		defer span.End()

		var req domain.PasswordResetConfirmRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := authSvc.PasswordResetConfirm(ctx, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "password updated"})
	}
}

// ============================================================
// Profile — /v1/users/profile
// ============================================================

func getProfileHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/profile")
		defer span.End()

		user, err := authSvc.GetProfile(ctx, r.Header.Get("Cookie"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func updateProfileHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/users/profile")
		defer span.End()

		var req domain.UpdateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		user, err := authSvc.UpdateProfile(ctx, r.Header.Get("Cookie"), cookieValue(r, StateKeyCookie), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// ============================================================
// Auth state blob — /v1/state/auth
// ============================================================

func getStateHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/state/auth")
		defer span.End()

		key := cookieValue(r, StateKeyCookie)
		if key == "" {
			writeJSON(w, http.StatusOK, domain.AuthState{})
			return
		}

		state, err := authSvc.GetState(ctx, key)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if state == nil {
			// Expired or never written: the shell starts logged out.
			writeJSON(w, http.StatusOK, domain.AuthState{})
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func putStateHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/state/auth")
		defer span.End()

		var state domain.AuthState
		if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := authSvc.PutState(ctx, cookieValue(r, StateKeyCookie), &state); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "state saved"})
	}
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
