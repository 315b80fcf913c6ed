package handler

import (
	"context"
	"net/http"

	"github.com/zenbilling/zenbilling-edge-go/internal/service"
	"go.uber.org/zap"
)

type contextKey string

const userIDKey contextKey = "userID"

// Gateway cookie names. The edge token proves a recent login through
// this gateway; the state key points at the persisted auth-state blob.
const (
	EdgeTokenCookie = "zb_token"
	StateKeyCookie  = "zb_state"
)

// EdgeAuthMiddleware validates the gateway's edge token cookie and
// injects the user ID into context. It guards the gateway's own JSON
// endpoints; page navigations go through the gate instead.
func EdgeAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := cookieValue(r, EdgeTokenCookie)
			if tokenString == "" {
				logger.Warn("auth: missing edge token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			claims, err := authSvc.ValidateEdgeToken(tokenString)
			if err != nil {
				logger.Warn("auth: invalid or expired edge token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.Sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}
