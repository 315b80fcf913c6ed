// Package service — AuthService fronts the ZenBilling auth backend:
// login/logout pass-through, edge token management, password reset and
// profile updates.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
	"github.com/zenbilling/zenbilling-edge-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

// AuthService orchestrates authentication flows against the backend.
type AuthService struct {
	backend      port.AuthBackend
	states       port.StateStore
	jwtSecret    []byte
	edgeTokenTTL time.Duration
	logger       *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(backend port.AuthBackend, states port.StateStore, jwtSecret string, edgeTokenTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		backend:      backend,
		states:       states,
		jwtSecret:    []byte(jwtSecret),
		edgeTokenTTL: edgeTokenTTL,
		logger:       logger,
	}
}

// LoginResult carries everything the handler needs to answer a login:
// the response body, the backend's Set-Cookie values to pass through,
// and the two gateway cookies (edge token + state key).
type LoginResult struct {
	Response   *domain.LoginResponse
	SetCookies []string
	EdgeToken  string
	StateKey   string
}

// ============================================================
// Login — POST /v1/auth/login
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*LoginResult, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		return nil, &domain.ErrValidation{Field: "email", Message: "email is required"}
	}
	if req.Password == "" {
		return nil, &domain.ErrValidation{Field: "password", Message: "password is required"}
	}

	resp, setCookies, err := s.backend.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, &domain.ErrUpstream{Service: "auth", Err: fmt.Errorf("login response missing user")}
	}

	edgeToken, err := s.signEdgeToken(resp.User.ID)
	if err != nil {
		return nil, fmt.Errorf("sign edge token: %w", err)
	}

	// Seed the client-state blob so the shell rehydrates without a
	// profile fetch on the next reload.
	stateKey := uuid.NewString()
	if err := s.states.Put(ctx, stateKey, &domain.AuthState{
		User:            resp.User,
		IsAuthenticated: true,
	}); err != nil {
		// The state blob is a rehydration shortcut, not the source of
		// truth. Login still succeeds without it.
		s.logger.Warn("login: seeding auth state failed",
			zap.String("user_id", resp.User.ID),
			zap.Error(err),
		)
		stateKey = ""
	}

	resp.ExpiresIn = int(s.edgeTokenTTL.Seconds())

	s.logger.Info("user logged in", zap.String("user_id", resp.User.ID))

	return &LoginResult{
		Response:   resp,
		SetCookies: setCookies,
		EdgeToken:  edgeToken,
		StateKey:   stateKey,
	}, nil
}

// ============================================================
// Logout — POST /v1/auth/logout
// ============================================================

// Logout signs out against the backend and drops the state blob. A
// backend failure is logged but does not block the logout: the gateway
// cookies are cleared either way.
func (s *AuthService) Logout(ctx context.Context, cookieHeader, stateKey string) error {
	ctx, span := authTracer.Start(ctx, "AuthService.Logout")
	defer span.End()

	if err := s.backend.Logout(ctx, cookieHeader); err != nil {
		s.logger.Warn("logout: backend sign-out failed", zap.Error(err))
	}

	if stateKey != "" {
		if err := s.states.Delete(ctx, stateKey); err != nil {
			s.logger.Warn("logout: state delete failed",
				zap.String("state_key", stateKey),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("user logged out")
	return nil
}

// ============================================================
// PasswordResetRequest — POST /v1/auth/password/reset-request
// ============================================================

// PasswordResetRequest always reports success to the caller so the
// endpoint does not leak whether the email is registered.
func (s *AuthService) PasswordResetRequest(ctx context.Context, req *domain.PasswordResetRequestBody) (*domain.SuccessResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.PasswordResetRequest")
	defer span.End()

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return nil, &domain.ErrValidation{Field: "email", Message: "a valid email is required"}
	}

	if err := s.backend.PasswordResetRequest(ctx, req); err != nil {
		s.logger.Warn("password reset request failed upstream", zap.Error(err))
	}

	return &domain.SuccessResponse{
		Message: "If the email is registered, a reset link has been sent",
	}, nil
}

// ============================================================
// PasswordResetConfirm — POST /v1/auth/password/reset-confirm
// ============================================================

func (s *AuthService) PasswordResetConfirm(ctx context.Context, req *domain.PasswordResetConfirmRequest) error {
	ctx, span := authTracer.Start(ctx, "AuthService.PasswordResetConfirm")
	defer span.End()

	if req.Token == "" {
		return &domain.ErrValidation{Field: "token", Message: "token is required"}
	}
	if len(req.Password) < 8 {
		return &domain.ErrValidation{Field: "password", Message: "password must be at least 8 characters"}
	}

	if err := s.backend.PasswordResetConfirm(ctx, req); err != nil {
		return err
	}

	s.logger.Info("password reset completed")
	return nil
}

// ============================================================
// Profile — GET/PUT /v1/users/profile
// ============================================================

func (s *AuthService) GetProfile(ctx context.Context, cookieHeader string) (*domain.User, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.GetProfile")
	defer span.End()

	return s.backend.FetchUser(ctx, cookieHeader)
}

// UpdateProfile applies the update upstream and refreshes the state
// blob (when a state key is present) so the shell sees the new profile
// on the next reload.
func (s *AuthService) UpdateProfile(ctx context.Context, cookieHeader, stateKey string, req *domain.UpdateProfileRequest) (*domain.User, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.UpdateProfile")
	defer span.End()

	if req.Name == "" && req.Email == "" {
		return nil, &domain.ErrValidation{Field: "body", Message: "no fields to update"}
	}

	user, err := s.backend.UpdateUser(ctx, cookieHeader, req)
	if err != nil {
		return nil, err
	}

	if stateKey != "" {
		if err := s.states.Put(ctx, stateKey, &domain.AuthState{
			User:            user,
			IsAuthenticated: true,
		}); err != nil {
			s.logger.Warn("profile update: state refresh failed",
				zap.String("state_key", stateKey),
				zap.Error(err),
			)
		}
	}

	return user, nil
}

// ============================================================
// State blob — GET/PUT /v1/state/auth
// ============================================================

func (s *AuthService) GetState(ctx context.Context, key string) (*domain.AuthState, error) {
	return s.states.Get(ctx, key)
}

func (s *AuthService) PutState(ctx context.Context, key string, state *domain.AuthState) error {
	if key == "" {
		return &domain.ErrValidation{Field: "key", Message: "state key is required"}
	}
	return s.states.Put(ctx, key, state)
}

// ============================================================
// Edge token — used by middleware
// ============================================================

// EdgeClaims are the claims inside the short-lived gateway token.
type EdgeClaims struct {
	Sub  string `json:"sub"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// ValidateEdgeToken parses and verifies a gateway token. It only
// proves the browser logged in through this gateway recently; route
// decisions still go through the session resolver.
func (s *AuthService) ValidateEdgeToken(tokenString string) (*EdgeClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &EdgeClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*EdgeClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Type != "edge" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}

	return claims, nil
}

func (s *AuthService) signEdgeToken(userID string) (string, error) {
	now := time.Now()
	claims := EdgeClaims{
		Sub:  userID,
		Type: "edge",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.edgeTokenTTL)),
			Issuer:    "zenbilling-edge",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
