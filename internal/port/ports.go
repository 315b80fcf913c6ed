// Package port defines the interfaces between services and infrastructure.
package port

import (
	"context"
	"net/http"

	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
)

// SessionSource resolves the session attached to a request's cookies.
// A nil session with a nil error means "not authenticated"; a
// *domain.ErrSessionUnavailable means the lookup itself failed and the
// caller must fail closed.
type SessionSource interface {
	Resolve(ctx context.Context, cookieHeader string) (*domain.Session, error)
}

// UserFetcher loads the user projection for the request's cookies.
type UserFetcher interface {
	FetchUser(ctx context.Context, cookieHeader string) (*domain.User, error)
}

// AuthBackend is the ZenBilling REST backend's auth surface.
// Login returns any Set-Cookie values the backend issued so the
// gateway can pass them through to the browser.
type AuthBackend interface {
	UserFetcher
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, []string, error)
	Logout(ctx context.Context, cookieHeader string) error
	PasswordResetRequest(ctx context.Context, req *domain.PasswordResetRequestBody) error
	PasswordResetConfirm(ctx context.Context, req *domain.PasswordResetConfirmRequest) error
	UpdateUser(ctx context.Context, cookieHeader string, req *domain.UpdateProfileRequest) (*domain.User, error)
}

// PageRenderer fetches a rendered page from the upstream renderer.
type PageRenderer interface {
	Render(ctx context.Context, path string, header http.Header) (*domain.RenderedPage, error)
}

// StateStore persists the keyed client auth-state blob.
type StateStore interface {
	Get(ctx context.Context, key string) (*domain.AuthState, error)
	Put(ctx context.Context, key string, state *domain.AuthState) error
	Delete(ctx context.Context, key string) error
}
