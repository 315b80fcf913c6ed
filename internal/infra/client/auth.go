// Package client holds HTTP clients for the ZenBilling backend and the
// page renderer.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/resilience"
)

var tracer = otel.Tracer("client")

// AuthClient talks to the ZenBilling backend's auth and user endpoints.
type AuthClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewAuthClient creates an auth backend client.
func NewAuthClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *AuthClient {
	return &AuthClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

// backendError is the backend's error envelope: { "message": "..." }.
type backendError struct {
	Message string `json:"message"`
}

// Login forwards credentials to the backend. On success it returns the
// login payload plus any Set-Cookie values the backend issued, so the
// handler can pass them through to the browser. Not retried: the call
// is cheap to repeat from the browser and retrying hides lockouts.
func (c *AuthClient) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, []string, error) {
	ctx, span := tracer.Start(ctx, "AuthClient.Login")
	defer span.End()
	span.SetAttributes(attribute.String("auth.email", req.Email))

	var (
		loginResp  domain.LoginResponse
		setCookies []string
	)

	_, err := c.cb.Execute(func() (any, error) {
		body, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}

		url := fmt.Sprintf("%s/api/auth/login", c.baseURL)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, mapAuthError(resp)
		}

		setCookies = resp.Header.Values("Set-Cookie")
		return nil, json.NewDecoder(resp.Body).Decode(&loginResp)
	})
	if err != nil {
		return nil, nil, wrapBackendError("login", err)
	}

	return &loginResp, setCookies, nil
}

// Logout invalidates the backend session behind the given cookies.
func (c *AuthClient) Logout(ctx context.Context, cookieHeader string) error {
	ctx, span := tracer.Start(ctx, "AuthClient.Logout")
	defer span.End()

	_, err := c.cb.Execute(func() (any, error) {
		url := fmt.Sprintf("%s/api/auth/sign-out", c.baseURL)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			return nil, err
		}
		if cookieHeader != "" {
			httpReq.Header.Set("Cookie", cookieHeader)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		// A 401 here just means the session was already gone.
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnauthorized {
			return nil, fmt.Errorf("sign-out returned status %d", resp.StatusCode)
		}
		return nil, nil
	})
	if err != nil {
		return wrapBackendError("logout", err)
	}
	return nil
}

// PasswordResetRequest asks the backend to send a reset email.
func (c *AuthClient) PasswordResetRequest(ctx context.Context, req *domain.PasswordResetRequestBody) error {
	ctx, span := tracer.Start(ctx, "AuthClient.PasswordResetRequest")
	defer span.End()

	return c.postJSON(ctx, "/api/auth/password-reset-request", req)
}

// PasswordResetConfirm exchanges a reset token for a new password.
func (c *AuthClient) PasswordResetConfirm(ctx context.Context, req *domain.PasswordResetConfirmRequest) error {
	ctx, span := tracer.Start(ctx, "AuthClient.PasswordResetConfirm")
	defer span.End()

	return c.postJSON(ctx, "/api/auth/password-reset-confirm", req)
}

// FetchUser loads the user projection for the request's cookies, with
// retry: GETs are safe to repeat and the bootstrap guard depends on
// this call.
func (c *AuthClient) FetchUser(ctx context.Context, cookieHeader string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "AuthClient.FetchUser")
	defer span.End()

	var user domain.User

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/users/profile", c.baseURL)
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			if cookieHeader != "" {
				httpReq.Header.Set("Cookie", cookieHeader)
			}
			httpReq.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(httpReq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusOK:
				return json.NewDecoder(resp.Body).Decode(&user)
			case http.StatusUnauthorized, http.StatusForbidden:
				return &domain.ErrUnauthorized{Message: "session expired"}
			case http.StatusNotFound:
				return &domain.ErrNotFound{Resource: "user", ID: "profile"}
			default:
				return fmt.Errorf("profile returned status %d", resp.StatusCode)
			}
		})
	})
	if err != nil {
		return nil, wrapBackendError("profile", err)
	}

	return &user, nil
}

// UpdateUser forwards a profile update.
func (c *AuthClient) UpdateUser(ctx context.Context, cookieHeader string, req *domain.UpdateProfileRequest) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "AuthClient.UpdateUser")
	defer span.End()

	var user domain.User

	_, err := c.cb.Execute(func() (any, error) {
		body, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}

		url := fmt.Sprintf("%s/users/profile", c.baseURL)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if cookieHeader != "" {
			httpReq.Header.Set("Cookie", cookieHeader)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, mapAuthError(resp)
		}
		return nil, json.NewDecoder(resp.Body).Decode(&user)
	})
	if err != nil {
		return nil, wrapBackendError("profile", err)
	}

	return &user, nil
}

func (c *AuthClient) postJSON(ctx context.Context, path string, payload any) error {
	_, err := c.cb.Execute(func() (any, error) {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}

		url := fmt.Sprintf("%s%s", c.baseURL, path)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, mapAuthError(resp)
		}
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	})
	if err != nil {
		return wrapBackendError("auth", err)
	}
	return nil
}

// mapAuthError turns a backend non-2xx response into a domain error,
// preserving the backend's message when there is one.
func mapAuthError(resp *http.Response) error {
	var be backendError
	_ = json.NewDecoder(resp.Body).Decode(&be)

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &domain.ErrValidation{Field: "body", Message: be.Message}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &domain.ErrUnauthorized{Message: be.Message}
	case http.StatusConflict:
		return &domain.ErrConflict{Message: be.Message}
	case http.StatusNotFound:
		return &domain.ErrNotFound{Resource: "resource", ID: ""}
	default:
		return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, be.Message)
	}
}

// wrapBackendError keeps domain errors as-is and wraps everything else
// (transport failures, breaker open, unexpected statuses) as upstream.
func wrapBackendError(operation string, err error) error {
	switch err.(type) {
	case *domain.ErrUnauthorized, *domain.ErrValidation, *domain.ErrNotFound, *domain.ErrConflict:
		return err
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return &domain.ErrCircuitOpen{Service: "auth-backend"}
	}
	return &domain.ErrUpstream{Service: "auth-backend/" + operation, Err: err}
}
