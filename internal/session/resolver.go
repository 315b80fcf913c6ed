// Package session resolves backend sessions from request cookies.
//
// The resolver is a pure I/O wrapper: it makes at most one network call
// per lookup, forwarding the Cookie header verbatim to the backend's
// get-session endpoint, and never decides anything itself. Failures
// degrade to a nil session with a named error kind so the gate can fail
// closed while keeping outages visible in logs and metrics.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/observability"
)

var tracer = otel.Tracer("session")

// Resolver asks the ZenBilling backend whether a session exists for a
// given Cookie header.
type Resolver struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	group      singleflight.Group
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewResolver creates a session resolver.
func NewResolver(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, metrics *observability.Metrics, logger *zap.Logger) *Resolver {
	return &Resolver{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		metrics:    metrics,
		logger:     logger,
	}
}

// envelope mirrors the backend get-session body:
// { "session": { ... }, "user": { ... } } or null.
type envelope struct {
	Session *sessionBody `json:"session"`
	User    *domain.User `json:"user"`
}

type sessionBody struct {
	UserID               string    `json:"userId"`
	ActiveOrganizationID *string   `json:"activeOrganizationId"`
	ExpiresAt            time.Time `json:"expiresAt"`
}

// Resolve returns the session for the given Cookie header, or nil when
// the user is not authenticated. A *domain.ErrSessionUnavailable is
// returned when the lookup itself failed; callers treat it like a nil
// session (fail closed) but must not report the user as logged out.
//
// Concurrent lookups with an identical Cookie header are collapsed into
// a single backend call.
func (r *Resolver) Resolve(ctx context.Context, cookieHeader string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "SessionResolver.Resolve")
	defer span.End()

	// The collapsed lookup may serve callers other than the one whose
	// context it captured; detach cancellation so one canceled request
	// cannot fail the rest. The client timeout still bounds the call.
	lookupCtx := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(cookieHeader, func() (any, error) {
		return r.lookup(lookupCtx, cookieHeader)
	})
	if err != nil {
		r.metrics.IncrSessionLookup(observability.LookupUnavailable)
		r.logger.Warn("session: lookup unavailable", zap.Error(err))
		return nil, err
	}

	sess, _ := v.(*domain.Session)
	if sess == nil {
		r.metrics.IncrSessionLookup(observability.LookupMiss)
		return nil, nil
	}
	r.metrics.IncrSessionLookup(observability.LookupHit)
	return sess, nil
}

func (r *Resolver) lookup(ctx context.Context, cookieHeader string) (*domain.Session, error) {
	result, err := r.cb.Execute(func() (any, error) {
		url := fmt.Sprintf("%s/api/auth/get-session", r.baseURL)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if cookieHeader != "" {
			req.Header.Set("Cookie", cookieHeader)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return nil, &domain.ErrSessionUnavailable{Reason: "transport", Err: err}
		}
		defer resp.Body.Close()

		// 401/403 mean the backend rejected the cookies: the session is
		// genuinely absent, not unknown.
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return (*domain.Session)(nil), nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &domain.ErrSessionUnavailable{
				Reason: fmt.Sprintf("status_%d", resp.StatusCode),
			}
		}

		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return nil, &domain.ErrSessionUnavailable{Reason: "decode", Err: err}
		}
		if env.Session == nil {
			return (*domain.Session)(nil), nil
		}

		userID := env.Session.UserID
		if userID == "" && env.User != nil {
			userID = env.User.ID
		}
		return &domain.Session{
			UserID:               userID,
			ActiveOrganizationID: env.Session.ActiveOrganizationID,
			ExpiresAt:            env.Session.ExpiresAt,
		}, nil
	})
	if err != nil {
		var unavailable *domain.ErrSessionUnavailable
		if errors.As(err, &unavailable) {
			return nil, unavailable
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.ErrSessionUnavailable{Reason: "circuit_open", Err: err}
		}
		return nil, &domain.ErrSessionUnavailable{Reason: "lookup", Err: err}
	}
	return result.(*domain.Session), nil
}
