package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
	"github.com/zenbilling/zenbilling-edge-go/internal/guard"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/cache"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/observability"
	"github.com/zenbilling/zenbilling-edge-go/internal/onboarding"
	"github.com/zenbilling/zenbilling-edge-go/internal/port"
	"github.com/zenbilling/zenbilling-edge-go/internal/route"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var bootstrapTracer = otel.Tracer("service/bootstrap")

// BootstrapService answers the app shell's "what should I render?"
// question: it resolves the session and user concurrently, runs the
// guard state machine, and reconciles onboarding navigation.
type BootstrapService struct {
	sessions  port.SessionSource
	users     port.UserFetcher
	userCache *cache.InMemory[*domain.User]
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewBootstrapService creates a bootstrap service.
func NewBootstrapService(sessions port.SessionSource, users port.UserFetcher, userCache *cache.InMemory[*domain.User], metrics *observability.Metrics, logger *zap.Logger) *BootstrapService {
	return &BootstrapService{
		sessions:  sessions,
		users:     users,
		userCache: userCache,
		metrics:   metrics,
		logger:    logger,
	}
}

// Evaluate resolves session and user for the request's cookies and
// returns the guard verdict for path. Lookup failures never surface as
// errors: a failed session lookup reads as "not authenticated" and the
// shell lands in NO_USER.
func (b *BootstrapService) Evaluate(ctx context.Context, path, cookieHeader string) (*domain.BootstrapResponse, error) {
	ctx, span := bootstrapTracer.Start(ctx, "BootstrapService.Evaluate")
	defer span.End()

	path = route.Normalize(path)
	span.SetAttributes(attribute.String("page.path", path))

	start := time.Now()
	defer func() {
		b.metrics.RecordRequestDuration("bootstrap", time.Since(start))
	}()

	sess, user := b.resolveBoth(ctx, cookieHeader)

	snap := guard.Snapshot{
		Authenticated: sess != nil,
		User:          user,
		Path:          path,
	}
	if sess != nil {
		snap.ActiveOrganizationID = sess.ActiveOrganizationID
	}

	res := guard.Evaluate(snap)

	return &domain.BootstrapResponse{
		State:    res.State.String(),
		Redirect: res.Redirect,
	}, nil
}

// ReconcileOnboarding returns the forced onboarding navigation for the
// current path, or an empty response when the user may stay put.
func (b *BootstrapService) ReconcileOnboarding(ctx context.Context, path, cookieHeader string) (*domain.ReconcileResponse, error) {
	ctx, span := bootstrapTracer.Start(ctx, "BootstrapService.ReconcileOnboarding")
	defer span.End()

	path = route.Normalize(path)
	span.SetAttributes(attribute.String("page.path", path))

	user := b.fetchUser(ctx, cookieHeader)

	target, ok := onboarding.Reconcile(user, path)
	if !ok {
		return &domain.ReconcileResponse{}, nil
	}

	b.logger.Info("onboarding: forcing navigation",
		zap.String("from", path),
		zap.String("to", target),
	)
	return &domain.ReconcileResponse{Redirect: target}, nil
}

// resolveBoth fans out the session and user lookups. Each failure
// degrades its own result to nil rather than failing the evaluation.
func (b *BootstrapService) resolveBoth(ctx context.Context, cookieHeader string) (*domain.Session, *domain.User) {
	var (
		sess *domain.Session
		user *domain.User
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s, err := b.sessions.Resolve(gCtx, cookieHeader)
		if err != nil {
			b.logger.Warn("bootstrap: session resolve failed", zap.Error(err))
			return nil
		}
		sess = s
		return nil
	})

	g.Go(func() error {
		user = b.fetchUser(gCtx, cookieHeader)
		return nil
	})

	_ = g.Wait()

	if sess == nil {
		// A user without a session is stale cache; never trust it.
		return nil, nil
	}
	return sess, user
}

// fetchUser loads the user projection, cached per cookie set so a
// bootstrap and an onboarding reconcile in quick succession cost one
// backend call.
func (b *BootstrapService) fetchUser(ctx context.Context, cookieHeader string) *domain.User {
	if cookieHeader == "" {
		return nil
	}

	cacheKey := userCacheKey(cookieHeader)
	if cached, ok := b.userCache.Get(cacheKey); ok {
		b.metrics.IncrCacheHit("user")
		return cached
	}
	b.metrics.IncrCacheMiss("user")

	user, err := b.users.FetchUser(ctx, cookieHeader)
	if err != nil {
		b.logger.Warn("bootstrap: user fetch failed", zap.Error(err))
		b.metrics.IncrUpstreamError("auth")
		return nil
	}

	b.userCache.Set(cacheKey, user)
	return user
}

// userCacheKey hashes the cookie header so raw session cookies never
// sit in cache keys.
func userCacheKey(cookieHeader string) string {
	h := sha256.Sum256([]byte(cookieHeader))
	return "user:" + hex.EncodeToString(h[:])
}
