// Package gate implements the edge authorization check that runs before
// any page renders.
//
// The decision rules live in a single pure function, Evaluate. The Gate
// calls it from the request-level middleware; the /v1/gate/decision
// endpoint exposes the same function as the client-side re-validation
// hook, so there is exactly one source of truth for "is this navigation
// allowed."
package gate

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/observability"
	"github.com/zenbilling/zenbilling-edge-go/internal/port"
	"github.com/zenbilling/zenbilling-edge-go/internal/route"
)

var tracer = otel.Tracer("gate")

// Decision is the outcome of a gate evaluation for one navigation.
type Decision struct {
	Allow  bool   `json:"allow"`
	Target string `json:"target,omitempty"`
}

// Evaluate applies the gating rules to an already-classified path and
// an already-resolved session. Pure and total; the two deny conditions
// (unauthenticated, no organization) are mutually exclusive because the
// nil-session branch returns first.
func Evaluate(class route.Class, sess *domain.Session, path string) Decision {
	if class == route.Public {
		return Decision{Allow: true}
	}

	if sess == nil {
		// Login/register must stay reachable while logged out.
		if class == route.AuthOnly {
			return Decision{Allow: true}
		}
		return Decision{Target: domain.PathLogin}
	}

	// An authenticated user must not see login/register again.
	if class == route.AuthOnly {
		return Decision{Target: domain.PathHome}
	}

	if sess.ActiveOrganizationID == nil && path != domain.PathSelectOrganization {
		return Decision{Target: domain.PathSelectOrganization}
	}

	return Decision{Allow: true}
}

// Gate combines the route classifier and the session resolver into the
// request-level authorization check.
type Gate struct {
	classifier *route.Classifier
	sessions   port.SessionSource
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// New creates an edge gate.
func New(classifier *route.Classifier, sessions port.SessionSource, metrics *observability.Metrics, logger *zap.Logger) *Gate {
	return &Gate{
		classifier: classifier,
		sessions:   sessions,
		metrics:    metrics,
		logger:     logger,
	}
}

// Decide produces the redirect decision for one navigation. It never
// returns an error: a failed session lookup is indistinguishable from
// "not logged in" at this boundary (fail closed), and public paths skip
// the lookup entirely.
func (g *Gate) Decide(ctx context.Context, path, cookieHeader string) Decision {
	ctx, span := tracer.Start(ctx, "Gate.Decide")
	defer span.End()

	// Normalize once so classification and the path comparisons inside
	// Evaluate see the same canonical form.
	path = route.Normalize(path)
	span.SetAttributes(attribute.String("nav.path", path))

	class := g.classifier.Classify(path)
	if class == route.Public {
		g.metrics.IncrGateDecision(observability.OutcomeAllow)
		return Decision{Allow: true}
	}

	sess, err := g.sessions.Resolve(ctx, cookieHeader)
	if err != nil {
		// Already counted and logged by the resolver; sess is nil and
		// the evaluation below denies by construction.
		span.SetAttributes(attribute.Bool("session.unavailable", true))
	}

	decision := Evaluate(class, sess, path)
	g.metrics.IncrGateDecision(outcomeLabel(decision))

	if !decision.Allow {
		g.logger.Info("gate: navigation redirected",
			zap.String("path", path),
			zap.String("class", class.String()),
			zap.String("target", decision.Target),
			zap.Bool("authenticated", sess != nil),
		)
	}
	return decision
}

// Middleware intercepts page navigations: denied requests get a 303 to
// the decision target, allowed ones fall through to the page handler.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := g.Decide(r.Context(), r.URL.Path, r.Header.Get("Cookie"))
		if !decision.Allow {
			http.Redirect(w, r, decision.Target, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func outcomeLabel(d Decision) string {
	switch {
	case d.Allow:
		return observability.OutcomeAllow
	case d.Target == domain.PathLogin:
		return observability.OutcomeRedirectLogin
	case d.Target == domain.PathSelectOrganization:
		return observability.OutcomeRedirectSelectOrg
	default:
		return observability.OutcomeRedirectHome
	}
}
