package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/cache"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/observability"
	"github.com/zenbilling/zenbilling-edge-go/internal/service"

	"go.uber.org/zap"
)

type mockSessionSource struct {
	sess *domain.Session
	err  error
}

func (m *mockSessionSource) Resolve(_ context.Context, _ string) (*domain.Session, error) {
	return m.sess, m.err
}

type mockUserFetcher struct {
	user  *domain.User
	err   error
	calls int
}

func (m *mockUserFetcher) FetchUser(_ context.Context, _ string) (*domain.User, error) {
	m.calls++
	return m.user, m.err
}

func newBootstrap(sessions *mockSessionSource, users *mockUserFetcher) (*service.BootstrapService, *cache.InMemory[*domain.User]) {
	userCache := cache.New[*domain.User](time.Minute)
	svc := service.NewBootstrapService(sessions, users, userCache, observability.NewMetrics(), zap.NewNop())
	return svc, userCache
}

func strptr(s string) *string { return &s }

func TestBootstrap_Ready(t *testing.T) {
	svc, c := newBootstrap(
		&mockSessionSource{sess: &domain.Session{UserID: "usr-1", ActiveOrganizationID: strptr("org-1")}},
		&mockUserFetcher{user: &domain.User{ID: "usr-1", OnboardingCompleted: true}},
	)
	defer c.Close()

	resp, err := svc.Evaluate(context.Background(), "/invoices", "zen.session=abc")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.State != "READY" || resp.Redirect != "" {
		t.Errorf("expected READY with no redirect, got %+v", resp)
	}
}

func TestBootstrap_NoUser(t *testing.T) {
	svc, c := newBootstrap(&mockSessionSource{}, &mockUserFetcher{err: &domain.ErrUnauthorized{}})
	defer c.Close()

	resp, err := svc.Evaluate(context.Background(), "/invoices", "")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.State != "NO_USER" {
		t.Errorf("expected NO_USER, got %+v", resp)
	}
	if resp.Redirect != "" {
		t.Errorf("NO_USER must not redirect (edge handles login), got %q", resp.Redirect)
	}
}

func TestBootstrap_NeedsOrganization(t *testing.T) {
	svc, c := newBootstrap(
		&mockSessionSource{sess: &domain.Session{UserID: "usr-1"}},
		&mockUserFetcher{user: &domain.User{ID: "usr-1"}},
	)
	defer c.Close()

	resp, err := svc.Evaluate(context.Background(), "/invoices", "zen.session=abc")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if resp.State != "NEEDS_ORGANIZATION" || resp.Redirect != domain.PathSelectOrganization {
		t.Errorf("expected NEEDS_ORGANIZATION -> %s, got %+v", domain.PathSelectOrganization, resp)
	}
}

func TestBootstrap_NeedsOrganizationNoLoopOnPicker(t *testing.T) {
	svc, c := newBootstrap(
		&mockSessionSource{sess: &domain.Session{UserID: "usr-1"}},
		&mockUserFetcher{user: &domain.User{ID: "usr-1"}},
	)
	defer c.Close()

	resp, _ := svc.Evaluate(context.Background(), domain.PathSelectOrganization, "zen.session=abc")
	if resp.Redirect != "" {
		t.Errorf("no redirect while already on the picker, got %q", resp.Redirect)
	}

	// A trailing slash on the picker must not reintroduce the loop.
	resp, _ = svc.Evaluate(context.Background(), domain.PathSelectOrganization+"/", "zen.session=abc")
	if resp.Redirect != "" {
		t.Errorf("no redirect on the picker with a trailing slash, got %q", resp.Redirect)
	}
}

func TestBootstrap_SessionLookupFailureFailsClosed(t *testing.T) {
	svc, c := newBootstrap(
		&mockSessionSource{err: &domain.ErrSessionUnavailable{Reason: "timeout"}},
		&mockUserFetcher{user: &domain.User{ID: "usr-1"}},
	)
	defer c.Close()

	resp, err := svc.Evaluate(context.Background(), "/invoices", "zen.session=abc")
	if err != nil {
		t.Fatalf("evaluate must not surface lookup errors: %v", err)
	}
	if resp.State != "NO_USER" {
		t.Errorf("lookup failure must read as NO_USER, got %+v", resp)
	}
}

func TestBootstrap_UserCachedAcrossCalls(t *testing.T) {
	users := &mockUserFetcher{user: &domain.User{ID: "usr-1", OnboardingCompleted: true}}
	svc, c := newBootstrap(
		&mockSessionSource{sess: &domain.Session{UserID: "usr-1", ActiveOrganizationID: strptr("org-1")}},
		users,
	)
	defer c.Close()
	ctx := context.Background()

	svc.Evaluate(ctx, "/invoices", "zen.session=abc")
	svc.Evaluate(ctx, "/invoices", "zen.session=abc")

	if users.calls != 1 {
		t.Errorf("expected 1 backend user fetch, got %d", users.calls)
	}
}

func TestReconcileOnboarding_ForcesStepPage(t *testing.T) {
	svc, c := newBootstrap(
		&mockSessionSource{sess: &domain.Session{UserID: "usr-1"}},
		&mockUserFetcher{user: &domain.User{ID: "usr-1", OnboardingStep: domain.StepChoosingCompany}},
	)
	defer c.Close()

	resp, err := svc.ReconcileOnboarding(context.Background(), domain.PathOnboardingFinish, "zen.session=abc")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if resp.Redirect != domain.PathOnboardingCompany {
		t.Errorf("expected redirect to %s, got %q", domain.PathOnboardingCompany, resp.Redirect)
	}
}

func TestReconcileOnboarding_NoUserIsNoOp(t *testing.T) {
	svc, c := newBootstrap(&mockSessionSource{}, &mockUserFetcher{err: &domain.ErrUnauthorized{}})
	defer c.Close()

	resp, err := svc.ReconcileOnboarding(context.Background(), domain.PathOnboardingCompany, "")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if resp.Redirect != "" {
		t.Errorf("expected no-op, got %q", resp.Redirect)
	}
}
