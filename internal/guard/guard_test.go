package guard_test

import (
	"testing"

	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
	"github.com/zenbilling/zenbilling-edge-go/internal/guard"
)

func orgID(s string) *string { return &s }

func user() *domain.User {
	return &domain.User{ID: "usr-1", Email: "owner@acme.test", OnboardingCompleted: true}
}

func TestEvaluate_LoadingWhileAnyFetchInFlight(t *testing.T) {
	tests := []struct {
		name string
		snap guard.Snapshot
	}{
		{"user loading", guard.Snapshot{UserLoading: true}},
		{"org loading", guard.Snapshot{OrgLoading: true, Authenticated: true, User: user()}},
		{"both loading", guard.Snapshot{UserLoading: true, OrgLoading: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := guard.Evaluate(tt.snap)
			if got.State != guard.StateLoading {
				t.Errorf("expected LOADING, got %s", got.State)
			}
			if got.Redirect != "" {
				t.Errorf("LOADING must not navigate, got redirect %q", got.Redirect)
			}
		})
	}
}

func TestEvaluate_NoUser(t *testing.T) {
	got := guard.Evaluate(guard.Snapshot{Path: "/invoices"})
	if got.State != guard.StateNoUser {
		t.Fatalf("expected NO_USER, got %s", got.State)
	}
	if got.Redirect != "" {
		t.Errorf("NO_USER must not navigate (edge gate owns that), got %q", got.Redirect)
	}
}

func TestEvaluate_AuthenticatedFlagWithoutUserIsNoUser(t *testing.T) {
	got := guard.Evaluate(guard.Snapshot{Authenticated: true, Path: "/invoices"})
	if got.State != guard.StateNoUser {
		t.Errorf("expected NO_USER, got %s", got.State)
	}
}

func TestEvaluate_NeedsOrganization(t *testing.T) {
	got := guard.Evaluate(guard.Snapshot{
		Authenticated: true,
		User:          user(),
		Path:          "/invoices",
	})
	if got.State != guard.StateNeedsOrganization {
		t.Fatalf("expected NEEDS_ORGANIZATION, got %s", got.State)
	}
	if got.Redirect != domain.PathSelectOrganization {
		t.Errorf("expected redirect to /select-organization, got %q", got.Redirect)
	}
}

func TestEvaluate_NoRedirectLoopOnSelectOrganization(t *testing.T) {
	got := guard.Evaluate(guard.Snapshot{
		Authenticated: true,
		User:          user(),
		Path:          domain.PathSelectOrganization,
	})
	if got.State != guard.StateReady {
		t.Fatalf("expected READY on the selection page itself, got %s", got.State)
	}
	if got.Redirect != "" {
		t.Errorf("must not redirect while already on target, got %q", got.Redirect)
	}
}

func TestEvaluate_Ready(t *testing.T) {
	got := guard.Evaluate(guard.Snapshot{
		Authenticated:        true,
		User:                 user(),
		ActiveOrganizationID: orgID("org-1"),
		Path:                 "/invoices",
	})
	if got.State != guard.StateReady {
		t.Fatalf("expected READY, got %s", got.State)
	}
	if got.Redirect != "" {
		t.Errorf("READY must not navigate, got %q", got.Redirect)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	snap := guard.Snapshot{
		Authenticated: true,
		User:          user(),
		Path:          "/invoices",
	}
	first := guard.Evaluate(snap)
	second := guard.Evaluate(snap)
	if first != second {
		t.Errorf("identical snapshots must yield identical results: %+v vs %+v", first, second)
	}
}
