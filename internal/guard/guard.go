// Package guard re-validates navigation invariants after the app shell
// has mounted, covering what the edge gate cannot see (e.g. the active
// organization disappearing after initial load).
//
// Evaluate is a pure state machine over a fully-described snapshot; it
// is re-run on every relevant state change and always converges: once a
// snapshot maps to READY or the current path equals the redirect
// target, further evaluations change nothing.
package guard

import "github.com/zenbilling/zenbilling-edge-go/internal/domain"

// State is the bootstrap guard's render state.
type State int

const (
	// StateLoading: user or organization fetch still in flight; render a
	// placeholder, never navigate.
	StateLoading State = iota
	// StateNoUser: fetches finished with no user. No navigation here —
	// the edge gate owns that redirect; this state only prevents a flash
	// of authenticated UI.
	StateNoUser
	// StateNeedsOrganization: authenticated but no active organization;
	// navigation to the selection page is scheduled.
	StateNeedsOrganization
	// StateReady: render children.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "LOADING"
	case StateNoUser:
		return "NO_USER"
	case StateNeedsOrganization:
		return "NEEDS_ORGANIZATION"
	case StateReady:
		return "READY"
	}
	return "LOADING"
}

// Snapshot is everything the guard looks at for one evaluation. Callers
// pass resolved state explicitly; the guard reads no ambient store.
type Snapshot struct {
	UserLoading          bool
	OrgLoading           bool
	Authenticated        bool
	User                 *domain.User
	ActiveOrganizationID *string
	Path                 string
}

// Result is the outcome of one evaluation. Redirect is set only for
// StateNeedsOrganization and only when the navigation would actually
// change the current path.
type Result struct {
	State    State
	Redirect string
}

// Evaluate maps a snapshot to a guard state. Pure and idempotent.
func Evaluate(s Snapshot) Result {
	if s.UserLoading || s.OrgLoading {
		return Result{State: StateLoading}
	}

	if !s.Authenticated || s.User == nil {
		return Result{State: StateNoUser}
	}

	if s.ActiveOrganizationID == nil {
		if s.Path == domain.PathSelectOrganization {
			// Already on the target: redirecting again would loop.
			return Result{State: StateReady}
		}
		return Result{
			State:    StateNeedsOrganization,
			Redirect: domain.PathSelectOrganization,
		}
	}

	return Result{State: StateReady}
}
