package domain

import "time"

// ============================================================
// Session & User — what the gating logic inspects
// ============================================================

// Session is the gateway's view of a backend session. Only the two
// fields the gate inspects are modelled; everything else the backend
// returns is opaque to us.
type Session struct {
	UserID               string    `json:"userId"`
	ActiveOrganizationID *string   `json:"activeOrganizationId"`
	ExpiresAt            time.Time `json:"expiresAt,omitempty"`
}

// OnboardingStep tracks a new user's progress through mandatory setup.
type OnboardingStep string

const (
	StepChoosingCompany OnboardingStep = "CHOOSING_COMPANY"
	StepStripeSetup     OnboardingStep = "STRIPE_SETUP"
	StepFinish          OnboardingStep = "FINISH"
)

// User is the projection of the backend user record consumed by the
// bootstrap guard and the onboarding reconciler.
// OnboardingStep is meaningful only while OnboardingCompleted is false.
type User struct {
	ID                  string         `json:"id"`
	Email               string         `json:"email"`
	Name                string         `json:"name"`
	OnboardingCompleted bool           `json:"onboardingCompleted"`
	OnboardingStep      OnboardingStep `json:"onboardingStep,omitempty"`
}

// AuthState is the persisted client state blob ("auth-storage"): the
// single keyed entry that survives reloads. The edge token itself lives
// in a separate short-lived cookie, never in this blob.
type AuthState struct {
	User            *User `json:"user"`
	IsAuthenticated bool  `json:"isAuthenticated"`
}
