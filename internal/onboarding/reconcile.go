// Package onboarding forces navigation to the page matching the user's
// current onboarding step, and out of the onboarding section once
// onboarding is complete.
package onboarding

import (
	"strings"

	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
)

// stepPaths maps each onboarding step to its page.
var stepPaths = map[domain.OnboardingStep]string{
	domain.StepChoosingCompany: domain.PathOnboardingCompany,
	domain.StepStripeSetup:     domain.PathOnboardingStripe,
	domain.StepFinish:          domain.PathOnboardingFinish,
}

// ExpectedPath returns the page for a step, or false for an
// unrecognized step value.
func ExpectedPath(step domain.OnboardingStep) (string, bool) {
	p, ok := stepPaths[step]
	return p, ok
}

// Reconcile decides whether the current navigation must be replaced.
// It returns (target, true) when a navigation should be scheduled and
// ("", false) otherwise. Unknown step values are a no-op rather than a
// redirect loop or a crash; a nil user defers to the other guards.
//
// Reconcile is a fixed point: once currentPath equals the expected
// path, it never schedules another navigation.
func Reconcile(user *domain.User, currentPath string) (string, bool) {
	if user == nil {
		return "", false
	}

	if user.OnboardingCompleted {
		if inSection(currentPath) {
			return domain.PathHome, true
		}
		return "", false
	}

	expected, ok := ExpectedPath(user.OnboardingStep)
	if !ok {
		return "", false
	}
	if currentPath == expected {
		return "", false
	}
	return expected, true
}

func inSection(path string) bool {
	return path == domain.PathOnboardingPrefix ||
		strings.HasPrefix(path, domain.PathOnboardingPrefix+"/")
}
