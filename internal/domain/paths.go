package domain

// Canonical navigation targets. These are literal frontend paths; the
// gate, bootstrap guard and onboarding reconciler all redirect to them.
const (
	PathLogin              = "/login"
	PathHome               = "/invoices"
	PathSelectOrganization = "/select-organization"

	PathOnboardingPrefix  = "/onboarding"
	PathOnboardingCompany = "/onboarding/company"
	PathOnboardingStripe  = "/onboarding/stripe"
	PathOnboardingFinish  = "/onboarding/finish"
)
