package domain

// ============================================================
// Auth — Request / Response types (matches frontend API contract)
// ============================================================

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the body for 200 from POST /v1/auth/login.
type LoginResponse struct {
	User      *User  `json:"user"`
	ExpiresIn int    `json:"expiresIn"`
	Message   string `json:"message,omitempty"`
}

// PasswordResetRequestBody is the body for POST /v1/auth/password/reset-request.
type PasswordResetRequestBody struct {
	Email string `json:"email"`
}

// PasswordResetConfirmRequest is the body for POST /v1/auth/password/reset-confirm.
type PasswordResetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// UpdateProfileRequest is the body for PUT /v1/users/profile.
type UpdateProfileRequest struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// SuccessResponse is a generic message envelope.
type SuccessResponse struct {
	Message string `json:"message"`
}

// BootstrapRequest is the body for POST /v1/bootstrap.
type BootstrapRequest struct {
	Path string `json:"path"`
}

// BootstrapResponse tells the app shell what to render for the current
// navigation: the guard state and, when set, where to navigate instead.
type BootstrapResponse struct {
	State    string `json:"state"`
	Redirect string `json:"redirect,omitempty"`
}

// ReconcileRequest is the body for POST /v1/onboarding/reconcile.
type ReconcileRequest struct {
	Path string `json:"path"`
}

// ReconcileResponse carries the forced onboarding navigation, if any.
type ReconcileResponse struct {
	Redirect string `json:"redirect,omitempty"`
}

// GateMetrics is the payload for GET /v1/metrics/gate.
type GateMetrics struct {
	DecisionsTotal      int64   `json:"decisionsTotal"`
	Allowed             int64   `json:"allowed"`
	RedirectedLogin     int64   `json:"redirectedLogin"`
	RedirectedSelectOrg int64   `json:"redirectedSelectOrg"`
	RedirectedHome      int64   `json:"redirectedHome"`
	SessionLookups      int64   `json:"sessionLookups"`
	SessionUnavailable  int64   `json:"sessionUnavailable"`
	CacheHitRate        float64 `json:"cacheHitRate"`
	Period              string  `json:"period"`
}

// RenderedPage is a buffered upstream renderer response.
type RenderedPage struct {
	Status      int
	ContentType string
	Body        []byte
}
