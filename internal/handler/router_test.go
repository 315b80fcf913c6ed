package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
	"github.com/zenbilling/zenbilling-edge-go/internal/gate"
	"github.com/zenbilling/zenbilling-edge-go/internal/handler"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/cache"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/devauth"
	"github.com/zenbilling/zenbilling-edge-go/internal/infra/observability"
	"github.com/zenbilling/zenbilling-edge-go/internal/route"
	"github.com/zenbilling/zenbilling-edge-go/internal/service"
	"github.com/zenbilling/zenbilling-edge-go/internal/statestore"

	"go.uber.org/zap"
)

// newTestServer wires the router against the in-memory dev auth
// backend, which is exactly how the gateway runs standalone.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := devauth.New(logger)

	states := statestore.NewMemory(time.Minute)
	t.Cleanup(states.Close)
	userCache := cache.New[*domain.User](time.Minute)
	t.Cleanup(userCache.Close)

	authSvc := service.NewAuthService(store, states, "test-secret", 15*time.Minute, logger)
	bootSvc := service.NewBootstrapService(store, store, userCache, metrics, logger)
	g := gate.New(route.NewClassifier(nil), store, metrics, logger)

	srv := httptest.NewServer(handler.NewRouter(handler.Deps{
		Gate:      g,
		Auth:      authSvc,
		Bootstrap: bootSvc,
		Sessions:  store,
		Renderer:  nil,
		Metrics:   metrics,
		Logger:    logger,
	}))
	t.Cleanup(srv.Close)
	return srv
}

// noRedirectClient returns the redirect response instead of following it.
func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func login(t *testing.T, srv *httptest.Server, email string) []*http.Cookie {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Email: email, Password: "zenbilling"})
	resp, err := http.Post(srv.URL+"/v1/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	return resp.Cookies()
}

func get(t *testing.T, srv *httptest.Server, path string, cookies []*http.Cookie) *http.Response {
	t.Helper()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := noRedirectClient().Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func TestRouter_Ping(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/ping")
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRouter_Healthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRouter_ProtectedPageRedirectsToLogin(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/invoices", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != domain.PathLogin {
		t.Errorf("expected redirect to %s, got %s", domain.PathLogin, loc)
	}
}

func TestRouter_LoginPageServedWhileLoggedOut(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/login", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRouter_FallbackShellEscapesPath(t *testing.T) {
	srv := newTestServer(t)

	// Public asset path carrying markup: it passes the gate without a
	// session, so the shell must reflect it inert.
	resp := get(t, srv, "/assets/%22%3E%3Cscript%3Ealert(1)%3C%2Fscript%3E", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if strings.Contains(string(body), "<script>") {
		t.Fatalf("path reflected as live markup: %s", body)
	}
	if !strings.Contains(string(body), "&#34;&gt;&lt;script&gt;") {
		t.Errorf("expected the path escaped into the attribute, got %s", body)
	}
}

func TestRouter_UnknownPathFailsClosed(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/totally/unknown", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("unknown paths must be gated, got %d", resp.StatusCode)
	}
}

func TestRouter_LoginFlow(t *testing.T) {
	srv := newTestServer(t)

	cookies := login(t, srv, "owner@demo.zenbilling.io")

	var haveEdge, haveState, haveSession bool
	for _, c := range cookies {
		switch c.Name {
		case handler.EdgeTokenCookie:
			haveEdge = true
		case handler.StateKeyCookie:
			haveState = true
		case "zen.session":
			haveSession = true
		}
	}
	if !haveEdge || !haveState || !haveSession {
		t.Fatalf("expected edge, state and session cookies, got %v", cookies)
	}

	// Onboarded user with an organization reaches the app.
	resp := get(t, srv, "/invoices", cookies)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 on /invoices after login, got %d", resp.StatusCode)
	}

	// And is bounced off the login page.
	resp2 := get(t, srv, "/login", cookies)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusSeeOther || resp2.Header.Get("Location") != domain.PathHome {
		t.Errorf("expected 303 to %s, got %d -> %s", domain.PathHome, resp2.StatusCode, resp2.Header.Get("Location"))
	}
}

func TestRouter_NoOrganizationForcedToPicker(t *testing.T) {
	srv := newTestServer(t)

	cookies := login(t, srv, "new@demo.zenbilling.io")

	resp := get(t, srv, "/invoices", cookies)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != domain.PathSelectOrganization {
		t.Fatalf("expected 303 to %s, got %d -> %s", domain.PathSelectOrganization, resp.StatusCode, resp.Header.Get("Location"))
	}

	// The picker itself must not loop.
	resp2 := get(t, srv, domain.PathSelectOrganization, cookies)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("expected 200 on picker, got %d", resp2.StatusCode)
	}
}

func TestRouter_GateDecisionEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body := strings.NewReader(`{"path":"/invoices"}`)
	resp, err := http.Post(srv.URL+"/v1/gate/decision", "application/json", body)
	if err != nil {
		t.Fatalf("gate decision: %v", err)
	}
	defer resp.Body.Close()

	var decision gate.Decision
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decision.Allow || decision.Target != domain.PathLogin {
		t.Errorf("expected deny -> %s, got %+v", domain.PathLogin, decision)
	}
}

func TestRouter_BootstrapNoUser(t *testing.T) {
	srv := newTestServer(t)

	body := strings.NewReader(`{"path":"/invoices"}`)
	resp, err := http.Post(srv.URL+"/v1/bootstrap", "application/json", body)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer resp.Body.Close()

	var out domain.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.State != "NO_USER" {
		t.Errorf("expected NO_USER, got %+v", out)
	}
}

func TestRouter_OnboardingReconcile(t *testing.T) {
	srv := newTestServer(t)

	cookies := login(t, srv, "new@demo.zenbilling.io")

	body := strings.NewReader(`{"path":"/onboarding/finish"}`)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/onboarding/reconcile", body)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	defer resp.Body.Close()

	var out domain.ReconcileResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Redirect != domain.PathOnboardingCompany {
		t.Errorf("expected redirect to %s, got %q", domain.PathOnboardingCompany, out.Redirect)
	}
}

func TestRouter_ProfileRequiresEdgeToken(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/users/profile")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without edge token, got %d", resp.StatusCode)
	}
}

func TestRouter_ProfileWithEdgeToken(t *testing.T) {
	srv := newTestServer(t)

	cookies := login(t, srv, "owner@demo.zenbilling.io")

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/users/profile", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var user domain.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if user.Email != "owner@demo.zenbilling.io" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestRouter_StateRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	cookies := login(t, srv, "owner@demo.zenbilling.io")

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/state/auth", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	defer resp.Body.Close()

	var state domain.AuthState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !state.IsAuthenticated || state.User == nil {
		t.Errorf("expected seeded state after login, got %+v", state)
	}
}

func TestRouter_StateWithoutKeyIsLoggedOut(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/state/auth")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	defer resp.Body.Close()

	var state domain.AuthState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.IsAuthenticated {
		t.Errorf("expected logged-out state, got %+v", state)
	}
}

func TestRouter_LogoutClearsCookies(t *testing.T) {
	srv := newTestServer(t)

	cookies := login(t, srv, "owner@demo.zenbilling.io")

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/auth/logout", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	for _, c := range resp.Cookies() {
		if (c.Name == handler.EdgeTokenCookie || c.Name == handler.StateKeyCookie) && c.MaxAge >= 0 {
			t.Errorf("expected %s cleared, got MaxAge=%d", c.Name, c.MaxAge)
		}
	}

	// The session is gone server-side too.
	resp2 := get(t, srv, "/invoices", cookies)
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusSeeOther {
		t.Errorf("expected redirect after logout, got %d", resp2.StatusCode)
	}
}
