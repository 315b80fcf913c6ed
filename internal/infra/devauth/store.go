// Package devauth is an in-memory auth backend for local development:
// it lets the gateway run standalone, without the ZenBilling backend,
// with a couple of seeded accounts.
package devauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/zenbilling/zenbilling-edge-go/internal/domain"
)

const sessionCookie = "zen.session"

// Seeded credentials. The password for every account is "zenbilling".
const devPassword = "zenbilling"

type account struct {
	user                 domain.User
	passwordHash         []byte
	activeOrganizationID *string
}

// Store is an in-memory AuthBackend + SessionSource.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*account        // by email
	sessions map[string]*domain.Session // by token
	logger   *zap.Logger
}

// New seeds the dev store with two accounts: one fully onboarded with
// an organization, one mid-onboarding without.
func New(logger *zap.Logger) *Store {
	hash, err := bcrypt.GenerateFromPassword([]byte(devPassword), bcrypt.DefaultCost)
	if err != nil {
		panic("devauth: hash seed password: " + err.Error())
	}

	org := "org-demo"
	s := &Store{
		accounts: map[string]*account{
			"owner@demo.zenbilling.io": {
				user: domain.User{
					ID:                  "usr-demo-owner",
					Email:               "owner@demo.zenbilling.io",
					Name:                "Demo Owner",
					OnboardingCompleted: true,
				},
				passwordHash:         hash,
				activeOrganizationID: &org,
			},
			"new@demo.zenbilling.io": {
				user: domain.User{
					ID:             "usr-demo-new",
					Email:          "new@demo.zenbilling.io",
					Name:           "Demo Newcomer",
					OnboardingStep: domain.StepChoosingCompany,
				},
				passwordHash: hash,
			},
		},
		sessions: make(map[string]*domain.Session),
		logger:   logger,
	}

	logger.Warn("devauth: in-memory auth backend active, do not use in production")
	return s
}

// Login checks the seeded credentials and issues a session cookie.
func (s *Store) Login(_ context.Context, req *domain.LoginRequest) (*domain.LoginResponse, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[req.Email]
	if !ok {
		return nil, nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(req.Password)); err != nil {
		return nil, nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	token, err := newToken()
	if err != nil {
		return nil, nil, err
	}
	s.sessions[token] = &domain.Session{
		UserID:               acc.user.ID,
		ActiveOrganizationID: acc.activeOrganizationID,
	}

	s.logger.Info("devauth: login", zap.String("user_id", acc.user.ID))

	user := acc.user
	return &domain.LoginResponse{User: &user},
		[]string{sessionCookie + "=" + token + "; Path=/; HttpOnly"},
		nil
}

// Resolve implements port.SessionSource against the in-memory sessions.
func (s *Store) Resolve(_ context.Context, cookieHeader string) (*domain.Session, error) {
	token := cookieValue(cookieHeader, sessionCookie)
	if token == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, nil
	}
	copied := *sess
	return &copied, nil
}

// Logout drops the session behind the cookies.
func (s *Store) Logout(_ context.Context, cookieHeader string) error {
	token := cookieValue(cookieHeader, sessionCookie)
	if token == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// PasswordResetRequest logs and succeeds; there is no mail in dev.
func (s *Store) PasswordResetRequest(_ context.Context, req *domain.PasswordResetRequestBody) error {
	s.logger.Info("devauth: password reset requested", zap.String("email", req.Email))
	return nil
}

// PasswordResetConfirm accepts any token and rewrites the password for
// every seeded account, which is all dev needs.
func (s *Store) PasswordResetConfirm(_ context.Context, req *domain.PasswordResetConfirmRequest) error {
	if req.Token == "" {
		return &domain.ErrValidation{Field: "token", Message: "token is required"}
	}
	if len(req.Password) < 8 {
		return &domain.ErrValidation{Field: "password", Message: "password must be at least 8 characters"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		acc.passwordHash = hash
	}
	return nil
}

// FetchUser returns the user behind the session cookies.
func (s *Store) FetchUser(ctx context.Context, cookieHeader string) (*domain.User, error) {
	sess, err := s.Resolve(ctx, cookieHeader)
	if err != nil || sess == nil {
		return nil, &domain.ErrUnauthorized{Message: "not authenticated"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.user.ID == sess.UserID {
			user := acc.user
			return &user, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "user", ID: sess.UserID}
}

// UpdateUser applies a profile update to the session's user.
func (s *Store) UpdateUser(ctx context.Context, cookieHeader string, req *domain.UpdateProfileRequest) (*domain.User, error) {
	sess, err := s.Resolve(ctx, cookieHeader)
	if err != nil || sess == nil {
		return nil, &domain.ErrUnauthorized{Message: "not authenticated"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acc := range s.accounts {
		if acc.user.ID == sess.UserID {
			if req.Name != "" {
				acc.user.Name = req.Name
			}
			if req.Email != "" {
				acc.user.Email = req.Email
			}
			user := acc.user
			return &user, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "user", ID: sess.UserID}
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// cookieValue extracts one cookie from a raw Cookie header.
func cookieValue(cookieHeader, name string) string {
	req := http.Request{Header: http.Header{"Cookie": []string{cookieHeader}}}
	c, err := req.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
