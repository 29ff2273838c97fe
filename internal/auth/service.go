// Package auth signs users in and out and wraps the account endpoints.
// Tokens and the cached profile live in a session.Manager.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/booking-portal/internal/apiclient"
	"github.com/wolfman30/booking-portal/internal/session"
	"github.com/wolfman30/booking-portal/pkg/logging"
)

var tracer = otel.Tracer("portal.internal.auth")

var (
	// ErrUnverified is returned when login is refused because the account
	// has not confirmed its email address yet.
	ErrUnverified = errors.New("auth: email address not verified")
	// ErrPasswordMismatch is returned before any network call when a
	// password and its confirmation differ.
	ErrPasswordMismatch = errors.New("auth: passwords do not match")
	// ErrMissingField is returned when a required input is blank.
	ErrMissingField = errors.New("auth: required field missing")
)

const accountsPath = "/api/accounts/"

type Service struct {
	api     *apiclient.Client
	session *session.Manager
	logger  *logging.Logger
}

func NewService(api *apiclient.Client, sess *session.Manager, logger *logging.Logger) *Service {
	if api == nil {
		panic("auth: api client required")
	}
	if sess == nil {
		panic("auth: session manager required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{api: api, session: sess, logger: logger}
}

// Login exchanges credentials for a token pair, stores it, then fetches
// and caches the profile. A profile failure leaves no session behind.
func (s *Service) Login(ctx context.Context, username, password string) (*Profile, error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer span.End()
	span.SetAttributes(attribute.String("auth.username", username))

	if strings.TrimSpace(username) == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password", ErrMissingField)
	}
	var tokens struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	}
	creds := map[string]string{"username": username, "password": password}
	if err := s.api.PostPublic(ctx, "/api/token/", creds, &tokens); err != nil {
		span.RecordError(err)
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 &&
			strings.Contains(strings.ToLower(apiErr.Detail), "inactive") {
			return nil, fmt.Errorf("%w: %v", ErrUnverified, err)
		}
		return nil, fmt.Errorf("auth: login: %w", err)
	}
	if err := s.session.Establish(ctx, tokens.Access, tokens.Refresh); err != nil {
		return nil, fmt.Errorf("auth: login: %w", err)
	}
	profile, err := s.Profile(ctx)
	if err != nil {
		span.RecordError(err)
		if clearErr := s.session.Clear(ctx); clearErr != nil {
			s.logger.Warn("failed to clear session after login", "error", clearErr)
		}
		return nil, fmt.Errorf("auth: login: %w", err)
	}
	s.logger.Info("signed in", "username", profile.Username, "role", profile.Role.String())
	return profile, nil
}

// Logout forgets tokens and the cached profile.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.session.Clear(ctx); err != nil {
		return fmt.Errorf("auth: logout: %w", err)
	}
	return nil
}

// IsAuthenticated reports whether a token and a cached profile are held.
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	return s.session.IsAuthenticated(ctx)
}

// CurrentUser returns the cached profile without a network call. It
// returns nil when nothing usable is cached.
func (s *Service) CurrentUser(ctx context.Context) *Profile {
	st, err := s.session.Snapshot(ctx)
	if err != nil {
		s.logger.Warn("failed to read session", "error", err)
		return nil
	}
	if st.AccessToken == "" || len(st.User) == 0 {
		return nil
	}
	var p Profile
	if err := json.Unmarshal(st.User, &p); err != nil {
		s.logger.Warn("cached profile unreadable", "error", err)
		return nil
	}
	return &p
}

// Profile fetches the caller's profile and refreshes the cached copy.
func (s *Service) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := s.api.Get(ctx, accountsPath+"profile/", nil, &p); err != nil {
		return nil, fmt.Errorf("auth: profile: %w", err)
	}
	if err := s.cache(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile patches the profile and caches the result.
func (s *Service) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*Profile, error) {
	var p Profile
	if err := s.api.Patch(ctx, accountsPath+"profile/", upd, &p); err != nil {
		return nil, fmt.Errorf("auth: update profile: %w", err)
	}
	if err := s.cache(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) cache(ctx context.Context, p Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("auth: cache profile: %w", err)
	}
	if err := s.session.CacheUser(ctx, raw); err != nil {
		return fmt.Errorf("auth: cache profile: %w", err)
	}
	return nil
}

func (s *Service) UserType(ctx context.Context) (*UserType, error) {
	var ut UserType
	if err := s.api.Get(ctx, accountsPath+"user-type/", nil, &ut); err != nil {
		return nil, fmt.Errorf("auth: user type: %w", err)
	}
	return &ut, nil
}

// Register creates an account. The backend sends a verification email;
// the account cannot log in until it is confirmed.
func (s *Service) Register(ctx context.Context, reg Registration) (*Registered, error) {
	switch {
	case strings.TrimSpace(reg.Username) == "":
		return nil, fmt.Errorf("%w: username", ErrMissingField)
	case strings.TrimSpace(reg.Email) == "":
		return nil, fmt.Errorf("%w: email", ErrMissingField)
	case reg.Password == "":
		return nil, fmt.Errorf("%w: password", ErrMissingField)
	case reg.Password != reg.Password2:
		return nil, ErrPasswordMismatch
	}
	if !reg.Role.Valid() {
		reg.Role = RoleClient
	}
	var out Registered
	if err := s.api.PostPublic(ctx, accountsPath+"register/", reg, &out); err != nil {
		return nil, fmt.Errorf("auth: register: %w", err)
	}
	s.logger.Info("account registered", "email", reg.Email, "role", reg.Role.String())
	return &out, nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) (*Message, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: token", ErrMissingField)
	}
	return s.post(ctx, "verify-email/", map[string]string{"token": token})
}

func (s *Service) ResendVerification(ctx context.Context, email string) (*Message, error) {
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: email", ErrMissingField)
	}
	return s.post(ctx, "resend-verification/", map[string]string{"email": email})
}

func (s *Service) CheckVerification(ctx context.Context, email string) (*VerificationStatus, error) {
	var out VerificationStatus
	if err := s.api.PostPublic(ctx, accountsPath+"check-verification/", map[string]string{"email": email}, &out); err != nil {
		return nil, fmt.Errorf("auth: check verification: %w", err)
	}
	return &out, nil
}

func (s *Service) RequestPasswordReset(ctx context.Context, email string) (*Message, error) {
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: email", ErrMissingField)
	}
	return s.post(ctx, "password-reset/", map[string]string{"email": email})
}

func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword, confirm string) (*Message, error) {
	if newPassword != confirm {
		return nil, ErrPasswordMismatch
	}
	return s.post(ctx, "password-reset-confirm/", map[string]string{
		"token":            token,
		"new_password":     newPassword,
		"confirm_password": confirm,
	})
}

func (s *Service) CheckPasswordStrength(ctx context.Context, password, username string) (*PasswordStrength, error) {
	var out PasswordStrength
	body := map[string]string{"password": password, "username": username}
	if err := s.api.PostPublic(ctx, accountsPath+"password-strength/", body, &out); err != nil {
		return nil, fmt.Errorf("auth: password strength: %w", err)
	}
	return &out, nil
}

// ChangePassword requires an authenticated session.
func (s *Service) ChangePassword(ctx context.Context, current, newPassword, confirm string) (*Message, error) {
	if newPassword != confirm {
		return nil, ErrPasswordMismatch
	}
	var out Message
	body := map[string]string{
		"current_password": current,
		"new_password":     newPassword,
		"confirm_password": confirm,
	}
	if err := s.api.Post(ctx, accountsPath+"change-password/", body, &out); err != nil {
		return nil, fmt.Errorf("auth: change password: %w", err)
	}
	return &out, nil
}

func (s *Service) post(ctx context.Context, endpoint string, body any) (*Message, error) {
	var out Message
	if err := s.api.PostPublic(ctx, accountsPath+endpoint, body, &out); err != nil {
		return nil, fmt.Errorf("auth: %s: %w", strings.TrimSuffix(endpoint, "/"), err)
	}
	return &out, nil
}
