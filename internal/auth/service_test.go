package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/booking-portal/internal/apiclient"
	"github.com/wolfman30/booking-portal/internal/session"
	"github.com/wolfman30/booking-portal/pkg/logging"
)

const profileJSON = `{"id":7,"username":"ana","email":"ana@example.com","phone_number":"","first_name":"Ana","last_name":"Lima","user_type":"business","date_joined":"2026-01-02T10:00:00Z","is_email_verified":true}`

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *session.Manager, *session.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := session.NewMemoryStore()
	mgr := session.NewManager(store, nil, logging.Discard())
	client := apiclient.New(apiclient.Config{BaseURL: srv.URL, Logger: logging.Discard()}, mgr)
	mgr.SetRefresher(apiclient.NewTokenRefresher(client))
	return NewService(client, mgr, logging.Discard()), mgr, store
}

func TestLoginStoresTokensAndProfile(t *testing.T) {
	svc, _, store := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/token/":
			assert.Empty(t, r.Header.Get("Authorization"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ana", body["username"])
			_, _ = w.Write([]byte(`{"access":"acc-1","refresh":"ref-1"}`))
		case "/api/accounts/profile/":
			assert.Equal(t, "Bearer acc-1", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(profileJSON))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	assert.False(t, svc.IsAuthenticated(ctx))
	profile, err := svc.Login(ctx, "ana", "secret")
	require.NoError(t, err)
	assert.Equal(t, RoleBusiness, profile.Role)
	assert.Equal(t, "Ana Lima", profile.DisplayName())
	assert.True(t, svc.IsAuthenticated(ctx))

	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", st.AccessToken)
	assert.Equal(t, "ref-1", st.RefreshToken)

	cached := svc.CurrentUser(ctx)
	require.NotNil(t, cached)
	assert.Equal(t, int64(7), cached.ID)
	assert.Equal(t, RoleBusiness, cached.Role)

	require.NoError(t, svc.Logout(ctx))
	assert.Nil(t, svc.CurrentUser(ctx))
	assert.False(t, svc.IsAuthenticated(ctx))
}

func TestLoginInactiveAccountIsUnverified(t *testing.T) {
	svc, _, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"User account is inactive."}`))
	})
	_, err := svc.Login(context.Background(), "ana", "secret")
	assert.ErrorIs(t, err, ErrUnverified)
}

func TestLoginBadCredentials(t *testing.T) {
	svc, _, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
	})
	ctx := context.Background()
	_, err := svc.Login(ctx, "ana", "wrong")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnverified)
	assert.Equal(t, "No active account found with the given credentials", apiclient.UserMessage(err, "Login failed"))
	assert.False(t, svc.IsAuthenticated(ctx))
}

func TestLoginProfileFailureLeavesNoSession(t *testing.T) {
	svc, _, store := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token/" {
			_, _ = w.Write([]byte(`{"access":"acc-1","refresh":"ref-1"}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx := context.Background()
	_, err := svc.Login(ctx, "ana", "secret")
	require.Error(t, err)
	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, st.Empty())
}

func TestPasswordMismatchNeverCallsBackend(t *testing.T) {
	var calls atomic.Int32
	svc, _, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	ctx := context.Background()

	_, err := svc.ChangePassword(ctx, "old", "new-one", "new-two")
	assert.ErrorIs(t, err, ErrPasswordMismatch)
	_, err = svc.ConfirmPasswordReset(ctx, "tok", "a", "b")
	assert.ErrorIs(t, err, ErrPasswordMismatch)
	_, err = svc.Register(ctx, Registration{Username: "ana", Email: "a@x.io", Password: "a", Password2: "b"})
	assert.ErrorIs(t, err, ErrPasswordMismatch)
	_, err = svc.Register(ctx, Registration{Email: "a@x.io", Password: "a", Password2: "a"})
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Equal(t, int32(0), calls.Load())
}

func TestRegisterDefaultsToClient(t *testing.T) {
	svc, _, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/accounts/register/", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "client", body["user_type"])
		assert.Equal(t, "pw", body["password2"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"Registration successful.","email":"a@x.io","verification_sent":true}`))
	})
	out, err := svc.Register(context.Background(), Registration{Username: "ana", Email: "a@x.io", Password: "pw", Password2: "pw"})
	require.NoError(t, err)
	assert.True(t, out.VerificationSent)
}

func TestVerifyEmailExpiredMessage(t *testing.T) {
	svc, _, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Verification link has expired. Please request a new one.","expired":true}`))
	})
	_, err := svc.VerifyEmail(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, "Verification link has expired. Please request a new one.", apiclient.UserMessage(err, "failed"))
}

func TestUpdateProfileRecachesUser(t *testing.T) {
	svc, mgr, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"first_name": "Anna"}, body)
		_, _ = w.Write([]byte(`{"id":7,"username":"ana","first_name":"Anna","user_type":"client","message":"Profile updated successfully","success":true}`))
	})
	ctx := context.Background()
	require.NoError(t, mgr.Establish(ctx, "acc", "ref"))

	p, err := svc.UpdateProfile(ctx, ProfileUpdate{FirstName: "Anna"})
	require.NoError(t, err)
	assert.Equal(t, "Anna", p.FirstName)
	assert.Equal(t, "Anna", svc.CurrentUser(ctx).FirstName)
}

func TestCurrentUserIgnoresUnreadableCache(t *testing.T) {
	svc, mgr, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx := context.Background()
	require.NoError(t, mgr.Establish(ctx, "acc", "ref"))
	require.NoError(t, mgr.CacheUser(ctx, json.RawMessage(`{"user_type":"superuser"}`)))
	assert.Nil(t, svc.CurrentUser(ctx))
}

func TestRoleIsClosed(t *testing.T) {
	for _, r := range Roles {
		parsed, err := ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
	_, err := ParseRole("staff")
	assert.ErrorIs(t, err, ErrUnknownRole)
	_, err = json.Marshal(Role(0))
	assert.Error(t, err)
	assert.Equal(t, "/business/dashboard", RoleBusiness.Home())
}
