package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/booking-portal/internal/booking"
	appconfig "github.com/wolfman30/booking-portal/internal/config"
	"github.com/wolfman30/booking-portal/internal/guard"
	"github.com/wolfman30/booking-portal/internal/hours"
	"github.com/wolfman30/booking-portal/internal/session"
	"github.com/wolfman30/booking-portal/pkg/logging"
)

func TestBuildRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	assert.Nil(t, BuildRedisClient(ctx, &appconfig.Config{}, logging.Discard(), true))

	client := BuildRedisClient(ctx, &appconfig.Config{RedisAddr: mr.Addr()}, logging.Discard(), true)
	require.NotNil(t, client)
	defer client.Close()
	require.NoError(t, client.Ping(ctx).Err())

	mr.Close()
	assert.Nil(t, BuildRedisClient(ctx, &appconfig.Config{RedisAddr: mr.Addr()}, logging.Discard(), true))
}

func TestBuildSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		cfg     appconfig.Config
		wantErr bool
		check   func(t *testing.T, store session.Store)
	}{
		{"file default", appconfig.Config{SessionFile: filepath.Join(t.TempDir(), "s.json")}, false, func(t *testing.T, store session.Store) {
			assert.IsType(t, &session.FileStore{}, store)
		}},
		{"memory", appconfig.Config{SessionBackend: "memory"}, false, func(t *testing.T, store session.Store) {
			assert.IsType(t, &session.MemoryStore{}, store)
		}},
		{"redis", appconfig.Config{SessionBackend: "redis", RedisAddr: mr.Addr(), SessionKeyPrefix: "portal:session", Env: "test"}, false, func(t *testing.T, store session.Store) {
			require.NoError(t, store.Save(ctx, session.State{AccessToken: "a", RefreshToken: "r"}))
			assert.True(t, mr.Exists("portal:session:test"))
		}},
		{"redis unreachable", appconfig.Config{SessionBackend: "redis", RedisAddr: "127.0.0.1:1"}, true, nil},
		{"unknown", appconfig.Config{SessionBackend: "sqlite"}, true, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			store, closeFn, err := BuildSessionStore(ctx, &cfg, logging.Discard())
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer closeFn()
			tc.check(t, store)
		})
	}
}

func TestBuildPortalSharesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/token/":
			_, _ = w.Write([]byte(`{"access":"acc","refresh":"ref"}`))
		case "/api/accounts/profile/":
			_, _ = w.Write([]byte(`{"id":3,"username":"owner","user_type":"business"}`))
		case "/api/businesses/5/hours/":
			assert.Equal(t, "Bearer acc", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`[{"id":1,"day":0,"is_closed":true,"time_periods":[]}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := &appconfig.Config{APIBaseURL: srv.URL, SessionBackend: "memory"}
	portal, err := BuildPortal(context.Background(), cfg, logging.Discard(), prometheus.NewRegistry())
	require.NoError(t, err)
	defer portal.Close()
	ctx := context.Background()

	assert.Equal(t, guard.NotAuthenticated, portal.Guard.Check(ctx, "/business/hours").Outcome)
	_, err = portal.Auth.Login(ctx, "owner", "pw")
	require.NoError(t, err)
	assert.Equal(t, guard.Allowed, portal.Guard.Check(ctx, "/business/hours").Outcome)

	editor := portal.HoursEditor(5)
	require.NoError(t, editor.Load(ctx))
	assert.True(t, editor.Week()[hours.Monday].IsClosed)

	wf := portal.BookingWorkflow(booking.WalkIn)
	assert.Equal(t, booking.StateSelectingService, wf.View().State)
}
