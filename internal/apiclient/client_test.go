package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/booking-portal/internal/session"
	"github.com/wolfman30/booking-portal/pkg/logging"
)

func newSessionClient(t *testing.T, srv *httptest.Server, access, refresh string) (*Client, *session.Manager, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	mgr := session.NewManager(store, nil, logging.Discard())
	client := New(Config{BaseURL: srv.URL, Logger: logging.Discard()}, mgr)
	mgr.SetRefresher(NewTokenRefresher(client))
	if access != "" {
		require.NoError(t, mgr.Establish(context.Background(), access, refresh))
	}
	return client, mgr, store
}

func TestClientAttachesBearerAndRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "3", r.URL.Query().Get("business_id"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client, _, _ := newSessionClient(t, srv, "tok-1", "ref-1")
	var out struct {
		OK bool `json:"ok"`
	}
	err := client.Get(context.Background(), "/api/things/", url.Values{"business_id": {"3"}}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestClientAnonymousRequestHasNoAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client, _, _ := newSessionClient(t, srv, "", "")
	raw, err := client.GetRaw(context.Background(), "/api/businesses/", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestClientRefreshesOnceOn401AndRetries(t *testing.T) {
	var profileCalls, refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/token/refresh/":
			refreshCalls.Add(1)
			assert.Empty(t, r.Header.Get("Authorization"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ref-1", body["refresh"])
			_, _ = w.Write([]byte(`{"access":"tok-2"}`))
		case "/api/accounts/profile/":
			profileCalls.Add(1)
			if r.Header.Get("Authorization") != "Bearer tok-2" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Given token not valid for any token type","code":"token_not_valid"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":7,"username":"ana"}`))
		}
	}))
	defer srv.Close()

	client, mgr, store := newSessionClient(t, srv, "tok-1", "ref-1")
	var profile struct {
		ID int `json:"id"`
	}
	require.NoError(t, client.Get(context.Background(), "/api/accounts/profile/", nil, &profile))

	assert.Equal(t, 7, profile.ID)
	assert.Equal(t, int32(2), profileCalls.Load())
	assert.Equal(t, int32(1), refreshCalls.Load())

	token, err := mgr.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)
	persisted, _ := store.Load(context.Background())
	assert.Equal(t, "tok-2", persisted.AccessToken)
}

func TestClientRetriesOnlyOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token/refresh/" {
			_, _ = w.Write([]byte(`{"access":"tok-2"}`))
			return
		}
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, _, _ := newSessionClient(t, srv, "tok-1", "ref-1")
	err := client.Get(context.Background(), "/api/appointments/", nil, nil)
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientFailedRefreshClearsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Token is invalid or expired"}`))
	}))
	defer srv.Close()

	client, mgr, store := newSessionClient(t, srv, "tok-1", "ref-1")
	err := client.Get(context.Background(), "/api/appointments/my_appointments/", nil, nil)
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, err = mgr.AccessToken(context.Background())
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	persisted, _ := store.Load(context.Background())
	assert.True(t, persisted.Empty())
}

func TestClientPublicRequestSkipsRefresh(t *testing.T) {
	var refreshCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token/refresh/" {
			refreshCalls.Add(1)
		}
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
	}))
	defer srv.Close()

	client, _, _ := newSessionClient(t, srv, "tok-1", "ref-1")
	err := client.PostPublic(context.Background(), "/api/token/", map[string]string{"username": "a", "password": "b"}, nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "No active account found with the given credentials", apiErr.FirstMessage())
	assert.Equal(t, int32(0), refreshCalls.Load())
}

func TestClientResendsBodyOnRetry(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/token/refresh/" {
			_, _ = w.Write([]byte(`{"access":"tok-2"}`))
			return
		}
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body["notes"].(string))
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"a"}`))
	}))
	defer srv.Close()

	client, _, _ := newSessionClient(t, srv, "tok-1", "ref-1")
	require.NoError(t, client.Post(context.Background(), "/api/appointments/", map[string]string{"notes": "hi"}, nil))
	assert.Equal(t, []string{"hi", "hi"}, bodies)
}

func TestClientServerErrorIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<html>boom</html>`))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL + "/", Logger: logging.Discard()}, nil)
	err := client.Delete(context.Background(), "/api/businesses/4/")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 500, apiErr.Status)
	assert.Equal(t, "", apiErr.FirstMessage())
	assert.Contains(t, apiErr.Error(), "boom")
	assert.Equal(t, "Something went wrong", UserMessage(err, "Something went wrong"))
}

func TestClientRateLimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, RateLimit: 0.001, RateBurst: 1, Logger: logging.Discard()}, nil)
	require.NoError(t, client.Get(context.Background(), "/a/", nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := client.Get(ctx, "/a/", nil, nil)
	assert.Error(t, err)
}

func TestRouteTemplate(t *testing.T) {
	assert.Equal(t, "/api/businesses/{id}/hours/", routeTemplate("/api/businesses/12/hours/"))
	assert.Equal(t, "/api/appointments/{id}/cancel/", routeTemplate("/api/appointments/3f2b8c1e-4d5a-4b6c-8d7e-9f0a1b2c3d4e/cancel/"))
	assert.Equal(t, "/api/businesses/my_businesses/", routeTemplate("/api/businesses/my_businesses/"))
}
