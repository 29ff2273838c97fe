package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/wolfman30/booking-portal/internal/observability/metrics"
	"github.com/wolfman30/booking-portal/pkg/logging"
)

var (
	// ErrNotAuthenticated is returned when no access token is held.
	ErrNotAuthenticated = errors.New("session: not authenticated")
	// ErrNoRefreshToken is returned when a refresh is needed but impossible.
	ErrNoRefreshToken = errors.New("session: no refresh token")
	// ErrRefreshFailed wraps a rejected or failed refresh call.
	ErrRefreshFailed = errors.New("session: token refresh failed")
	// ErrSessionReplaced is returned when a logout or new login landed
	// while a refresh was in flight; the refreshed token is discarded.
	ErrSessionReplaced = errors.New("session: replaced during refresh")
)

// expirySkew refreshes tokens slightly before the server would reject them.
const expirySkew = 10 * time.Second

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
}

// Manager is the single owner of session state in this process. Establish,
// Refresh and Clear are its only token mutators; each of them holds mu
// while writing to the store. Refresh writes with a compare-and-set on the
// stored refresh token so other processes sharing the store are respected.
type Manager struct {
	store     Store
	refresher Refresher
	logger    *logging.Logger
	metrics   *metrics.ClientMetrics
	now       func() time.Time

	mu     sync.Mutex
	state  State
	loaded bool
	// epoch changes on every login and logout (and when a refresh finds
	// the store replaced); a refresh only commits if the epoch it started
	// under is still current.
	epoch uint64

	group singleflight.Group
}

// NewManager creates a session manager. refresher may be set later with
// SetRefresher when it depends on the HTTP client being built.
func NewManager(store Store, refresher Refresher, logger *logging.Logger) *Manager {
	if store == nil {
		panic("session: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		store:     store,
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
	}
}

// SetRefresher replaces the token refresher.
func (m *Manager) SetRefresher(r Refresher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresher = r
}

// SetMetrics attaches refresh counters.
func (m *Manager) SetMetrics(cm *metrics.ClientMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = cm
}

func (m *Manager) loadLocked(ctx context.Context) error {
	if m.loaded {
		return nil
	}
	st, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	m.state = st
	m.loaded = true
	return nil
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return State{}, err
	}
	st := m.state
	st.User = append(json.RawMessage(nil), m.state.User...)
	return st, nil
}

// AccessToken returns the stored access token, or ErrNotAuthenticated.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return "", err
	}
	if m.state.AccessToken == "" {
		return "", ErrNotAuthenticated
	}
	return m.state.AccessToken, nil
}

// FreshAccessToken returns an access token, refreshing first when the
// current one is a JWT whose exp has passed. Opaque tokens are returned
// unchanged and left to the 401 path.
func (m *Manager) FreshAccessToken(ctx context.Context) (string, error) {
	token, err := m.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	exp, ok := TokenExpiry(token)
	if !ok || m.now().Add(expirySkew).Before(exp) {
		return token, nil
	}
	m.logger.Debug("access token expired, refreshing", "expired_at", exp)
	return m.Refresh(ctx)
}

// IsAuthenticated reports whether both a token and a cached user exist.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	st, err := m.Snapshot(ctx)
	if err != nil {
		return false
	}
	return st.AccessToken != "" && len(st.User) > 0
}

// Establish stores a freshly issued token pair (login).
func (m *Manager) Establish(ctx context.Context, access, refresh string) error {
	if access == "" || refresh == "" {
		return fmt.Errorf("session: establish: both tokens required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epoch++
	m.state = State{AccessToken: access, RefreshToken: refresh}
	m.loaded = true
	if err := m.store.Save(ctx, m.state); err != nil {
		return err
	}
	return nil
}

// CacheUser stores the profile blob next to the tokens. It refuses to
// write once the session has been cleared.
func (m *Manager) CacheUser(ctx context.Context, user json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.loadLocked(ctx); err != nil {
		return err
	}
	if m.state.AccessToken == "" {
		return ErrNotAuthenticated
	}
	m.state.User = append(json.RawMessage(nil), user...)
	return m.store.Save(ctx, m.state)
}

// Refresh obtains a new access token. Concurrent callers share one
// backend call. A failed refresh clears the session unless the caller's
// context ended first. The new token is committed only while the store
// still holds the refresh token the call started with, so a logout or
// login from another process sharing the store wins.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	if err := m.loadLocked(ctx); err != nil {
		m.mu.Unlock()
		return "", err
	}
	refreshToken := m.state.RefreshToken
	refresher := m.refresher
	cm := m.metrics
	epoch := m.epoch
	m.mu.Unlock()

	if refreshToken == "" || refresher == nil {
		cm.ObserveRefresh("missing")
		if err := m.clearIfEpoch(ctx, epoch, refreshToken); err != nil {
			m.logger.Warn("failed to clear session", "error", err)
		}
		return "", ErrNoRefreshToken
	}

	v, err, _ := m.group.Do(strconv.FormatUint(epoch, 10), func() (any, error) {
		return refresher.RefreshAccessToken(ctx, refreshToken)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			cm.ObserveRefresh("aborted")
			return "", fmt.Errorf("session: refresh: %w", err)
		}
		cm.ObserveRefresh("failed")
		m.logger.Warn("token refresh failed, clearing session", "error", err)
		if clearErr := m.clearIfEpoch(ctx, epoch, refreshToken); clearErr != nil {
			m.logger.Warn("failed to clear session", "error", clearErr)
		}
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	access := v.(string)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		cm.ObserveRefresh("discarded")
		return "", ErrSessionReplaced
	}
	swapped, err := m.store.SwapAccessToken(ctx, refreshToken, access)
	if err != nil {
		return "", err
	}
	if !swapped {
		m.epoch++
		m.loaded = false
		if err := m.loadLocked(ctx); err != nil {
			m.logger.Warn("failed to reload replaced session", "error", err)
		}
		cm.ObserveRefresh("discarded")
		return "", ErrSessionReplaced
	}
	m.state.AccessToken = access
	cm.ObserveRefresh("ok")
	return access, nil
}

// Clear removes all session data (logout).
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearLocked(ctx)
}

// clearIfEpoch drops the session unless a newer login happened, either in
// this process (epoch) or in another one sharing the store (refresh token).
func (m *Manager) clearIfEpoch(ctx context.Context, epoch uint64, refreshToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return nil
	}
	m.epoch++
	m.state = State{}
	m.loaded = true
	cleared, err := m.store.ClearIfRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	if !cleared {
		m.loaded = false
	}
	return nil
}

func (m *Manager) clearLocked(ctx context.Context) error {
	m.epoch++
	m.state = State{}
	m.loaded = true
	return m.store.Clear(ctx)
}

// TokenExpiry reads the exp claim of a JWT without verifying its
// signature; the backend remains the authority on validity.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
