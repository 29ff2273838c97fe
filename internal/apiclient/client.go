// Package apiclient is the single HTTP gateway to the booking backend. It
// attaches the bearer token, retries once after refreshing on 401 and turns
// non-2xx answers into *APIError values.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/wolfman30/booking-portal/internal/observability/metrics"
	"github.com/wolfman30/booking-portal/internal/session"
	"github.com/wolfman30/booking-portal/pkg/logging"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 10 * time.Second

	refreshPath = "/api/token/refresh/"
)

var tracer = otel.Tracer("portal.internal.apiclient")

// TokenSource supplies bearer tokens. *session.Manager implements it.
type TokenSource interface {
	FreshAccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Config configures a Client. Zero values pick sensible defaults.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	RateBurst  int
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    *metrics.ClientMetrics
}

// Client performs JSON requests against the backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     TokenSource
	limiter    *rate.Limiter
	logger     *logging.Logger
	metrics    *metrics.ClientMetrics
}

// New builds a client. tokens may be nil for a client that only calls
// public endpoints.
func New(cfg Config, tokens TokenSource) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		limiter:    limiter,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// Public requests carry no token and never trigger a refresh.
	Public bool
}

// Get decodes the response of GET path into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// GetRaw returns the undecoded response body of GET path.
func (c *Client) GetRaw(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, path, query, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}

// PostPublic sends an unauthenticated POST (login, registration, resets).
func (c *Client) PostPublic(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Public: true}, out)
}

// Do executes req. On 401 an authenticated request is retried exactly once
// after a token refresh; if the refresh fails ErrSessionExpired is returned.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	route := routeTemplate(req.Path)
	ctx, span := tracer.Start(ctx, "apiclient."+strings.ToLower(req.Method), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.route", route),
	)

	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("apiclient: marshal request: %w", err)
		}
	}

	token := ""
	if !req.Public && c.tokens != nil {
		t, err := c.tokens.FreshAccessToken(ctx)
		switch {
		case err == nil:
			token = t
		case errors.Is(err, session.ErrNotAuthenticated):
			// anonymous browsing is allowed; the backend decides
		case errors.Is(err, session.ErrRefreshFailed), errors.Is(err, session.ErrNoRefreshToken), errors.Is(err, session.ErrSessionReplaced):
			span.RecordError(err)
			return fmt.Errorf("%w: %v", ErrSessionExpired, err)
		default:
			span.RecordError(err)
			return fmt.Errorf("apiclient: load token: %w", err)
		}
	}

	status, body, err := c.send(ctx, req, route, payload, token)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if status == http.StatusUnauthorized && !req.Public && c.tokens != nil {
		c.logger.Debug("access token rejected, refreshing", "path", req.Path)
		newToken, refreshErr := c.tokens.Refresh(ctx)
		if refreshErr != nil {
			span.RecordError(refreshErr)
			if ctx.Err() != nil {
				return fmt.Errorf("apiclient: refresh: %w", refreshErr)
			}
			c.logger.Warn("token refresh failed", "path", req.Path, "error", refreshErr)
			return fmt.Errorf("%w: %v", ErrSessionExpired, refreshErr)
		}
		status, body, err = c.send(ctx, req, route, payload, newToken)
		if err != nil {
			span.RecordError(err)
			return err
		}
	}
	span.SetAttributes(attribute.Int("http.status_code", status))

	if status < 200 || status > 299 {
		apiErr := newAPIError(req.Method, req.Path, status, body)
		if status >= 500 {
			c.logger.Error("backend API non-2xx response", "status", status, "path", req.Path, "body", apiErr.Body)
		} else {
			c.logger.Debug("backend API non-2xx response", "status", status, "path", req.Path, "body", apiErr.Body)
		}
		span.RecordError(apiErr)
		return apiErr
	}

	if len(bytes.TrimSpace(body)) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, req Request, route string, payload []byte, token string) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("apiclient: rate limit wait: %w", err)
		}
	}

	endpoint := c.baseURL + req.Path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.ObserveRequest(req.Method, route, 0, time.Since(start).Seconds())
		c.logger.Error("backend API request failed", "method", req.Method, "path", req.Path, "error", err)
		return 0, nil, fmt.Errorf("apiclient: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(req.Method, route, resp.StatusCode, time.Since(start).Seconds())
	if err != nil {
		return 0, nil, fmt.Errorf("apiclient: read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

var idSegment = regexp.MustCompile(`^([0-9]+|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})$`)

// routeTemplate replaces numeric and UUID path segments with {id} so metric
// labels stay bounded.
func routeTemplate(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if idSegment.MatchString(seg) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

// TokenRefresher exchanges refresh tokens through the backend. It bypasses
// the bearer/401 machinery so a rejected refresh never recurses.
type TokenRefresher struct {
	client *Client
}

func NewTokenRefresher(client *Client) *TokenRefresher {
	return &TokenRefresher{client: client}
}

func (r *TokenRefresher) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	var resp struct {
		Access string `json:"access"`
	}
	if err := r.client.PostPublic(ctx, refreshPath, map[string]string{"refresh": refreshToken}, &resp); err != nil {
		return "", err
	}
	if resp.Access == "" {
		return "", errors.New("apiclient: refresh response missing access token")
	}
	return resp.Access, nil
}
