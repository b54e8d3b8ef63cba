// Package client is the authenticated HTTP client for the QoE backend. Every call
// carries the stored access token; a rejected token is refreshed once and the
// request replayed transparently. Resource helpers (projects, documents, ...) are
// thin wrappers over Do.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qoeplatform/qoe/auth"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// DefaultBaseURL is used when no API address is configured.
const DefaultBaseURL = "http://localhost:8000/api/v1"

// DefaultTimeout bounds a single HTTP exchange.
const DefaultTimeout = 30 * time.Second

// SessionStore is the slice of the token store the client needs.
type SessionStore interface {
	auth.TokenStorer
	Session(ctx context.Context) (*auth.Session, bool)
	Set(ctx context.Context, creds auth.Credentials, user *auth.User) error
}

// Client talks to the backend on behalf of the stored session.
type Client struct {
	baseURL   string
	http      *http.Client
	store     SessionStore
	auth      *auth.Service
	userAgent string
	limiter   *RateLimiter
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport. Its Timeout is kept as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-exchange timeout of the default transport.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithSessionEndedHook registers fn to run once per terminal auth event, after the
// session was cleared.
func WithSessionEndedHook(fn func(cause error)) Option {
	return func(c *Client) { c.auth.OnSessionEnded = fn }
}

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRateLimit caps file transfer throughput in bytes per second. Zero disables it.
func WithRateLimit(bytesPerSecond int64) Option {
	return func(c *Client) { c.limiter = NewRateLimiter(bytesPerSecond) }
}

// New creates a client for baseURL backed by store.
func New(baseURL string, store SessionStore, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: DefaultTimeout},
		store:     store,
		userAgent: "qoe-cli",
	}
	c.auth = auth.NewService(store, c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Auth exposes the refresh state machine, mainly for diagnostics.
func (c *Client) Auth() *auth.Service { return c.auth }

// Request is a call that can be sent, and replayed, verbatim.
type Request struct {
	Method string
	// Path is relative to the base URL, or an absolute URL.
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
	// Anonymous requests carry no bearer token and never trigger a refresh.
	Anonymous bool
	// Upload marks Body as file data. Every send of it, replays included, is
	// rate limited and reported to Progress under Label.
	Upload   bool
	Progress io.Writer
	Label    string

	id      string
	retried bool
}

// NewRequest builds a request without a body.
func NewRequest(method, path string) *Request {
	return &Request{Method: method, Path: path, Header: make(http.Header)}
}

// NewJSONRequest builds a request with payload encoded as JSON.
func NewJSONRequest(method, path string, payload any) (*Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	req := NewRequest(method, path)
	req.Body = body
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) resolve(r *Request) (string, error) {
	target := r.Path
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(target, "/")
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid request URL %q: %w", target, err)
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// roundTrip performs one HTTP exchange with the given access token. It never
// interprets the status code.
func (c *Client) roundTrip(ctx context.Context, r *Request, accessToken string) (*http.Response, error) {
	target, err := c.resolve(r)
	if err != nil {
		return nil, err
	}
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		log.Error().Err(err).Str("method", r.Method).Str("url", target).Msg("Failed to create HTTP request object")
		return nil, err
	}
	if r.Upload && r.Body != nil {
		var src io.Reader = c.throttle(ctx, bytes.NewReader(r.Body))
		if r.Progress != nil {
			bar := newProgressBar(r.Progress, int64(len(r.Body)), "Uploading "+r.Label)
			defer func() { _ = bar.Close() }()
			pr := progressbar.NewReader(src, bar)
			src = &pr
		}
		// ContentLength and GetBody were set from the bytes.Reader above.
		req.Body = io.NopCloser(src)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.id == "" {
		r.id = uuid.NewString()
	}
	req.Header.Set("X-Request-Id", r.id)
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	shown := redactURL(req.URL)
	log.Debug().Str("method", r.Method).Str("url", shown).Str("request_id", r.id).
		Bool("authenticated", accessToken != "").Bool("replay", r.retried).Msg("Sending HTTP request")
	resp, err := c.http.Do(req)
	if err != nil {
		log.Error().Err(err).Str("method", r.Method).Str("url", shown).Str("request_id", r.id).Msg("HTTP request failed")
		return nil, &NetworkError{Method: r.Method, URL: shown, Err: err}
	}
	log.Debug().Str("method", r.Method).Str("url", shown).Str("request_id", r.id).Int("status", resp.StatusCode).Msg("HTTP response received")
	return resp, nil
}

// redactURL hides token values carried in the query string.
func redactURL(u *url.URL) string {
	q := u.Query()
	changed := false
	for _, key := range []string{"refresh_token", "access_token", "token", "password", "current_password", "new_password"} {
		if v := q.Get(key); v != "" {
			q.Set(key, redactToken(v))
			changed = true
		}
	}
	if !changed {
		return u.String()
	}
	clone := *u
	clone.RawQuery = q.Encode()
	return clone.String()
}

// redactToken keeps a short prefix of a secret for log correlation.
func redactToken(token string) string {
	if len(token) <= 6 {
		return "***"
	}
	return token[:6] + "***"
}

// send runs the request through the auth interceptor and returns a 2xx response
// with its body still open. Anything else is returned as an error.
func (c *Client) send(ctx context.Context, r *Request) (*http.Response, error) {
	token := ""
	if !r.Anonymous {
		if creds, ok := c.store.Get(ctx); ok {
			token = creds.AccessToken
		}
	}

	for {
		resp, err := c.roundTrip(ctx, r, token)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		httpErr := newHTTPError(r.Method, resp)
		if resp.StatusCode != http.StatusUnauthorized || r.Anonymous {
			return nil, httpErr
		}

		if r.retried {
			log.Warn().Str("request_id", r.id).Msg("Request rejected again after token refresh")
			return nil, c.endSession(ctx, token, httpErr, nil)
		}
		r.retried = true

		fresh, err := c.auth.Refresh(ctx, token)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, auth.ErrRefreshFailed) {
				return nil, ctxErr
			}
			return nil, c.endSession(ctx, token, httpErr, err)
		}
		token = fresh.AccessToken
		log.Debug().Str("request_id", r.id).Msg("Replaying request with refreshed token")
	}
}

// endSession clears the stored session (at most once per event, and only while it
// still holds the rejected token) and builds the error surfaced to the caller.
func (c *Client) endSession(ctx context.Context, token string, rejected *HTTPError, reason error) error {
	cause := reason
	if cause == nil {
		cause = rejected
	}
	c.auth.Terminate(ctx, token, cause)
	return &SessionEndedError{Rejected: rejected, Reason: reason}
}

// newHTTPError drains and closes resp.
func newHTTPError(method string, resp *http.Response) *HTTPError {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		log.Debug().Err(err).Msg("Failed to read error response body")
	}
	return &HTTPError{
		Method:     method,
		URL:        redactURL(resp.Request.URL),
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       body,
		Detail:     parseDetail(body),
	}
}

// Response is a fully read 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do sends r and reads the whole response body.
func (c *Client) Do(ctx context.Context, r *Request) (*Response, error) {
	resp, err := c.send(ctx, r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: r.Method, URL: redactURL(resp.Request.URL), Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Stream sends r and hands back the open 2xx response. The caller closes its body.
func (c *Client) Stream(ctx context.Context, r *Request) (*http.Response, error) {
	return c.send(ctx, r)
}

// doJSON sends r and decodes the response into out when out is not nil.
func (c *Client) doJSON(ctx context.Context, r *Request, out any) error {
	resp, err := c.Do(ctx, r)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		log.Error().Err(err).Str("body_preview", string(resp.Body[:min(len(resp.Body), 200)])).Msg("Failed to parse response JSON")
		return fmt.Errorf("failed to parse %s %s response: %w", r.Method, r.Path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	req := NewRequest(http.MethodGet, path)
	req.Query = query
	return c.doJSON(ctx, req, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload, out any) error {
	req, err := NewJSONRequest(method, path, payload)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, req, out)
}
