// Package remote is the HTTP client for the subscription service. Each call
// is a single round trip with no retries; failures come back as
// NetworkError, HTTPError, or DecodeError.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wondertwin-ai/subtrack/internal/authtoken"
	"github.com/wondertwin-ai/subtrack/internal/subscription"
)

// DefaultTimeout bounds each request when no timeout option is given.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Client talks to the /subscriptions endpoints of one service.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
	signer  *authtoken.Signer
	initErr error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// WithLogger sets the logger used for per-call debug logs.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithSigningSecret attaches a freshly minted bearer token to every request.
func WithSigningSecret(secret []byte, subject string) Option {
	return func(c *Client) {
		s, err := authtoken.NewSigner(secret, subject)
		if err != nil {
			c.initErr = err
			return
		}
		c.signer = s
	}
}

// New creates a Client for the service rooted at baseURL, e.g.
// "http://localhost:8000".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	c := &Client{
		base:    u.String(),
		http:    http.DefaultClient,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.initErr != nil {
		return nil, c.initErr
	}
	if c.timeout > 0 && c.http.Timeout != c.timeout {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c, nil
}

// BaseURL returns the service root the client was created with.
func (c *Client) BaseURL() string { return c.base }

// List fetches every subscription.
func (c *Client) List(ctx context.Context) ([]subscription.Subscription, error) {
	const op = "list subscriptions"
	var out []subscription.Subscription
	if err := c.do(ctx, op, http.MethodGet, c.collection(), nil, &out); err != nil {
		return nil, err
	}
	for i, s := range out {
		if s.ID == "" {
			return nil, &DecodeError{Op: op, Err: fmt.Errorf("record %d has no id", i)}
		}
	}
	if out == nil {
		out = []subscription.Subscription{}
	}
	return out, nil
}

// Create posts a new subscription and returns the stored record.
func (c *Client) Create(ctx context.Context, p subscription.Payload) (subscription.Subscription, error) {
	const op = "create subscription"
	var out subscription.Subscription
	if err := c.do(ctx, op, http.MethodPost, c.collection(), p, &out); err != nil {
		return subscription.Subscription{}, err
	}
	if out.ID == "" {
		return subscription.Subscription{}, &DecodeError{Op: op, Err: errors.New("created record has no id")}
	}
	return out, nil
}

// Update replaces the fields of subscription id and returns the stored record.
func (c *Client) Update(ctx context.Context, id string, p subscription.Payload) (subscription.Subscription, error) {
	const op = "update subscription"
	var out subscription.Subscription
	if err := c.do(ctx, op, http.MethodPut, c.item(id), p, &out); err != nil {
		return subscription.Subscription{}, err
	}
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

// Delete removes subscription id. An empty 2xx body is a success.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "delete subscription", http.MethodDelete, c.item(id), nil, nil)
}

func (c *Client) collection() string { return c.base + "/subscriptions" }

func (c *Client) item(id string) string { return c.collection() + "/" + url.PathEscape(id) }

// do performs one request. When out is nil the body is not decoded, but a
// non-empty body must still be valid JSON.
func (c *Client) do(ctx context.Context, op, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &NetworkError{Op: op, URL: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.signer != nil {
		tok, err := c.signer.Token()
		if err != nil {
			return &NetworkError{Op: op, URL: endpoint, Err: err}
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("remote call failed", "op", op, "method", method, "url", endpoint, "err", err)
		return &NetworkError{Op: op, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &NetworkError{Op: op, URL: endpoint, Err: fmt.Errorf("reading body: %w", err)}
	}
	c.logger.Debug("remote call",
		"op", op,
		"method", method,
		"url", endpoint,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode/100 != 2 {
		return &HTTPError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}

	empty := len(bytes.TrimSpace(data)) == 0
	if out == nil {
		if !empty && !json.Valid(data) {
			return &DecodeError{Op: op, Err: errors.New("body is not valid JSON")}
		}
		return nil
	}
	if empty {
		return &DecodeError{Op: op, Err: errors.New("empty body")}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

// errorMessage extracts the server's error text from the shapes it may use:
// {"error": "text"}, {"error": {"message": "text"}}, {"detail": "text"} or
// {"message": "text"}.
func errorMessage(data []byte) string {
	var body struct {
		Error   json.RawMessage `json:"error"`
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if len(bytes.TrimSpace(data)) == 0 || json.Unmarshal(data, &body) != nil {
		return ""
	}
	if s := textOrMessage(body.Error); s != "" {
		return s
	}
	if s := textOrMessage(body.Detail); s != "" {
		return s
	}
	return body.Message
}

func textOrMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Message
	}
	return ""
}
