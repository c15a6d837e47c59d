// Package client is the HTTP client for the role-play chat service. It covers
// the REST surface and opens reply streams for chat.Session.
package client

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

	"github.com/papercomputeco/rolechat/pkg/logger"
)

const (
	loginPath    = "/auth/login"
	registerPath = "/auth/register"

	defaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// TokenStore holds the bearer token sent with every request.
type TokenStore interface {
	// Token returns the current token, or "" when logged out.
	Token() (string, error)

	// ClearToken forgets the token after the service rejected it.
	ClearToken() error
}

// Client talks to one chat service base URL.
type Client struct {
	baseURL string
	tokens  TokenStore
	logger  *slog.Logger

	// httpClient serves REST calls and carries the request timeout.
	// streamClient has no timeout: a reply may stream for as long as the
	// model keeps generating, bounded only by the caller's context.
	httpClient   *http.Client
	streamClient *http.Client
}

// Option configures a Client created with New.
type Option func(*Client)

// WithTokenStore sets the store the bearer token is read from.
func WithTokenStore(s TokenStore) Option {
	return func(c *Client) {
		c.tokens = s
	}
}

// WithTimeout sets the timeout for non-streaming requests.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces both underlying HTTP clients. The stream client
// keeps the given transport but drops any timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		c.httpClient = hc

		stream := *hc
		stream.Timeout = 0
		c.streamClient = &stream
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Client for baseURL, e.g. http://localhost:8080/api/v1.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", baseURL)
	}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		logger:       logger.Nop(),
		httpClient:   &http.Client{Timeout: defaultTimeout},
		streamClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// newRequest builds a request for path and applies the auth interceptor.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if err := c.authorize(req); err != nil {
		return nil, err
	}

	return req, nil
}

// authorize attaches the stored bearer token, if any.
func (c *Client) authorize(req *http.Request) error {
	if c.tokens == nil {
		return nil
	}

	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("reading token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return nil
}

// checkResponse turns non-2xx responses into errors. A 401 on any path but
// login and registration clears the stored token and yields ErrUnauthorized.
// The body is closed when an error is returned.
func (c *Client) checkResponse(resp *http.Response, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()

	se := &StatusError{
		Method: resp.Request.Method,
		Path:   path,
		Code:   resp.StatusCode,
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var er ErrorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error != "" {
		se.Message = er.Error
	} else {
		se.Message = strings.TrimSpace(string(raw))
	}

	if resp.StatusCode != http.StatusUnauthorized || isAuthPath(path) {
		return se
	}

	if c.tokens != nil {
		if err := c.tokens.ClearToken(); err != nil {
			c.logger.Warn("clearing rejected token failed", "error", err)
		}
	}

	return fmt.Errorf("%w: %w", ErrUnauthorized, se)
}

func isAuthPath(path string) bool {
	return strings.HasPrefix(path, loginPath) || strings.HasPrefix(path, registerPath)
}

// do sends a JSON request and decodes the JSON response into out, which may
// be nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	c.logger.Debug("chat service request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if err := c.checkResponse(resp, path); err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s %s: empty response body", method, path)
		}
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}

	return nil
}
