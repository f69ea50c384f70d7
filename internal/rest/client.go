// Package rest is a minimal TileDB Cloud REST client built on a resolved
// config.Configuration.
package rest

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xabinapal/tiledb-cloud/internal/config"
	"github.com/xabinapal/tiledb-cloud/internal/logger"
	"github.com/xabinapal/tiledb-cloud/internal/version"
)

const (
	// DefaultTimeout bounds the wait for response headers on a single
	// attempt. The retry sequence as a whole is bounded by the caller's context.
	DefaultTimeout = 30 * time.Second

	// RequestIDHeader carries a per-request UUID.
	RequestIDHeader = "X-Request-Id"

	maxRedirects = 10
)

// Client talks to one TileDB Cloud host with the credentials of a Configuration.
type Client struct {
	cfg        *config.Configuration
	base       *url.URL
	httpClient *http.Client
	transport  http.RoundTripper
	timeout    time.Duration
	logger     *slog.Logger
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for retry and request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient returns a Client for cfg. The configuration is copied.
func NewClient(cfg *config.Configuration, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, config.ErrNoConfiguration
	}
	if cfg.Host == "" {
		return nil, config.ErrMissingHost
	}
	base, err := url.Parse(strings.TrimRight(cfg.Host, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid host %q: %w", cfg.Host, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid host %q: scheme must be http or https", cfg.Host)
	}

	c := &Client{
		cfg:       cfg.Clone(),
		base:      base,
		timeout:   DefaultTimeout,
		logger:    logger.Get(),
		userAgent: "tiledb-cloud-go/" + version.Version,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.transport = buildTransport(c.cfg.VerifyTLS, c.timeout)
	c.httpClient = &http.Client{
		Transport: &retryTransport{
			next:   c.transport,
			policy: c.cfg.Retries,
			logger: c.logger,
		},
		CheckRedirect: keepHeadersOnRedirect(c.cfg.Retries.RemoveHeadersOnRedirect),
	}

	return c, nil
}

// Host returns the base URL requests are sent to.
func (c *Client) Host() string {
	return c.base.String()
}

func buildTransport(verifyTLS bool, timeout time.Duration) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	transport.TLSClientConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
		// #nosec G402 -- user opted out with verify_ssl=false or TILEDB_REST_IGNORE_SSL_VALIDATION
		InsecureSkipVerify: !verifyTLS,
	}
	return transport
}

// keepHeadersOnRedirect copies the original request headers onto each
// redirect, minus the ones listed in remove. net/http drops Authorization
// and custom headers on cross-host redirects otherwise.
func keepHeadersOnRedirect(remove []string) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		for key, values := range via[0].Header {
			if _, ok := req.Header[key]; !ok {
				req.Header[key] = values
			}
		}
		for _, h := range remove {
			req.Header.Del(h)
		}
		return nil
	}
}

// newRequest builds an authenticated request for path relative to the host.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	switch c.cfg.AuthMode() {
	case config.AuthAPIKey:
		for k, v := range c.cfg.APIKeyHeaders() {
			req.Header.Set(k, v)
		}
	case config.AuthBasic:
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	return req, nil
}

// do sends req and decodes a 2xx JSON body into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) error {
	c.logger.Debug("sending request",
		"method", req.Method,
		"url", req.URL.Redacted(),
		"request_id", req.Header.Get(RequestIDHeader),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp, body)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
