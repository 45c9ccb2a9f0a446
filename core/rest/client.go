package rest

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/camkit/arlo/pkg/logger"
)

// StatusFailed is the generic failure status used for transport errors,
// malformed bodies and rejected envelopes.
const StatusFailed = 500

// defaultTimeout bounds a request when neither the call nor the client
// specifies one.
const defaultTimeout = 60 * time.Second

// Request describes one API call.
type Request struct {
	Path    string
	Method  string
	Params  map[string]any
	Headers map[string]string
	Timeout time.Duration
	// Host overrides the client's default host.
	Host string
	// Auth marks an auth-endpoint call: routed to the auth host, no
	// transaction identifier injected.
	Auth bool
	// Raw skips envelope normalization and returns the decoded body as-is.
	Raw bool
}

// Client executes API calls against the cloud endpoints.
type Client struct {
	host     string
	authHost string
	timeout  time.Duration
	log      *slog.Logger
	jar      http.CookieJar

	httpMu sync.RWMutex
	http   *http.Client

	// reqMu serializes request construction only, not round-trips.
	reqMu sync.Mutex

	hdrMu    sync.RWMutex
	defaults map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the diagnostic logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithTimeout sets the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCookieJar sets the cookie jar shared with the auth flow.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.jar = jar
	}
}

// New creates a client for the given API and auth hosts.
func New(host, authHost string, opts ...Option) *Client {
	c := &Client{
		host:     host,
		authHost: authHost,
		timeout:  defaultTimeout,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		defaults: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = &http.Client{Jar: c.jar}
	return c
}

// ResetTLS replaces the underlying transport with one preferring the given
// ECDH curve. Used by the login negotiation retry loop; the cookie jar is
// preserved.
func (c *Client) ResetTLS(curve tls.CurveID) {
	c.httpMu.Lock()
	defer c.httpMu.Unlock()
	c.http = &http.Client{
		Jar: c.jar,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				CurvePreferences: []tls.CurveID{curve},
			},
		},
	}
}

// SetDefaultHeaders replaces the header set applied to every subsequent
// non-auth request. Called after login with the fresh token headers.
func (c *Client) SetDefaultHeaders(headers map[string]string) {
	c.hdrMu.Lock()
	defer c.hdrMu.Unlock()
	c.defaults = make(map[string]string, len(headers))
	for k, v := range headers {
		c.defaults[k] = v
	}
}

// Call executes the request and returns the normalized (status, body) pair.
// Transport failures and malformed bodies return (StatusFailed, nil); they are
// logged, never raised.
func (c *Client) Call(ctx context.Context, req Request) (int, any) {
	httpReq, err := c.build(ctx, req)
	if err != nil {
		c.log.Warn("request build failed",
			logger.Component("rest"), logger.Resource(req.Path), logger.Error(err))
		return StatusFailed, nil
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(httpReq.Context(), timeout)
	defer cancel()
	httpReq = httpReq.WithContext(ctx)

	c.httpMu.RLock()
	hc := c.http
	c.httpMu.RUnlock()

	resp, err := hc.Do(httpReq)
	if err != nil {
		c.log.Warn("request failed",
			logger.Component("rest"), logger.Resource(req.Path), logger.Error(err))
		return StatusFailed, nil
	}
	defer resp.Body.Close()

	if req.Method == http.MethodOptions {
		return http.StatusOK, nil
	}

	body, err := decodeBody(resp)
	if err != nil {
		c.log.Warn("body decode failed",
			logger.Component("rest"), logger.Resource(req.Path),
			logger.Status(resp.StatusCode), logger.Error(err))
		return StatusFailed, nil
	}

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	if req.Raw {
		return http.StatusOK, body
	}
	return c.normalize(req.Path, body)
}

// Body executes the request and returns only the normalized body, nil unless
// the call succeeded. Mirrors the common "did it work" call sites.
func (c *Client) Body(ctx context.Context, req Request) any {
	code, body := c.Call(ctx, req)
	if code != http.StatusOK {
		return nil
	}
	return body
}

// build constructs the http.Request under the narrow construction lock.
func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	host := req.Host
	if host == "" {
		if req.Auth {
			host = c.authHost
		} else {
			host = c.host
		}
	}

	rawURL := host + req.Path
	headers := make(map[string]string)

	if !req.Auth {
		c.hdrMu.RLock()
		for k, v := range c.defaults {
			headers[k] = v
		}
		c.hdrMu.RUnlock()

		tid := NewTransactionID()
		rawURL = decorateURL(rawURL, tid)
		headers["x-transaction-id"] = tid
	}
	for k, v := range req.Headers {
		headers[k] = v
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	switch method {
	case http.MethodGet:
		if len(req.Params) > 0 {
			u, err := url.Parse(rawURL)
			if err != nil {
				return nil, err
			}
			q := u.Query()
			for k, v := range req.Params {
				q.Set(k, fmt.Sprint(v))
			}
			u.RawQuery = q.Encode()
			rawURL = u.String()
		}
	case http.MethodPut, http.MethodPost, http.MethodOptions:
		payload := req.Params
		if payload == nil {
			payload = map[string]any{}
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	default:
		return nil, fmt.Errorf("rest: unsupported method %q", method)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

func decodeBody(resp *http.Response) (any, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return string(raw), nil
	}
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	return body, nil
}
