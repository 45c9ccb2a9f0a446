package arlo

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/camkit/arlo/core/auth"
	"github.com/camkit/arlo/core/cookie"
	"github.com/camkit/arlo/core/dispatch"
	"github.com/camkit/arlo/core/rest"
	"github.com/camkit/arlo/core/session"
	"github.com/camkit/arlo/core/stream"
	"github.com/camkit/arlo/pkg/logger"
)

// API paths on the main host.
const (
	devicesPath   = "/hmsweb/users/devices"
	notifyPath    = "/hmsweb/users/devices/notify/"
	subscribePath = "/hmsweb/client/subscribe"
	logoutPath    = "/hmsweb/logout"
)

// ErrNotConfigured reports missing account credentials.
var ErrNotConfigured = errors.New("arlo: username and password are required")

// Client is the top-level handle. It owns the session, the request executor,
// the event dispatcher and the realtime stream supervisor.
type Client struct {
	cfg    Config
	log    *slog.Logger
	store  session.Store
	jar    *cookie.Jar
	rest   *rest.Client
	auth   *auth.Authenticator
	disp   *dispatch.Dispatcher
	lister DeviceLister

	// provider overrides the configuration-selected second factor source.
	provider auth.Provider

	mu            sync.Mutex
	sess          session.Session
	multiLocation bool
	mqttURL       string
	devices       []Device
	sup           *stream.Supervisor
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger shared by every component.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithDeviceLister replaces the device catalog source, for callers that
// already maintain their own device model.
func WithDeviceLister(l DeviceLister) Option {
	return func(c *Client) {
		if l != nil {
			c.lister = l
		}
	}
}

// WithProvider replaces the second-factor code provider selected from the
// configuration.
func WithProvider(p auth.Provider) Option {
	return func(c *Client) {
		if p != nil {
			c.provider = p
		}
	}
}

// New wires the whole client and performs the initial login. The returned
// client already holds a valid session; call StartMonitoring to bring up the
// realtime event stream.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, ErrNotConfigured
	}
	applyConfigDefaults(&cfg)

	c := &Client{
		cfg: cfg,
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.SaveSession {
		c.store = session.NewFileStore(cfg.SessionFile, session.WithLogger(c.log))
	} else {
		c.store = &memoryStore{}
	}

	jar, err := cookie.NewJar(cfg.CookieFile)
	if err != nil {
		return nil, fmt.Errorf("arlo: cookie jar: %w", err)
	}
	c.jar = jar

	c.rest = rest.New(cfg.Host, cfg.AuthHost,
		rest.WithLogger(c.log),
		rest.WithTimeout(cfg.RequestTimeout),
		rest.WithCookieJar(jar))

	provider := c.provider
	if provider == nil {
		provider = auth.NewProvider(auth.FactorSource(cfg.TFASource), auth.ProviderOptions{
			RestURL:   cfg.TFAHost,
			RestToken: cfg.TFAToken,
			Retries:   uint64(cfg.TFARetries),
			Delay:     cfg.TFADelay,
		})
	}

	c.auth = auth.New(c.rest, c.store, auth.Config{
		Username:       cfg.Username,
		Password:       cfg.Password,
		DeviceID:       c.deviceID(),
		FactorType:     cfg.TFAType,
		FactorNickname: cfg.TFANickname,
		PushRetries:    cfg.TFARetries,
		PushDelay:      cfg.TFADelay,
		Curves:         parseCurves(cfg.ECDHCurves),
		UserAgent:      cfg.UserAgent,
		SendSource:     cfg.SendSource,
	}, auth.WithLogger(c.log), auth.WithProvider(provider), auth.WithCookieSaver(jar))

	c.disp = dispatch.New(dispatch.WithLogger(c.log))

	if c.lister == nil {
		c.lister = &restLister{client: c}
	}

	if err := c.login(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// deviceID reuses the fingerprint from a stored session so the cloud keeps
// recognizing this installation as a paired browser, minting a fresh one for
// first runs.
func (c *Client) deviceID() string {
	if sess, ok := c.store.Load(c.cfg.Username); ok && sess.DeviceID != "" {
		return sess.DeviceID
	}
	return uuid.NewString()
}

// login runs the auth flow and records the outcome. Used for both the
// initial login and supervisor-driven relogins.
func (c *Client) login(ctx context.Context) error {
	res, err := c.auth.Login(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.sess = res.Session
	c.multiLocation = res.MultiLocation
	c.mqttURL = res.MQTTURL
	c.mu.Unlock()

	if _, err := c.RefreshDevices(ctx); err != nil {
		c.log.Warn("device catalog unavailable", logger.Error(err))
	}
	return nil
}

// Session returns a copy of the current session.
func (c *Client) Session() session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// MultiLocation reports whether the account spans multiple locations, per
// the session bootstrap.
func (c *Client) MultiLocation() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.multiLocation
}

// StartMonitoring brings the realtime event stream up and waits briefly for
// the first connection. The supervisor keeps the stream alive, re-logging-in
// and reconnecting as needed, until Stop.
func (c *Client) StartMonitoring() bool {
	c.mu.Lock()
	sup := c.sup
	c.mu.Unlock()
	if sup == nil {
		built := c.buildSupervisor()
		c.mu.Lock()
		if c.sup == nil {
			c.sup = built
		}
		sup = c.sup
		c.mu.Unlock()
	}
	return sup.Start()
}

// Connected reports whether the event stream is live.
func (c *Client) Connected() bool {
	c.mu.Lock()
	sup := c.sup
	c.mu.Unlock()
	return sup != nil && sup.Connected()
}

// Stop shuts the event stream down. The client remains usable for requests.
func (c *Client) Stop() {
	c.mu.Lock()
	sup := c.sup
	c.mu.Unlock()
	if sup != nil {
		sup.Stop()
	}
}

// Logout stops monitoring and invalidates the session server-side.
func (c *Client) Logout(ctx context.Context) error {
	c.Stop()
	code, _ := c.rest.Call(ctx, rest.Request{Path: logoutPath, Method: http.MethodPut})
	if code != http.StatusOK {
		return fmt.Errorf("arlo: logout answered %d", code)
	}
	return nil
}

// AddListener subscribes cb to events routed to the device, under both its
// device id and its unique id.
func (c *Client) AddListener(device Device, cb dispatch.Callback) {
	c.disp.AddListener(device.DeviceID, cb)
	if device.UniqueID != "" && device.UniqueID != device.DeviceID {
		c.disp.AddListener(device.UniqueID, cb)
	}
}

// AddAnyListener subscribes cb to every routed event.
func (c *Client) AddAnyListener(cb dispatch.Callback) {
	c.disp.AddAnyListener(cb)
}

// DelListener delegates to the dispatcher's no-op; subscriptions live for
// the client's lifetime.
func (c *Client) DelListener(device Device, cb dispatch.Callback) {
	c.disp.DelListener(device.DeviceID, cb)
}

// Inject feeds a payload straight into the dispatcher, bypassing the
// transport. Intended for tests and fixtures.
func (c *Client) Inject(payload map[string]any) {
	c.disp.Dispatch(payload)
}

// buildSupervisor assembles the stream supervisor for the selected
// transport. Transport instances are built per connection attempt so they
// always see the freshest token.
func (c *Client) buildSupervisor() *stream.Supervisor {
	kind := stream.Select(stream.Kind(c.cfg.EventBackend), c.deviceTopics(), c.bootstrapMQTTURL())
	c.log.Info("event transport selected", slog.String("transport", string(kind)))

	var factory stream.TransportFactory
	opts := []stream.Option{
		stream.WithLogger(c.log),
		stream.WithAuthenticated(),
	}

	if kind == stream.KindMQTT {
		factory = func() stream.Transport {
			return stream.NewMQTT(c.mqttConfig(), c.log)
		}
	} else {
		httpClient := &http.Client{Jar: c.jar}
		factory = func() stream.Transport {
			open := func() (stream.EventSource, error) {
				return stream.OpenHTTPSource(httpClient, c.cfg.Host+subscribePath, c.sessionHeaders)
			}
			return stream.NewSSE(open, c.cfg.StreamTimeout, c.log)
		}
		if c.cfg.ReconnectEvery > 0 {
			opts = append(opts,
				stream.WithReconnectEvery(c.cfg.ReconnectEvery),
				stream.WithOnReconnect(c.refreshDevicesBackground))
		}
	}

	return stream.New(factory, c.login, c.disp.Dispatch, c.disp.DiscardPending, opts...)
}

// mqttConfig snapshots the broker settings for one connection attempt. A
// bootstrap-advertised endpoint rewrites host and port.
func (c *Client) mqttConfig() stream.MQTTConfig {
	c.mu.Lock()
	sess := c.sess
	override := c.mqttURL
	c.mu.Unlock()

	host, port := c.cfg.MQTTHost, c.cfg.MQTTPort
	if override != "" {
		if u, err := url.Parse(override); err == nil && u.Hostname() != "" {
			host = u.Hostname()
			if p, err := strconv.Atoi(u.Port()); err == nil && p > 0 {
				port = p
			}
		}
	}
	return stream.MQTTConfig{
		Host:          host,
		Port:          port,
		UserID:        sess.UserID,
		Token:         sess.Token,
		DeviceTopics:  c.deviceTopics(),
		Origin:        "https://my.arlo.com",
		CheckHostname: c.cfg.MQTTCheckHostname,
	}
}

func (c *Client) bootstrapMQTTURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mqttURL
}

// sessionHeaders is evaluated per connection attempt so reconnects carry the
// rotated token.
func (c *Client) sessionHeaders() map[string]string {
	c.mu.Lock()
	token := c.sess.Token
	c.mu.Unlock()
	return auth.SessionHeaders(token, auth.ResolveUserAgent(c.cfg.UserAgent))
}

func (c *Client) refreshDevicesBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.RequestTimeout)
	defer cancel()
	if _, err := c.RefreshDevices(ctx); err != nil {
		c.log.Warn("device refresh after reconnect failed", logger.Error(err))
	}
}

func applyConfigDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = "https://myapi.arlo.com"
	}
	if cfg.AuthHost == "" {
		cfg.AuthHost = "https://ocapi-app.arlo.com"
	}
	if cfg.SessionFile == "" {
		cfg.SessionFile = ".arlo-session.json"
	}
	if cfg.CookieFile == "" {
		cfg.CookieFile = ".arlo-cookies.json"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.EventBackend == "" {
		cfg.EventBackend = string(stream.KindAuto)
	}
	if cfg.MQTTHost == "" {
		cfg.MQTTHost = "mqtt-cluster.arloxcld.com"
	}
	if cfg.MQTTPort <= 0 {
		cfg.MQTTPort = 443
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "linux"
	}
}

// parseCurves maps the configured curve names onto TLS identifiers, keeping
// order. Unknown names are dropped.
func parseCurves(names []string) []tls.CurveID {
	var curves []tls.CurveID
	for _, name := range names {
		switch strings.ToLower(strings.ReplaceAll(name, "-", "")) {
		case "x25519":
			curves = append(curves, tls.X25519)
		case "p256", "prime256v1", "secp256r1":
			curves = append(curves, tls.CurveP256)
		case "p384", "secp384r1":
			curves = append(curves, tls.CurveP384)
		case "p521", "secp521r1":
			curves = append(curves, tls.CurveP521)
		}
	}
	return curves
}

// memoryStore keeps the session for this process only.
type memoryStore struct {
	mu    sync.Mutex
	saved map[string]session.Session
}

func (s *memoryStore) Load(account string) (session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.saved[account]
	return sess, ok
}

func (s *memoryStore) Save(account string, sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string]session.Session)
	}
	s.saved[account] = sess
	return nil
}
