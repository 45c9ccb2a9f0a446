package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/camkit/arlo/pkg/async"
	"github.com/camkit/arlo/pkg/logger"
)

// State is the supervisor's connection state.
type State int

const (
	StateDisconnected State = iota
	StateAuthenticating
	StateConnecting
	StateConnected
	StateStopping
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAuthenticating:
		return "authenticating"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Sink receives decoded event payloads and connection notifications from a
// running transport. The supervisor itself implements Sink.
type Sink interface {
	// OnEvent delivers a decoded push payload.
	OnEvent(payload map[string]any)
	// OnConnected reports that the transport is subscribed and live.
	OnConnected()
}

// Transport is one realtime connection strategy. Run blocks consuming
// messages until the connection fails, the server logs the session out, or
// Close interrupts it. A Transport is used for a single connection; the
// supervisor builds a fresh one for every attempt.
type Transport interface {
	Run(ctx context.Context, sink Sink) error
	Close()
}

// TransportFactory builds a Transport for one connection attempt. It is
// called after each successful login, so it can pick up rotated credentials.
type TransportFactory func() Transport

// LoginFunc re-establishes the session. It returns nil once the session is
// usable again.
type LoginFunc func(ctx context.Context) error

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger used for connection lifecycle events.
func WithLogger(log *slog.Logger) Option {
	return func(s *Supervisor) {
		if log != nil {
			s.log = log
		}
	}
}

// WithAuthenticated marks the session as already established, skipping the
// initial login round when monitoring starts.
func WithAuthenticated() Option {
	return func(s *Supervisor) { s.authenticated = true }
}

// WithStartTimeout bounds how long Start waits for the first connection.
func WithStartTimeout(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.startTimeout = d
		}
	}
}

// WithReloginDelay sets the pause before each login retry.
func WithReloginDelay(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.reloginDelay = d
		}
	}
}

// WithReconnectEvery forces a periodic transport close so the connection is
// re-established on a fresh socket. Zero disables the cycle.
func WithReconnectEvery(d time.Duration) Option {
	return func(s *Supervisor) { s.reconnectEvery = d }
}

// WithOnReconnect registers a callback run after every reconnect beyond the
// first connection, typically to refresh device state that may have changed
// while the stream was down.
func WithOnReconnect(fn func()) Option {
	return func(s *Supervisor) { s.onReconnect = fn }
}

// Supervisor owns the event connection lifecycle.
type Supervisor struct {
	factory      TransportFactory
	login        LoginFunc
	dispatch     func(payload map[string]any)
	discard      func()
	log          *slog.Logger
	startTimeout time.Duration
	reloginDelay time.Duration

	reconnectEvery time.Duration
	onReconnect    func()

	mu            sync.Mutex
	state         State
	running       bool
	authenticated bool
	everConnected bool
	active        Transport
	connectedCh   chan struct{}
	cancel        context.CancelFunc
	done          chan struct{}
	ticker        *async.Ticker
}

// New builds a Supervisor. The dispatch callback receives every event
// payload; discard is invoked whenever a connection drops, so waiters on
// in-flight transactions are released.
func New(factory TransportFactory, login LoginFunc, dispatch func(map[string]any), discard func(), opts ...Option) *Supervisor {
	s := &Supervisor{
		factory:      factory,
		login:        login,
		dispatch:     dispatch,
		discard:      discard,
		log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		startTimeout: 30 * time.Second,
		reloginDelay: 5 * time.Second,
		connectedCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports the current connection state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether the event stream is currently live.
func (s *Supervisor) Connected() bool {
	return s.State() == StateConnected
}

// Start launches the connection loop if it is not already running and waits
// up to the start timeout for the stream to come up. It returns whether the
// stream is connected; the loop keeps retrying in the background either way.
func (s *Supervisor) Start() bool {
	s.mu.Lock()
	if !s.running {
		s.running = true
		s.state = StateDisconnected
		// A previous run may have left the channel closed.
		s.connectedCh = make(chan struct{})
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.done = make(chan struct{})
		if s.reconnectEvery > 0 {
			s.ticker = async.RunEvery(s.reconnectEvery, s.closeActive)
		}
		go s.loop(ctx)
	}
	ch := s.connectedCh
	s.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-time.After(s.startTimeout):
		s.log.Warn("event stream did not connect in time",
			logger.Duration("timeout", s.startTimeout))
		return false
	}
}

// Stop tears the connection down and terminates the loop. It blocks until
// the loop goroutine has exited.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.state = StateStopping
	s.running = false
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
	cancel := s.cancel
	done := s.done
	active := s.active
	s.mu.Unlock()

	cancel()
	if active != nil {
		active.Close()
	}
	<-done
}

func (s *Supervisor) loop(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.state = StateDisconnected
		close(s.done)
		s.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		if !s.ensureLogin(ctx) {
			return
		}

		t := s.factory()
		s.mu.Lock()
		s.active = t
		s.state = StateConnecting
		s.mu.Unlock()

		err := t.Run(ctx, s)
		switch {
		case ctx.Err() != nil:
			// Local stop, not a failure.
		case errors.Is(err, ErrLoggedOut):
			s.log.Warn("event stream logged out by server")
		case err != nil:
			s.log.Info("event stream dropped", logger.Error(err))
		default:
			s.log.Info("event stream closed")
		}

		s.mu.Lock()
		s.active = nil
		if s.state == StateConnected {
			s.connectedCh = make(chan struct{})
		}
		s.state = StateDisconnected
		s.authenticated = false
		s.mu.Unlock()

		s.discard()
	}
}

// ensureLogin re-runs the login callback until it succeeds. The delay comes
// before each attempt so a flapping connection does not hammer the backend.
func (s *Supervisor) ensureLogin(ctx context.Context) bool {
	for {
		s.mu.Lock()
		ok := s.authenticated
		if !ok {
			s.state = StateAuthenticating
		}
		s.mu.Unlock()
		if ok {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.reloginDelay):
		}
		if err := s.login(ctx); err != nil {
			s.log.Warn("relogin failed", logger.Error(err))
			continue
		}
		s.mu.Lock()
		s.authenticated = true
		s.mu.Unlock()
		return true
	}
}

func (s *Supervisor) closeActive() {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active != nil {
		s.log.Debug("cycling event stream connection")
		active.Close()
	}
}

// OnEvent implements Sink.
func (s *Supervisor) OnEvent(payload map[string]any) {
	s.dispatch(payload)
}

// OnConnected implements Sink.
func (s *Supervisor) OnConnected() {
	s.mu.Lock()
	reconnected := s.everConnected
	s.everConnected = true
	if s.state != StateConnected {
		s.state = StateConnected
		close(s.connectedCh)
	}
	onReconnect := s.onReconnect
	s.mu.Unlock()

	s.log.Info("event stream connected")
	if reconnected && onReconnect != nil {
		async.Run(onReconnect)
	}
}
