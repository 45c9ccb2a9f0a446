package stream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/camkit/arlo/pkg/logger"
)

// SSE is a single-use server-sent-events transport.
type SSE struct {
	open SourceFactory
	log  *slog.Logger

	// timeout closes the connection when no event arrives within the
	// window. Zero disables the inactivity check.
	timeout time.Duration

	mu     sync.Mutex
	src    EventSource
	closed bool
}

// NewSSE builds an SSE transport for one connection attempt. The inactivity
// timeout forces a reconnect through the supervisor when the stream goes
// quiet for longer than the given window.
func NewSSE(open SourceFactory, timeout time.Duration, log *slog.Logger) *SSE {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SSE{open: open, timeout: timeout, log: log}
}

// Run implements Transport. The connection is considered live only once the
// server sends its connected control packet; a logout control packet ends
// the loop so the supervisor reconnects. Undecodable events are dropped.
func (s *SSE) Run(ctx context.Context, sink Sink) error {
	src, err := s.open()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		src.Close()
		return ErrClosed
	}
	s.src = src
	s.mu.Unlock()
	defer src.Close()

	stop := context.AfterFunc(ctx, func() { src.Close() })
	defer stop()

	var idle *time.Timer
	if s.timeout > 0 {
		idle = time.AfterFunc(s.timeout, func() {
			s.log.Warn("event stream idle, forcing reconnect",
				logger.Duration("timeout", s.timeout))
			src.Close()
		})
		defer idle.Stop()
	}

	for {
		data, err := src.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if idle != nil {
			idle.Reset(s.timeout)
		}

		// Malformed lines are message-level faults on this transport: drop
		// the event and keep reading.
		var payload map[string]any
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			s.log.Warn("undecodable stream event, skipping", logger.Error(err))
			continue
		}

		if status, _ := payload["status"].(string); status == "connected" {
			sink.OnConnected()
			continue
		}
		if action, _ := payload["action"].(string); action == "logout" {
			return ErrLoggedOut
		}
		sink.OnEvent(payload)
	}
}

// Close implements Transport.
func (s *SSE) Close() {
	s.mu.Lock()
	s.closed = true
	src := s.src
	s.mu.Unlock()
	if src != nil {
		src.Close()
	}
}
