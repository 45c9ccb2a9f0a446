package stream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camkit/arlo/core/stream"
)

// queueSource feeds a fixed script of raw event payloads.
type queueSource struct {
	mu     sync.Mutex
	events []string
	closed chan struct{}
	once   sync.Once
}

func newQueueSource(events ...string) *queueSource {
	return &queueSource{events: events, closed: make(chan struct{})}
}

func (s *queueSource) Next() (string, error) {
	s.mu.Lock()
	if len(s.events) > 0 {
		ev := s.events[0]
		s.events = s.events[1:]
		s.mu.Unlock()
		return ev, nil
	}
	s.mu.Unlock()
	<-s.closed
	return "", stream.ErrClosed
}

func (s *queueSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// recordingSink captures what a transport hands to the supervisor.
type recordingSink struct {
	mu        sync.Mutex
	events    []map[string]any
	connected bool
}

func (s *recordingSink) OnEvent(payload map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, payload)
}

func (s *recordingSink) OnConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
}

func (s *recordingSink) snapshot() ([]map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.events...), s.connected
}

func TestSSEDeliversEventsAfterConnected(t *testing.T) {
	t.Parallel()

	src := newQueueSource(
		`{"status":"connected"}`,
		`{"resource":"cameras/CAM1","properties":{"batteryLevel":90}}`,
	)
	transport := stream.NewSSE(func() (stream.EventSource, error) { return src, nil }, 0, nil)
	sink := &recordingSink{}

	done := make(chan error, 1)
	go func() { done <- transport.Run(context.Background(), sink) }()

	require.Eventually(t, func() bool {
		events, connected := sink.snapshot()
		return connected && len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)

	events, _ := sink.snapshot()
	assert.Equal(t, "cameras/CAM1", events[0]["resource"])

	transport.Close()
	assert.ErrorIs(t, <-done, stream.ErrClosed)
}

func TestSSELogoutEndsLoop(t *testing.T) {
	t.Parallel()

	src := newQueueSource(
		`{"status":"connected"}`,
		`{"action":"logout"}`,
	)
	transport := stream.NewSSE(func() (stream.EventSource, error) { return src, nil }, 0, nil)

	err := transport.Run(context.Background(), &recordingSink{})
	assert.ErrorIs(t, err, stream.ErrLoggedOut)
}

func TestSSESkipsMalformedEvents(t *testing.T) {
	t.Parallel()

	src := newQueueSource(
		`{"status":"connected"}`,
		`not json at all`,
		`{"resource":"modes","properties":{"active":"mode1"}}`,
	)
	transport := stream.NewSSE(func() (stream.EventSource, error) { return src, nil }, 0, nil)
	sink := &recordingSink{}

	done := make(chan error, 1)
	go func() { done <- transport.Run(context.Background(), sink) }()

	// The malformed line is dropped without ending the loop; the following
	// event still arrives.
	require.Eventually(t, func() bool {
		events, _ := sink.snapshot()
		return len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)

	events, _ := sink.snapshot()
	assert.Equal(t, "modes", events[0]["resource"])

	transport.Close()
	assert.ErrorIs(t, <-done, stream.ErrClosed)
}

func TestSSEIdleTimeoutForcesExit(t *testing.T) {
	t.Parallel()

	src := newQueueSource(`{"status":"connected"}`)
	transport := stream.NewSSE(func() (stream.EventSource, error) { return src, nil }, 50*time.Millisecond, nil)

	done := make(chan error, 1)
	go func() { done <- transport.Run(context.Background(), &recordingSink{}) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, stream.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("idle timeout did not end the loop")
	}
}

func TestHTTPSourceParsesEvents(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"status\":\"connected\"}\n\n"))
		w.Write([]byte(": keep-alive comment\n"))
		w.Write([]byte("data: {\"resource\":\n"))
		w.Write([]byte("data: \"modes\"}\n\n"))
	}))
	defer srv.Close()

	src, err := stream.OpenHTTPSource(srv.Client(), srv.URL, func() map[string]string {
		return map[string]string{"Authorization": "Bearer tok"}
	})
	require.NoError(t, err)
	defer src.Close()

	first, err := src.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"connected"}`, first)

	second, err := src.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"resource":"modes"}`, second)

	_, err = src.Next()
	assert.Error(t, err)
}

func TestHTTPSourceRejectsBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := stream.OpenHTTPSource(srv.Client(), srv.URL, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSelectTransport(t *testing.T) {
	t.Parallel()

	topics := []string{"d/E0/ABC/out"}

	assert.Equal(t, stream.KindMQTT, stream.Select(stream.KindAuto, topics, ""))
	assert.Equal(t, stream.KindSSE, stream.Select(stream.KindAuto, nil, ""))
	assert.Equal(t, stream.KindSSE, stream.Select(stream.KindSSE, topics, ""))
	assert.Equal(t, stream.KindMQTT, stream.Select(stream.KindMQTT, nil, ""))

	// A bootstrap-advertised endpoint overrides everything.
	assert.Equal(t, stream.KindMQTT, stream.Select(stream.KindSSE, nil, "wss://mqtt.example.com"))
}
