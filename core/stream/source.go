package stream

import (
	"bufio"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// EventSource yields the data portion of successive server-sent events.
// Next blocks until an event arrives and returns io.EOF-style errors when
// the stream ends; Close interrupts a blocked Next.
type EventSource interface {
	Next() (string, error)
	Close() error
}

// SourceFactory opens an EventSource for one connection attempt. Tests
// substitute their own factory; production wires OpenHTTPSource.
type SourceFactory func() (EventSource, error)

// httpSource reads server-sent events off a single long-lived HTTP response.
// Only the data field is surfaced; comments, event names and ids are skipped.
type httpSource struct {
	resp    *http.Response
	scanner *bufio.Scanner

	mu     sync.Mutex
	closed bool
}

// OpenHTTPSource issues the subscribe request and wraps the response body as
// an EventSource. The headers callback is evaluated at open time so rotated
// tokens are picked up on reconnect.
func OpenHTTPSource(client *http.Client, url string, headers func() map[string]string) (EventSource, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("subscribe request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if headers != nil {
		for k, v := range headers() {
			req.Header.Set(k, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("subscribe: unexpected status %d", resp.StatusCode)
	}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &httpSource{resp: resp, scanner: scanner}, nil
}

// Next returns the next event's data payload. Multi-line data fields are
// joined with newlines per the SSE framing rules.
func (s *httpSource) Next() (string, error) {
	var data []string
	for s.scanner.Scan() {
		line := s.scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				return strings.Join(data, "\n"), nil
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			// Comment or non-data field, skip.
		}
	}
	if err := s.scanner.Err(); err != nil {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return "", ErrClosed
		}
		return "", err
	}
	if len(data) > 0 {
		return strings.Join(data, "\n"), nil
	}
	return "", ErrClosed
}

// Close shuts the response body down, waking a blocked Next.
func (s *httpSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.resp.Body.Close()
}
