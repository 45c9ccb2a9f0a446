package async

import (
	"sync"
	"time"
)

// Run executes fn on its own goroutine. Panics are recovered and discarded so
// a faulty callback cannot abort the caller's event loop.
func Run(fn func()) {
	go func() {
		defer func() {
			_ = recover()
		}()
		fn()
	}()
}

// Ticker is a handle to a periodic task started with RunEvery.
type Ticker struct {
	stop chan struct{}
	once sync.Once
}

// Stop terminates the periodic task. Safe to call multiple times.
func (t *Ticker) Stop() {
	t.once.Do(func() {
		close(t.stop)
	})
}

// RunEvery runs fn every interval until the returned Ticker is stopped.
// The first invocation happens one full interval after the call.
func RunEvery(interval time.Duration, fn func()) *Ticker {
	t := &Ticker{stop: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				func() {
					defer func() {
						_ = recover()
					}()
					fn()
				}()
			}
		}
	}()

	return t
}
