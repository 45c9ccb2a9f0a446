package async_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/camkit/arlo/pkg/async"
)

func TestRunSurvivesPanic(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	async.Run(func() {
		defer close(done)
		panic("callback blew up")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run goroutine did not finish")
	}
}

func TestRunExecutesFunction(t *testing.T) {
	t.Parallel()

	done := make(chan int, 1)
	async.Run(func() {
		done <- 42
	})

	select {
	case v := <-done:
		if v != 42 {
			t.Errorf("unexpected value %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not execute function")
	}
}

func TestRunEvery(t *testing.T) {
	t.Parallel()

	var count atomic.Int32
	ticker := async.RunEvery(10*time.Millisecond, func() {
		count.Add(1)
	})
	defer ticker.Stop()

	time.Sleep(100 * time.Millisecond)
	if got := count.Load(); got < 2 {
		t.Errorf("expected at least 2 ticks, got %d", got)
	}
}

func TestRunEveryStop(t *testing.T) {
	t.Parallel()

	var count atomic.Int32
	ticker := async.RunEvery(10*time.Millisecond, func() {
		count.Add(1)
	})

	time.Sleep(50 * time.Millisecond)
	ticker.Stop()
	ticker.Stop() // idempotent

	settled := count.Load()
	time.Sleep(50 * time.Millisecond)
	if got := count.Load(); got != settled {
		t.Errorf("ticks continued after Stop: %d -> %d", settled, got)
	}
}
