// Package async provides the background execution utilities used by the
// client: panic-guarded fire-and-forget goroutines, error-only futures, and
// periodic tasks.
//
// # Fire-and-forget
//
// Run executes a function on its own goroutine and swallows panics so a
// misbehaving subscriber callback cannot take down the event pipeline:
//
//	async.Run(func() {
//		subscriber(resource, event)
//	})
//
// # Futures
//
// Exec executes a function asynchronously and returns an ExecFuture that can
// be awaited, optionally with a timeout:
//
//	future := async.Exec(ctx, req, send)
//	if err := future.AwaitWithTimeout(5 * time.Second); err != nil {
//		log.Println("send did not finish in time")
//	}
//
// # Periodic tasks
//
// RunEvery runs a function on a fixed interval until the returned Ticker is
// stopped. The client uses it to force periodic reconnects of the long-lived
// event stream:
//
//	t := async.RunEvery(30*time.Minute, transport.Close)
//	defer t.Stop()
//
// # Concurrency Safety
//
// All operations are safe for concurrent use. ExecFuture uses sync.Once
// internally to prevent race conditions on completion.
package async
