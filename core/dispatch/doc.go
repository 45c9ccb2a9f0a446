// Package dispatch classifies decoded push events, routes them to subscriber
// callbacks, and correlates them with in-flight requests.
//
// The wire protocol has no single envelope shape: depending on the packet,
// the originating device may be named in the resource path, a "from" field,
// a map key, or one of several id fields. Classification is therefore an
// ordered rule table (first match wins) rather than a schema; see Classifier.
//
// Routing and correlation are independent: every payload is offered to the
// callback registry and, separately, to the pending-transaction table. The
// correlator turns the asynchronous push protocol into an optionally
// synchronous call:
//
//	key := d.Register(tid)
//	// ... issue the request that will provoke the event ...
//	if event, ok := d.Await(key, 30*time.Second); ok {
//		// event is the correlated payload
//	}
//
// Subscriber callbacks are invoked fire-and-forget on their own goroutines;
// there is no ordering guarantee across subscribers and no guarantee a
// callback finishes before the next event is processed.
package dispatch
