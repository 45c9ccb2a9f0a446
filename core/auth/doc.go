// Package auth drives the login state machine against the cloud auth
// service: credentials, the optional two-factor sub-flow, device pairing,
// token validation and the session bootstrap call.
//
// The flow, in order:
//
//  1. Submit credentials (bounded retry with fixed backoff while the service
//     answers with neither ok nor unauthorized).
//  2. If the service reports authentication complete, done.
//  3. Otherwise pick a second factor: the browser pairing factor when the
//     service offers one directly, else the configured factor type/nickname
//     from the advertised factor list.
//  4. Push factors are confirmed by polling the finish endpoint; every other
//     factor type obtains a one-time code from the configured Provider.
//  5. Validate the token, submit the browser pairing code (cookies are saved
//     either way), persist the session, and bootstrap the session resource.
//
// A transient failure surfaces as OutcomeRetryable: the outer loop in Login
// rebuilds the HTTP transport with the next ECDH curve preference and runs
// the whole flow again, exhausting the configured candidate list before
// giving up. Bad credentials and exhausted factor choices are OutcomeFatal
// and abort immediately.
//
// Second-factor code providers are a closed set (console, mailbox, REST
// relay) implementing the Provider interface; they are selected by
// configuration, never probed.
package auth
