// Package stream keeps exactly one realtime event connection alive for the
// lifetime of the client.
//
// The Supervisor runs a single background goroutine through an explicit state
// machine (Disconnected, Authenticating, Connecting, Connected, Stopping):
// it re-runs the login callback until authenticated, then hands the
// connection to the selected Transport's blocking receive loop. When that
// loop exits for any reason (error, forced close, server logout, malformed
// push decode) the supervisor discards all pending transactions, drops back
// to Authenticating and goes around again until stopped.
//
// Two interchangeable transports exist: an MQTT client subscribing to the
// per-user and device-advertised topics, and a server-sent-events stream
// over a single long-lived HTTP connection. With automatic selection the
// MQTT transport is chosen only when at least one device advertises an MQTT
// topic; an endpoint advertised by the session bootstrap overrides the
// selection outright.
//
// The decode-failure policy is asymmetric on purpose: a malformed MQTT
// payload aborts the connection (decode failures there indicate a broken
// session, not a broken message), while a malformed SSE line is a
// message-level fault, logged and skipped without ending the loop.
// Transport-level control messages never reach the dispatcher.
package stream
