// Package rest issues authenticated HTTP calls against the cloud API and
// normalizes its two historical response envelope shapes into a single
// (status, body) result.
//
// Non-auth calls get a freshly generated transaction identifier injected into
// both the URL ("eventId" and "time" query parameters) and the
// "x-transaction-id" header; the same identifier later correlates the
// asynchronous push event the call provokes.
//
// Request construction is serialized by a narrow internal lock so concurrent
// callers never interleave against the shared header state, but the physical
// round-trips themselves run in parallel.
//
// Failures are deliberately soft: transport errors, non-200 statuses and
// malformed bodies all map to a generic failure status with a nil body, in
// line with the upstream protocol where the caller's recovery is always
// "log in again and retry".
package rest
