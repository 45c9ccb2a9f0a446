// Package arlo is a client for the Arlo camera cloud's private web API.
//
// The package wires the whole pipeline together: browser-shaped
// authentication with ECDH curve negotiation and second-factor support, a
// persisted multi-account session file, a cookie jar shared with the auth
// exchanges, a request executor speaking the cloud's response envelope, an
// event dispatcher correlating push events with in-flight requests, and a
// self-healing realtime event stream over MQTT or SSE.
//
// Typical use:
//
//	cfg, err := arlo.LoadConfig()
//	if err != nil { ... }
//	client, err := arlo.New(ctx, cfg)
//	if err != nil { ... }
//	defer client.Stop()
//
//	client.AddAnyListener(func(resource string, event any) { ... })
//	client.StartMonitoring()
//
// Device modelling is intentionally out of scope: the package exposes raw
// routed events plus the Notify/Post/Get/Put calls higher layers build
// device abstractions on.
package arlo
