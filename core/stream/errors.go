package stream

import "errors"

var (
	// ErrLoggedOut reports a server-initiated logout control packet. The
	// supervisor treats the session as externally invalidated and goes
	// back through the login callback.
	ErrLoggedOut = errors.New("stream: logged out by server")

	// ErrDecode reports a push payload that could not be decoded.
	ErrDecode = errors.New("stream: payload decode failed")

	// ErrClosed reports a transport that was closed locally.
	ErrClosed = errors.New("stream: transport closed")
)
