package session

import "errors"

var (
	// ErrIncompleteSession is returned when saving a session that is missing
	// identity fields. Sessions are persisted whole or not at all.
	ErrIncompleteSession = errors.New("session is missing identity fields")
)
