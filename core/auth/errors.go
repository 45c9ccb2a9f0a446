package auth

import "errors"

var (
	// ErrCredentialsRejected is returned when the auth service answers an
	// explicit unauthorized. Retrying with the same credentials is pointless.
	ErrCredentialsRejected = errors.New("credentials rejected")
	// ErrNoSecondFactor is returned when no advertised second factor matches
	// the configured type.
	ErrNoSecondFactor = errors.New("no matching second factor available")
	// ErrValidationFailed is returned when the freshly issued token fails the
	// validation endpoint.
	ErrValidationFailed = errors.New("token validation failed")
	// ErrPairingFailed is returned when the pairing endpoint rejects the
	// browser auth code.
	ErrPairingFailed = errors.New("device pairing failed")
	// ErrBootstrapFailed is returned when the post-login session resource
	// call fails.
	ErrBootstrapFailed = errors.New("session bootstrap failed")
	// ErrLoginFailed is the generic failure after every negotiation
	// candidate has been exhausted.
	ErrLoginFailed = errors.New("login failed")
)
