package session

// Session holds the identity captured by a successful login. A Session is
// either fully populated or not consulted at all; partial sessions are never
// persisted.
type Session struct {
	UserID          string `json:"user_id"`
	WebID           string `json:"web_id"`
	SubID           string `json:"sub_id"`
	Token           string `json:"token"`
	ExpiresIn       int64  `json:"expires_in"`
	BrowserAuthCode string `json:"browser_auth_code,omitempty"`
	DeviceID        string `json:"device_id,omitempty"`
}

// IsComplete reports whether all identity fields required to resume a session
// are present. BrowserAuthCode and DeviceID are optional.
func (s Session) IsComplete() bool {
	return s.UserID != "" && s.WebID != "" && s.SubID != "" && s.Token != ""
}
