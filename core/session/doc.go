// Package session persists the minimal identity needed to resume a cloud
// session between runs: ids, bearer token, device fingerprint and the optional
// browser pairing code, keyed by account name.
//
// Sessions live in a single JSON file holding a versioned multi-account
// container:
//
//	{
//	  "version": "2",
//	  "user@example.com": {
//	    "user_id": "...",
//	    "web_id": "...",
//	    "sub_id": "...",
//	    "token": "...",
//	    "expires_in": 1234567890,
//	    "browser_auth_code": "...",
//	    "device_id": "..."
//	  }
//	}
//
// Legacy version-1 files (a single flat session object with no version key)
// are migrated transparently on first load, preserving the existing data under
// the loading account's key.
//
// The store is deliberately forgiving: a missing or corrupt file yields an
// absent session and a fresh container rather than an error, because a session
// can always be re-established by logging in again.
//
// Usage:
//
//	store := session.NewFileStore("/var/lib/arlo/session.json")
//	if sess, ok := store.Load("user@example.com"); ok {
//		// resume with sess.Token
//	}
package session
