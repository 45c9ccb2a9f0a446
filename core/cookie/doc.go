// Package cookie provides an http.CookieJar with JSON persistence to disk.
//
// The cloud auth endpoints hand out device-trust cookies during pairing;
// keeping them between runs is what lets a paired client skip the two-factor
// challenge on the next login. The jar wraps net/http/cookiejar, records every
// cookie it is handed, and can rewrite the backing file on demand:
//
//	jar, err := cookie.NewJar("/var/lib/arlo/cookies.json")
//	if err != nil { ... }
//	client := &http.Client{Jar: jar}
//	// ... after a pairing exchange:
//	_ = jar.Save()
//
// A missing or unreadable backing file is tolerated; the jar simply starts
// empty. Expired cookies are filtered out when the file is loaded.
package cookie
