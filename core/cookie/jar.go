package cookie

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Jar is a persistent cookie jar. It satisfies http.CookieJar and can rewrite
// its backing file with Save.
type Jar struct {
	path string

	mu      sync.Mutex
	jar     *cookiejar.Jar
	entries map[string]map[string]persistedCookie
}

type persistedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

// NewJar creates a jar backed by the JSON file at path. The file is loaded if
// present; absence or corruption leaves the jar empty.
func NewJar(path string) (*Jar, error) {
	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie: new jar: %w", err)
	}

	j := &Jar{
		path:    path,
		jar:     inner,
		entries: make(map[string]map[string]persistedCookie),
	}
	j.load()
	return j, nil
}

// SetCookies records cookies for later persistence and stores them in the
// underlying jar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	key := origin(u)
	byName, ok := j.entries[key]
	if !ok {
		byName = make(map[string]persistedCookie)
		j.entries[key] = byName
	}
	for _, c := range cookies {
		byName[c.Name] = persistedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
	}
	j.mu.Unlock()

	j.jar.SetCookies(u, cookies)
}

// Cookies returns the cookies to send in a request to u.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// Save rewrites the backing file with every cookie the jar has recorded.
func (j *Jar) Save() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	raw, err := json.Marshal(j.entries)
	if err != nil {
		return fmt.Errorf("cookie: marshal: %w", err)
	}
	if err := os.WriteFile(j.path, raw, 0o600); err != nil {
		return fmt.Errorf("cookie: write %s: %w", j.path, err)
	}
	return nil
}

func (j *Jar) load() {
	raw, err := os.ReadFile(j.path)
	if err != nil {
		return
	}

	var entries map[string]map[string]persistedCookie
	if err := json.Unmarshal(raw, &entries); err != nil {
		return
	}

	now := time.Now()
	for key, byName := range entries {
		u, err := url.Parse(key)
		if err != nil || u.Host == "" {
			continue
		}
		cookies := make([]*http.Cookie, 0, len(byName))
		for _, pc := range byName {
			if !pc.Expires.IsZero() && pc.Expires.Before(now) {
				continue
			}
			cookies = append(cookies, &http.Cookie{
				Name:     pc.Name,
				Value:    pc.Value,
				Path:     pc.Path,
				Domain:   pc.Domain,
				Expires:  pc.Expires,
				Secure:   pc.Secure,
				HttpOnly: pc.HTTPOnly,
			})
		}
		if len(cookies) == 0 {
			continue
		}
		j.entries[key] = byName
		j.jar.SetCookies(u, cookies)
	}
}

func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
