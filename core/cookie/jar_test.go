package cookie_test

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camkit/arlo/core/cookie"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestJarRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cookies.json")
	u := mustURL(t, "https://ocapi-app.arlo.com/api/auth")

	jar, err := cookie.NewJar(path)
	require.NoError(t, err)

	jar.SetCookies(u, []*http.Cookie{
		{Name: "trust", Value: "abc123", Expires: time.Now().Add(24 * time.Hour)},
	})
	require.NoError(t, jar.Save())

	reloaded, err := cookie.NewJar(path)
	require.NoError(t, err)

	got := reloaded.Cookies(u)
	require.Len(t, got, 1)
	assert.Equal(t, "trust", got[0].Name)
	assert.Equal(t, "abc123", got[0].Value)
}

func TestJarMissingFile(t *testing.T) {
	t.Parallel()

	jar, err := cookie.NewJar(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, jar.Cookies(mustURL(t, "https://ocapi-app.arlo.com/")))
}

func TestJarCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cookies.json")
	require.NoError(t, os.WriteFile(path, []byte("???"), 0o600))

	jar, err := cookie.NewJar(path)
	require.NoError(t, err)
	assert.Empty(t, jar.Cookies(mustURL(t, "https://ocapi-app.arlo.com/")))
}

func TestJarDropsExpiredOnLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cookies.json")
	u := mustURL(t, "https://ocapi-app.arlo.com/")

	jar, err := cookie.NewJar(path)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{
		{Name: "stale", Value: "x", Expires: time.Now().Add(-time.Hour)},
	})
	require.NoError(t, jar.Save())

	reloaded, err := cookie.NewJar(path)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Cookies(u))
}
