package arlo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(t *testing.T, w http.ResponseWriter, data any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"meta": map[string]any{"code": 200},
		"data": data,
	}))
}

// newTestClient stands up a fake cloud (auth host and API host collapsed
// onto one server), registers extra handlers, and logs a client in.
func newTestClient(t *testing.T, extra func(mux *http.ServeMux), cfgEdits ...func(*Config)) *Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			return
		}
		writeEnvelope(t, w, map[string]any{
			"token":         "tok-1",
			"userId":        "USER1",
			"authCompleted": true,
			"expiresIn":     float64(3600),
		})
	})
	mux.HandleFunc("/api/validateAccessToken", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, map[string]any{"valid": true})
	})
	mux.HandleFunc("/hmsweb/users/session/v2", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, map[string]any{"supportsMultiLocation": true})
	})
	mux.HandleFunc(devicesPath, func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(t, w, []any{
			map[string]any{
				"deviceId": "CAM1",
				"uniqueId": "USER1_CAM1",
				"xCloudId": "XC1",
				"allowedMqttTopics": []any{
					"d/E0/XC1/out/cameras/CAM1",
				},
			},
			map[string]any{"modelId": "orphan record without an id"},
		})
	})
	if extra != nil {
		extra(mux)
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := Config{
		Username:       "user@example.com",
		Password:       "hunter2",
		Host:           srv.URL,
		AuthHost:       srv.URL,
		SessionFile:    filepath.Join(dir, "session.json"),
		CookieFile:     filepath.Join(dir, "cookies.json"),
		SaveSession:    false,
		RequestTimeout: 5 * time.Second,
		ECDHCurves:     []string{"x25519"},
		UserAgent:      "!test-agent",
	}
	for _, edit := range cfgEdits {
		edit(&cfg)
	}

	client, err := New(context.Background(), cfg)
	require.NoError(t, err)
	return client
}

func TestNewLogsInAndLoadsCatalog(t *testing.T) {
	c := newTestClient(t, nil)

	sess := c.Session()
	assert.Equal(t, "USER1", sess.UserID)
	assert.Equal(t, "USER1_web", sess.WebID)
	assert.Equal(t, "tok-1", sess.Token)
	assert.True(t, c.MultiLocation())

	devices := c.Devices()
	require.Len(t, devices, 1, "records without a device id are skipped")
	assert.Equal(t, "CAM1", devices[0].DeviceID)
	assert.Equal(t, "XC1", devices[0].XCloudID)
	assert.Equal(t, []string{"d/E0/XC1/out/cameras/CAM1"}, devices[0].MQTTTopics)
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNotifyWaitEvent(t *testing.T) {
	tids := make(chan string, 1)
	c := newTestClient(t, func(mux *http.ServeMux) {
		mux.HandleFunc(notifyPath+"CAM1", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "XC1", r.Header.Get("xcloudId"))
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "CAM1", body["to"])
			assert.Equal(t, "USER1_web", body["from"])
			tid, _ := body["transId"].(string)
			tids <- tid
			writeEnvelope(t, w, map[string]any{})
		})
	})

	device := c.Devices()[0]
	go func() {
		tid := <-tids
		c.Inject(map[string]any{
			"transId":    tid,
			"resource":   "cameras/CAM1",
			"properties": map[string]any{"privacyActive": false},
		})
	}()

	event, ok := c.Notify(context.Background(), device,
		map[string]any{"action": "set", "resource": "cameras/CAM1"},
		2*time.Second, WaitEvent)
	require.True(t, ok)
	assert.Equal(t, "cameras/CAM1", event["resource"])
}

func TestNotifyWaitEventTimesOut(t *testing.T) {
	c := newTestClient(t, func(mux *http.ServeMux) {
		mux.HandleFunc(notifyPath+"CAM1", func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(t, w, map[string]any{})
		})
	})

	_, ok := c.Notify(context.Background(), c.Devices()[0],
		map[string]any{"action": "get"}, 50*time.Millisecond, WaitEvent)
	assert.False(t, ok)
}

func TestNotifyWaitResponse(t *testing.T) {
	c := newTestClient(t, func(mux *http.ServeMux) {
		mux.HandleFunc(notifyPath+"CAM1", func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(t, w, map[string]any{})
		})
	})

	_, ok := c.Notify(context.Background(), c.Devices()[0],
		map[string]any{"action": "get"}, 0, WaitResponse)
	assert.True(t, ok)
}

func TestNotifyDefaultIsFireAndForget(t *testing.T) {
	delivered := make(chan struct{}, 1)
	c := newTestClient(t, func(mux *http.ServeMux) {
		mux.HandleFunc(notifyPath+"CAM1", func(w http.ResponseWriter, _ *http.Request) {
			delivered <- struct{}{}
			writeEnvelope(t, w, map[string]any{})
		})
	})

	_, ok := c.Notify(context.Background(), c.Devices()[0],
		map[string]any{"action": "set"}, 0, WaitDefault)
	assert.True(t, ok, "fire-and-forget reports success immediately")

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("background notify never reached the server")
	}
}

func TestPostWaitResource(t *testing.T) {
	posted := make(chan struct{}, 1)
	c := newTestClient(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/hmsweb/users/automation/active", func(w http.ResponseWriter, _ *http.Request) {
			posted <- struct{}{}
			writeEnvelope(t, w, map[string]any{})
		})
	})

	go func() {
		<-posted
		c.Inject(map[string]any{
			"resource":          "activeAutomations",
			"activeAutomations": []any{map[string]any{"uniqueId": "USER1_CAM1"}},
		})
	}()

	event, ok := c.Post(context.Background(), "/hmsweb/users/automation/active",
		map[string]any{"activeAutomations": map[string]any{"mode": "armed"}},
		2*time.Second, WaitResource)
	require.True(t, ok)
	payload, ok := event.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "activeAutomations", payload["resource"])
}

func TestPostWaitResourceTimesOut(t *testing.T) {
	c := newTestClient(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/hmsweb/users/automation/active", func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(t, w, map[string]any{})
		})
	})

	_, ok := c.Post(context.Background(), "/hmsweb/users/automation/active",
		map[string]any{"activeAutomations": map[string]any{}},
		50*time.Millisecond, WaitResource)
	assert.False(t, ok)
}

func TestPostWaitResponseReturnsBody(t *testing.T) {
	c := newTestClient(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/hmsweb/users/locations", func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(t, w, map[string]any{"locationId": "L1"})
		})
	})

	body, ok := c.Post(context.Background(), "/hmsweb/users/locations",
		map[string]any{"name": "home"}, 0, WaitDefault)
	require.True(t, ok)
	assert.Equal(t, "L1", body.(map[string]any)["locationId"])
}

func TestBackgroundCallsReturnAwaitableFuture(t *testing.T) {
	c := newTestClient(t, func(mux *http.ServeMux) {
		mux.HandleFunc("/hmsweb/users/library/metadata", func(w http.ResponseWriter, _ *http.Request) {
			writeEnvelope(t, w, map[string]any{})
		})
	})

	fut := c.GetBackground("/hmsweb/users/library/metadata")
	require.NoError(t, fut.AwaitWithTimeout(2*time.Second))
	assert.True(t, fut.IsComplete())

	// Unknown paths surface as an error on the future, not a panic or a
	// silent drop.
	fut = c.PutBackground("/hmsweb/no-such-path", map[string]any{"a": 1})
	require.Error(t, fut.AwaitWithTimeout(2*time.Second))
}

func TestListenersRouteInjectedEvents(t *testing.T) {
	c := newTestClient(t, nil)
	device := c.Devices()[0]

	events := make(chan any, 2)
	c.AddListener(device, func(_ string, event any) {
		events <- event
	})

	c.Inject(map[string]any{
		"resource":   "cameras/CAM1",
		"properties": map[string]any{"serialNumber": "CAM1", "batteryLevel": 77},
	})

	select {
	case event := <-events:
		props := event.(map[string]any)["properties"].(map[string]any)
		assert.EqualValues(t, 77, props["batteryLevel"])
	case <-time.After(2 * time.Second):
		t.Fatal("listener never fired")
	}

	// DelListener is a deliberate no-op: the subscription survives.
	c.DelListener(device, nil)
	c.Inject(map[string]any{
		"resource":   "cameras/CAM1",
		"properties": map[string]any{"serialNumber": "CAM1", "batteryLevel": 75},
	})
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("listener removed despite no-op contract")
	}
}

func TestStartMonitoringOverSSE(t *testing.T) {
	c := newTestClient(t, func(mux *http.ServeMux) {
		mux.HandleFunc(subscribePath, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "tok-1", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "text/event-stream")
			fl := w.(http.Flusher)
			w.Write([]byte("data: {\"status\":\"connected\"}\n\n"))
			fl.Flush()
			w.Write([]byte("data: {\"resource\":\"cameras/CAM1\",\"properties\":{\"motionDetected\":true}}\n\n"))
			fl.Flush()
			<-r.Context().Done()
		})
	}, func(cfg *Config) {
		cfg.EventBackend = "sse"
	})

	events := make(chan any, 1)
	c.AddAnyListener(func(_ string, event any) {
		events <- event
	})

	require.True(t, c.StartMonitoring())
	assert.True(t, c.Connected())

	select {
	case event := <-events:
		payload := event.(map[string]any)
		assert.Equal(t, "cameras/CAM1", payload["resource"])
	case <-time.After(2 * time.Second):
		t.Fatal("streamed event never routed")
	}

	c.Stop()
	assert.False(t, c.Connected())
}

func TestLogout(t *testing.T) {
	loggedOut := false
	c := newTestClient(t, func(mux *http.ServeMux) {
		mux.HandleFunc(logoutPath, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			loggedOut = true
			writeEnvelope(t, w, map[string]any{})
		})
	})

	require.NoError(t, c.Logout(context.Background()))
	assert.True(t, loggedOut)
}

func TestParseCurves(t *testing.T) {
	t.Parallel()

	curves := parseCurves([]string{"x25519", "P-256", "p384", "bogus"})
	assert.Len(t, curves, 3)
}

func TestFirstKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "activeAutomations", firstKey(map[string]any{"activeAutomations": 1}))
	assert.Equal(t, "", firstKey(nil))
}
