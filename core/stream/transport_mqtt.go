package stream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/camkit/arlo/pkg/logger"
)

const (
	mqttConnectTimeout = 30 * time.Second
	mqttDisconnectMs   = 250
)

// MQTTConfig carries everything one MQTT connection attempt needs. Token is
// read at construction time, so a factory building a fresh config per
// attempt naturally picks up rotated credentials.
type MQTTConfig struct {
	Host string
	Port int

	// UserID doubles as the MQTT username; Token is the password.
	UserID string
	Token  string

	// DeviceTopics are the per-device topics advertised through the device
	// catalog. The per-user session and library topics are always added.
	DeviceTopics []string

	// Origin is sent as the websocket handshake Origin header.
	Origin string

	// CheckHostname disables TLS hostname verification when false; some
	// broker clusters present certificates that do not match the endpoint.
	CheckHostname bool
}

// MQTT is a single-use MQTT transport over websockets.
type MQTT struct {
	cfg MQTTConfig
	log *slog.Logger

	mu     sync.Mutex
	client mqtt.Client
	fail   chan error
	once   sync.Once
}

// NewMQTT builds an MQTT transport for one connection attempt.
func NewMQTT(cfg MQTTConfig, log *slog.Logger) *MQTT {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &MQTT{cfg: cfg, log: log, fail: make(chan error, 1)}
}

// userTopics are always subscribed alongside the device-advertised topics.
func userTopics(userID string) []string {
	return []string{
		"u/" + userID + "/in/userSession/connect",
		"u/" + userID + "/in/userSession/disconnect",
		"u/" + userID + "/in/library/add",
		"u/" + userID + "/in/library/update",
		"u/" + userID + "/in/library/remove",
	}
}

// clientID builds the per-connection client identifier. A random suffix
// keeps concurrent sessions for the same account from evicting each other.
func clientID(userID string) string {
	return fmt.Sprintf("user_%s_%010d", userID, rand.Int63n(1e10))
}

// Run implements Transport. It connects, subscribes, reports readiness and
// then blocks until the connection is lost or Close interrupts it.
func (m *MQTT) Run(ctx context.Context, sink Sink) error {
	broker := fmt.Sprintf("wss://%s:%d/mqtt", m.cfg.Host, m.cfg.Port)

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID(m.cfg.UserID)).
		SetUsername(m.cfg.UserID).
		SetPassword(m.cfg.Token).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectTimeout(mqttConnectTimeout).
		SetTLSConfig(&tls.Config{InsecureSkipVerify: !m.cfg.CheckHostname})
	if m.cfg.Origin != "" {
		opts.SetHTTPHeaders(http.Header{"Origin": []string{m.cfg.Origin}})
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.failWith(err)
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if err := m.subscribe(c, sink); err != nil {
			m.failWith(err)
			return
		}
		sink.OnConnected()
	})

	client := mqtt.NewClient(opts)
	m.mu.Lock()
	m.client = client
	m.mu.Unlock()

	m.log.Debug("connecting event broker",
		slog.String("broker", broker),
		logger.Device(m.cfg.UserID))
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	select {
	case <-ctx.Done():
		client.Disconnect(mqttDisconnectMs)
		return ctx.Err()
	case err := <-m.fail:
		client.Disconnect(mqttDisconnectMs)
		return err
	}
}

// Close implements Transport.
func (m *MQTT) Close() {
	m.failWith(ErrClosed)
}

func (m *MQTT) failWith(err error) {
	m.once.Do(func() {
		if err == nil {
			err = ErrClosed
		}
		m.fail <- err
	})
}

func (m *MQTT) subscribe(c mqtt.Client, sink Sink) error {
	filters := make(map[string]byte)
	for _, topic := range userTopics(m.cfg.UserID) {
		filters[topic] = 0
	}
	for _, topic := range m.cfg.DeviceTopics {
		if topic != "" {
			filters[topic] = 0
		}
	}
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		m.handleMessage(msg, sink)
	}
	if token := c.SubscribeMultiple(filters, handler); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	m.log.Debug("event broker subscribed", slog.Int("topics", len(filters)))
	return nil
}

// handleMessage decodes one broker payload. A decode failure aborts the
// connection: malformed traffic on an authenticated topic means the session
// is broken, and reconnecting is the only fix. Logout control packets are
// logged and dropped without reaching the dispatcher.
func (m *MQTT) handleMessage(msg mqtt.Message, sink Sink) {
	var payload map[string]any
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		m.log.Warn("undecodable broker payload",
			slog.String("topic", msg.Topic()),
			logger.Error(err))
		m.failWith(fmt.Errorf("%w: %w", ErrDecode, err))
		return
	}
	if action, _ := payload["action"].(string); action == "logout" {
		m.log.Warn("ignoring broker logout packet", slog.String("topic", msg.Topic()))
		return
	}
	sink.OnEvent(payload)
}
