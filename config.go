package arlo

import (
	"time"

	"github.com/camkit/arlo/core/config"
)

// Config carries the client settings. All fields load from ARLO_-prefixed
// environment variables via LoadConfig; zero values fall back to the
// documented defaults when the struct is built by hand.
type Config struct {
	Username string `env:"ARLO_USERNAME,required"`
	Password string `env:"ARLO_PASSWORD,required"`

	Host     string `env:"ARLO_HOST" envDefault:"https://myapi.arlo.com"`
	AuthHost string `env:"ARLO_AUTH_HOST" envDefault:"https://ocapi-app.arlo.com"`

	// SessionFile persists tokens between runs so restarts skip the full
	// second-factor dance. SaveSession false keeps everything in memory.
	SessionFile string `env:"ARLO_SESSION_FILE" envDefault:".arlo-session.json"`
	CookieFile  string `env:"ARLO_COOKIE_FILE" envDefault:".arlo-cookies.json"`
	SaveSession bool   `env:"ARLO_SAVE_SESSION" envDefault:"true"`

	RequestTimeout time.Duration `env:"ARLO_REQUEST_TIMEOUT" envDefault:"60s"`

	// EventBackend selects the realtime transport: mqtt, sse, or auto.
	EventBackend string `env:"ARLO_EVENT_BACKEND" envDefault:"auto"`

	MQTTHost          string `env:"ARLO_MQTT_HOST" envDefault:"mqtt-cluster.arloxcld.com"`
	MQTTPort          int    `env:"ARLO_MQTT_PORT" envDefault:"443"`
	MQTTCheckHostname bool   `env:"ARLO_MQTT_CHECK_HOSTNAME" envDefault:"true"`

	// StreamTimeout drops an SSE connection that goes quiet; ReconnectEvery
	// cycles the connection on a fresh socket. Zero disables either.
	StreamTimeout  time.Duration `env:"ARLO_STREAM_TIMEOUT" envDefault:"0"`
	ReconnectEvery time.Duration `env:"ARLO_RECONNECT_EVERY" envDefault:"0"`

	// Second factor selection and delivery.
	TFAType     string        `env:"ARLO_TFA_TYPE" envDefault:"email"`
	TFANickname string        `env:"ARLO_TFA_NICKNAME"`
	TFASource   string        `env:"ARLO_TFA_SOURCE" envDefault:"console"`
	TFAHost     string        `env:"ARLO_TFA_HOST"`
	TFAToken    string        `env:"ARLO_TFA_TOKEN"`
	TFARetries  int           `env:"ARLO_TFA_RETRIES" envDefault:"5"`
	TFADelay    time.Duration `env:"ARLO_TFA_DELAY" envDefault:"5s"`

	// ECDHCurves orders the TLS negotiation candidates tried during login.
	ECDHCurves []string `env:"ARLO_ECDH_CURVES" envDefault:"x25519,p256,p384"`

	UserAgent  string `env:"ARLO_USER_AGENT" envDefault:"linux"`
	SendSource bool   `env:"ARLO_SEND_SOURCE" envDefault:"false"`

	// Synchronous makes Notify default to waiting for the correlated event
	// instead of fire-and-forget.
	Synchronous bool `env:"ARLO_SYNCHRONOUS_MODE" envDefault:"false"`
}

// LoadConfig reads the client configuration from the environment, honoring a
// local .env file when present.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
