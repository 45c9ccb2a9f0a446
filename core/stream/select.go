package stream

// Kind identifies a transport strategy.
type Kind string

const (
	KindAuto Kind = "auto"
	KindMQTT Kind = "mqtt"
	KindSSE  Kind = "sse"
)

// Select resolves the configured backend to a concrete transport kind. With
// KindAuto the MQTT transport is used only when at least one device
// advertises an MQTT topic; otherwise the SSE transport is used. A non-empty
// override endpoint, as advertised by the session bootstrap, always forces
// MQTT regardless of configuration.
func Select(configured Kind, deviceTopics []string, override string) Kind {
	if override != "" {
		return KindMQTT
	}
	switch configured {
	case KindMQTT, KindSSE:
		return configured
	default:
		if len(deviceTopics) > 0 {
			return KindMQTT
		}
		return KindSSE
	}
}
