package dispatch

import "strings"

// DefaultResourceTypes are the resource types the cloud uses for per-device
// event traffic.
var DefaultResourceTypes = []string{
	"modes",
	"siren",
	"doorbells",
	"lights",
	"cameras",
	"devices",
}

// Delivery is one classified event: the device it belongs to, the logical
// resource, and the payload fragment to hand to subscribers. DeviceID may be
// empty, in which case only wildcard subscribers see the delivery.
type Delivery struct {
	DeviceID string
	Resource string
	Payload  any
}

// Classifier turns one decoded payload into zero or more deliveries by
// running an ordered rule table. Rules are data, not nested conditionals, so
// new packet shapes are additive.
type Classifier struct {
	types map[string]bool
	rules []rule
}

type rule struct {
	name  string
	apply func(*Classifier, string, map[string]any) ([]Delivery, bool)
}

// NewClassifier creates a classifier for the given resource types,
// defaulting to DefaultResourceTypes.
func NewClassifier(types ...string) *Classifier {
	if len(types) == 0 {
		types = DefaultResourceTypes
	}
	set := make(map[string]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	return &Classifier{types: set, rules: classifyRules}
}

// Classify runs the rule table over payload. The second return names the rule
// that matched, empty when the packet is unroutable.
func (c *Classifier) Classify(payload map[string]any) ([]Delivery, string) {
	resource, _ := payload["resource"].(string)
	for _, r := range c.rules {
		if deliveries, ok := r.apply(c, resource, payload); ok {
			return deliveries, r.name
		}
	}
	return nil, ""
}

// classifyRules is the ordered packet-shape policy. First match wins.
var classifyRules = []rule{
	{
		// Answer for an async ping. Nothing to route.
		name: "keep-alive",
		apply: func(_ *Classifier, resource string, _ map[string]any) ([]Delivery, bool) {
			if strings.HasPrefix(resource, "subscriptions/") {
				return nil, true
			}
			return nil, false
		},
	},
	{
		// Base station mode response: one delivery per device key.
		name: "active-automations",
		apply: func(_ *Classifier, resource string, payload map[string]any) ([]Delivery, bool) {
			if resource != "activeAutomations" {
				return nil, false
			}
			var out []Delivery
			for key, value := range payload {
				if key == "resource" {
					continue
				}
				out = append(out, Delivery{DeviceID: key, Resource: resource, Payload: value})
			}
			return out, true
		},
	},
	{
		// Mode update keyed by the sending device.
		name: "states",
		apply: func(_ *Classifier, _ string, payload map[string]any) ([]Delivery, bool) {
			states, ok := payload["states"]
			if !ok {
				return nil, false
			}
			from, _ := payload["from"].(string)
			if from == "" {
				return nil, true
			}
			return []Delivery{{DeviceID: from, Resource: "states", Payload: states}}, true
		},
	},
	{
		// Individual device update: the id is embedded in the resource path.
		name: "device-update",
		apply: func(c *Classifier, resource string, payload map[string]any) ([]Delivery, bool) {
			kind, rest, ok := strings.Cut(resource, "/")
			if !ok || !c.types[kind] {
				return nil, false
			}
			id, _, _ := strings.Cut(rest, "/")
			return []Delivery{{DeviceID: id, Resource: resource, Payload: payload}}, true
		},
	},
	{
		// Base station and child statuses, split per device.
		name: "device-statuses",
		apply: func(_ *Classifier, resource string, payload map[string]any) ([]Delivery, bool) {
			if resource != "devices" {
				return nil, false
			}
			devices, _ := payload["devices"].(map[string]any)
			var out []Delivery
			for id, props := range devices {
				out = append(out, Delivery{DeviceID: id, Resource: resource, Payload: props})
			}
			return out, true
		},
	},
	{
		// Base station response about itself or its children.
		name: "typed-resource",
		apply: func(c *Classifier, resource string, payload map[string]any) ([]Delivery, bool) {
			if !c.types[resource] {
				return nil, false
			}
			from, _ := payload["from"].(string)
			if props, ok := payload["properties"].([]any); ok {
				out := make([]Delivery, 0, len(props))
				for _, p := range props {
					id := from
					if prop, ok := p.(map[string]any); ok {
						if serial, ok := prop["serialNumber"].(string); ok && serial != "" {
							id = serial
						}
					}
					out = append(out, Delivery{DeviceID: id, Resource: resource, Payload: p})
				}
				return out, true
			}
			return []Delivery{{DeviceID: from, Resource: resource, Payload: payload}}, true
		},
	},
	{
		// Audio playback packets; the status sub-resource is repackaged to
		// look like a plain audioPlayback event.
		name: "audio-playback",
		apply: func(_ *Classifier, resource string, payload map[string]any) ([]Delivery, bool) {
			if !strings.HasPrefix(resource, "audioPlayback") {
				return nil, false
			}
			from, _ := payload["from"].(string)
			props := payload["properties"]
			if resource == "audioPlayback/status" {
				props = map[string]any{"status": props}
			}
			if from == "" || props == nil {
				return nil, true
			}
			return []Delivery{{DeviceID: from, Resource: resource, Payload: props}}, true
		},
	},
	{
		// Last-ditch id hunt across the known id fields, in order.
		name: "fallback-id",
		apply: func(_ *Classifier, resource string, payload map[string]any) ([]Delivery, bool) {
			for _, field := range []string{"deviceId", "uniqueId", "locationId"} {
				if id, ok := payload[field].(string); ok && id != "" {
					return []Delivery{{DeviceID: id, Resource: resource, Payload: payload}}, true
				}
			}
			return nil, false
		},
	},
}
