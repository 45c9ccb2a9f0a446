package arlo

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/camkit/arlo/core/rest"
)

// Device is the slice of the cloud's device record this package needs:
// routing identifiers plus the transport topics the device advertises.
// Anything richer belongs to the layer above.
type Device struct {
	DeviceID   string
	UniqueID   string
	XCloudID   string
	MQTTTopics []string
}

// DeviceLister supplies the device catalog. The default implementation asks
// the cloud; callers with their own device model can substitute one.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]Device, error)
}

// RefreshDevices reloads the device catalog and caches it for transport
// selection and topic subscription.
func (c *Client) RefreshDevices(ctx context.Context) ([]Device, error) {
	devices, err := c.lister.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.devices = devices
	c.mu.Unlock()
	return devices, nil
}

// Devices returns the cached device catalog.
func (c *Client) Devices() []Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Device(nil), c.devices...)
}

// deviceTopics flattens every advertised MQTT topic across the catalog.
func (c *Client) deviceTopics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var topics []string
	for _, d := range c.devices {
		topics = append(topics, d.MQTTTopics...)
	}
	return topics
}

// restLister fetches the catalog from the devices endpoint.
type restLister struct {
	client *Client
}

func (l *restLister) ListDevices(ctx context.Context) ([]Device, error) {
	code, body := l.client.rest.Call(ctx, rest.Request{
		Path:   devicesPath,
		Params: map[string]any{"t": time.Now().UnixMilli()},
	})
	if code != http.StatusOK {
		return nil, fmt.Errorf("arlo: device list answered %d", code)
	}
	items, ok := body.([]any)
	if !ok {
		return nil, fmt.Errorf("arlo: malformed device list")
	}

	var devices []Device
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		d := Device{}
		d.DeviceID, _ = record["deviceId"].(string)
		d.UniqueID, _ = record["uniqueId"].(string)
		d.XCloudID, _ = record["xCloudId"].(string)
		if raw, ok := record["allowedMqttTopics"].([]any); ok {
			for _, topic := range raw {
				if s, _ := topic.(string); s != "" {
					d.MQTTTopics = append(d.MQTTTopics, s)
				}
			}
		}
		if d.DeviceID != "" {
			devices = append(devices, d)
		}
	}
	return devices, nil
}
