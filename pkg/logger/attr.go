package logger

import (
	"log/slog"
	"time"
)

// Error creates an attribute for a single error under the key "error".
// Returns an empty Attr for nil errors, enabling safe usage without nil checks.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component tags a record with the emitting component name.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Duration creates an attribute for a duration under the given key.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.Duration(key, d)
}

// Status creates an attribute for an HTTP or envelope status code.
func Status(code int) slog.Attr {
	return slog.Int("status", code)
}

// Resource tags a record with the event resource path.
func Resource(resource string) slog.Attr {
	if resource == "" {
		return slog.Attr{}
	}
	return slog.String("resource", resource)
}

// Device tags a record with a device identifier.
func Device(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("device_id", id)
}

// Transaction tags a record with a transaction identifier.
func Transaction(tid string) slog.Attr {
	if tid == "" {
		return slog.Attr{}
	}
	return slog.String("trans_id", tid)
}
