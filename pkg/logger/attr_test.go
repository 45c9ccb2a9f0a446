package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/camkit/arlo/pkg/logger"
)

func TestError(t *testing.T) {
	t.Parallel()

	t.Run("nil error returns empty attr", func(t *testing.T) {
		t.Parallel()
		attr := logger.Error(nil)
		assert.True(t, attr.Equal(slog.Attr{}))
	})

	t.Run("non-nil error", func(t *testing.T) {
		t.Parallel()
		err := errors.New("boom")
		attr := logger.Error(err)
		assert.Equal(t, "error", attr.Key)
		assert.Equal(t, err, attr.Value.Any())
	})
}

func TestComponent(t *testing.T) {
	t.Parallel()
	attr := logger.Component("stream")
	assert.Equal(t, "component", attr.Key)
	assert.Equal(t, "stream", attr.Value.String())
}

func TestStatus(t *testing.T) {
	t.Parallel()
	attr := logger.Status(401)
	assert.Equal(t, "status", attr.Key)
	assert.Equal(t, int64(401), attr.Value.Int64())
}

func TestDuration(t *testing.T) {
	t.Parallel()
	attr := logger.Duration("timeout", 3*time.Second)
	assert.Equal(t, "timeout", attr.Key)
	assert.Equal(t, 3*time.Second, attr.Value.Duration())
}

func TestEmptyStringHelpers(t *testing.T) {
	t.Parallel()
	assert.True(t, logger.Resource("").Equal(slog.Attr{}))
	assert.True(t, logger.Device("").Equal(slog.Attr{}))
	assert.True(t, logger.Transaction("").Equal(slog.Attr{}))
	assert.Equal(t, "resource", logger.Resource("cameras/XYZ").Key)
	assert.Equal(t, "device_id", logger.Device("XYZ").Key)
	assert.Equal(t, "trans_id", logger.Transaction("FE!abc").Key)
}
