package dispatch_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camkit/arlo/core/dispatch"
)

func TestAwaitResolvedByTransactionID(t *testing.T) {
	t.Parallel()

	d := dispatch.New(dispatch.WithRunner(syncRunner))
	key := d.Register("FE!tid-1")

	done := make(chan map[string]any, 1)
	go func() {
		payload, ok := d.Await(key, 2*time.Second)
		require.True(t, ok)
		done <- payload
	}()

	// Give the waiter a moment to block, then deliver.
	time.Sleep(20 * time.Millisecond)
	d.Dispatch(map[string]any{
		"transId":  "FE!tid-1",
		"resource": "cameras/CAM42",
		"deviceId": "CAM42",
	})

	select {
	case payload := <-done:
		assert.Equal(t, "FE!tid-1", payload["transId"])
	case <-time.After(2 * time.Second):
		t.Fatal("Await did not resolve")
	}
}

func TestSecondPayloadAfterResolutionHasNoEffect(t *testing.T) {
	t.Parallel()

	d := dispatch.New(dispatch.WithRunner(syncRunner))
	d.Register("FE!tid-1")

	d.Dispatch(map[string]any{"transId": "FE!tid-1", "deviceId": "X"})
	// Key is resolved and removed; a duplicate must not re-register it.
	d.Dispatch(map[string]any{"transId": "FE!tid-1", "deviceId": "X"})

	payload, ok := d.Await("FE!tid-1", 50*time.Millisecond)
	require.True(t, ok, "first resolution should be readable")
	assert.Equal(t, "X", payload["deviceId"])

	_, ok = d.Await("FE!tid-1", 50*time.Millisecond)
	assert.False(t, ok, "key must be gone after being read")
}

func TestAwaitTimeoutRemovesKey(t *testing.T) {
	t.Parallel()

	d := dispatch.New(dispatch.WithRunner(syncRunner))
	key := d.Register("FE!lonely")

	start := time.Now()
	payload, ok := d.Await(key, 50*time.Millisecond)
	assert.False(t, ok)
	assert.Nil(t, payload)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	// The key must not leak: a later matching payload resolves nothing.
	_, ok = d.Await(key, 10*time.Millisecond)
	assert.False(t, ok)
}

func TestAwaitUnknownKey(t *testing.T) {
	t.Parallel()

	d := dispatch.New(dispatch.WithRunner(syncRunner))
	payload, ok := d.Await("never-registered", time.Second)
	assert.False(t, ok)
	assert.Nil(t, payload)
}

func TestResolveByExactResource(t *testing.T) {
	t.Parallel()

	d := dispatch.New(dispatch.WithRunner(syncRunner))
	d.Register("activeAutomations")

	d.Dispatch(map[string]any{
		"resource": "activeAutomations",
		"BASE01":   map[string]any{"activeModes": []any{"mode1"}},
	})

	payload, ok := d.Await("activeAutomations", 50*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, "activeAutomations", payload["resource"])
}

func TestResolveByPatternOverCompoundKey(t *testing.T) {
	t.Parallel()

	d := dispatch.New(dispatch.WithRunner(syncRunner))
	d.Register(`cameras/.*:BASE01`)

	d.Dispatch(map[string]any{
		"resource": "cameras/CAM42",
		"from":     "BASE01",
	})

	payload, ok := d.Await(`cameras/.*:BASE01`, 50*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, "cameras/CAM42", payload["resource"])
}

func TestResolveOnlyOneKeyPerPayload(t *testing.T) {
	t.Parallel()

	d := dispatch.New(dispatch.WithRunner(syncRunner))
	d.Register("FE!tid-9")
	d.Register("cameras/CAM42")

	// Carries both a matching transaction id and a matching resource; only
	// the transaction id (first in the matcher chain) may resolve.
	d.Dispatch(map[string]any{
		"transId":  "FE!tid-9",
		"resource": "cameras/CAM42",
	})

	_, ok := d.Await("FE!tid-9", 50*time.Millisecond)
	assert.True(t, ok)
	_, ok = d.Await("cameras/CAM42", 50*time.Millisecond)
	assert.False(t, ok, "resource key must remain unresolved")
}

func TestDiscardPendingWakesWaiters(t *testing.T) {
	t.Parallel()

	d := dispatch.New(dispatch.WithRunner(syncRunner))
	key := d.Register("FE!orphan")

	done := make(chan bool, 1)
	go func() {
		_, ok := d.Await(key, 5*time.Second)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	d.DiscardPending()

	select {
	case ok := <-done:
		assert.False(t, ok, "discarded waiter must see no result")
	case <-time.After(time.Second):
		t.Fatal("waiter still blocked after DiscardPending")
	}
}

func TestRegisterIdempotent(t *testing.T) {
	t.Parallel()

	d := dispatch.New(dispatch.WithRunner(syncRunner))
	assert.Equal(t, "k", d.Register("k"))
	assert.Equal(t, "k", d.Register("k"))

	d.Dispatch(map[string]any{"transId": "k"})
	_, ok := d.Await("k", 50*time.Millisecond)
	assert.True(t, ok)
}

func TestInvalidPatternKeyIgnored(t *testing.T) {
	t.Parallel()

	d := dispatch.New(dispatch.WithRunner(syncRunner))
	d.Register("([broken")
	d.Register("doorbells/.*")

	d.Dispatch(map[string]any{"resource": "doorbells/DB01", "from": "BASE01"})

	_, ok := d.Await("doorbells/.*", 50*time.Millisecond)
	assert.True(t, ok, "valid pattern after a broken one must still match")
}
