package dispatch

import (
	"regexp"
	"time"

	"github.com/camkit/arlo/pkg/logger"
)

// pendingEntry tracks one registered transaction. The channel is buffered so
// resolution never blocks the event loop; it is closed only when pending
// transactions are discarded wholesale. A resolved entry stays registered
// until its waiter reads it, but cannot be resolved a second time.
type pendingEntry struct {
	ch       chan map[string]any
	resolved bool
}

// Register records interest in a future event matching key. Key may be an
// exact transaction identifier, an exact resource name, or a regular
// expression over "resource" / "resource:deviceID". Registering an already
// pending key is a no-op; the key is returned either way.
func (d *Dispatcher) Register(key string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.pending[key]; exists {
		return key
	}
	d.pending[key] = &pendingEntry{ch: make(chan map[string]any, 1)}
	d.order = append(d.order, key)
	return key
}

// Await blocks until the event matching key arrives or timeout elapses, then
// unregisters the key. On timeout ok is false. A key that was never
// registered, or was discarded by a reconnect, returns immediately.
func (d *Dispatcher) Await(key string, timeout time.Duration) (map[string]any, bool) {
	d.mu.Lock()
	entry, exists := d.pending[key]
	d.mu.Unlock()
	if !exists {
		return nil, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case payload, ok := <-entry.ch:
		d.unregister(key, entry)
		return payload, ok && payload != nil
	case <-timer.C:
		d.unregister(key, entry)
		// The event may have landed between the timeout firing and the
		// unregister; don't lose it.
		select {
		case payload, ok := <-entry.ch:
			if ok && payload != nil {
				return payload, true
			}
		default:
		}
		return nil, false
	}
}

// DiscardPending drops every pending transaction, waking all blocked waiters
// with no result. The supervisor calls this when the event connection is lost:
// correlated events can no longer arrive on the old connection.
func (d *Dispatcher) DiscardPending() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, entry := range d.pending {
		if !entry.resolved {
			close(entry.ch)
		}
	}
	d.pending = make(map[string]*pendingEntry)
	d.order = nil
}

// unregister removes key only while it still maps to entry. A waiter that
// timed out after a discard-and-reregister cycle must not delete the entry a
// newer waiter registered under the same key.
func (d *Dispatcher) unregister(key string, entry *pendingEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if current, exists := d.pending[key]; !exists || current != entry {
		return
	}
	delete(d.pending, key)
	d.dropOrder(key)
}

// resolve offers payload to the pending table. Matcher chain, evaluated in
// order: exact transaction id, exact resource, then each registered key (in
// registration order) as an anchored regular expression against the bare
// resource and the "resource:deviceID" compound. At most one key resolves per
// payload.
func (d *Dispatcher) resolve(payload map[string]any) {
	tid, _ := payload["transId"].(string)
	resource, _ := payload["resource"].(string)
	from, _ := payload["from"].(string)

	d.mu.Lock()
	defer d.mu.Unlock()

	if tid != "" {
		if d.resolveKey(tid, payload) {
			return
		}
	}
	if resource == "" {
		return
	}
	if d.resolveKey(resource, payload) {
		return
	}

	compound := resource
	if from != "" {
		compound = resource + ":" + from
	}
	for _, key := range d.order {
		if entry, exists := d.pending[key]; !exists || entry.resolved {
			continue
		}
		re, err := regexp.Compile("^(?:" + key + ")")
		if err != nil {
			continue
		}
		if re.MatchString(resource) || re.MatchString(compound) {
			d.log.Debug("transaction matched by pattern",
				logger.Component("dispatch"),
				logger.Resource(resource), logger.Transaction(key))
			d.resolveKey(key, payload)
			return
		}
	}
}

// resolveKey must be called with d.mu held. A resolved entry stays registered
// until its waiter reads it but never matches again.
func (d *Dispatcher) resolveKey(key string, payload map[string]any) bool {
	entry, exists := d.pending[key]
	if !exists || entry.resolved {
		return false
	}
	entry.resolved = true
	entry.ch <- payload
	return true
}

// dropOrder must be called with d.mu held.
func (d *Dispatcher) dropOrder(key string) {
	for i, k := range d.order {
		if k == key {
			d.order = append(d.order[:i], d.order[i+1:]...)
			return
		}
	}
}
