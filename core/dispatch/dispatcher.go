package dispatch

import (
	"io"
	"log/slog"
	"sync"

	"github.com/camkit/arlo/pkg/async"
	"github.com/camkit/arlo/pkg/logger"
)

// WildcardKey subscribes a callback to every routed event.
const WildcardKey = "all"

// Callback receives one routed event. Callbacks run on their own goroutines;
// they must be safe for concurrent invocation.
type Callback func(resource string, event any)

// Dispatcher routes classified events to subscribers and resolves pending
// transactions. It is shared between the caller's goroutines and the event
// supervisor's loop; all state is guarded by a single mutex.
type Dispatcher struct {
	classifier *Classifier
	log        *slog.Logger
	run        func(func())

	mu        sync.Mutex
	callbacks map[string][]Callback
	pending   map[string]*pendingEntry
	order     []string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the diagnostic logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// WithResourceTypes overrides the known resource type set.
func WithResourceTypes(types ...string) Option {
	return func(d *Dispatcher) {
		d.classifier = NewClassifier(types...)
	}
}

// WithRunner replaces the goroutine runner used for callback fan-out.
// Tests use a synchronous runner for deterministic delivery.
func WithRunner(run func(func())) Option {
	return func(d *Dispatcher) {
		if run != nil {
			d.run = run
		}
	}
}

// New creates a Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		classifier: NewClassifier(),
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		run:        async.Run,
		callbacks:  make(map[string][]Callback),
		pending:    make(map[string]*pendingEntry),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddListener subscribes cb to events routed to deviceID.
func (d *Dispatcher) AddListener(deviceID string, cb Callback) {
	if deviceID == "" || cb == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks[deviceID] = append(d.callbacks[deviceID], cb)
}

// AddAnyListener subscribes cb to every routed event.
func (d *Dispatcher) AddAnyListener(cb Callback) {
	d.AddListener(WildcardKey, cb)
}

// DelListener is a deliberate no-op: subscriptions live for the client's
// lifetime. Kept for interface symmetry with AddListener.
func (d *Dispatcher) DelListener(deviceID string, cb Callback) {}

// Dispatch classifies payload, fans it out to interested subscribers, and
// independently offers it to the pending-transaction table.
func (d *Dispatcher) Dispatch(payload map[string]any) {
	if errField, ok := payload["error"].(map[string]any); ok {
		d.log.Info("error in event",
			logger.Component("dispatch"),
			"code", errField["code"], "message", errField["message"])
	}

	deliveries, matched := d.classifier.Classify(payload)
	if matched == "" {
		resource, _ := payload["resource"].(string)
		d.log.Debug("unhandled event",
			logger.Component("dispatch"), logger.Resource(resource))
	}

	for _, delivery := range deliveries {
		d.deliver(delivery)
	}

	d.resolve(payload)
}

func (d *Dispatcher) deliver(delivery Delivery) {
	d.mu.Lock()
	var cbs []Callback
	if delivery.DeviceID != "" {
		cbs = append(cbs, d.callbacks[delivery.DeviceID]...)
	}
	cbs = append(cbs, d.callbacks[WildcardKey]...)
	d.mu.Unlock()

	d.log.Debug("routing event",
		logger.Component("dispatch"),
		logger.Resource(delivery.Resource), logger.Device(delivery.DeviceID))

	for _, cb := range cbs {
		cb := cb
		resource, payload := delivery.Resource, delivery.Payload
		d.run(func() {
			cb(resource, payload)
		})
	}
}
