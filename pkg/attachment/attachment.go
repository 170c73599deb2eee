// Package attachment binds one relay to one native parameter and enforces the
// synchronization policy between them.
//
// An Attachment is a two-state machine (Idle, Dragging). Native changes are forwarded
// to the relay in either state; UI gestures are framed as begin/end signals on the
// parameter so the host can group them into one undoable edit. Writes the attachment
// makes itself are tagged with its own origin and their change notification is
// dropped once, breaking the native/UI feedback loop.
//
// Except for the parameter listener (which only posts to the dispatcher), every method
// must be called on the owner goroutine.
package attachment

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/relaykit/internal/logging"
	"github.com/aretw0/relaykit/internal/metrics"
	"github.com/aretw0/relaykit/pkg/domain"
	"github.com/aretw0/relaykit/pkg/ports"
	"github.com/aretw0/relaykit/pkg/relay"
)

// State is the gesture state of an attachment.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Attachment synchronizes a relay with a native parameter.
type Attachment struct {
	relay    relay.Relay
	param    ports.Parameter
	dispatch ports.Dispatcher
	origin   domain.Origin

	state       State
	pendingEcho int
	closed      bool
	unsubscribe func()

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an Attachment.
type Option func(*Attachment)

// WithLogger configures a logger for the Attachment.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Attachment) {
		a.logger = logger
	}
}

// WithMetrics records relay traffic and gestures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Attachment) {
		a.metrics = m
	}
}

// New looks up the parameter bound to r, pushes its current value into the relay and
// subscribes to its change notifications.
// An unknown identifier or a kind mismatch is a wiring bug and fails construction.
func New(r relay.Relay, registry ports.ParameterRegistry, dispatch ports.Dispatcher, opts ...Option) (*Attachment, error) {
	param, err := registry.Parameter(r.ID())
	if err != nil {
		return nil, fmt.Errorf("attach %q: %w", r.ID(), err)
	}
	if param.Spec().Kind != r.Kind() {
		return nil, fmt.Errorf("attach %q: %w: relay is %s, parameter is %s",
			r.ID(), domain.ErrKindMismatch, r.Kind(), param.Spec().Kind)
	}

	a := &Attachment{
		relay:    r,
		param:    param,
		dispatch: dispatch,
		origin:   domain.NewOrigin(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("relay", string(r.ID()))

	r.SetFromNative(param.Value())
	a.unsubscribe = param.Subscribe(func(c ports.Change) {
		a.dispatch.Post(func() { a.nativeChanged(c) })
	})
	return a, nil
}

// ID returns the parameter identifier.
func (a *Attachment) ID() domain.ParameterID { return a.relay.ID() }

// State returns the gesture state.
func (a *Attachment) State() State { return a.state }

// Origin returns the tag carried by the attachment's own native writes.
func (a *Attachment) Origin() domain.Origin { return a.origin }

// Relay returns the bound relay.
func (a *Attachment) Relay() relay.Relay { return a.relay }

// Parameter returns the bound native parameter.
func (a *Attachment) Parameter() ports.Parameter { return a.param }

// BeginGesture handles "interaction started". Idempotent while Dragging.
func (a *Attachment) BeginGesture() {
	if a.closed || a.state == Dragging {
		return
	}
	a.state = Dragging
	a.param.BeginGesture()
	a.metrics.Gesture(string(a.ID()), "begin")
	a.logger.Debug("Gesture started")
}

// EndGesture handles "interaction finished". A no-op while Idle.
func (a *Attachment) EndGesture() {
	if a.closed || a.state == Idle {
		return
	}
	a.state = Idle
	a.param.EndGesture()
	a.metrics.Gesture(string(a.ID()), "end")
	a.logger.Debug("Gesture finished")
}

// SetValue handles a UI value change. The value is constrained into the parameter's
// domain before it is written; when clamping altered it, the corrected value is sent
// back so the UI does not keep displaying an impossible state.
// A change arriving while Idle is framed as its own single-step gesture.
func (a *Attachment) SetValue(v domain.Value) error {
	if a.closed {
		return nil
	}
	stored, err := a.relay.SetFromUI(v)
	if err != nil {
		return fmt.Errorf("relay %q: %w", a.ID(), err)
	}

	discrete := a.state == Idle
	if discrete {
		a.param.BeginGesture()
	}

	a.pendingEcho++
	changed, err := a.param.Set(stored, a.origin)
	if !changed && a.pendingEcho > 0 {
		a.pendingEcho--
	}

	if discrete {
		a.param.EndGesture()
	}
	if err != nil {
		a.relay.SetFromNative(a.param.Value())
		return fmt.Errorf("parameter %q: %w", a.ID(), err)
	}
	if changed {
		a.metrics.RelayUpdate(string(a.ID()), metrics.ToNative)
	}
	if !stored.Equal(v) {
		a.relay.Resync()
	}
	return nil
}

// nativeChanged runs on the owner goroutine for every parameter notification.
func (a *Attachment) nativeChanged(c ports.Change) {
	if a.closed {
		return
	}
	if c.Origin == a.origin && a.pendingEcho > 0 {
		a.pendingEcho--
		a.metrics.EchoSuppressed()
		return
	}
	// Queued notifications may be stale; the parameter holds the latest value.
	if a.relay.SetFromNative(a.param.Value()) {
		a.metrics.RelayUpdate(string(a.ID()), metrics.ToUI)
	}
}

// Close ends an open gesture and unsubscribes from the parameter.
// It must run before the relay or the parameter is torn down.
func (a *Attachment) Close() {
	if a.closed {
		return
	}
	a.EndGesture()
	a.closed = true
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}
