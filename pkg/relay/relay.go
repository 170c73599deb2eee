// Package relay implements the named, typed channels through which the UI runtime
// addresses individual parameters.
//
// A relay holds the last known value of one parameter and the set of UI-side listeners.
// Relays are not safe for concurrent use: they are owned and mutated by the editor's
// owner goroutine only.
package relay

import (
	"fmt"

	"github.com/aretw0/relaykit/pkg/domain"
)

// Listener receives native-originated updates. It must not block.
type Listener func(domain.RelayUpdate)

// Relay is the sealed union of Continuous, Boolean and Enumerated relays.
type Relay interface {
	ID() domain.ParameterID
	Kind() domain.Kind
	Spec() domain.ParameterSpec

	// Current returns the last known value.
	Current() domain.Value

	// Update returns the current value as a UI notification.
	Update() domain.RelayUpdate

	// SetFromNative stores v and notifies every listener. It never produces a
	// native-bound write. Returns false when v equals the current value (nothing sent).
	SetFromNative(v domain.Value) bool

	// SetFromUI constrains and stores v without notifying listeners, and returns the
	// stored value.
	SetFromUI(v domain.Value) (domain.Value, error)

	// Resync re-sends the current value to every listener.
	Resync()

	// Listen registers fn and returns its cancel function.
	Listen(fn Listener) (cancel func())

	close()
}

type base struct {
	spec      domain.ParameterSpec
	current   domain.Value
	listeners map[int]Listener
	nextID    int
	closed    bool
}

func newBase(spec domain.ParameterSpec) *base {
	return &base{
		spec:      spec,
		current:   spec.Default,
		listeners: make(map[int]Listener),
	}
}

func (b *base) ID() domain.ParameterID     { return b.spec.ID }
func (b *base) Kind() domain.Kind          { return b.spec.Kind }
func (b *base) Spec() domain.ParameterSpec { return b.spec }
func (b *base) Current() domain.Value      { return b.current }

func (b *base) Update() domain.RelayUpdate {
	return domain.RelayUpdate{
		ID:         b.spec.ID,
		Kind:       b.spec.Kind,
		Value:      b.current,
		Normalized: b.spec.Normalized(b.current),
	}
}

func (b *base) SetFromNative(v domain.Value) bool {
	if b.closed {
		return false
	}
	constrained, err := b.spec.Constrain(v)
	if err != nil || constrained.Equal(b.current) {
		return false
	}
	b.current = constrained
	b.notify()
	return true
}

func (b *base) SetFromUI(v domain.Value) (domain.Value, error) {
	constrained, err := b.spec.Constrain(v)
	if err != nil {
		return domain.Value{}, err
	}
	b.current = constrained
	return constrained, nil
}

func (b *base) Resync() {
	if !b.closed {
		b.notify()
	}
}

func (b *base) Listen(fn Listener) func() {
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	return func() { delete(b.listeners, id) }
}

func (b *base) notify() {
	u := b.Update()
	for _, fn := range b.listeners {
		fn(u)
	}
}

func (b *base) close() {
	b.closed = true
	clear(b.listeners)
}

// Continuous relays a bounded floating-point parameter.
type Continuous struct{ *base }

// Float returns the current plain value.
func (c *Continuous) Float() float64 { return c.current.Float }

// Normalized returns the current value as a [0, 1] proportion.
func (c *Continuous) Normalized() float64 { return c.spec.Range.Normalize(c.current.Float) }

// Range returns the parameter's range.
func (c *Continuous) Range() domain.Range { return c.spec.Range }

// Boolean relays an on/off parameter.
type Boolean struct{ *base }

// On returns the current state.
func (b *Boolean) On() bool { return b.current.Bool }

// Enumerated relays a choice parameter.
type Enumerated struct{ *base }

// Index returns the selected choice index.
func (e *Enumerated) Index() int { return e.current.Index }

// Choice returns the label of the selected choice.
func (e *Enumerated) Choice() string { return e.spec.Choices[e.current.Index] }

// Choices returns the ordered choice labels.
func (e *Enumerated) Choices() []string { return e.spec.Choices }

// New creates the relay variant matching spec.Kind, initialized to the spec default.
func New(spec domain.ParameterSpec) (Relay, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	switch spec.Kind {
	case domain.Continuous:
		return &Continuous{newBase(spec)}, nil
	case domain.Boolean:
		return &Boolean{newBase(spec)}, nil
	case domain.Enumerated:
		return &Enumerated{newBase(spec)}, nil
	default:
		panic(fmt.Sprintf("relay: unhandled %s", spec.Kind))
	}
}
