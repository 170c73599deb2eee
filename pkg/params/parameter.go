// Package params provides an in-process native control surface: thread-safe parameter
// objects with change notification and gesture signaling, plus the registry that
// resolves them by ID.
package params

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/relaykit/pkg/domain"
	"github.com/aretw0/relaykit/pkg/ports"
)

// ErrGestureActive is returned when an automation write hits a parameter while a user
// gesture is open on it. The user edit takes precedence until the gesture ends.
var ErrGestureActive = errors.New("parameter is being edited")

// Parameter implements ports.Parameter.
// Safe for concurrent use; listeners run on the writer's goroutine, outside the lock.
type Parameter struct {
	spec domain.ParameterSpec

	mu        sync.Mutex
	value     domain.Value
	listeners map[int]ports.Listener
	nextID    int
	gesture   int // open gesture depth
	begins    int
	ends      int
}

var _ ports.Parameter = (*Parameter)(nil)

// New creates a parameter at its default value.
func New(spec domain.ParameterSpec) (*Parameter, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Parameter{
		spec:      spec,
		value:     spec.Default,
		listeners: make(map[int]ports.Listener),
	}, nil
}

// Spec returns the static description.
func (p *Parameter) Spec() domain.ParameterSpec { return p.spec }

// Value returns the current value.
func (p *Parameter) Value() domain.Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Set constrains v into the valid domain and stores it.
// Listeners are notified only when the stored value actually changes.
func (p *Parameter) Set(v domain.Value, origin domain.Origin) (bool, error) {
	constrained, err := p.spec.Constrain(v)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	if origin == domain.OriginAutomation && p.gesture > 0 {
		p.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrGestureActive, p.spec.ID)
	}
	if p.value.Equal(constrained) {
		p.mu.Unlock()
		return false, nil
	}
	p.value = constrained
	listeners := make([]ports.Listener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	change := ports.Change{Value: constrained, Origin: origin}
	for _, fn := range listeners {
		fn(change)
	}
	return true, nil
}

// Automate writes v the way a host automation lane would.
func (p *Parameter) Automate(v domain.Value) error {
	_, err := p.Set(v, domain.OriginAutomation)
	return err
}

// Subscribe registers fn and returns a cancel function. Cancel is idempotent.
func (p *Parameter) Subscribe(fn ports.Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// BeginGesture opens a user edit.
func (p *Parameter) BeginGesture() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gesture++
	p.begins++
}

// EndGesture closes a user edit. Unbalanced calls are ignored.
func (p *Parameter) EndGesture() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gesture == 0 {
		return
	}
	p.gesture--
	p.ends++
}

// GestureOpen reports whether a user edit is in progress.
func (p *Parameter) GestureOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gesture > 0
}

// GestureCounts returns how many gestures were begun and ended since creation.
func (p *Parameter) GestureCounts() (begins, ends int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.begins, p.ends
}

// Listeners returns the number of registered listeners.
func (p *Parameter) Listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}
