package relay

import (
	"errors"
	"fmt"

	"github.com/aretw0/relaykit/pkg/domain"
)

var (
	// ErrSealed is returned when a relay is added after the UI transport was built.
	ErrSealed = errors.New("relay set is sealed")
	// ErrDuplicate is returned when two relays share an identifier.
	ErrDuplicate = errors.New("duplicate relay identifier")
)

// Descriptor is the static, UI-facing description of one relay.
type Descriptor struct {
	ID      domain.ParameterID `json:"id"`
	Kind    domain.Kind        `json:"kind"`
	Name    string             `json:"name"`
	Unit    string             `json:"unit,omitempty"`
	Range   *domain.Range      `json:"range,omitempty"`
	Choices []string           `json:"choices,omitempty"`
}

// Set is the ordered registry of relays.
// It is filled once, then sealed when the UI transport consumes it; after sealing the
// membership is immutable and may be read from any goroutine.
type Set struct {
	order  []Relay
	byID   map[domain.ParameterID]Relay
	sealed bool
}

// NewSet creates an empty, unsealed set.
func NewSet() *Set {
	return &Set{byID: make(map[domain.ParameterID]Relay)}
}

// Add creates a relay for spec and registers it.
func (s *Set) Add(spec domain.ParameterSpec) (Relay, error) {
	if s.sealed {
		return nil, fmt.Errorf("%w: cannot add %q", ErrSealed, spec.ID)
	}
	if _, dup := s.byID[spec.ID]; dup {
		return nil, fmt.Errorf("%w: %q", ErrDuplicate, spec.ID)
	}
	r, err := New(spec)
	if err != nil {
		return nil, err
	}
	s.order = append(s.order, r)
	s.byID[spec.ID] = r
	return r, nil
}

// Seal freezes the membership.
func (s *Set) Seal() { s.sealed = true }

// Sealed reports whether Seal was called.
func (s *Set) Sealed() bool { return s.sealed }

// Get returns the relay for id.
func (s *Set) Get(id domain.ParameterID) (Relay, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// All returns the relays in registration order.
func (s *Set) All() []Relay {
	return append([]Relay(nil), s.order...)
}

// Len returns the number of relays.
func (s *Set) Len() int { return len(s.order) }

// Manifest describes every relay in registration order.
func (s *Set) Manifest() []Descriptor {
	out := make([]Descriptor, 0, len(s.order))
	for _, r := range s.order {
		spec := r.Spec()
		d := Descriptor{ID: spec.ID, Kind: spec.Kind, Name: spec.Name, Unit: spec.Unit}
		switch spec.Kind {
		case domain.Continuous:
			rng := spec.Range
			d.Range = &rng
		case domain.Boolean:
		case domain.Enumerated:
			d.Choices = append([]string(nil), spec.Choices...)
		default:
			panic(fmt.Sprintf("relay: unhandled %s", spec.Kind))
		}
		out = append(out, d)
	}
	return out
}

// Close detaches every listener; closed relays ignore further native updates.
func (s *Set) Close() {
	for _, r := range s.order {
		r.close()
	}
}
