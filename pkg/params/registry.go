package params

import (
	"fmt"

	"github.com/aretw0/relaykit/pkg/domain"
	"github.com/aretw0/relaykit/pkg/ports"
)

// Registry holds the parameters of a control surface, in layout order.
// It is immutable after construction, hence safe for concurrent reads.
type Registry struct {
	layout domain.Layout
	byID   map[domain.ParameterID]*Parameter
}

var _ ports.ParameterRegistry = (*Registry)(nil)

// NewRegistry creates one parameter per spec of layout.
func NewRegistry(layout domain.Layout) (*Registry, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	r := &Registry{
		layout: layout,
		byID:   make(map[domain.ParameterID]*Parameter, len(layout)),
	}
	for _, spec := range layout {
		p, err := New(spec)
		if err != nil {
			return nil, err
		}
		r.byID[spec.ID] = p
	}
	return r, nil
}

// Parameter implements ports.ParameterRegistry.
func (r *Registry) Parameter(id domain.ParameterID) (ports.Parameter, error) {
	p, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns the concrete parameter for id.
func (r *Registry) Get(id domain.ParameterID) (*Parameter, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownParameter, id)
	}
	return p, nil
}

// Layout returns the layout the registry was built from.
func (r *Registry) Layout() domain.Layout { return r.layout }

// Float returns the current value of a Continuous parameter.
func (r *Registry) Float(id domain.ParameterID) (float64, error) {
	v, err := r.valueOf(id, domain.Continuous)
	return v.Float, err
}

// Bool returns the current value of a Boolean parameter.
func (r *Registry) Bool(id domain.ParameterID) (bool, error) {
	v, err := r.valueOf(id, domain.Boolean)
	return v.Bool, err
}

// Choice returns the current index of an Enumerated parameter.
func (r *Registry) Choice(id domain.ParameterID) (int, error) {
	v, err := r.valueOf(id, domain.Enumerated)
	return v.Index, err
}

func (r *Registry) valueOf(id domain.ParameterID, kind domain.Kind) (domain.Value, error) {
	p, err := r.Get(id)
	if err != nil {
		return domain.Value{}, err
	}
	if p.spec.Kind != kind {
		return domain.Value{}, fmt.Errorf("%w: %s is %s", domain.ErrKindMismatch, id, p.spec.Kind)
	}
	return p.Value(), nil
}
