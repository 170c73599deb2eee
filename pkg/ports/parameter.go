package ports

import "github.com/aretw0/relaykit/pkg/domain"

// Change is the notification emitted by a Parameter after its value changed.
type Change struct {
	Value  domain.Value
	Origin domain.Origin
}

// Listener receives parameter change notifications.
// It may be called on any goroutine, including the one that performed the write.
type Listener func(Change)

// Parameter is a handle to one native, host-automatable parameter.
type Parameter interface {
	// Spec returns the static description of the parameter.
	Spec() domain.ParameterSpec

	// Value returns the current value.
	Value() domain.Value

	// Set constrains and stores v, tagging the resulting notification with origin.
	// It reports whether the stored value changed (and listeners were notified).
	Set(v domain.Value, origin domain.Origin) (bool, error)

	// Subscribe registers fn for change notifications and returns its cancel function.
	Subscribe(fn Listener) (cancel func())

	// BeginGesture signals the host that a user-driven edit is starting.
	BeginGesture()

	// EndGesture signals the host that the user-driven edit finished.
	EndGesture()
}

// ParameterRegistry resolves parameters by identifier.
type ParameterRegistry interface {
	// Parameter returns the handle for id, or an error wrapping domain.ErrUnknownParameter.
	Parameter(id domain.ParameterID) (Parameter, error)
}
