package domain

import "fmt"

// CommandType enumerates the UI-originated messages understood by the bridge.
type CommandType string

const (
	CommandGestureStart CommandType = "gesture_start" // Interaction started (drag begins)
	CommandValue        CommandType = "value"         // Value changed
	CommandGestureEnd   CommandType = "gesture_end"   // Interaction finished
	CommandVisibility   CommandType = "visibility"    // UI became visible or hidden
	CommandSync         CommandType = "sync"          // UI requests the full relay state
)

// Command is a decoded UI-originated message.
type Command struct {
	Type CommandType
	ID   ParameterID

	// Value holds the raw payload for CommandValue; it is interpreted against the relay kind.
	Value any
	// Normalized, when set, carries a [0, 1] proportion instead of a plain value.
	Normalized *float64
	// Visible is set for CommandVisibility.
	Visible *bool
}

// Resolve interprets the payload of a CommandValue against spec.
// Exactly one of Value and Normalized is used; Normalized wins when both are present.
func (c Command) Resolve(spec ParameterSpec) (Value, error) {
	if c.Type != CommandValue {
		return Value{}, fmt.Errorf("%w: %s carries no value", ErrMalformedValue, c.Type)
	}
	if c.Normalized != nil {
		return spec.FromNormalized(*c.Normalized)
	}
	if c.Value == nil {
		return Value{}, fmt.Errorf("%w: missing value for %q", ErrMalformedValue, c.ID)
	}
	return FromAny(spec.Kind, c.Value)
}

// RelayUpdate is the native-to-UI notification carrying the current value of one relay.
type RelayUpdate struct {
	ID         ParameterID
	Kind       Kind
	Value      Value
	Normalized float64
}

// Event is a fire-and-forget, non-parameter message broadcast to the UI (meters, status).
type Event struct {
	Name    string
	Payload any
}
