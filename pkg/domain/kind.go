package domain

import "fmt"

// Kind identifies the variant of a parameter and of the relay bound to it.
// The set is closed: every switch over Kind must handle all three variants.
type Kind int

const (
	Continuous Kind = iota + 1 // Bounded floating-point value
	Boolean                    // On/off toggle
	Enumerated                 // Index into a fixed, ordered list of choices
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case Continuous:
		return "continuous"
	case Boolean:
		return "boolean"
	case Enumerated:
		return "enumerated"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k == Continuous || k == Boolean || k == Enumerated
}

// ParseKind maps a wire name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "continuous":
		return Continuous, nil
	case "boolean":
		return Boolean, nil
	case "enumerated":
		return Enumerated, nil
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidSpec, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: cannot marshal %s", ErrInvalidSpec, k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
