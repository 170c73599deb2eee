package domain

import (
	"fmt"
	"math"
)

// ParameterID is the immutable key of a parameter, shared by the native registry and the relay set.
type ParameterID string

// Range describes the bounded domain of a Continuous parameter.
type Range struct {
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Interval float64 `json:"interval,omitempty"` // Step size; 0 means unquantized
	Skew     float64 `json:"skew,omitempty"`     // Normalization exponent; 0 or 1 is linear
}

// Validate checks that the range is finite and non-empty.
func (r Range) Validate() error {
	for _, f := range []float64{r.Min, r.Max, r.Interval, r.Skew} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: range values must be finite", ErrInvalidSpec)
		}
	}
	if r.Max <= r.Min {
		return fmt.Errorf("%w: range max %v must exceed min %v", ErrInvalidSpec, r.Max, r.Min)
	}
	if r.Interval < 0 || r.Skew < 0 {
		return fmt.Errorf("%w: interval and skew must not be negative", ErrInvalidSpec)
	}
	return nil
}

// Clamp limits v to [Min, Max].
func (r Range) Clamp(v float64) float64 {
	return math.Min(math.Max(v, r.Min), r.Max)
}

// Snap clamps v and rounds it to the nearest Interval step counted from Min.
func (r Range) Snap(v float64) float64 {
	v = r.Clamp(v)
	if r.Interval <= 0 {
		return v
	}
	steps := math.Round((v - r.Min) / r.Interval)
	return r.Clamp(r.Min + steps*r.Interval)
}

// Normalize maps a plain value to [0, 1], applying the skew exponent.
func (r Range) Normalize(v float64) float64 {
	p := (r.Clamp(v) - r.Min) / (r.Max - r.Min)
	if r.Skew > 0 && r.Skew != 1 {
		p = math.Pow(p, r.Skew)
	}
	return p
}

// Denormalize maps a proportion in [0, 1] back to the plain range.
func (r Range) Denormalize(p float64) float64 {
	p = math.Min(math.Max(p, 0), 1)
	if r.Skew > 0 && r.Skew != 1 && p > 0 {
		p = math.Exp(math.Log(p) / r.Skew)
	}
	return r.Min + (r.Max-r.Min)*p
}

// ParameterSpec is the static description of one parameter of the control surface.
type ParameterSpec struct {
	ID      ParameterID `json:"id"`
	Name    string      `json:"name"`
	Kind    Kind        `json:"kind"`
	Unit    string      `json:"unit,omitempty"`
	Range   Range       `json:"range"`             // Continuous only
	Choices []string    `json:"choices,omitempty"` // Enumerated only
	Default Value       `json:"default"`
}

// Validate checks the spec for internal consistency.
func (s ParameterSpec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: empty parameter id", ErrInvalidSpec)
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("%w: parameter %q has %s", ErrInvalidSpec, s.ID, s.Kind)
	}
	if s.Default.Kind != s.Kind {
		return fmt.Errorf("%w: parameter %q default is %s, want %s", ErrInvalidSpec, s.ID, s.Default.Kind, s.Kind)
	}
	switch s.Kind {
	case Continuous:
		if err := s.Range.Validate(); err != nil {
			return fmt.Errorf("parameter %q: %w", s.ID, err)
		}
		if s.Default.Float < s.Range.Min || s.Default.Float > s.Range.Max {
			return fmt.Errorf("%w: parameter %q default %v outside range", ErrInvalidSpec, s.ID, s.Default.Float)
		}
	case Boolean:
	case Enumerated:
		if len(s.Choices) == 0 {
			return fmt.Errorf("%w: parameter %q has no choices", ErrInvalidSpec, s.ID)
		}
		if s.Default.Index < 0 || s.Default.Index >= len(s.Choices) {
			return fmt.Errorf("%w: parameter %q default index %d outside choices", ErrInvalidSpec, s.ID, s.Default.Index)
		}
	default:
		panic(fmt.Sprintf("domain: unhandled %s", s.Kind))
	}
	return nil
}

// Constrain coerces v into the parameter's valid domain.
// Out-of-range values are clamped (and snapped to Interval); a kind mismatch or a
// non-finite number is rejected.
func (s ParameterSpec) Constrain(v Value) (Value, error) {
	if v.Kind != s.Kind {
		return Value{}, fmt.Errorf("%w: parameter %q is %s, got %s", ErrKindMismatch, s.ID, s.Kind, v.Kind)
	}
	switch s.Kind {
	case Continuous:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return Value{}, fmt.Errorf("%w: parameter %q", ErrMalformedValue, s.ID)
		}
		return FloatValue(s.Range.Snap(v.Float)), nil
	case Boolean:
		return v, nil
	case Enumerated:
		idx := v.Index
		if idx < 0 {
			idx = 0
		}
		if idx >= len(s.Choices) {
			idx = len(s.Choices) - 1
		}
		return IndexValue(idx), nil
	default:
		panic(fmt.Sprintf("domain: unhandled %s", s.Kind))
	}
}

// Normalized returns the [0, 1] proportion of v within the parameter's domain.
func (s ParameterSpec) Normalized(v Value) float64 {
	switch s.Kind {
	case Continuous:
		return s.Range.Normalize(v.Float)
	case Boolean:
		if v.Bool {
			return 1
		}
		return 0
	case Enumerated:
		if len(s.Choices) < 2 {
			return 0
		}
		return float64(v.Index) / float64(len(s.Choices)-1)
	default:
		panic(fmt.Sprintf("domain: unhandled %s", s.Kind))
	}
}

// FromNormalized maps a [0, 1] proportion back to a value of the parameter's kind.
func (s ParameterSpec) FromNormalized(p float64) (Value, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return Value{}, fmt.Errorf("%w: parameter %q normalized value", ErrMalformedValue, s.ID)
	}
	p = math.Min(math.Max(p, 0), 1)
	switch s.Kind {
	case Continuous:
		return s.Constrain(FloatValue(s.Range.Denormalize(p)))
	case Boolean:
		return BoolValue(p >= 0.5), nil
	case Enumerated:
		return s.Constrain(IndexValue(int(math.Round(p * float64(len(s.Choices)-1)))))
	default:
		panic(fmt.Sprintf("domain: unhandled %s", s.Kind))
	}
}

// Layout is the ordered, closed list of parameters exposed by a control surface.
type Layout []ParameterSpec

// Validate checks every spec and rejects duplicate IDs.
func (l Layout) Validate() error {
	seen := make(map[ParameterID]struct{}, len(l))
	for _, spec := range l {
		if err := spec.Validate(); err != nil {
			return err
		}
		if _, dup := seen[spec.ID]; dup {
			return fmt.Errorf("%w: duplicate parameter id %q", ErrInvalidSpec, spec.ID)
		}
		seen[spec.ID] = struct{}{}
	}
	return nil
}

// Lookup returns the spec for id.
func (l Layout) Lookup(id ParameterID) (ParameterSpec, bool) {
	for _, spec := range l {
		if spec.ID == id {
			return spec, true
		}
	}
	return ParameterSpec{}, false
}
