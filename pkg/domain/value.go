package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// Value is a tagged union holding one parameter value.
// Only the field matching Kind is meaningful.
type Value struct {
	Kind  Kind
	Float float64 // Continuous
	Bool  bool    // Boolean
	Index int     // Enumerated
}

// FloatValue builds a Continuous value.
func FloatValue(v float64) Value { return Value{Kind: Continuous, Float: v} }

// BoolValue builds a Boolean value.
func BoolValue(v bool) Value { return Value{Kind: Boolean, Bool: v} }

// IndexValue builds an Enumerated value.
func IndexValue(v int) Value { return Value{Kind: Enumerated, Index: v} }

// Equal reports whether both values have the same kind and payload.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case Continuous:
		return v.Float == other.Float
	case Boolean:
		return v.Bool == other.Bool
	case Enumerated:
		return v.Index == other.Index
	default:
		panic(fmt.Sprintf("domain: unhandled %s", v.Kind))
	}
}

// Any returns the payload as a plain Go value, suitable for JSON encoding on the wire.
func (v Value) Any() any {
	switch v.Kind {
	case Continuous:
		return v.Float
	case Boolean:
		return v.Bool
	case Enumerated:
		return v.Index
	default:
		panic(fmt.Sprintf("domain: unhandled %s", v.Kind))
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if !v.Kind.Valid() {
		return "<invalid>"
	}
	return fmt.Sprintf("%s(%v)", v.Kind, v.Any())
}

// FromAny interprets a loosely typed payload (typically decoded JSON) as a value of kind k.
// Numbers arrive as float64 from encoding/json; json.Number and Go integer types are accepted too.
func FromAny(k Kind, raw any) (Value, error) {
	switch k {
	case Continuous:
		f, ok := toFloat(raw)
		if !ok {
			return Value{}, fmt.Errorf("%w: expected number, got %T", ErrMalformedValue, raw)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, fmt.Errorf("%w: non-finite number", ErrMalformedValue)
		}
		return FloatValue(f), nil
	case Boolean:
		b, ok := raw.(bool)
		if !ok {
			return Value{}, fmt.Errorf("%w: expected boolean, got %T", ErrMalformedValue, raw)
		}
		return BoolValue(b), nil
	case Enumerated:
		f, ok := toFloat(raw)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, fmt.Errorf("%w: expected choice index, got %v", ErrMalformedValue, raw)
		}
		if f != math.Trunc(f) {
			return Value{}, fmt.Errorf("%w: choice index %v is not an integer", ErrMalformedValue, f)
		}
		if f > math.MaxInt32 {
			f = math.MaxInt32
		} else if f < math.MinInt32 {
			f = math.MinInt32
		}
		return IndexValue(int(f)), nil
	default:
		panic(fmt.Sprintf("domain: unhandled %s", k))
	}
}

func toFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

type wireValue struct {
	Kind  Kind            `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON encodes the value as {"kind": ..., "value": ...}.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Kind.Valid() {
		return nil, fmt.Errorf("%w: cannot marshal %s", ErrMalformedValue, v.Kind)
	}
	payload, err := json.Marshal(v.Any())
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{Kind: v.Kind, Value: payload})
}

// UnmarshalJSON decodes the {"kind": ..., "value": ...} form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Kind.Valid() {
		return fmt.Errorf("%w: missing kind", ErrMalformedValue)
	}
	var raw any
	if err := json.Unmarshal(w.Value, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedValue, err)
	}
	parsed, err := FromAny(w.Kind, raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
