package domain

import "errors"

// ErrUnknownParameter is returned when a parameter ID is not part of the control surface.
var ErrUnknownParameter = errors.New("unknown parameter")

// ErrKindMismatch is returned when a value of one Kind is applied to a parameter of another.
var ErrKindMismatch = errors.New("parameter kind mismatch")

// ErrMalformedValue is returned when a value cannot be interpreted (NaN, wrong JSON type).
var ErrMalformedValue = errors.New("malformed parameter value")

// ErrInvalidSpec is returned when a ParameterSpec or Layout is inconsistent.
var ErrInvalidSpec = errors.New("invalid parameter spec")

// ErrSnapshotNotFound is returned when a snapshot name cannot be found in the store.
var ErrSnapshotNotFound = errors.New("snapshot not found")
