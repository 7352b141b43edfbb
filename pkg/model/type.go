package model

import (
	"errors"
	"fmt"
	"strings"
)

// Model errors.
var (
	// ErrTypeMismatch indicates a value whose type or length does not match
	// the declared shape.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidType indicates an unsupported scalar type.
	ErrInvalidType = errors.New("invalid type")

	// ErrInvalidDirection indicates an unknown direction.
	ErrInvalidDirection = errors.New("invalid direction")
)

// Type is the scalar element type of a signal.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeString
)

var typeNames = [...]string{"unknown", "int32", "int64", "float32", "float64", "string"}

// String returns the type name.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Valid reports whether t is one of the supported types.
func (t Type) Valid() bool {
	return t >= TypeInt32 && t <= TypeString
}

// IsNumeric reports whether t is an integer or floating point type.
func (t Type) IsNumeric() bool {
	return t >= TypeInt32 && t <= TypeFloat64
}

// IsInteger reports whether t is an integer type.
func (t Type) IsInteger() bool {
	return t == TypeInt32 || t == TypeInt64
}

// ParseType parses a type name. Single letter codes ("i", "h", "f", "d",
// "s") are accepted as well.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int32", "int", "i":
		return TypeInt32, nil
	case "int64", "long", "h":
		return TypeInt64, nil
	case "float32", "float", "f":
		return TypeFloat32, nil
	case "float64", "double", "d":
		return TypeFloat64, nil
	case "string", "str", "s":
		return TypeString, nil
	}
	return TypeUnknown, fmt.Errorf("%w: %q", ErrInvalidType, s)
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Direction describes whether a signal consumes or produces values.
type Direction uint8

const (
	// DirIn is an input signal: it receives updates from remote maps.
	DirIn Direction = 1 << iota

	// DirOut is an output signal: local updates are published.
	DirOut

	// DirAny matches both directions. Only valid as a query filter.
	DirAny = DirIn | DirOut
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirIn:
		return "IN"
	case DirOut:
		return "OUT"
	case DirAny:
		return "ANY"
	default:
		return "UNKNOWN"
	}
}

// IsConcrete reports whether d names exactly one direction.
func (d Direction) IsConcrete() bool {
	return d == DirIn || d == DirOut
}

// Matches reports whether a signal with direction sig passes the filter d.
// A zero filter matches everything.
func (d Direction) Matches(sig Direction) bool {
	if d == 0 {
		return true
	}
	return d&sig != 0
}

// ParseDirection parses "in", "out" or "any".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "input", "incoming":
		return DirIn, nil
	case "out", "output", "outgoing":
		return DirOut, nil
	case "any", "both", "":
		return DirAny, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}
