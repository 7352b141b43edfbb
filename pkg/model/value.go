package model

import (
	"fmt"
	"math"
	"slices"

	"github.com/fxamacker/cbor/v2"
)

// Value is an immutable vector of scalars of a single Type.
//
// The zero Value has TypeUnknown and length 0; it is used to mean "no value"
// (for example an unset minimum).
//
// CBOR encoding:
//
//	[type, [elem, elem, ...]]
type Value struct {
	typ  Type
	data any // []int32, []int64, []float32, []float64 or []string
}

// Int32s returns an int32 vector value.
func Int32s(v ...int32) Value { return Value{typ: TypeInt32, data: slices.Clone(v)} }

// Int64s returns an int64 vector value.
func Int64s(v ...int64) Value { return Value{typ: TypeInt64, data: slices.Clone(v)} }

// Float32s returns a float32 vector value.
func Float32s(v ...float32) Value { return Value{typ: TypeFloat32, data: slices.Clone(v)} }

// Float64s returns a float64 vector value.
func Float64s(v ...float64) Value { return Value{typ: TypeFloat64, data: slices.Clone(v)} }

// Strings returns a string vector value.
func Strings(v ...string) Value { return Value{typ: TypeString, data: slices.Clone(v)} }

// Type returns the element type.
func (v Value) Type() Type { return v.typ }

// IsZero reports whether v carries no elements.
func (v Value) IsZero() bool { return v.Len() == 0 }

// Len returns the vector length.
func (v Value) Len() int {
	switch d := v.data.(type) {
	case []int32:
		return len(d)
	case []int64:
		return len(d)
	case []float32:
		return len(d)
	case []float64:
		return len(d)
	case []string:
		return len(d)
	}
	return 0
}

// Index returns element i as a Go scalar.
func (v Value) Index(i int) any {
	switch d := v.data.(type) {
	case []int32:
		return d[i]
	case []int64:
		return d[i]
	case []float32:
		return d[i]
	case []float64:
		return d[i]
	case []string:
		return d[i]
	}
	panic("model: Index on empty value")
}

// Int32s returns a copy of the elements, or nil if v is not TypeInt32.
func (v Value) Int32s() []int32 {
	d, _ := v.data.([]int32)
	return slices.Clone(d)
}

// Int64s returns a copy of the elements, or nil if v is not TypeInt64.
func (v Value) Int64s() []int64 {
	d, _ := v.data.([]int64)
	return slices.Clone(d)
}

// Float32s returns a copy of the elements, or nil if v is not TypeFloat32.
func (v Value) Float32s() []float32 {
	d, _ := v.data.([]float32)
	return slices.Clone(d)
}

// Strings returns a copy of the elements, or nil if v is not TypeString.
func (v Value) Strings() []string {
	d, _ := v.data.([]string)
	return slices.Clone(d)
}

// Float64s returns the elements of a numeric value converted to float64.
// Returns nil for string or empty values.
func (v Value) Float64s() []float64 {
	switch d := v.data.(type) {
	case []float64:
		return slices.Clone(d)
	case []float32:
		return convertSlice(d, func(x float32) float64 { return float64(x) })
	case []int32:
		return convertSlice(d, func(x int32) float64 { return float64(x) })
	case []int64:
		return convertSlice(d, func(x int64) float64 { return float64(x) })
	}
	return nil
}

// Check verifies that v has exactly the given type and length.
func (v Value) Check(t Type, length int) error {
	if v.typ != t {
		return fmt.Errorf("%w: got %s, want %s", ErrTypeMismatch, v.typ, t)
	}
	if v.Len() != length {
		return fmt.Errorf("%w: got length %d, want %d", ErrTypeMismatch, v.Len(), length)
	}
	return nil
}

// Convert returns v converted to type t. Numeric types convert into each
// other: floats truncate toward zero when converted to integers, and an
// element that does not fit t (including NaN and infinities for integer
// types) fails with ErrTypeMismatch. Strings only convert to strings.
func (v Value) Convert(t Type) (Value, error) {
	if v.typ == t {
		return v, nil
	}
	if !t.Valid() {
		return Value{}, fmt.Errorf("%w: %d", ErrInvalidType, t)
	}
	if !v.typ.IsNumeric() || !t.IsNumeric() {
		return Value{}, fmt.Errorf("%w: cannot convert %s to %s", ErrTypeMismatch, v.typ, t)
	}
	return fromScalars(t, v.scalars())
}

// Clamp limits each element of a numeric value to [min, max]. Either bound
// may be the zero Value to leave that side open. A bound with a single
// element applies to every element of v. Elements inside the bounds are
// kept exactly.
func (v Value) Clamp(min, max Value) Value {
	if !v.typ.IsNumeric() || (min.IsZero() && max.IsZero()) {
		return v
	}
	lo, hi := min.Float64s(), max.Float64s()
	elems := v.scalars()
	changed := false
	for i, e := range elems {
		x := toFloat(e)
		if b, ok := boundAt(lo, i); ok && x < b {
			elems[i], x, changed = b, b, true
		}
		if b, ok := boundAt(hi, i); ok && x > b {
			elems[i], changed = b, true
		}
	}
	if !changed {
		return v
	}
	out, err := fromScalars(v.typ, elems)
	if err != nil {
		return v
	}
	return out
}

// Equal reports whether v and o have the same type and elements.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ || v.Len() != o.Len() {
		return false
	}
	if v.Len() == 0 {
		return true
	}
	switch d := v.data.(type) {
	case []int32:
		return slices.Equal(d, o.data.([]int32))
	case []int64:
		return slices.Equal(d, o.data.([]int64))
	case []float32:
		return slices.Equal(d, o.data.([]float32))
	case []float64:
		return slices.Equal(d, o.data.([]float64))
	case []string:
		return slices.Equal(d, o.data.([]string))
	}
	return true
}

// String formats the value as "type[e0 e1 ...]".
func (v Value) String() string {
	if v.IsZero() {
		return "<none>"
	}
	return fmt.Sprintf("%s%v", v.typ, v.data)
}

// FromAny builds a Value of type t and the given length from a Go value.
//
// Accepted inputs are a Value, a Go scalar (broadcast to every element),
// or a slice of Go scalars whose length equals length. Numeric inputs are
// converted to t; mixing strings and numbers fails with ErrTypeMismatch.
func FromAny(t Type, length int, in any) (Value, error) {
	if !t.Valid() {
		return Value{}, fmt.Errorf("%w: %d", ErrInvalidType, t)
	}
	if length < 1 {
		return Value{}, fmt.Errorf("%w: length %d", ErrTypeMismatch, length)
	}

	if v, ok := in.(Value); ok {
		conv, err := v.Convert(t)
		if err != nil {
			return Value{}, err
		}
		return conv, conv.Check(t, length)
	}

	elems, isSlice := toAnySlice(in)
	if !isSlice {
		elems = make([]any, length)
		for i := range elems {
			elems[i] = in
		}
	}
	if len(elems) != length {
		return Value{}, fmt.Errorf("%w: got length %d, want %d", ErrTypeMismatch, len(elems), length)
	}

	if t == TypeString {
		out := make([]string, length)
		for i, e := range elems {
			s, ok := e.(string)
			if !ok {
				return Value{}, fmt.Errorf("%w: element %d is %T, want string", ErrTypeMismatch, i, e)
			}
			out[i] = s
		}
		return Value{typ: t, data: out}, nil
	}

	nums := make([]any, length)
	for i, e := range elems {
		n, ok := scalar(e)
		if !ok {
			return Value{}, fmt.Errorf("%w: element %d is %T, want number", ErrTypeMismatch, i, e)
		}
		nums[i] = n
	}
	return fromScalars(t, nums)
}

type encodedValue struct {
	_     struct{} `cbor:",toarray"`
	Type  Type
	Elems cbor.RawMessage
}

// MarshalCBOR implements cbor.Marshaler.
func (v Value) MarshalCBOR() ([]byte, error) {
	if !v.typ.Valid() || v.IsZero() {
		return nil, fmt.Errorf("%w: cannot encode empty value", ErrTypeMismatch)
	}
	elems, err := cbor.Marshal(v.data)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(encodedValue{Type: v.typ, Elems: elems})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (v *Value) UnmarshalCBOR(data []byte) error {
	var enc encodedValue
	if err := cbor.Unmarshal(data, &enc); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}

	var (
		decoded any
		err     error
	)
	switch enc.Type {
	case TypeInt32:
		var d []int32
		err = cbor.Unmarshal(enc.Elems, &d)
		decoded = d
	case TypeInt64:
		var d []int64
		err = cbor.Unmarshal(enc.Elems, &d)
		decoded = d
	case TypeFloat32:
		var d []float32
		err = cbor.Unmarshal(enc.Elems, &d)
		decoded = d
	case TypeFloat64:
		var d []float64
		err = cbor.Unmarshal(enc.Elems, &d)
		decoded = d
	case TypeString:
		var d []string
		err = cbor.Unmarshal(enc.Elems, &d)
		decoded = d
	default:
		return fmt.Errorf("%w: %d", ErrInvalidType, enc.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s elements: %w", enc.Type, err)
	}

	out := Value{typ: enc.Type, data: decoded}
	if out.IsZero() {
		return fmt.Errorf("%w: empty value", ErrTypeMismatch)
	}
	*v = out
	return nil
}

func boundAt(bounds []float64, i int) (float64, bool) {
	switch {
	case len(bounds) == 0:
		return 0, false
	case len(bounds) == 1:
		return bounds[0], !math.IsNaN(bounds[0])
	case i < len(bounds):
		return bounds[i], !math.IsNaN(bounds[i])
	}
	return 0, false
}

func convertSlice[S, D any](in []S, f func(S) D) []D {
	out := make([]D, len(in))
	for i, x := range in {
		out[i] = f(x)
	}
	return out
}

func toAnySlice(in any) ([]any, bool) {
	switch s := in.(type) {
	case []any:
		return s, true
	case []int:
		return convertSlice(s, func(x int) any { return x }), true
	case []int32:
		return convertSlice(s, func(x int32) any { return x }), true
	case []int64:
		return convertSlice(s, func(x int64) any { return x }), true
	case []float32:
		return convertSlice(s, func(x float32) any { return x }), true
	case []float64:
		return convertSlice(s, func(x float64) any { return x }), true
	case []string:
		return convertSlice(s, func(x string) any { return x }), true
	}
	return nil, false
}
