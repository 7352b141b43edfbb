package model

import (
	"fmt"
	"math"
)

// Bounds of int64 as float64. 2^63 itself is not representable as int64.
const (
	minInt64Float = -(1 << 63)
	maxInt64Float = 1 << 63
)

// scalar normalizes a Go number to int64, uint64 (only above MaxInt64) or
// float64, so integers never pass through float64.
func scalar(v any) (any, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return fromUint(uint64(n)), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return fromUint(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return nil, false
	}
}

func fromUint(n uint64) any {
	if n > math.MaxInt64 {
		return n
	}
	return int64(n)
}

// scalars returns the elements of a numeric value in normalized form.
func (v Value) scalars() []any {
	switch d := v.data.(type) {
	case []int32:
		return convertSlice(d, func(x int32) any { return int64(x) })
	case []int64:
		return convertSlice(d, func(x int64) any { return x })
	case []float32:
		return convertSlice(d, func(x float32) any { return float64(x) })
	case []float64:
		return convertSlice(d, func(x float64) any { return x })
	}
	return nil
}

// toInt64 converts a normalized scalar, truncating floats toward zero.
// NaN, infinities and values outside the int64 range fail.
func toInt64(x any) (int64, bool) {
	switch n := x.(type) {
	case int64:
		return n, true
	case uint64:
		return 0, false
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		n = math.Trunc(n)
		if n < minInt64Float || n >= maxInt64Float {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func toFloat(x any) float64 {
	switch n := x.(type) {
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case float64:
		return n
	}
	return math.NaN()
}

// fromScalars builds a value of numeric type t. Elements that do not fit t
// fail with ErrTypeMismatch instead of wrapping.
func fromScalars(t Type, elems []any) (Value, error) {
	outOfRange := func(i int, x any) error {
		return fmt.Errorf("%w: element %d (%v) out of range for %s", ErrTypeMismatch, i, x, t)
	}

	switch t {
	case TypeInt32:
		out := make([]int32, len(elems))
		for i, e := range elems {
			n, ok := toInt64(e)
			if !ok || n < math.MinInt32 || n > math.MaxInt32 {
				return Value{}, outOfRange(i, e)
			}
			out[i] = int32(n)
		}
		return Value{typ: t, data: out}, nil
	case TypeInt64:
		out := make([]int64, len(elems))
		for i, e := range elems {
			n, ok := toInt64(e)
			if !ok {
				return Value{}, outOfRange(i, e)
			}
			out[i] = n
		}
		return Value{typ: t, data: out}, nil
	case TypeFloat32:
		out := make([]float32, len(elems))
		for i, e := range elems {
			f := toFloat(e)
			if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
				return Value{}, outOfRange(i, e)
			}
			out[i] = float32(f)
		}
		return Value{typ: t, data: out}, nil
	case TypeFloat64:
		return Value{typ: t, data: convertSlice(elems, toFloat)}, nil
	}
	return Value{}, fmt.Errorf("%w: %s is not numeric", ErrTypeMismatch, t)
}
