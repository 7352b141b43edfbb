package model

import (
	"errors"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"int32", TypeInt32},
		{"i", TypeInt32},
		{"int64", TypeInt64},
		{"float", TypeFloat32},
		{"f", TypeFloat32},
		{"double", TypeFloat64},
		{" Float64 ", TypeFloat64},
		{"s", TypeString},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseType(tc.in)
			if err != nil {
				t.Fatalf("ParseType(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseType(%q) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}

	if _, err := ParseType("complex128"); !errors.Is(err, ErrInvalidType) {
		t.Errorf("expected ErrInvalidType, got %v", err)
	}
}

func TestTypeClassification(t *testing.T) {
	if TypeUnknown.Valid() {
		t.Error("TypeUnknown must not be valid")
	}
	if !TypeString.Valid() || TypeString.IsNumeric() {
		t.Error("TypeString must be valid and non-numeric")
	}
	if !TypeInt64.IsInteger() || TypeFloat32.IsInteger() {
		t.Error("integer classification wrong")
	}
	if Type(42).String() != "unknown" {
		t.Errorf("out-of-range String() = %q", Type(42).String())
	}
}

func TestTypeText(t *testing.T) {
	b, err := TypeFloat64.MarshalText()
	if err != nil || string(b) != "float64" {
		t.Fatalf("MarshalText = %q, %v", b, err)
	}

	var ty Type
	if err := ty.UnmarshalText([]byte("int32")); err != nil || ty != TypeInt32 {
		t.Fatalf("UnmarshalText = %s, %v", ty, err)
	}
	if _, err := TypeUnknown.MarshalText(); err == nil {
		t.Error("expected error for TypeUnknown")
	}
}

func TestDirection(t *testing.T) {
	if !DirIn.IsConcrete() || !DirOut.IsConcrete() || DirAny.IsConcrete() {
		t.Error("IsConcrete classification wrong")
	}

	tests := []struct {
		filter, sig Direction
		want        bool
	}{
		{DirAny, DirIn, true},
		{DirAny, DirOut, true},
		{DirIn, DirIn, true},
		{DirIn, DirOut, false},
		{DirOut, DirIn, false},
		{0, DirOut, true},
	}
	for _, tc := range tests {
		if got := tc.filter.Matches(tc.sig); got != tc.want {
			t.Errorf("%s.Matches(%s) = %v, want %v", tc.filter, tc.sig, got, tc.want)
		}
	}

	d, err := ParseDirection("Output")
	if err != nil || d != DirOut {
		t.Errorf("ParseDirection(Output) = %s, %v", d, err)
	}
	if _, err := ParseDirection("sideways"); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("expected ErrInvalidDirection, got %v", err)
	}
}
