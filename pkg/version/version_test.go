package version

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    ProtocolVersion
		wantErr bool
	}{
		{"1.0", ProtocolVersion{1, 0}, false},
		{"2.13", ProtocolVersion{2, 13}, false},
		{"1", ProtocolVersion{}, true},
		{"1.x", ProtocolVersion{}, true},
		{".1", ProtocolVersion{}, true},
		{"1.2.3", ProtocolVersion{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCurrentParses(t *testing.T) {
	v, err := Parse(Current)
	if err != nil {
		t.Fatalf("Current %q does not parse: %v", Current, err)
	}
	if v.String() != Current {
		t.Errorf("String() = %q, want %q", v.String(), Current)
	}
}

func TestCheck(t *testing.T) {
	if err := Check(""); err != nil {
		t.Errorf("empty version: %v", err)
	}
	if err := Check(Current); err != nil {
		t.Errorf("current version: %v", err)
	}
	if err := Check("1.9"); err != nil {
		t.Errorf("same major: %v", err)
	}
	if err := Check("2.0"); !errors.Is(err, ErrIncompatible) {
		t.Errorf("other major: got %v", err)
	}
	if err := Check("garbage"); !errors.Is(err, ErrIncompatible) {
		t.Errorf("garbage: got %v", err)
	}
}
