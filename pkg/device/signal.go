package device

import (
	"fmt"
	"math"

	"github.com/mapper-protocol/mapper-go/pkg/model"
	"github.com/mapper-protocol/mapper-go/pkg/session"
	"github.com/mapper-protocol/mapper-go/pkg/timetag"
)

// SignalOptions holds the optional properties of a new signal.
type SignalOptions struct {
	// Unit is a free-form unit label such as "Hz".
	Unit string

	// Min and Max bound the signal. Each is nil, a scalar applied to every
	// element, or a slice of the signal's length. Infinite float bounds
	// are treated as absent.
	Min, Max any

	// MaxInstances limits the number of active instances. Zero means
	// unlimited.
	MaxInstances int

	// Listener receives updates and instance events.
	Listener Listener
}

// Signal is a named, typed channel of a device. Length and type never
// change; unit, range and listener may.
type Signal struct {
	dev *Device // nil once removed

	id     uint64
	name   string
	dir    model.Direction
	length int
	typ    model.Type

	unit     string
	min, max model.Value
	listener Listener

	instances *instanceTable
}

// Name returns the signal name.
func (s *Signal) Name() string { return s.name }

// ID returns the signal id, unique within its device.
func (s *Signal) ID() uint64 { return s.id }

// Direction returns DirIn or DirOut.
func (s *Signal) Direction() model.Direction { return s.dir }

// Length returns the vector length.
func (s *Signal) Length() int { return s.length }

// Type returns the element type.
func (s *Signal) Type() model.Type { return s.typ }

// Unit returns the unit label.
func (s *Signal) Unit() string { return s.unit }

// SetUnit changes the unit label.
func (s *Signal) SetUnit(unit string) { s.unit = unit }

// Min returns the lower bound, or the zero Value when unbounded.
func (s *Signal) Min() model.Value { return s.min }

// Max returns the upper bound, or the zero Value when unbounded.
func (s *Signal) Max() model.Value { return s.max }

// SetRange changes the bounds. See SignalOptions for accepted forms.
func (s *Signal) SetRange(min, max any) error {
	lo, err := boundValue(s.typ, s.length, min)
	if err != nil {
		return fmt.Errorf("min: %w", err)
	}
	hi, err := boundValue(s.typ, s.length, max)
	if err != nil {
		return fmt.Errorf("max: %w", err)
	}
	s.min, s.max = lo, hi
	return nil
}

// MaxInstances returns the instance limit, 0 when unlimited.
func (s *Signal) MaxInstances() int { return s.instances.max }

// Listener returns the listener, which may be nil.
func (s *Signal) Listener() Listener { return s.listener }

// SetListener replaces the listener. Nil removes it.
func (s *Signal) SetListener(l Listener) { s.listener = l }

// Device returns the owning device, or nil after the signal was removed.
func (s *Signal) Device() *Device { return s.dev }

// Ref returns the map endpoint of the signal.
func (s *Signal) Ref() session.SignalRef {
	ref := session.SignalRef{Signal: s.name}
	if s.dev != nil {
		ref.Device = s.dev.Name()
	}
	return ref
}

// Path returns "device/signal".
func (s *Signal) Path() string {
	return s.Ref().String()
}

// SetValue updates an instance. Numbers are converted to the signal type
// and scalars are broadcast to its length; a model.Value must match type
// and length exactly. Updates of output signals are published: with the
// device's open queue, or on their own stamped now.
func (s *Signal) SetValue(instance uint64, v any) error {
	if err := s.usable(); err != nil {
		return err
	}

	val, err := s.coerce(v)
	if err != nil {
		return err
	}
	return s.dev.update(s, instance, val)
}

// Value returns the current value and time of an instance.
func (s *Signal) Value(instance uint64) (model.Value, timetag.Time, bool) {
	inst, ok := s.instances.get(instance)
	if !ok {
		return model.Value{}, timetag.Time{}, false
	}
	return inst.value, inst.time, true
}

// ReleaseInstance frees an instance id. Releasing an unknown instance does
// nothing. Releases of output signals are published like updates.
func (s *Signal) ReleaseInstance(instance uint64) error {
	if err := s.usable(); err != nil {
		return err
	}
	if !s.instances.release(instance) {
		return nil
	}
	return s.dev.released(s, instance)
}

// ActiveInstances returns the active instance ids in ascending order.
func (s *Signal) ActiveInstances() []uint64 {
	return s.instances.ids()
}

// NumActiveInstances returns the number of active instances.
func (s *Signal) NumActiveInstances() int {
	return s.instances.len()
}

// String returns the signal path.
func (s *Signal) String() string {
	return fmt.Sprintf("%s (%s %s[%d])", s.Path(), s.dir, s.typ, s.length)
}

func (s *Signal) usable() error {
	if s.dev == nil {
		return fmt.Errorf("%w: %s", ErrSignalRemoved, s.name)
	}
	if s.dev.closed {
		return ErrDeviceClosed
	}
	return nil
}

func (s *Signal) coerce(v any) (model.Value, error) {
	if mv, ok := v.(model.Value); ok {
		if err := mv.Check(s.typ, s.length); err != nil {
			return model.Value{}, fmt.Errorf("signal %s: %w", s.name, err)
		}
		return mv, nil
	}
	mv, err := model.FromAny(s.typ, s.length, v)
	if err != nil {
		return model.Value{}, fmt.Errorf("signal %s: %w", s.name, err)
	}
	return mv, nil
}

// boundValue converts a range bound for a signal of type t.
func boundValue(t model.Type, length int, v any) (model.Value, error) {
	if v == nil {
		return model.Value{}, nil
	}
	if !t.IsNumeric() {
		return model.Value{}, fmt.Errorf("%w: %s signals have no range", ErrInvalidArgument, t)
	}
	if mv, ok := v.(model.Value); ok && mv.IsZero() {
		return model.Value{}, nil
	}
	if f, ok := v.(float64); ok && math.IsInf(f, 0) {
		return model.Value{}, nil
	}
	if f, ok := v.(float32); ok && math.IsInf(float64(f), 0) {
		return model.Value{}, nil
	}

	mv, err := model.FromAny(t, length, v)
	if err != nil {
		return model.Value{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return mv, nil
}
