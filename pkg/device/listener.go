package device

import (
	"github.com/mapper-protocol/mapper-go/pkg/model"
	"github.com/mapper-protocol/mapper-go/pkg/timetag"
)

// InstanceEvent is a change in the lifecycle of a signal instance.
type InstanceEvent uint8

const (
	// InstanceNew is reported when a remote update creates an instance.
	InstanceNew InstanceEvent = iota + 1

	// InstanceRelease is reported when a remote peer releases an instance.
	InstanceRelease

	// InstanceOverflow is reported for the instance reclaimed when a
	// signal runs out of instances.
	InstanceOverflow
)

// String returns the event name.
func (e InstanceEvent) String() string {
	switch e {
	case InstanceNew:
		return "new"
	case InstanceRelease:
		return "release"
	case InstanceOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Listener receives signal callbacks. Both methods are only called from
// Device.Poll.
type Listener interface {
	// OnUpdate is called for every remote update of an input signal.
	OnUpdate(sig *Signal, instance uint64, value model.Value, t timetag.Time)

	// OnInstanceEvent is called when an instance is created, released or
	// reclaimed.
	OnInstanceEvent(sig *Signal, instance uint64, ev InstanceEvent)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Update        func(sig *Signal, instance uint64, value model.Value, t timetag.Time)
	InstanceEvent func(sig *Signal, instance uint64, ev InstanceEvent)
}

// OnUpdate calls f.Update.
func (f ListenerFuncs) OnUpdate(sig *Signal, instance uint64, value model.Value, t timetag.Time) {
	if f.Update != nil {
		f.Update(sig, instance, value, t)
	}
}

// OnInstanceEvent calls f.InstanceEvent.
func (f ListenerFuncs) OnInstanceEvent(sig *Signal, instance uint64, ev InstanceEvent) {
	if f.InstanceEvent != nil {
		f.InstanceEvent(sig, instance, ev)
	}
}

var _ Listener = ListenerFuncs{}
