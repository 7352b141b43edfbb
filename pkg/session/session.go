package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mapper-protocol/mapper-go/pkg/wire"
)

// Session errors.
var (
	// ErrClosed is returned once the last reference has been released.
	ErrClosed = errors.New("session closed")

	// ErrUnknownHandle is returned for handles that never joined or already left.
	ErrUnknownHandle = errors.New("unknown handle")

	// ErrNotReady is returned when publishing before the member has a name.
	ErrNotReady = errors.New("member not ready")

	// ErrInvalidName is returned for unusable device names.
	ErrInvalidName = errors.New("invalid device name")

	// ErrInvalidMap is returned for malformed map endpoints.
	ErrInvalidMap = errors.New("invalid map")

	// ErrMapExists is returned when mapping the same pair twice.
	ErrMapExists = errors.New("map already exists")

	// ErrMapNotFound is returned when unmapping an unknown pair.
	ErrMapNotFound = errors.New("map not found")

	// ErrInitialization is returned when no local transport can be set up.
	ErrInitialization = errors.New("session initialization failed")
)

// Handle identifies one member of a session.
type Handle uint32

// Identity is the network identity of a ready member.
type Identity struct {
	// Name is the full device name ("synth.1").
	Name string

	// ID is the network-unique device id.
	ID uint64
}

// SignalRef names a signal of a device by full device name.
type SignalRef struct {
	Device string
	Signal string
}

// String returns "device/signal".
func (r SignalRef) String() string {
	return r.Device + "/" + r.Signal
}

// ParseSignalRef parses "device/signal".
func ParseSignalRef(s string) (SignalRef, error) {
	dev, sig, ok := strings.Cut(s, "/")
	if !ok || dev == "" || sig == "" {
		return SignalRef{}, fmt.Errorf("%w: %q is not device/signal", ErrInvalidMap, s)
	}
	return SignalRef{Device: dev, Signal: sig}, nil
}

// Map connects a source signal to a destination signal.
type Map struct {
	Source      SignalRef
	Destination SignalRef
}

// String returns "src -> dst".
func (m Map) String() string {
	return m.Source.String() + " -> " + m.Destination.String()
}

// Subscriber receives batches addressed to a member. It may be called from
// any goroutine that drives the session and must not block.
type Subscriber func(*wire.Batch)

// Session is the collaborator a device uses to take part in the network.
type Session interface {
	// Join registers a device under a base name. The member is not ready
	// until a full name has been negotiated during later pumps.
	Join(name string) (Handle, error)

	// Leave unregisters a member and withdraws its name.
	Leave(h Handle) error

	// Identity returns the identity of a ready member.
	Identity(h Handle) (Identity, bool)

	// Publish routes a batch from a ready member along the session's maps.
	// Source, type and sequence number are filled in by the session. A batch
	// with a destination set is delivered to that device unchanged.
	Publish(h Handle, b *wire.Batch) error

	// Subscribe registers fn for batches addressed to h.
	Subscribe(h Handle, fn Subscriber) error

	// Pump services discovery and transport for at most timeout and returns
	// the number of events handled. A zero timeout drains without waiting.
	Pump(timeout time.Duration) (int, error)

	// Retain adds a reference.
	Retain()

	// Release drops a reference and closes the session when none remain.
	Release() error
}

// Mapper manages the maps of a session.
type Mapper interface {
	// Map connects src to dst. Maps refer to full device names and persist
	// when either device leaves.
	Map(src, dst SignalRef) error

	// Unmap removes a map.
	Unmap(src, dst SignalRef) error

	// Maps returns all maps in creation order.
	Maps() []Map
}
