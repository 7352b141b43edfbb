package log

import (
	"time"

	"github.com/mapper-protocol/mapper-go/pkg/timetag"
	"github.com/mapper-protocol/mapper-go/pkg/wire"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the session the event belongs to (its token).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Device is the local device name (full name once ready).
	Device string `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port), when known.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Peer is the remote device name, when known.
	Peer string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Device/session state
	Instance    *InstanceEvent    `cbor:"13,keyasint,omitempty"` // Instance lifecycle
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the datagram layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the message encoding layer (decoded CBOR).
	LayerWire Layer = 1
	// LayerDevice is the device/signal layer.
	LayerDevice Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a batch of signal updates.
	CategoryMessage Category = 0
	// CategoryPresence indicates a heartbeat or logout.
	CategoryPresence Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
	// CategoryInstance indicates an instance lifecycle event.
	CategoryInstance Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryPresence:
		return "PRESENCE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategoryInstance:
		return "INSTANCE"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw datagram data at the transport layer.
type FrameEvent struct {
	// Size is the datagram size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw datagram (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded message at the wire layer.
type MessageEvent struct {
	Type wire.MessageType `cbor:"1,keyasint"`

	Source      string `cbor:"2,keyasint,omitempty"`
	Destination string `cbor:"3,keyasint,omitempty"`

	// Seq is the batch sequence number (batches only).
	Seq uint64 `cbor:"4,keyasint,omitempty"`

	// Time is the batch time tag (batches only).
	Time *timetag.Time `cbor:"5,keyasint,omitempty"`

	// Updates is the number of updates in a batch.
	Updates int `cbor:"6,keyasint,omitempty"`

	// Signals lists the signal names touched by a batch, in order.
	Signals []string `cbor:"7,keyasint,omitempty"`
}

// NewMessageEvent summarizes a batch for logging.
func NewMessageEvent(b *wire.Batch) *MessageEvent {
	t := b.Time
	ev := &MessageEvent{
		Type:        wire.MessageTypeBatch,
		Source:      b.Source,
		Destination: b.Destination,
		Seq:         b.Seq,
		Time:        &t,
		Updates:     len(b.Updates),
	}
	for _, u := range b.Updates {
		ev.Signals = append(ev.Signals, u.Signal)
	}
	return ev
}

// StateChangeEvent captures device and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityDevice indicates a device readiness change.
	StateEntityDevice StateEntity = 0
	// StateEntitySession indicates a session state change.
	StateEntitySession StateEntity = 1
	// StateEntityName indicates a name allocation change.
	StateEntityName StateEntity = 2
	// StateEntityQueue indicates a queue open/send/discard.
	StateEntityQueue StateEntity = 3
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityDevice:
		return "DEVICE"
	case StateEntitySession:
		return "SESSION"
	case StateEntityName:
		return "NAME"
	case StateEntityQueue:
		return "QUEUE"
	default:
		return "UNKNOWN"
	}
}

// InstanceEvent captures an instance allocation, release or steal.
type InstanceEvent struct {
	Signal   string `cbor:"1,keyasint"`
	Instance uint64 `cbor:"2,keyasint"`

	// Kind is the lifecycle event name ("new", "release", "overflow").
	Kind string `cbor:"3,keyasint"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
