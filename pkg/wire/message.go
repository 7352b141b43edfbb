package wire

import (
	"errors"
	"fmt"

	"github.com/mapper-protocol/mapper-go/pkg/model"
	"github.com/mapper-protocol/mapper-go/pkg/timetag"
)

// Message validation errors.
var (
	ErrMissingSource      = errors.New("missing source")
	ErrMissingDestination = errors.New("missing destination")
	ErrMissingSignal      = errors.New("missing signal name")
	ErrWrongMessageType   = errors.New("wrong message type")
)

// MessageType identifies the kind of a message (CBOR key 1).
type MessageType uint8

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeBatch
	MessageTypeHeartbeat
	MessageTypeLogout
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case MessageTypeBatch:
		return "batch"
	case MessageTypeHeartbeat:
		return "heartbeat"
	case MessageTypeLogout:
		return "logout"
	default:
		return "unknown"
	}
}

// Update is one signal instance change inside a Batch.
//
// CBOR encoding:
//
//	[signal, instance, value|null]
type Update struct {
	_        struct{}     `cbor:",toarray"`
	Signal   string       // destination signal name
	Instance uint64       // instance id, 0 for singleton signals
	Value    *model.Value // nil releases the instance
}

// IsRelease reports whether the update releases its instance.
func (u Update) IsRelease() bool {
	return u.Value == nil
}

// Batch carries the updates a source device sends to one destination device
// in a single emission. All updates share the batch time tag.
//
// CBOR encoding:
//
//	{
//	  1: type,         // 1
//	  2: source,       // string: full name of the sending device
//	  3: destination,  // string: full name of the receiving device
//	  4: time,         // [sec, frac]
//	  5: seq,          // uint64: per source, monotonic
//	  6: updates       // [Update...]
//	}
type Batch struct {
	Type        MessageType  `cbor:"1,keyasint"`
	Source      string       `cbor:"2,keyasint"`
	Destination string       `cbor:"3,keyasint"`
	Time        timetag.Time `cbor:"4,keyasint"`
	Seq         uint64       `cbor:"5,keyasint,omitempty"`
	Updates     []Update     `cbor:"6,keyasint"`
}

// NewBatch returns an empty batch stamped with t.
func NewBatch(source string, t timetag.Time) *Batch {
	return &Batch{Type: MessageTypeBatch, Source: source, Time: t}
}

// Add appends an update. A nil value releases the instance.
func (b *Batch) Add(signal string, instance uint64, value *model.Value) {
	b.Updates = append(b.Updates, Update{Signal: signal, Instance: instance, Value: value})
}

// Len returns the number of updates.
func (b *Batch) Len() int {
	return len(b.Updates)
}

// Validate checks the batch for structural errors. The destination is
// optional so a batch can be built before it is routed.
func (b *Batch) Validate() error {
	if b.Type != MessageTypeBatch {
		return fmt.Errorf("%w: %s", ErrWrongMessageType, b.Type)
	}
	if b.Source == "" {
		return ErrMissingSource
	}
	for i, u := range b.Updates {
		if u.Signal == "" {
			return fmt.Errorf("update %d: %w", i, ErrMissingSignal)
		}
	}
	return nil
}

// Clone returns a copy of b with its own update slice. Values are shared;
// model.Value is immutable.
func (b *Batch) Clone() *Batch {
	c := *b
	c.Updates = append([]Update(nil), b.Updates...)
	return &c
}

// Heartbeat announces a ready device to its peers.
//
// CBOR encoding:
//
//	{
//	  1: type,     // 2
//	  2: source,   // string: full device name
//	  3: id,       // uint64: device id
//	  4: token,    // string: per-process session token
//	  5: version,  // string: protocol version
//	  6: port      // uint16: UDP port of the session endpoint
//	}
type Heartbeat struct {
	Type    MessageType `cbor:"1,keyasint"`
	Source  string      `cbor:"2,keyasint"`
	ID      uint64      `cbor:"3,keyasint"`
	Token   string      `cbor:"4,keyasint"`
	Version string      `cbor:"5,keyasint,omitempty"`
	Port    uint16      `cbor:"6,keyasint,omitempty"`
}

// Validate checks the heartbeat for structural errors.
func (h *Heartbeat) Validate() error {
	if h.Type != MessageTypeHeartbeat {
		return fmt.Errorf("%w: %s", ErrWrongMessageType, h.Type)
	}
	if h.Source == "" {
		return ErrMissingSource
	}
	return nil
}

// Logout tells peers that a device has left.
//
// CBOR encoding:
//
//	{
//	  1: type,    // 3
//	  2: source,  // string: full device name
//	  3: token    // string: session token of the leaving device
//	}
type Logout struct {
	Type   MessageType `cbor:"1,keyasint"`
	Source string      `cbor:"2,keyasint"`
	Token  string      `cbor:"3,keyasint,omitempty"`
}

// Validate checks the logout for structural errors.
func (l *Logout) Validate() error {
	if l.Type != MessageTypeLogout {
		return fmt.Errorf("%w: %s", ErrWrongMessageType, l.Type)
	}
	if l.Source == "" {
		return ErrMissingSource
	}
	return nil
}
