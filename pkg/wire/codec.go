package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for mapper messages.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for mapper messages.
var decMode cbor.DecMode

func init() {
	var err error

	// Configure encoder for deterministic output
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical, // Deterministic key ordering
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix, // Unix timestamps
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Configure decoder to be lenient for forward compatibility
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet, // Ignore duplicate keys (last wins)
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// EncodeBatch encodes a batch message to CBOR bytes.
func EncodeBatch(b *Batch) ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch: %w", err)
	}
	return Marshal(b)
}

// DecodeBatch decodes CBOR bytes into a batch message.
func DecodeBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch: %w", err)
	}
	return &b, nil
}

// EncodeHeartbeat encodes a heartbeat message to CBOR bytes.
func EncodeHeartbeat(h *Heartbeat) ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("invalid heartbeat: %w", err)
	}
	return Marshal(h)
}

// DecodeHeartbeat decodes CBOR bytes into a heartbeat message.
func DecodeHeartbeat(data []byte) (*Heartbeat, error) {
	var h Heartbeat
	if err := Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to decode heartbeat: %w", err)
	}
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("invalid heartbeat: %w", err)
	}
	return &h, nil
}

// EncodeLogout encodes a logout message to CBOR bytes.
func EncodeLogout(l *Logout) ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logout: %w", err)
	}
	return Marshal(l)
}

// DecodeLogout decodes CBOR bytes into a logout message.
func DecodeLogout(data []byte) (*Logout, error) {
	var l Logout
	if err := Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to decode logout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logout: %w", err)
	}
	return &l, nil
}

// PeekMessageType examines CBOR data to determine the message type
// without decoding the body. Unknown type values are reported as
// MessageTypeUnknown without error so receivers can skip newer messages.
func PeekMessageType(data []byte) (MessageType, error) {
	var peek struct {
		Type MessageType `cbor:"1,keyasint"`
	}
	if err := Unmarshal(data, &peek); err != nil {
		return MessageTypeUnknown, fmt.Errorf("failed to peek message: %w", err)
	}
	switch peek.Type {
	case MessageTypeBatch, MessageTypeHeartbeat, MessageTypeLogout:
		return peek.Type, nil
	default:
		return MessageTypeUnknown, nil
	}
}

// Equal compares two values by their CBOR encoding.
func Equal(a, b any) bool {
	dataA, errA := Marshal(a)
	dataB, errB := Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(dataA, dataB)
}
