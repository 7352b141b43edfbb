// Package wire defines the CBOR wire format exchanged between sessions.
//
// Every message is a single CBOR map with integer keys. Key 1 always holds
// the MessageType so a receiver can dispatch with PeekMessageType before
// decoding the full body.
//
// # Message Types
//
//   - Batch: signal updates from one source device to one destination
//     device, stamped with a single time tag
//   - Heartbeat: periodic presence announcement of a ready device
//   - Logout: a device leaving the graph
//
// # Instance Release
//
// An Update with a nil Value releases the addressed instance on the
// receiver. On the wire this is a CBOR null in the value slot.
package wire
