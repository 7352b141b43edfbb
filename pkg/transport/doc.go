// Package transport provides the datagram layer of network sessions.
//
// Each network session owns one UDP Endpoint. Every datagram carries exactly
// one CBOR message from package wire; there is no additional framing.
//
//	┌────────────────────────────────┐
//	│      CBOR Messages             │
//	├────────────────────────────────┤
//	│           UDP                  │
//	└────────────────────────────────┘
//
// A reader goroutine moves datagrams into a bounded queue that the owning
// session drains during its Pump. When the queue is full, new datagrams are
// dropped and counted.
//
// # Liveness
//
// Peers announce themselves with periodic heartbeats. Liveness records the
// last heartbeat of each peer and reports peers whose heartbeats have been
// missing for longer than the configured detection delay:
//   - Heartbeat interval: 1 second
//   - Max missed heartbeats: 5
//   - Grace: 500 milliseconds
package transport
