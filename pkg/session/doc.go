// Package session implements the network side of devices: joining under a
// unique name, publishing batches of signal updates along maps and
// delivering remote batches to subscribers.
//
// Two implementations are provided. Loopback is an in-process graph in
// which every member is local; it needs no sockets and is what tests and
// single-process setups use. Network adds a UDP endpoint, mDNS
// advertisement and browsing, heartbeats and peer liveness.
//
// A Session is shared explicitly. Every holder calls Retain and later
// Release; the session closes when the last reference is released.
//
// Sessions never surface partitions, peer loss or name conflicts as
// errors. A member that loses its name simply becomes not ready until it
// has negotiated a new one.
package session
