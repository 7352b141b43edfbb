// Package log provides structured protocol logging for mapper sessions.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at several layers (transport, wire, device). It is
// separate from operational logging (slog): protocol capture provides a
// complete machine-readable trace of what a device sent and received.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For later analysis: write to a CBOR file
//	fl, _ := log.NewFileLogger("/tmp/synth.mlog")
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
//   - Transport: datagram sizes (FrameEvent)
//   - Wire: decoded batches, heartbeats and logouts (MessageEvent)
//   - Device: readiness and name changes (StateChangeEvent)
//   - Instance: allocation, release and stealing (InstanceEvent)
//
// Errors at any layer use ErrorEventData.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events, conventionally with the
// .mlog extension. Reader streams them back with optional filtering; the
// mapper-log command is built on it.
package log
