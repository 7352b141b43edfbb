// Package discovery implements device naming and mDNS/DNS-SD presence for
// mapper sessions.
//
// # Names
//
// A device registers with a base name such as "synth". Once the session has
// allocated an ordinal the device is known by its full name "synth.1". The
// lowest ordinal not claimed by any other device is chosen. Device ids are
// derived from the full name with DeriveID.
//
// # Service (_mapper._udp)
//
// Ready devices advertise one service instance each. The instance name is
// the full device name followed by a short session token suffix so that two
// processes racing for the same name remain distinguishable on the link.
// TXT records carry:
//
//   - name: full device name
//   - id:   device id (16 hex chars)
//   - tok:  session token
//   - ver:  protocol version
//
// # Conflicts
//
// When two sessions claim the same full name, the session with the
// lexically smaller token keeps it and the other allocates a new ordinal.
package discovery
