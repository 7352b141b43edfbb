// Package model defines the signal data model shared by devices, sessions and
// the wire codec.
//
// # Types
//
// Every signal has a fixed scalar Type and a vector length of at least one.
// Values travelling through the system are represented by Value, a closed
// tagged union of {type, elements}. A Value is validated against the
// declared shape of a signal at every boundary (local update, inbound
// network update, range metadata) and rejected with ErrTypeMismatch when it
// does not fit.
//
// # Directions
//
// Direction is a bitmask: DirIn and DirOut describe concrete signals while
// DirAny (DirIn|DirOut) is only valid as a query filter.
package model
