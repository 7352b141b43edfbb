// Package timetag provides the network-comparable timestamp attached to
// every signal update.
//
// A Time is an NTP-style fixed point value: 32 bits of seconds since
// 1900-01-01 UTC and 32 bits of binary fraction. The encoding is compact,
// totally ordered and independent of the host's time zone or monotonic
// clock, so timestamps taken on different devices can be compared directly.
//
// The zero Time is reserved as the "use the current time" sentinel.
package timetag

import (
	"fmt"
	"math"
	"time"
)

// ntpEpochOffset is the number of seconds between 1900-01-01 and 1970-01-01.
const ntpEpochOffset = 2208988800

// fracPerSecond is 2^32, the resolution of the fraction field.
const fracPerSecond = 1 << 32

// Time is an NTP-style timestamp.
//
// CBOR encoding: [sec, frac]
type Time struct {
	_    struct{} `cbor:",toarray"`
	Sec  uint32
	Frac uint32
}

// Now returns the current local time as a Time.
func Now() Time {
	return FromTime(time.Now())
}

// FromTime converts a time.Time to a Time.
// Times before the NTP epoch clamp to the smallest non-zero value.
func FromTime(t time.Time) Time {
	secs := t.Unix() + ntpEpochOffset
	if secs <= 0 {
		return Time{Frac: 1}
	}
	frac := (uint64(t.Nanosecond()) * fracPerSecond) / uint64(time.Second)
	return Time{Sec: uint32(secs), Frac: uint32(frac)}
}

// Time converts the timestamp back to a time.Time in UTC.
func (t Time) Time() time.Time {
	nanos := (uint64(t.Frac) * uint64(time.Second)) >> 32
	return time.Unix(int64(t.Sec)-ntpEpochOffset, int64(nanos)).UTC()
}

// IsZero reports whether t is the "now" sentinel.
func (t Time) IsZero() bool {
	return t.Sec == 0 && t.Frac == 0
}

// OrNow returns t, or the current time if t is zero.
func (t Time) OrNow() Time {
	if t.IsZero() {
		return Now()
	}
	return t
}

// Compare returns -1, 0 or +1 depending on whether t is before, equal to or
// after u.
func (t Time) Compare(u Time) int {
	switch {
	case t.Sec < u.Sec:
		return -1
	case t.Sec > u.Sec:
		return 1
	case t.Frac < u.Frac:
		return -1
	case t.Frac > u.Frac:
		return 1
	}
	return 0
}

// Before reports whether t is before u.
func (t Time) Before(u Time) bool { return t.Compare(u) < 0 }

// After reports whether t is after u.
func (t Time) After(u Time) bool { return t.Compare(u) > 0 }

// Equal reports whether t and u are the same instant.
func (t Time) Equal(u Time) bool { return t.Compare(u) == 0 }

// Add returns t shifted by d. The result saturates at the largest Time
// and at the smallest non-zero Time, so it never becomes the "now" sentinel.
func (t Time) Add(d time.Duration) Time {
	v := t.fixed()
	delta := durationToFixed(d)
	if d >= 0 {
		if delta > math.MaxUint64-v {
			return fromFixed(math.MaxUint64)
		}
		return fromFixed(v + delta)
	}
	if delta >= v {
		return fromFixed(1)
	}
	return fromFixed(v - delta)
}

// Sub returns the duration t-u.
func (t Time) Sub(u Time) time.Duration {
	a, b := t.fixed(), u.fixed()
	if a < b {
		return -fixedToDuration(b - a)
	}
	return fixedToDuration(a - b)
}

// Seconds returns t as floating point seconds since the NTP epoch.
func (t Time) Seconds() float64 {
	return float64(t.Sec) + float64(t.Frac)/fracPerSecond
}

// String formats t as "sec.frac" in hex, followed by the wall clock time.
func (t Time) String() string {
	if t.IsZero() {
		return "now"
	}
	return fmt.Sprintf("%08x.%08x (%s)", t.Sec, t.Frac, t.Time().Format(time.RFC3339Nano))
}

func (t Time) fixed() uint64 {
	return uint64(t.Sec)<<32 | uint64(t.Frac)
}

func fromFixed(v uint64) Time {
	return Time{Sec: uint32(v >> 32), Frac: uint32(v)}
}

// durationToFixed returns |d| in 32.32 fixed point, saturating at the
// largest representable span.
func durationToFixed(d time.Duration) uint64 {
	var mag uint64
	if d < 0 {
		mag = uint64(-(d + 1)) + 1
	} else {
		mag = uint64(d)
	}
	secs := mag / uint64(time.Second)
	if secs >= 1<<32 {
		return math.MaxUint64
	}
	rem := mag % uint64(time.Second)
	return secs<<32 | (rem<<32)/uint64(time.Second)
}

// fixedToDuration converts a 32.32 span to a Duration. Every span fits:
// 2^32 seconds is well inside the range of time.Duration.
func fixedToDuration(v uint64) time.Duration {
	secs := v >> 32
	frac := v & (fracPerSecond - 1)
	return time.Duration(secs)*time.Second + time.Duration((frac*uint64(time.Second))>>32)
}
