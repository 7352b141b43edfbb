package device

import (
	"iter"
	"slices"
)

// SignalList is an immutable list of signals supporting set operations.
// Results keep the order of the receiver, followed by new elements of the
// argument for Union.
type SignalList struct {
	items []*Signal
}

func newSignalList(items []*Signal) *SignalList {
	return &SignalList{items: items}
}

// All returns an iterator over the list. It can be ranged over any number
// of times.
func (l *SignalList) All() iter.Seq[*Signal] {
	return func(yield func(*Signal) bool) {
		for _, s := range l.items {
			if !yield(s) {
				return
			}
		}
	}
}

// Len returns the number of signals.
func (l *SignalList) Len() int { return len(l.items) }

// At returns the i-th signal, or nil when out of range.
func (l *SignalList) At(i int) *Signal {
	if i < 0 || i >= len(l.items) {
		return nil
	}
	return l.items[i]
}

// Slice returns a copy of the signals.
func (l *SignalList) Slice() []*Signal {
	return slices.Clone(l.items)
}

// Filter returns the signals for which keep returns true.
func (l *SignalList) Filter(keep func(*Signal) bool) *SignalList {
	var out []*Signal
	for _, s := range l.items {
		if keep(s) {
			out = append(out, s)
		}
	}
	return newSignalList(out)
}

// Union returns the signals in l or o.
func (l *SignalList) Union(o *SignalList) *SignalList {
	out := slices.Clone(l.items)
	for _, s := range o.items {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return newSignalList(out)
}

// Intersection returns the signals in both l and o.
func (l *SignalList) Intersection(o *SignalList) *SignalList {
	return l.Filter(func(s *Signal) bool { return slices.Contains(o.items, s) })
}

// Difference returns the signals in l but not in o.
func (l *SignalList) Difference(o *SignalList) *SignalList {
	return l.Filter(func(s *Signal) bool { return !slices.Contains(o.items, s) })
}
