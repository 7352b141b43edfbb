package session

import (
	"fmt"
	"slices"
	"sync"

	"github.com/mapper-protocol/mapper-go/pkg/wire"
)

// routeTable holds the maps of a session. It is safe for concurrent use.
type routeTable struct {
	mu    sync.RWMutex
	maps  []Map                     // creation order
	bySrc map[SignalRef][]SignalRef // source -> destinations in creation order
}

func newRouteTable() *routeTable {
	return &routeTable{bySrc: make(map[SignalRef][]SignalRef)}
}

func validateRef(r SignalRef) error {
	if r.Device == "" || r.Signal == "" {
		return fmt.Errorf("%w: incomplete endpoint %q", ErrInvalidMap, r)
	}
	return nil
}

func (t *routeTable) add(src, dst SignalRef) error {
	if err := validateRef(src); err != nil {
		return err
	}
	if err := validateRef(dst); err != nil {
		return err
	}
	if src == dst {
		return fmt.Errorf("%w: %s mapped to itself", ErrInvalidMap, src)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if slices.Contains(t.bySrc[src], dst) {
		return fmt.Errorf("%w: %s", ErrMapExists, Map{src, dst})
	}
	t.bySrc[src] = append(t.bySrc[src], dst)
	t.maps = append(t.maps, Map{Source: src, Destination: dst})
	return nil
}

func (t *routeTable) remove(src, dst SignalRef) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	dsts := t.bySrc[src]
	i := slices.Index(dsts, dst)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrMapNotFound, Map{src, dst})
	}
	dsts = slices.Delete(dsts, i, i+1)
	if len(dsts) == 0 {
		delete(t.bySrc, src)
	} else {
		t.bySrc[src] = dsts
	}
	t.maps = slices.DeleteFunc(t.maps, func(m Map) bool {
		return m.Source == src && m.Destination == dst
	})
	return nil
}

func (t *routeTable) list() []Map {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.maps)
}

// split turns a source batch into one batch per destination device.
// Destination batches appear in the order their first update does, share
// the source time tag and keep the relative order of updates. Updates of
// several source signals mapped into one device land in the same batch.
func (t *routeTable) split(b *wire.Batch) []*wire.Batch {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*wire.Batch
	byDevice := make(map[string]*wire.Batch)
	for _, u := range b.Updates {
		for _, dst := range t.bySrc[SignalRef{Device: b.Source, Signal: u.Signal}] {
			db, ok := byDevice[dst.Device]
			if !ok {
				db = &wire.Batch{
					Type:        wire.MessageTypeBatch,
					Source:      b.Source,
					Destination: dst.Device,
					Time:        b.Time,
					Seq:         b.Seq,
				}
				byDevice[dst.Device] = db
				out = append(out, db)
			}
			db.Add(dst.Signal, u.Instance, u.Value)
		}
	}
	return out
}
