package device

import (
	"slices"

	"github.com/mapper-protocol/mapper-go/pkg/model"
	"github.com/mapper-protocol/mapper-go/pkg/timetag"
)

// instance is one live value slot of a signal.
type instance struct {
	value model.Value
	time  timetag.Time
	used  uint64 // logical clock of the last update
}

// instanceTable holds the active instances of a signal. When full, the
// least recently updated instance is reclaimed for a new id.
type instanceTable struct {
	max    int // 0 means unlimited
	clock  uint64
	active map[uint64]*instance
}

func newInstanceTable(max int) *instanceTable {
	return &instanceTable{max: max, active: make(map[uint64]*instance)}
}

// update stores a value for id. It reports whether the instance is new and,
// if another instance had to be reclaimed for it, that instance's id.
func (t *instanceTable) update(id uint64, v model.Value, tt timetag.Time) (created bool, stolen uint64, didSteal bool) {
	t.clock++
	if inst, ok := t.active[id]; ok {
		inst.value, inst.time, inst.used = v, tt, t.clock
		return false, 0, false
	}

	if t.max > 0 && len(t.active) >= t.max {
		stolen = t.leastRecentlyUsed()
		delete(t.active, stolen)
		didSteal = true
	}
	t.active[id] = &instance{value: v, time: tt, used: t.clock}
	return true, stolen, didSteal
}

func (t *instanceTable) leastRecentlyUsed() uint64 {
	var (
		victim uint64
		oldest uint64
		first  = true
	)
	for id, inst := range t.active {
		if first || inst.used < oldest {
			victim, oldest, first = id, inst.used, false
		}
	}
	return victim
}

// release removes id and reports whether it was active.
func (t *instanceTable) release(id uint64) bool {
	if _, ok := t.active[id]; !ok {
		return false
	}
	delete(t.active, id)
	return true
}

func (t *instanceTable) get(id uint64) (*instance, bool) {
	inst, ok := t.active[id]
	return inst, ok
}

// ids returns the active instance ids in ascending order.
func (t *instanceTable) ids() []uint64 {
	out := make([]uint64, 0, len(t.active))
	for id := range t.active {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (t *instanceTable) len() int {
	return len(t.active)
}

func (t *instanceTable) clear() {
	clear(t.active)
}
