package device

import (
	"sync"

	"github.com/mapper-protocol/mapper-go/pkg/model"
	"github.com/mapper-protocol/mapper-go/pkg/timetag"
	"github.com/mapper-protocol/mapper-go/pkg/wire"
)

// updateQueue collects output updates under one time tag.
type updateQueue struct {
	time    timetag.Time
	updates []wire.Update
}

func (q *updateQueue) add(signal string, instance uint64, v *model.Value) {
	q.updates = append(q.updates, wire.Update{Signal: signal, Instance: instance, Value: v})
}

func (q *updateQueue) batch() *wire.Batch {
	return &wire.Batch{
		Type:    wire.MessageTypeBatch,
		Time:    q.time,
		Updates: q.updates,
	}
}

// inbox buffers batches delivered by the session until the next poll.
// Sessions may push from any goroutine.
type inbox struct {
	mu      sync.Mutex
	batches []*wire.Batch
}

func (b *inbox) push(batch *wire.Batch) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, batch)
}

func (b *inbox) take() []*wire.Batch {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.batches
	b.batches = nil
	return out
}

func (b *inbox) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batches)
}
