package session

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mapper-protocol/mapper-go/pkg/connection"
	"github.com/mapper-protocol/mapper-go/pkg/discovery"
	"github.com/mapper-protocol/mapper-go/pkg/log"
	"github.com/mapper-protocol/mapper-go/pkg/metric"
	"github.com/mapper-protocol/mapper-go/pkg/wire"
)

// member is one joined device.
type member struct {
	handle Handle
	base   string
	ident  Identity
	ready  bool
	subs   []Subscriber
	seq    uint64

	// Network only.
	probeUntil time.Time
	advertised bool
	advertise  *connection.Retry
}

// graph is the member registry and router shared by Loopback and Network.
type graph struct {
	mu sync.Mutex

	token  string
	alloc  *discovery.Allocator
	routes *routeTable

	members map[Handle]*member
	byName  map[string]*member // ready members by full name
	next    Handle

	refs   int
	closed bool

	// Deliveries and state changes since the last pump, and the channel
	// closed to wake pumps waiting for them.
	events int
	wake   chan struct{}

	logger  *slog.Logger
	plog    log.Logger
	metrics *metric.Metrics
}

func newGraph(logger *slog.Logger, plog log.Logger, metrics *metric.Metrics) *graph {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	token := uuid.NewString()
	return &graph{
		token:   token,
		alloc:   discovery.NewAllocator(),
		routes:  newRouteTable(),
		members: make(map[Handle]*member),
		byName:  make(map[string]*member),
		refs:    1,
		wake:    make(chan struct{}),
		logger:  logger.With("component", "session", "token", token[:8]),
		plog:    log.OrNoop(plog),
		metrics: metrics,
	}
}

// Token returns the session token used to settle name conflicts.
func (g *graph) Token() string {
	return g.token
}

// join registers a new member. init, if set, runs under the lock before
// any pump can see the member.
func (g *graph) join(name string, init func(*member)) (*member, error) {
	if err := discovery.ValidateBaseName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, ErrClosed
	}
	g.next++
	m := &member{handle: g.next, base: name}
	if init != nil {
		init(m)
	}
	g.members[m.handle] = m
	g.notifyLocked()

	g.logger.Debug("member joined", "handle", m.handle, "device", name)
	return m, nil
}

func (g *graph) leave(h Handle) (*member, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.members[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	delete(g.members, h)
	if m.ready {
		delete(g.byName, m.ident.Name)
		g.alloc.Release(m.ident.Name, g.token)
	}
	g.logger.Debug("member left", "handle", h, "device", m.ident.Name)
	return m, nil
}

// Identity returns the identity of a ready member.
func (g *graph) Identity(h Handle) (Identity, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.members[h]
	if !ok || !m.ready {
		return Identity{}, false
	}
	return m.ident, true
}

// Subscribe registers fn for batches addressed to h.
func (g *graph) Subscribe(h Handle, fn Subscriber) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	m, ok := g.members[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	m.subs = append(m.subs, fn)
	return nil
}

// Map connects src to dst.
func (g *graph) Map(src, dst SignalRef) error {
	if err := g.routes.add(src, dst); err != nil {
		return err
	}
	g.logger.Info("map added", "src", src.String(), "dst", dst.String())
	return nil
}

// Unmap removes a map.
func (g *graph) Unmap(src, dst SignalRef) error {
	if err := g.routes.remove(src, dst); err != nil {
		return err
	}
	g.logger.Info("map removed", "src", src.String(), "dst", dst.String())
	return nil
}

// Maps returns all maps in creation order.
func (g *graph) Maps() []Map {
	return g.routes.list()
}

// Retain adds a reference.
func (g *graph) Retain() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refs++
}

// release drops a reference and reports whether it was the last one.
func (g *graph) release() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return false, ErrClosed
	}
	g.refs--
	if g.refs > 0 {
		return false, nil
	}
	g.closed = true
	g.notifyLocked()
	return true, nil
}

func (g *graph) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

// pendingLocked returns members without a name, in join order.
func (g *graph) pendingLocked() []*member {
	var out []*member
	for _, m := range g.members {
		if !m.ready {
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b *member) int { return int(a.handle) - int(b.handle) })
	return out
}

// claimLocked allocates the lowest free ordinal for m and makes it ready.
func (g *graph) claimLocked(m *member) error {
	ord, err := g.alloc.Allocate(m.base, g.token)
	if err != nil {
		return err
	}
	name := discovery.FullName(m.base, ord)
	m.ident = Identity{Name: name, ID: discovery.DeriveID(name)}
	m.ready = true
	g.byName[name] = m
	g.events++
	g.notifyLocked()

	g.logger.Info("member ready", "device", name, "id", m.ident.ID)
	g.logState(name, "", name, "allocated")
	return nil
}

// unreadyLocked takes the name away from m after a lost conflict.
func (g *graph) unreadyLocked(m *member, reason string) {
	old := m.ident.Name
	delete(g.byName, old)
	m.ready = false
	m.ident = Identity{}
	m.advertised = false
	g.events++
	g.notifyLocked()

	g.logger.Warn("member lost its name", "device", old, "reason", reason)
	g.logState(old, old, "", reason)
}

// stamp fills in the source fields of a batch published by h.
func (g *graph) stamp(h Handle, b *wire.Batch) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrClosed
	}
	m, ok := g.members[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	if !m.ready {
		return ErrNotReady
	}
	m.seq++
	b.Type = wire.MessageTypeBatch
	b.Source = m.ident.Name
	b.Seq = m.seq
	return nil
}

// route returns the batches a published batch turns into.
func (g *graph) route(b *wire.Batch) []*wire.Batch {
	if b.Destination != "" {
		return []*wire.Batch{b}
	}
	return g.routes.split(b)
}

// isLocal reports whether name is a ready member of this session.
func (g *graph) isLocal(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.byName[name]
	return ok
}

// deliverLocal hands b to the subscribers of its destination. It reports
// false when the destination is not a ready local member.
func (g *graph) deliverLocal(b *wire.Batch) bool {
	g.mu.Lock()
	m, ok := g.byName[b.Destination]
	if !ok {
		g.mu.Unlock()
		return false
	}
	subs := slices.Clone(m.subs)
	g.events++
	g.notifyLocked()
	g.mu.Unlock()

	for _, fn := range subs {
		fn(b)
	}
	return true
}

// notifyLocked wakes every waiting pump.
func (g *graph) notifyLocked() {
	close(g.wake)
	g.wake = make(chan struct{})
}

// waiter returns the channel closed on the next notification.
func (g *graph) waiter() (<-chan struct{}, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrClosed
	}
	return g.wake, nil
}

func (g *graph) takeEvents() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.events
	g.events = 0
	return n
}

func (g *graph) logState(device, oldState, newState, reason string) {
	g.plog.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: g.token,
		Direction: log.DirectionOut,
		Layer:     log.LayerDevice,
		Category:  log.CategoryState,
		Device:    device,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityName,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (g *graph) logMessage(dir log.Direction, b *wire.Batch, remote string) {
	device, peer := b.Source, b.Destination
	if dir == log.DirectionIn {
		device, peer = b.Destination, b.Source
	}
	g.plog.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  g.token,
		Direction:  dir,
		Layer:      log.LayerWire,
		Category:   log.CategoryMessage,
		Device:     device,
		Peer:       peer,
		RemoteAddr: remote,
		Message:    log.NewMessageEvent(b),
	})
}
