package device

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/mapper-protocol/mapper-go/pkg/log"
	"github.com/mapper-protocol/mapper-go/pkg/metric"
	"github.com/mapper-protocol/mapper-go/pkg/model"
	"github.com/mapper-protocol/mapper-go/pkg/session"
	"github.com/mapper-protocol/mapper-go/pkg/timetag"
	"github.com/mapper-protocol/mapper-go/pkg/wire"
)

// Device is a network-visible collection of signals.
type Device struct {
	base    string
	logger  *slog.Logger
	plog    log.Logger
	metrics *metric.Metrics

	sess   session.Session
	handle session.Handle
	ident  session.Identity
	ready  bool
	closed bool

	signals []*Signal
	nextID  uint64

	queue   *updateQueue
	pending []localEvent // instance events raised outside Poll
	inbox   inbox
}

// localEvent is an instance event waiting for the next poll.
type localEvent struct {
	sig      *Signal
	instance uint64
	ev       InstanceEvent
}

// New creates a device. A nil session creates a private network session
// with default configuration; otherwise the device takes a reference on
// sess and the caller keeps its own.
func New(name string, sess session.Session) (*Device, error) {
	cfg := DefaultConfig()
	cfg.Session = sess
	return NewWithConfig(name, cfg)
}

// NewWithConfig creates a device with custom configuration. It never
// blocks; the device becomes ready during later polls. It fails with
// ErrInitialization when a private session cannot bind its socket and with
// ErrInvalidArgument for unusable names.
func NewWithConfig(name string, config Config) (*Device, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	sess := config.Session
	if sess == nil {
		ncfg := config.Network
		if ncfg.Logger == nil {
			ncfg.Logger = config.Logger
		}
		if ncfg.ProtocolLogger == nil {
			ncfg.ProtocolLogger = config.ProtocolLogger
		}
		if ncfg.Metrics == nil {
			ncfg.Metrics = config.Metrics
		}
		n, err := session.NewNetwork(ncfg)
		if err != nil {
			return nil, fmt.Errorf("device %q: %w", name, err)
		}
		sess = n
	} else {
		sess.Retain()
	}

	h, err := sess.Join(name)
	if err != nil {
		_ = sess.Release()
		switch {
		case errors.Is(err, session.ErrInvalidName):
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		case errors.Is(err, session.ErrClosed):
			return nil, fmt.Errorf("%w: %v", ErrInitialization, err)
		}
		return nil, err
	}

	d := &Device{
		base:    name,
		logger:  logger.With("component", "device", "device", name),
		plog:    log.OrNoop(config.ProtocolLogger),
		metrics: config.Metrics,
		sess:    sess,
		handle:  h,
	}
	if err := sess.Subscribe(h, d.inbox.push); err != nil {
		_ = sess.Leave(h)
		_ = sess.Release()
		return nil, err
	}
	d.metrics.SetReady(name, false)
	return d, nil
}

// Name returns the full name once ready, the base name before.
func (d *Device) Name() string {
	if d.ready {
		return d.ident.Name
	}
	return d.base
}

// BaseName returns the name the device was created with.
func (d *Device) BaseName() string { return d.base }

// ID returns the network-unique id, 0 until ready.
func (d *Device) ID() uint64 { return d.ident.ID }

// Ready reports whether the device has a unique name. It only reflects
// the state observed by the last Poll.
func (d *Device) Ready() bool { return d.ready }

// Session returns the session the device belongs to.
func (d *Device) Session() session.Session { return d.sess }

// QueueOpen reports whether an update queue is open.
func (d *Device) QueueOpen() bool { return d.queue != nil }

// Poll drives the session for at most timeout, dispatches listener
// callbacks for everything received and closes an open queue, sending its
// updates if it has any.
// It returns the number of updates and instance events dispatched. A zero
// timeout handles what is pending and returns immediately.
func (d *Device) Poll(timeout time.Duration) (int, error) {
	if d.closed {
		return 0, ErrDeviceClosed
	}
	start := time.Now()
	deadline := start.Add(timeout)

	n := 0
	for {
		wait := time.Until(deadline)
		if wait < 0 || len(d.pending) > 0 || d.inbox.len() > 0 {
			wait = 0
		}
		if _, err := d.sess.Pump(wait); err != nil {
			return n, fmt.Errorf("poll: %w", err)
		}
		d.refreshIdentity()
		n += d.dispatch()
		if n > 0 || !time.Now().Before(deadline) {
			break
		}
	}

	if q := d.queue; q != nil {
		d.queue = nil
		if len(q.updates) > 0 {
			d.flush(q, "auto")
		} else {
			d.logState(log.StateEntityQueue, "open", "closed", "empty at end of poll")
		}
	}
	d.metrics.Poll(d.Name(), time.Since(start))
	return n, nil
}

func (d *Device) refreshIdentity() {
	id, ok := d.sess.Identity(d.handle)
	if ok == d.ready && id == d.ident {
		return
	}

	old := d.Name()
	oldState := stateName(d.ready)
	if d.ready {
		d.metrics.Forget(old)
	}
	d.ident, d.ready = id, ok
	d.metrics.SetReady(d.Name(), ok)
	reason := "named"
	if !ok {
		reason = "name conflict"
	}
	d.logState(log.StateEntityDevice, oldState, stateName(ok), reason)

	if ok {
		d.logger.Info("device ready", "name", id.Name, "id", id.ID)
	} else {
		d.logger.Warn("device lost its name", "name", old)
	}
}

func stateName(ready bool) string {
	if ready {
		return "ready"
	}
	return "pending"
}

// dispatch runs listener callbacks for local events and received batches.
func (d *Device) dispatch() int {
	n := 0
	events := d.pending
	d.pending = nil
	for _, e := range events {
		if e.sig.dev != d {
			continue
		}
		d.notify(e.sig, e.instance, e.ev)
		n++
	}

	for _, b := range d.inbox.take() {
		n += d.receive(b)
	}
	return n
}

// receive applies a remote batch to input signals.
func (d *Device) receive(b *wire.Batch) int {
	name := d.Name()
	d.metrics.Received(name, len(b.Updates))

	n := 0
	for _, u := range b.Updates {
		sig := d.Signal(model.DirIn, u.Signal)
		if sig == nil {
			d.logger.Debug("update for unknown signal dropped", "signal", u.Signal, "src", b.Source)
			d.metrics.Drop(name, metric.DropUnknownSignal)
			continue
		}

		if u.IsRelease() {
			if sig.instances.release(u.Instance) {
				d.metrics.Instances(name, sig.name, sig.instances.len())
				d.notify(sig, u.Instance, InstanceRelease)
				n++
			}
			continue
		}

		v, err := u.Value.Convert(sig.typ)
		if err == nil {
			err = v.Check(sig.typ, sig.length)
		}
		if err != nil {
			d.logger.Debug("update dropped", "signal", sig.name, "src", b.Source, "error", err)
			d.metrics.Drop(name, metric.DropTypeMismatch)
			continue
		}

		created, stolen, didSteal := sig.instances.update(u.Instance, v, b.Time)
		if didSteal {
			d.notify(sig, stolen, InstanceOverflow)
			n++
		}
		if created {
			d.metrics.Instances(name, sig.name, sig.instances.len())
			d.notify(sig, u.Instance, InstanceNew)
			n++
		}
		d.metrics.Event(name, metric.EventUpdate)
		if sig.listener != nil {
			sig.listener.OnUpdate(sig, u.Instance, v, b.Time)
		}
		n++
	}
	return n
}

func (d *Device) notify(sig *Signal, instance uint64, ev InstanceEvent) {
	d.metrics.Event(d.Name(), ev.String())
	d.plog.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionIn,
		Layer:     log.LayerDevice,
		Category:  log.CategoryInstance,
		Device:    d.Name(),
		Instance:  &log.InstanceEvent{Signal: sig.name, Instance: instance, Kind: ev.String()},
	})
	if sig.listener != nil {
		sig.listener.OnInstanceEvent(sig, instance, ev)
	}
}

// AddSignal declares a signal. Direction must be DirIn or DirOut, length
// at least 1 and typ one of the supported types. opts may be nil.
func (d *Device) AddSignal(dir model.Direction, name string, length int, typ model.Type, opts *SignalOptions) (*Signal, error) {
	if d.closed {
		return nil, ErrDeviceClosed
	}
	if opts == nil {
		opts = &SignalOptions{}
	}

	switch {
	case !dir.IsConcrete():
		return nil, fmt.Errorf("%w: direction %s", ErrInvalidArgument, dir)
	case name == "" || strings.ContainsAny(name, "/ \t\n"):
		return nil, fmt.Errorf("%w: signal name %q", ErrInvalidArgument, name)
	case length < 1:
		return nil, fmt.Errorf("%w: length %d", ErrInvalidArgument, length)
	case !typ.Valid():
		return nil, fmt.Errorf("%w: type %s", ErrInvalidArgument, typ)
	case opts.MaxInstances < 0:
		return nil, fmt.Errorf("%w: max instances %d", ErrInvalidArgument, opts.MaxInstances)
	}
	if d.Signal(dir, name) != nil {
		return nil, fmt.Errorf("%w: %s %s", ErrDuplicateName, dir, name)
	}

	lo, err := boundValue(typ, length, opts.Min)
	if err != nil {
		return nil, fmt.Errorf("min: %w", err)
	}
	hi, err := boundValue(typ, length, opts.Max)
	if err != nil {
		return nil, fmt.Errorf("max: %w", err)
	}

	d.nextID++
	sig := &Signal{
		dev:       d,
		id:        d.nextID,
		name:      name,
		dir:       dir,
		length:    length,
		typ:       typ,
		unit:      opts.Unit,
		min:       lo,
		max:       hi,
		listener:  opts.Listener,
		instances: newInstanceTable(opts.MaxInstances),
	}
	d.signals = append(d.signals, sig)
	d.logger.Debug("signal added", "signal", name, "direction", dir.String(), "type", typ.String(), "length", length)
	return sig, nil
}

// RemoveSignal releases the instances of sig and detaches it.
func (d *Device) RemoveSignal(sig *Signal) error {
	if d.closed {
		return ErrDeviceClosed
	}
	if sig == nil || sig.dev != d {
		return ErrNotOwner
	}

	if sig.dir == model.DirOut && sig.instances.len() > 0 {
		q := d.queue
		if q == nil {
			q = &updateQueue{time: timetag.Now()}
		}
		for _, id := range sig.instances.ids() {
			q.add(sig.name, id, nil)
		}
		if d.queue == nil {
			d.flush(q, "release")
		}
	}
	sig.instances.clear()
	d.metrics.Instances(d.Name(), sig.name, 0)

	d.signals = slices.DeleteFunc(d.signals, func(s *Signal) bool { return s == sig })
	sig.dev = nil
	d.logger.Debug("signal removed", "signal", sig.name)
	return nil
}

// Signal returns the signal with the given name, or nil. DirAny returns
// the first match in declaration order.
func (d *Device) Signal(dir model.Direction, name string) *Signal {
	for _, s := range d.signals {
		if s.name == name && dir.Matches(s.dir) {
			return s
		}
	}
	return nil
}

// Signals returns the signals matching dir in declaration order. The list
// is a snapshot; later AddSignal and RemoveSignal calls do not change it.
func (d *Device) Signals(dir model.Direction) *SignalList {
	var out []*Signal
	for _, s := range d.signals {
		if dir.Matches(s.dir) {
			out = append(out, s)
		}
	}
	return newSignalList(out)
}

// StartQueue opens an update queue stamped t, or now when t is zero, and
// returns the time tag its updates will carry.
func (d *Device) StartQueue(t timetag.Time) (timetag.Time, error) {
	if d.closed {
		return timetag.Time{}, ErrDeviceClosed
	}
	if d.queue != nil {
		return timetag.Time{}, ErrQueueAlreadyOpen
	}
	d.queue = &updateQueue{time: t.OrNow()}
	d.logState(log.StateEntityQueue, "closed", "open", "")
	return d.queue.time, nil
}

// SendQueue closes the open queue and publishes its updates as one batch.
// A non-zero t replaces the queue's time tag.
func (d *Device) SendQueue(t timetag.Time) error {
	if d.closed {
		return ErrDeviceClosed
	}
	if d.queue == nil {
		return ErrNoQueueOpen
	}
	q := d.queue
	d.queue = nil
	if !t.IsZero() && !t.Equal(q.time) {
		d.restamp(q, t)
		q.time = t
	}
	d.flush(q, "send")
	return nil
}

// restamp moves the local instances written through q to time t, so
// Signal.Value agrees with the batch peers receive.
func (d *Device) restamp(q *updateQueue, t timetag.Time) {
	for _, u := range q.updates {
		if u.IsRelease() {
			continue
		}
		sig := d.Signal(model.DirOut, u.Signal)
		if sig == nil {
			continue
		}
		if inst, ok := sig.instances.get(u.Instance); ok && inst.time.Equal(q.time) {
			inst.time = t
		}
	}
}

// update applies a local value change and publishes it for output signals.
func (d *Device) update(sig *Signal, instance uint64, v model.Value) error {
	q := d.queue
	implicit := q == nil
	if implicit {
		q = &updateQueue{time: timetag.Now()}
	}

	created, stolen, didSteal := sig.instances.update(instance, v, q.time)
	if didSteal {
		d.pending = append(d.pending, localEvent{sig: sig, instance: stolen, ev: InstanceOverflow})
	}
	if created {
		d.metrics.Instances(d.Name(), sig.name, sig.instances.len())
	}
	if sig.dir != model.DirOut {
		return nil
	}

	if didSteal {
		q.add(sig.name, stolen, nil)
	}
	q.add(sig.name, instance, &v)
	if implicit {
		d.flush(q, "")
	}
	return nil
}

// released publishes the release of an output instance.
func (d *Device) released(sig *Signal, instance uint64) error {
	d.metrics.Instances(d.Name(), sig.name, sig.instances.len())
	if sig.dir != model.DirOut {
		return nil
	}
	if d.queue != nil {
		d.queue.add(sig.name, instance, nil)
		return nil
	}
	q := &updateQueue{time: timetag.Now()}
	q.add(sig.name, instance, nil)
	d.flush(q, "")
	return nil
}

// flush publishes a closed queue. Before the device is ready updates only
// change local state.
func (d *Device) flush(q *updateQueue, reason string) {
	if reason != "" {
		d.logState(log.StateEntityQueue, "open", "sent", reason)
	}
	if len(q.updates) == 0 {
		return
	}
	if !d.ready {
		d.logger.Debug("not ready, updates kept local", "updates", len(q.updates))
		return
	}

	b := q.batch()
	if err := d.sess.Publish(d.handle, b); err != nil {
		d.logger.Warn("publish failed", "updates", len(q.updates), "error", err)
		return
	}
	d.metrics.Sent(d.Name(), len(q.updates))
}

// Close discards an open queue, detaches all signals and leaves the
// session. Closing twice is a no-op.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	name := d.Name()

	if d.queue != nil {
		d.logger.Debug("open queue discarded", "updates", len(d.queue.updates))
		d.logState(log.StateEntityQueue, "open", "discarded", "close")
		d.metrics.QueueDiscarded(name)
		d.queue = nil
	}
	for _, s := range d.signals {
		s.instances.clear()
		s.dev = nil
	}
	d.signals = nil
	d.pending = nil
	d.closed = true

	err := errors.Join(d.sess.Leave(d.handle), d.sess.Release())
	d.metrics.Forget(name)
	d.logger.Info("device closed")
	return err
}

func (d *Device) logState(entity log.StateEntity, oldState, newState, reason string) {
	d.plog.Log(log.Event{
		Timestamp: time.Now(),
		Direction: log.DirectionOut,
		Layer:     log.LayerDevice,
		Category:  log.CategoryState,
		Device:    d.Name(),
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
