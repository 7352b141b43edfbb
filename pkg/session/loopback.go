package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mapper-protocol/mapper-go/pkg/log"
	"github.com/mapper-protocol/mapper-go/pkg/metric"
	"github.com/mapper-protocol/mapper-go/pkg/wire"
)

// LoopbackConfig configures an in-process session.
type LoopbackConfig struct {
	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// ProtocolLogger receives name and message events. Optional.
	ProtocolLogger log.Logger

	// Metrics records drops. Optional.
	Metrics *metric.Metrics
}

// DefaultLoopbackConfig returns the default loopback configuration.
func DefaultLoopbackConfig() LoopbackConfig {
	return LoopbackConfig{}
}

// Loopback is a session whose members all live in this process. Members
// become ready at the first pump after they join and batches are handed to
// subscribers synchronously by Publish.
type Loopback struct {
	*graph
}

// NewLoopback creates a loopback session holding one reference.
func NewLoopback() *Loopback {
	return NewLoopbackWithConfig(DefaultLoopbackConfig())
}

// NewLoopbackWithConfig creates a loopback session with custom configuration.
func NewLoopbackWithConfig(config LoopbackConfig) *Loopback {
	return &Loopback{graph: newGraph(config.Logger, config.ProtocolLogger, config.Metrics)}
}

// Join registers a device under a base name.
func (l *Loopback) Join(name string) (Handle, error) {
	m, err := l.join(name, nil)
	if err != nil {
		return 0, err
	}
	return m.handle, nil
}

// Leave unregisters a member.
func (l *Loopback) Leave(h Handle) error {
	_, err := l.leave(h)
	return err
}

// Publish routes b to the subscribers of its destinations. Batches for
// devices that are not members are dropped.
func (l *Loopback) Publish(h Handle, b *wire.Batch) error {
	if err := l.stamp(h, b); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	for _, db := range l.route(b) {
		l.logMessage(log.DirectionOut, db, "")
		if !l.deliverLocal(db) {
			l.logger.Debug("no such device, batch dropped", "src", db.Source, "dst", db.Destination)
			l.metrics.Drop(db.Source, metric.DropNoRoute)
		}
	}
	return nil
}

// Pump names pending members and waits up to timeout for something to
// happen. It returns after the first wake-up even if this pump had nothing
// to count, so callers polling their own inbox should loop.
func (l *Loopback) Pump(timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)

	wake, err := l.waiter()
	if err != nil {
		return 0, err
	}
	if n := l.pass(); n > 0 {
		return n, nil
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-wake:
	case <-timer.C:
	}
	if l.isClosed() {
		return 0, ErrClosed
	}
	return l.pass(), nil
}

func (l *Loopback) pass() int {
	l.mu.Lock()
	for _, m := range l.pendingLocked() {
		if err := l.claimLocked(m); err != nil {
			l.logger.Warn("name allocation failed", "device", m.base, "error", err)
		}
	}
	l.mu.Unlock()
	return l.takeEvents()
}

// Release drops a reference and closes the session when none remain.
func (l *Loopback) Release() error {
	last, err := l.release()
	if err != nil {
		return err
	}
	if last {
		l.logger.Debug("loopback session closed")
	}
	return nil
}

var (
	_ Session = (*Loopback)(nil)
	_ Mapper  = (*Loopback)(nil)
)
