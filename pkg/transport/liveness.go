package transport

import (
	"sort"
	"sync"
	"time"
)

// Liveness constants.
const (
	// DefaultHeartbeatInterval is the default interval between heartbeats.
	DefaultHeartbeatInterval = 1 * time.Second

	// DefaultMaxMissedHeartbeats is the number of missed heartbeats before a
	// peer is considered gone.
	DefaultMaxMissedHeartbeats = 5

	// DefaultGrace is added to the detection delay to absorb jitter.
	DefaultGrace = 500 * time.Millisecond
)

// LivenessConfig configures peer expiry.
type LivenessConfig struct {
	// HeartbeatInterval is the expected interval between heartbeats.
	HeartbeatInterval time.Duration

	// MaxMissedHeartbeats is the number of missed heartbeats before expiry.
	MaxMissedHeartbeats int

	// Grace is added to the detection delay.
	Grace time.Duration
}

// DefaultLivenessConfig returns the default liveness configuration.
func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		HeartbeatInterval:   DefaultHeartbeatInterval,
		MaxMissedHeartbeats: DefaultMaxMissedHeartbeats,
		Grace:               DefaultGrace,
	}
}

// DetectionDelay returns how long a peer may stay silent before it expires.
func (c LivenessConfig) DetectionDelay() time.Duration {
	return CalculateDetectionDelay(c.HeartbeatInterval, c.Grace, c.MaxMissedHeartbeats)
}

// CalculateDetectionDelay calculates the maximum detection delay for given parameters.
func CalculateDetectionDelay(interval, grace time.Duration, maxMissed int) time.Duration {
	return interval*time.Duration(maxMissed) + grace
}

// Liveness tracks the last heartbeat of each peer. It has no goroutine of
// its own; the owner calls Expire from its pump.
type Liveness struct {
	config LivenessConfig

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewLiveness creates a liveness tracker.
func NewLiveness(config LivenessConfig) *Liveness {
	if config.HeartbeatInterval == 0 {
		config.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if config.MaxMissedHeartbeats == 0 {
		config.MaxMissedHeartbeats = DefaultMaxMissedHeartbeats
	}
	return &Liveness{
		config:   config,
		lastSeen: make(map[string]time.Time),
	}
}

// Seen records a heartbeat from peer. It reports whether the peer is new.
func (l *Liveness) Seen(peer string, at time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, known := l.lastSeen[peer]
	if !known || at.After(l.lastSeen[peer]) {
		l.lastSeen[peer] = at
	}
	return !known
}

// LastSeen returns the time of the last heartbeat from peer.
func (l *Liveness) LastSeen(peer string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.lastSeen[peer]
	return t, ok
}

// Forget removes a peer, for example after a logout.
func (l *Liveness) Forget(peer string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.lastSeen, peer)
}

// Expire removes and returns all peers silent for longer than the
// detection delay, sorted by name.
func (l *Liveness) Expire(now time.Time) []string {
	deadline := now.Add(-l.config.DetectionDelay())

	l.mu.Lock()
	defer l.mu.Unlock()

	var expired []string
	for peer, seen := range l.lastSeen {
		if seen.Before(deadline) {
			expired = append(expired, peer)
			delete(l.lastSeen, peer)
		}
	}
	sort.Strings(expired)
	return expired
}

// Len returns the number of tracked peers.
func (l *Liveness) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lastSeen)
}
