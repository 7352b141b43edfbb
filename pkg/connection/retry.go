package connection

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// Backoff constants for presence retries.
const (
	// InitialBackoff is the initial retry delay.
	InitialBackoff = 250 * time.Millisecond

	// MaxBackoff is the maximum retry delay.
	MaxBackoff = 30 * time.Second

	// BackoffMultiplier is the factor by which backoff increases.
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum jitter as a fraction of base delay.
	JitterFactor = 0.25
)

// ErrRetryExhausted is returned by Failed once MaxAttempts is reached.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// BackoffConfig allows customizing backoff parameters. Zero fields take
// the package defaults; a zero Jitter disables jitter.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = InitialBackoff
	}
	if c.Max <= 0 {
		c.Max = MaxBackoff
	}
	if c.Multiplier <= 1 {
		c.Multiplier = BackoffMultiplier
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

type state uint8

const (
	stateIdle state = iota
	stateWaiting
	stateDone
	stateGivenUp
)

// Retry schedules attempts of one operation. It does not run anything
// itself; the owner asks Due from its loop.
type Retry struct {
	mu sync.Mutex

	cfg         BackoffConfig
	maxAttempts int
	rng         *rand.Rand

	delay    time.Duration // base delay of the next retry, before jitter
	attempts int
	state    state
	next     time.Time
}

// NewRetry creates a retry schedule. maxAttempts <= 0 retries forever.
func NewRetry(cfg BackoffConfig, maxAttempts int) *Retry {
	cfg = cfg.withDefaults()
	return &Retry{
		cfg:         cfg,
		maxAttempts: maxAttempts,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		delay:       cfg.Initial,
	}
}

// Due reports whether an attempt should be made at now.
func (r *Retry) Due(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case stateIdle:
		return true
	case stateWaiting:
		return !now.Before(r.next)
	default:
		return false
	}
}

// Failed records a failed attempt and schedules the next one.
func (r *Retry) Failed(now time.Time, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts++
	if r.maxAttempts > 0 && r.attempts >= r.maxAttempts {
		r.state = stateGivenUp
		return errors.Join(ErrRetryExhausted, err)
	}
	r.next = now.Add(r.jittered(r.delay))
	r.delay = min(time.Duration(float64(r.delay)*r.cfg.Multiplier), r.cfg.Max)
	r.state = stateWaiting
	return nil
}

// Succeeded records a successful attempt and resets the backoff.
func (r *Retry) Succeeded() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rewind()
	r.state = stateDone
}

// Reset returns to the idle state so the next Due call reports true.
func (r *Retry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rewind()
	r.state = stateIdle
}

// NextAttempt returns when the next attempt is due (zero unless waiting).
func (r *Retry) NextAttempt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateWaiting {
		return time.Time{}
	}
	return r.next
}

// Attempts returns the number of failures since the last success or reset.
func (r *Retry) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func (r *Retry) rewind() {
	r.delay = r.cfg.Initial
	r.attempts = 0
}

// jittered adds up to Jitter*d of random delay.
func (r *Retry) jittered(d time.Duration) time.Duration {
	if r.cfg.Jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*r.cfg.Jitter*r.rng.Float64())
}
