package connection

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("multicast unavailable")

// delays fails r n times back to back and returns the scheduled delays.
func delays(r *Retry, now time.Time, n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		r.Failed(now, errBoom)
		out[i] = r.NextAttempt().Sub(now)
	}
	return out
}

func TestRetryBackoff(t *testing.T) {
	now := time.Unix(100, 0)

	t.Run("DefaultSequence", func(t *testing.T) {
		r := NewRetry(BackoffConfig{}, 0)
		want := []time.Duration{InitialBackoff, 2 * InitialBackoff, 4 * InitialBackoff}
		for i, got := range delays(r, now, len(want)) {
			if got != want[i] {
				t.Errorf("delay #%d = %v, want %v", i, got, want[i])
			}
		}
	})

	t.Run("CappedAtMax", func(t *testing.T) {
		r := NewRetry(BackoffConfig{
			Initial:    10 * time.Millisecond,
			Max:        35 * time.Millisecond,
			Multiplier: 3,
		}, 0)
		want := []time.Duration{10 * time.Millisecond, 30 * time.Millisecond, 35 * time.Millisecond, 35 * time.Millisecond}
		for i, got := range delays(r, now, len(want)) {
			if got != want[i] {
				t.Errorf("delay #%d = %v, want %v", i, got, want[i])
			}
		}
	})

	t.Run("Jitter", func(t *testing.T) {
		upper := time.Duration(float64(InitialBackoff)*(1+JitterFactor)) + time.Millisecond
		samples := make([]time.Duration, 20)
		for i := range samples {
			r := NewRetry(BackoffConfig{Jitter: JitterFactor}, 0)
			samples[i] = delays(r, now, 1)[0]
			if samples[i] < InitialBackoff || samples[i] > upper {
				t.Errorf("Sample %d: %v out of range [%v, %v]", i, samples[i], InitialBackoff, upper)
			}
		}

		allSame := true
		for i := 1; i < len(samples); i++ {
			if samples[i] != samples[0] {
				allSame = false
				break
			}
		}
		if allSame {
			t.Error("All jittered samples are identical - jitter may not be working")
		}
	})

	t.Run("ResetRewinds", func(t *testing.T) {
		r := NewRetry(BackoffConfig{Initial: time.Second}, 0)
		delays(r, now, 3)
		if r.Attempts() != 3 {
			t.Errorf("Attempts = %d, want 3", r.Attempts())
		}
		r.Reset()
		if r.Attempts() != 0 {
			t.Errorf("after Reset: attempts=%d", r.Attempts())
		}
		if got := delays(r, now, 1)[0]; got != time.Second {
			t.Errorf("delay after Reset = %v, want 1s", got)
		}
	})
}

func TestRetry(t *testing.T) {
	r := NewRetry(BackoffConfig{Initial: time.Second, Max: 4 * time.Second}, 0)
	now := time.Unix(100, 0)

	if r.state != stateIdle || !r.Due(now) {
		t.Fatal("new retry should be idle and due")
	}

	if err := r.Failed(now, errBoom); err != nil {
		t.Fatalf("Failed: %v", err)
	}
	if r.state != stateWaiting {
		t.Errorf("state=%d", r.state)
	}
	if r.Due(now.Add(999 * time.Millisecond)) {
		t.Error("retry due too early")
	}
	if !r.Due(now.Add(time.Second)) {
		t.Error("retry not due after backoff")
	}
	if got := r.NextAttempt(); !got.Equal(now.Add(time.Second)) {
		t.Errorf("NextAttempt = %v", got)
	}

	r.Failed(now.Add(time.Second), errBoom)
	if got := r.NextAttempt(); !got.Equal(now.Add(3 * time.Second)) {
		t.Errorf("second NextAttempt = %v, want +3s", got)
	}

	r.Succeeded()
	if r.state != stateDone || r.Due(now.Add(time.Hour)) || r.Attempts() != 0 {
		t.Error("succeeded retry should not be due")
	}
	if !r.NextAttempt().IsZero() {
		t.Error("NextAttempt should be zero when not waiting")
	}

	r.Reset()
	if !r.Due(now) {
		t.Error("reset retry should be due")
	}
}

func TestRetryMaxAttempts(t *testing.T) {
	r := NewRetry(BackoffConfig{}, 2)
	now := time.Now()

	if err := r.Failed(now, errors.New("1")); err != nil {
		t.Fatalf("first failure: %v", err)
	}
	err := r.Failed(now, errBoom)
	if !errors.Is(err, ErrRetryExhausted) || !errors.Is(err, errBoom) {
		t.Fatalf("second failure: got %v, want ErrRetryExhausted wrapping the cause", err)
	}
	if r.state != stateGivenUp || r.Due(now.Add(time.Hour)) || !r.NextAttempt().IsZero() {
		t.Error("given-up retry should never be due")
	}
}
