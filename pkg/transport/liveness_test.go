package transport

import (
	"testing"
	"time"
)

func TestLivenessConfig(t *testing.T) {
	config := DefaultLivenessConfig()

	if config.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("HeartbeatInterval = %v, want %v", config.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if config.MaxMissedHeartbeats != DefaultMaxMissedHeartbeats {
		t.Errorf("MaxMissedHeartbeats = %d, want %d", config.MaxMissedHeartbeats, DefaultMaxMissedHeartbeats)
	}

	expected := 1*time.Second*5 + 500*time.Millisecond
	if delay := config.DetectionDelay(); delay != expected {
		t.Errorf("DetectionDelay = %v, want %v", delay, expected)
	}
}

func TestLivenessExpire(t *testing.T) {
	l := NewLiveness(LivenessConfig{HeartbeatInterval: 100 * time.Millisecond, MaxMissedHeartbeats: 2})
	start := time.Unix(1000, 0)

	if !l.Seen("b.1", start) {
		t.Error("first heartbeat should report a new peer")
	}
	if l.Seen("b.1", start.Add(10*time.Millisecond)) {
		t.Error("second heartbeat should not report a new peer")
	}
	l.Seen("a.1", start)
	l.Seen("c.1", start.Add(150*time.Millisecond))

	if got := l.Expire(start.Add(150 * time.Millisecond)); len(got) != 0 {
		t.Errorf("nothing should expire yet, got %v", got)
	}

	got := l.Expire(start.Add(250 * time.Millisecond))
	if len(got) != 2 || got[0] != "a.1" || got[1] != "b.1" {
		t.Errorf("Expire = %v, want [a.1 b.1]", got)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
}

func TestLivenessOutOfOrder(t *testing.T) {
	l := NewLiveness(DefaultLivenessConfig())
	now := time.Unix(2000, 0)

	l.Seen("a.1", now)
	l.Seen("a.1", now.Add(-time.Second))

	if seen, _ := l.LastSeen("a.1"); !seen.Equal(now) {
		t.Errorf("older heartbeat moved LastSeen back to %v", seen)
	}

	l.Forget("a.1")
	if _, ok := l.LastSeen("a.1"); ok {
		t.Error("Forget did not remove peer")
	}
}
