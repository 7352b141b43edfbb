package log

import (
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mapper-protocol/mapper-go/pkg/wire"
)

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.mlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	now := time.Now()
	logger.Log(Event{
		Timestamp: now,
		SessionID: "sess-1",
		Direction: DirectionIn,
		Layer:     LayerWire,
		Category:  CategoryPresence,
		Peer:      "synth.1",
		Message:   &MessageEvent{Type: wire.MessageTypeHeartbeat, Source: "synth.1"},
	})
	logger.Log(Event{
		Timestamp: now.Add(time.Millisecond),
		SessionID: "sess-1",
		Layer:     LayerDevice,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity: StateEntityDevice, OldState: "PENDING", NewState: "READY",
		},
	})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	logger.Log(Event{SessionID: "after-close"})

	written, failed := logger.Stats()
	if written != 2 || failed != 0 {
		t.Errorf("Stats: got %d/%d, want 2/0", written, failed)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	events, err := r.All()
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if !events[0].Timestamp.Equal(now) {
		t.Errorf("timestamp lost precision: got %v, want %v", events[0].Timestamp, now)
	}
	if events[0].Message == nil || events[0].Message.Type != wire.MessageTypeHeartbeat {
		t.Errorf("first event: got %+v", events[0].Message)
	}
	if events[1].StateChange == nil || events[1].StateChange.NewState != "READY" {
		t.Errorf("second event: got %+v", events[1].StateChange)
	}
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.mlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				logger.Log(Event{Timestamp: time.Now(), Category: CategoryMessage})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	r, err := NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	count := 0
	for {
		_, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next failed after %d events: %v", count, err)
		}
		count++
	}
	if count != 200 {
		t.Errorf("got %d events, want 200", count)
	}
}

func TestFileLoggerBadPath(t *testing.T) {
	if _, err := NewFileLogger(filepath.Join(t.TempDir(), "missing", "x.mlog")); err == nil {
		t.Error("expected error for missing directory")
	}
}
