package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/mapper-protocol/mapper-go/pkg/model"
	"github.com/mapper-protocol/mapper-go/pkg/timetag"
	"github.com/mapper-protocol/mapper-go/pkg/wire"
)

func captureSlog(t *testing.T, ev Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(ev)

	if buf.Len() == 0 {
		t.Fatal("no output produced")
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return entry
}

func TestSlogAdapterLogsFrameEvent(t *testing.T) {
	entry := captureSlog(t, Event{
		Timestamp:  time.Now(),
		SessionID:  "sess-123",
		Direction:  DirectionIn,
		Layer:      LayerTransport,
		Category:   CategoryMessage,
		RemoteAddr: "127.0.0.1:7570",
		Frame:      NewFrameEvent([]byte{0x01, 0x02}),
	})

	if entry["msg"] != "protocol" {
		t.Errorf("msg: got %v", entry["msg"])
	}
	if entry["session"] != "sess-123" {
		t.Errorf("session: got %v", entry["session"])
	}
	if entry["layer"] != "TRANSPORT" {
		t.Errorf("layer: got %v", entry["layer"])
	}
	if entry["frame_size"] != float64(2) {
		t.Errorf("frame_size: got %v", entry["frame_size"])
	}
	if entry["remote"] != "127.0.0.1:7570" {
		t.Errorf("remote: got %v", entry["remote"])
	}
}

func TestSlogAdapterLogsBatch(t *testing.T) {
	b := wire.NewBatch("sender.1", timetag.Time{Sec: 10})
	b.Destination = "receiver.1"
	b.Seq = 7
	v := model.Float32s(0.5)
	b.Add("recvsig", 0, &v)

	entry := captureSlog(t, Event{
		Direction: DirectionOut,
		Layer:     LayerWire,
		Category:  CategoryMessage,
		Device:    "sender.1",
		Message:   NewMessageEvent(b),
	})

	if entry["msg_type"] != "batch" {
		t.Errorf("msg_type: got %v", entry["msg_type"])
	}
	if entry["dst"] != "receiver.1" {
		t.Errorf("dst: got %v", entry["dst"])
	}
	if entry["seq"] != float64(7) {
		t.Errorf("seq: got %v", entry["seq"])
	}
	if entry["updates"] != float64(1) {
		t.Errorf("updates: got %v", entry["updates"])
	}
	if entry["device"] != "sender.1" {
		t.Errorf("device: got %v", entry["device"])
	}
}

func TestSlogAdapterLogsStateAndInstance(t *testing.T) {
	entry := captureSlog(t, Event{
		Layer:    LayerDevice,
		Category: CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityDevice,
			OldState: "PENDING",
			NewState: "READY",
			Reason:   "name allocated",
		},
	})
	if entry["new_state"] != "READY" || entry["entity"] != "DEVICE" || entry["reason"] != "name allocated" {
		t.Errorf("unexpected state entry: %v", entry)
	}

	entry = captureSlog(t, Event{
		Layer:    LayerDevice,
		Category: CategoryInstance,
		Instance: &InstanceEvent{Signal: "touch", Instance: 3, Kind: "overflow"},
	})
	if entry["signal"] != "touch" || entry["instance"] != float64(3) || entry["kind"] != "overflow" {
		t.Errorf("unexpected instance entry: %v", entry)
	}
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	NewSlogAdapter(slog.New(handler)).Log(Event{Category: CategoryError, Error: &ErrorEventData{Message: "x"}})

	if buf.Len() != 0 {
		t.Errorf("expected no output at info level, got %q", buf.String())
	}
}
