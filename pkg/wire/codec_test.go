package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/mapper-protocol/mapper-go/pkg/model"
	"github.com/mapper-protocol/mapper-go/pkg/timetag"
)

func valuePtr(v model.Value) *model.Value { return &v }

func TestBatchRoundTrip(t *testing.T) {
	tt := timetag.Time{Sec: 3900000000, Frac: 1 << 31}

	tests := []struct {
		name  string
		batch *Batch
	}{
		{
			name: "single update",
			batch: &Batch{
				Type: MessageTypeBatch, Source: "sender.1", Destination: "receiver.1",
				Time: tt, Seq: 1,
				Updates: []Update{{Signal: "recvsig", Value: valuePtr(model.Float32s(0.5))}},
			},
		},
		{
			name: "mixed updates and release",
			batch: &Batch{
				Type: MessageTypeBatch, Source: "sender.1", Destination: "receiver.2",
				Time: tt, Seq: 42,
				Updates: []Update{
					{Signal: "pos", Instance: 3, Value: valuePtr(model.Int32s(1, 2))},
					{Signal: "pos", Instance: 4},
					{Signal: "label", Value: valuePtr(model.Strings("hello"))},
				},
			},
		},
		{
			name:  "empty batch",
			batch: &Batch{Type: MessageTypeBatch, Source: "a.1", Time: tt},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeBatch(tt.batch)
			if err != nil {
				t.Fatalf("EncodeBatch failed: %v", err)
			}

			decoded, err := DecodeBatch(data)
			if err != nil {
				t.Fatalf("DecodeBatch failed: %v", err)
			}

			if decoded.Source != tt.batch.Source || decoded.Destination != tt.batch.Destination {
				t.Errorf("addressing mismatch: got %s->%s", decoded.Source, decoded.Destination)
			}
			if !decoded.Time.Equal(tt.batch.Time) {
				t.Errorf("Time: got %v, want %v", decoded.Time, tt.batch.Time)
			}
			if decoded.Seq != tt.batch.Seq {
				t.Errorf("Seq: got %d, want %d", decoded.Seq, tt.batch.Seq)
			}
			if decoded.Len() != tt.batch.Len() {
				t.Fatalf("Len: got %d, want %d", decoded.Len(), tt.batch.Len())
			}
			for i, want := range tt.batch.Updates {
				got := decoded.Updates[i]
				if got.Signal != want.Signal || got.Instance != want.Instance {
					t.Errorf("update %d: got %s/%d, want %s/%d", i, got.Signal, got.Instance, want.Signal, want.Instance)
				}
				if got.IsRelease() != want.IsRelease() {
					t.Errorf("update %d: release mismatch", i)
					continue
				}
				if !want.IsRelease() && !got.Value.Equal(*want.Value) {
					t.Errorf("update %d: value got %s, want %s", i, got.Value, want.Value)
				}
			}
		})
	}
}

func TestEncodeDeterministic(t *testing.T) {
	b := NewBatch("sender.1", timetag.Time{Sec: 1, Frac: 2})
	b.Destination = "receiver.1"
	b.Add("x", 0, valuePtr(model.Float64s(1)))

	first, err := EncodeBatch(b)
	if err != nil {
		t.Fatal(err)
	}
	second, err := EncodeBatch(b.Clone())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("encoding is not deterministic")
	}
	if !Equal(b, b.Clone()) {
		t.Error("Equal reports clone as different")
	}
}

func TestBatchValidate(t *testing.T) {
	tests := []struct {
		name  string
		batch Batch
		err   error
	}{
		{"wrong type", Batch{Type: MessageTypeHeartbeat, Source: "a"}, ErrWrongMessageType},
		{"no source", Batch{Type: MessageTypeBatch}, ErrMissingSource},
		{"no signal", Batch{Type: MessageTypeBatch, Source: "a", Updates: []Update{{Instance: 1}}}, ErrMissingSignal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.batch.Validate(); !errors.Is(err, tt.err) {
				t.Errorf("got %v, want %v", err, tt.err)
			}
			if _, err := EncodeBatch(&tt.batch); !errors.Is(err, tt.err) {
				t.Errorf("EncodeBatch: got %v, want %v", err, tt.err)
			}
		})
	}
}

func TestBatchClone(t *testing.T) {
	b := NewBatch("a.1", timetag.Time{})
	b.Add("s", 0, valuePtr(model.Int32s(1)))

	c := b.Clone()
	c.Add("s", 1, nil)
	c.Destination = "b.1"

	if b.Len() != 1 || b.Destination != "" {
		t.Error("mutating the clone changed the original")
	}
}

func TestHeartbeatRoundTrip(t *testing.T) {
	hb := &Heartbeat{
		Type: MessageTypeHeartbeat, Source: "synth.1", ID: 0xdeadbeef,
		Token: "3b6d7a38-0000-4000-8000-000000000000", Version: "2.4", Port: 7570,
	}
	data, err := EncodeHeartbeat(hb)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeHeartbeat(data)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *hb {
		t.Errorf("got %+v, want %+v", got, hb)
	}
}

func TestLogoutRoundTrip(t *testing.T) {
	lo := &Logout{Type: MessageTypeLogout, Source: "synth.1", Token: "tok"}
	data, err := EncodeLogout(lo)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeLogout(data)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *lo {
		t.Errorf("got %+v, want %+v", got, lo)
	}

	bare, err := EncodeLogout(&Logout{Type: MessageTypeLogout, Source: "synth.1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeHeartbeat(bare); !errors.Is(err, ErrWrongMessageType) {
		t.Errorf("decoding logout as heartbeat: got %v", err)
	}
}

func TestPeekMessageType(t *testing.T) {
	batch, _ := EncodeBatch(NewBatch("a.1", timetag.Time{}))
	hb, _ := EncodeHeartbeat(&Heartbeat{Type: MessageTypeHeartbeat, Source: "a.1"})
	lo, _ := EncodeLogout(&Logout{Type: MessageTypeLogout, Source: "a.1"})
	future, _ := Marshal(map[int]any{1: 200, 2: "x"})

	tests := []struct {
		name string
		data []byte
		want MessageType
	}{
		{"batch", batch, MessageTypeBatch},
		{"heartbeat", hb, MessageTypeHeartbeat},
		{"logout", lo, MessageTypeLogout},
		{"unknown type", future, MessageTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PeekMessageType(tt.data)
			if err != nil {
				t.Fatalf("PeekMessageType failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := PeekMessageType([]byte{0xff, 0x00}); err == nil {
		t.Error("expected error for garbage input")
	}
}
