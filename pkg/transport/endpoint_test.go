package transport

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mapper-protocol/mapper-go/pkg/log"
)

type frameRecorder struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *frameRecorder) Log(ev log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *frameRecorder) count(dir log.Direction) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Direction == dir && ev.Frame != nil {
			n++
		}
	}
	return n
}

func listenLocal(t *testing.T, mutate func(*EndpointConfig)) *Endpoint {
	t.Helper()
	cfg := DefaultEndpointConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := Listen(cfg)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func receive(t *testing.T, e *Endpoint) Datagram {
	t.Helper()
	select {
	case d := <-e.Incoming():
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
		return Datagram{}
	}
}

func TestEndpointSendReceive(t *testing.T) {
	rec := &frameRecorder{}
	a := listenLocal(t, func(c *EndpointConfig) { c.ProtocolLogger = rec; c.SessionID = "a" })
	b := listenLocal(t, nil)

	if a.Port() == 0 {
		t.Fatal("expected ephemeral port to be assigned")
	}

	if err := a.Send(b.LocalAddr(), []byte("hello")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	d := receive(t, b)
	if string(d.Data) != "hello" {
		t.Errorf("got %q", d.Data)
	}
	if d.From.Port != a.LocalAddr().Port {
		t.Errorf("From port = %d, want %d", d.From.Port, a.LocalAddr().Port)
	}

	if a.Stats().Sent != 1 || b.Stats().Received != 1 {
		t.Errorf("stats: a=%+v b=%+v", a.Stats(), b.Stats())
	}
	if rec.count(log.DirectionOut) != 1 {
		t.Error("expected one outgoing frame event")
	}
}

func TestEndpointSendErrors(t *testing.T) {
	a := listenLocal(t, func(c *EndpointConfig) { c.MaxDatagramSize = 8 })

	if err := a.Send(a.LocalAddr(), nil); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("empty: got %v", err)
	}
	if err := a.Send(a.LocalAddr(), make([]byte, 9)); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("too large: got %v", err)
	}

	a.Close()
	if err := a.Send(a.LocalAddr(), []byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("closed: got %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, ok := <-a.Incoming(); ok {
		t.Error("Incoming should be closed after Close")
	}
}

func TestEndpointQueueOverflowDrops(t *testing.T) {
	a := listenLocal(t, nil)
	b := listenLocal(t, func(c *EndpointConfig) { c.QueueSize = 1 })

	for i := 0; i < 5; i++ {
		if err := a.Send(b.LocalAddr(), []byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := b.Stats()
		if s.Received == 5 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	s := b.Stats()
	if s.Received != 5 || s.Dropped != 4 {
		t.Errorf("stats = %+v, want 5 received, 4 dropped", s)
	}
	if d := receive(t, b); d.Data[0] != 0 {
		t.Errorf("queued datagram = %v, want first", d.Data)
	}
}

func TestEndpointReceiveTimeout(t *testing.T) {
	a := listenLocal(t, nil)

	if _, err := a.TryReceive(); !errors.Is(err, ErrTimeout) {
		t.Errorf("TryReceive on empty queue: got %v", err)
	}
	if _, err := a.Receive(10 * time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("Receive on empty queue: got %v", err)
	}

	if err := a.Send(a.LocalAddr(), []byte("self")); err != nil {
		t.Fatal(err)
	}
	d, err := a.Receive(2 * time.Second)
	if err != nil || string(d.Data) != "self" {
		t.Errorf("Receive = %q, %v", d.Data, err)
	}

	a.Close()
	if _, err := a.Receive(10 * time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Errorf("Receive after close: got %v", err)
	}
}

func TestListenBadAddress(t *testing.T) {
	if _, err := Listen(EndpointConfig{ListenAddr: "not-an-address:xx"}); err == nil {
		t.Error("expected error")
	}
}
