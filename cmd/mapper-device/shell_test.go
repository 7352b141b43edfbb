package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mapper-protocol/mapper-go/pkg/config"
	"github.com/mapper-protocol/mapper-go/pkg/device"
	"github.com/mapper-protocol/mapper-go/pkg/model"
	"github.com/mapper-protocol/mapper-go/pkg/session"
	"github.com/mapper-protocol/mapper-go/pkg/timetag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testShell(t *testing.T) (*Shell, *bytes.Buffer, *device.Device, *session.Loopback) {
	t.Helper()
	sess := session.NewLoopback()
	t.Cleanup(func() { _ = sess.Release() })

	d, err := device.New("shell", sess)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	for !d.Ready() {
		_, err := d.Poll(10 * time.Millisecond)
		require.NoError(t, err)
	}

	var out bytes.Buffer
	s := &Shell{out: &out}
	s.Attach(d, func(fn func()) bool { fn(); return true })
	return s, &out, d, sess
}

func TestShellSet(t *testing.T) {
	s, out, d, _ := testShell(t)
	sig, err := d.AddSignal(model.DirOut, "pos", 2, model.TypeFloat32, nil)
	require.NoError(t, err)

	assert.False(t, s.Exec("set pos#3 1 2"))
	v, _, ok := sig.Value(3)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, v.Float32s())
	assert.Contains(t, out.String(), "pos[3] = ")

	out.Reset()
	s.Exec("set pos 7")
	v, _, _ = sig.Value(0)
	assert.Equal(t, []float32{7, 7}, v.Float32s(), "scalar broadcast")

	out.Reset()
	s.Exec("set pos 1 2 3")
	assert.Contains(t, out.String(), "type mismatch")

	out.Reset()
	s.Exec("set nope 1")
	assert.Contains(t, out.String(), `no signal "nope"`)

	out.Reset()
	s.Exec("set pos abc")
	assert.Contains(t, out.String(), "bad number")
}

func TestShellReleaseAndSignals(t *testing.T) {
	s, out, d, _ := testShell(t)
	sig, _ := d.AddSignal(model.DirOut, "x", 1, model.TypeInt32, &device.SignalOptions{Unit: "mm"})
	require.NoError(t, sig.SetValue(4, 1))

	s.Exec("signals")
	assert.Contains(t, out.String(), "mm")
	assert.Contains(t, out.String(), "instances=[4]")

	out.Reset()
	s.Exec("release x#4")
	assert.Contains(t, out.String(), "x[4] released")
	assert.Empty(t, sig.ActiveInstances())

	out.Reset()
	s.Exec("release x")
	assert.Contains(t, out.String(), "Usage")
}

func TestShellQueue(t *testing.T) {
	s, out, d, _ := testShell(t)

	s.Exec("queue send")
	assert.Contains(t, out.String(), "no update queue open")

	out.Reset()
	s.Exec("queue start")
	assert.Contains(t, out.String(), "Queue open")
	assert.True(t, d.QueueOpen())

	out.Reset()
	s.Exec("queue start")
	assert.Contains(t, out.String(), "already open")

	out.Reset()
	s.Exec("queue send")
	assert.Contains(t, out.String(), "Queue sent")
	assert.False(t, d.QueueOpen())

	out.Reset()
	s.Exec("queue start 1700000000.5")
	assert.Contains(t, out.String(), "2023-11-14T22:13:20.5Z")
}

func TestShellChainedQueue(t *testing.T) {
	s, out, d, _ := testShell(t)
	a, err := d.AddSignal(model.DirOut, "a", 1, model.TypeInt32, nil)
	require.NoError(t, err)
	b, err := d.AddSignal(model.DirOut, "b", 1, model.TypeInt32, nil)
	require.NoError(t, err)

	var cycles int
	s.Attach(d, func(fn func()) bool {
		fn()
		cycles++
		_, err := d.Poll(0)
		require.NoError(t, err)
		return true
	})

	assert.False(t, s.Exec("queue start 1700000000; set a 1 ; set b 2; queue send"))
	assert.Equal(t, 1, cycles, "one poll cycle for the whole line")
	assert.Contains(t, out.String(), "Queue sent")
	assert.NotContains(t, out.String(), "Error")

	want := timetag.FromTime(time.Unix(1700000000, 0))
	for _, sig := range []*device.Signal{a, b} {
		_, tt, ok := sig.Value(0)
		require.True(t, ok)
		assert.Equal(t, want, tt, sig.Name())
	}

	// Split over two lines, the poll in between closes the queue.
	out.Reset()
	s.Exec("queue start")
	s.Exec("queue send")
	assert.Contains(t, out.String(), "no update queue open")

	assert.True(t, s.Exec("status; quit; status"))
}

func TestShellMaps(t *testing.T) {
	s, out, _, sess := testShell(t)

	s.Exec("maps")
	assert.Contains(t, out.String(), "No maps")

	out.Reset()
	s.Exec("map out fx.1/in")
	assert.Contains(t, out.String(), "Mapped shell.1/out -> fx.1/in")
	assert.Len(t, sess.Maps(), 1)

	out.Reset()
	s.Exec("map out fx.1/in")
	assert.Contains(t, out.String(), "Error")

	out.Reset()
	s.Exec("maps")
	assert.Contains(t, out.String(), "shell.1/out -> fx.1/in")

	out.Reset()
	s.Exec("unmap out fx.1/in")
	assert.Contains(t, out.String(), "Unmapped")
	assert.Empty(t, sess.Maps())
}

func TestShellStatusAndQuit(t *testing.T) {
	s, out, _, _ := testShell(t)

	s.Exec("status")
	assert.Contains(t, out.String(), "shell.1")
	assert.Contains(t, out.String(), "ready")

	out.Reset()
	assert.False(t, s.Exec("bogus"))
	assert.Contains(t, out.String(), "Unknown command")
	assert.False(t, s.Exec("   "))
	assert.True(t, s.Exec("quit"))
}

func TestParseValues(t *testing.T) {
	v, err := parseValues(model.TypeString, []string{"hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", v)

	v, err = parseValues(model.TypeString, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)

	v, err = parseValues(model.TypeInt32, []string{"1", "2.5"})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), 2.5}, v)

	v, err = parseValues(model.TypeInt64, []string{"9007199254740993"})
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), v)

	_, err = parseValues(model.TypeFloat64, []string{"x"})
	assert.Error(t, err)
}

func TestPollLoop(t *testing.T) {
	sess := session.NewLoopback()
	defer sess.Release()

	file := &config.File{
		Name: "loop",
		Maps: []config.Map{{Source: "out", Destination: "sink.1/in"}},
	}
	d, err := device.New(file.Name, sess)
	require.NoError(t, err)
	defer d.Close()

	loop := newPollLoop(d, file, slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- loop.run(ctx) }()

	require.Eventually(t, func() bool {
		var ready bool
		loop.do(func() { ready = d.Ready() })
		return ready
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool { return len(sess.Maps()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, session.SignalRef{Device: "loop.1", Signal: "out"}, sess.Maps()[0].Source)

	cancel()
	require.NoError(t, <-errc)
	assert.False(t, loop.do(func() {}), "do reports a stopped loop")
}

func TestPrinter(t *testing.T) {
	sess := session.NewLoopback()
	defer sess.Release()
	d, err := device.New("p", sess)
	require.NoError(t, err)
	defer d.Close()
	sig, _ := d.AddSignal(model.DirIn, "in", 1, model.TypeInt32, nil)

	var out bytes.Buffer
	p := printer{out: &out}
	p.OnUpdate(sig, 2, model.Int32s(5), timetag.Now())
	p.OnInstanceEvent(sig, 2, device.InstanceRelease)
	assert.Contains(t, out.String(), "in[2] = ")
	assert.Contains(t, out.String(), "in[2] release")
}
