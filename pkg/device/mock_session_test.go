package device_test

import (
	"errors"
	"testing"
	"time"

	"github.com/mapper-protocol/mapper-go/pkg/device"
	"github.com/mapper-protocol/mapper-go/pkg/model"
	"github.com/mapper-protocol/mapper-go/pkg/session"
	"github.com/mapper-protocol/mapper-go/pkg/session/mocks"
	"github.com/mapper-protocol/mapper-go/pkg/timetag"
	"github.com/mapper-protocol/mapper-go/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDeviceDrivesSession(t *testing.T) {
	sess := mocks.NewMockSession(t)
	var deliver session.Subscriber

	sess.EXPECT().Retain().Return().Once()
	sess.EXPECT().Join("synth").Return(session.Handle(4), nil).Once()
	sess.EXPECT().Subscribe(session.Handle(4), mock.Anything).
		Run(func(_ session.Handle, fn session.Subscriber) { deliver = fn }).
		Return(nil).Once()

	d, err := device.New("synth", sess)
	require.NoError(t, err)
	require.NotNil(t, deliver)

	sess.EXPECT().Pump(time.Duration(0)).Return(1, nil)
	sess.EXPECT().Identity(session.Handle(4)).Return(session.Identity{Name: "synth.3", ID: 77}, true)

	_, err = d.Poll(0)
	require.NoError(t, err)
	assert.True(t, d.Ready())
	assert.Equal(t, "synth.3", d.Name())
	assert.Equal(t, uint64(77), d.ID())

	out, err := d.AddSignal(model.DirOut, "freq", 1, model.TypeFloat32, nil)
	require.NoError(t, err)

	sess.EXPECT().Publish(session.Handle(4), mock.MatchedBy(func(b *wire.Batch) bool {
		return len(b.Updates) == 2 &&
			b.Time == (timetag.Time{Sec: 5}) &&
			b.Updates[0].Instance == 0 && b.Updates[1].Instance == 1
	})).Return(nil).Once()

	_, err = d.StartQueue(timetag.Time{Sec: 5})
	require.NoError(t, err)
	require.NoError(t, out.SetValue(0, 440))
	require.NoError(t, out.SetValue(1, 880))
	require.NoError(t, d.SendQueue(timetag.Time{}))

	// Inbound batches pushed from another goroutine are dispatched by Poll.
	var got []float32
	in, err := d.AddSignal(model.DirIn, "gain", 1, model.TypeFloat32, &device.SignalOptions{
		Listener: device.ListenerFuncs{Update: func(_ *device.Signal, _ uint64, v model.Value, _ timetag.Time) {
			got = append(got, v.Float32s()...)
		}},
	})
	require.NoError(t, err)
	b := wire.NewBatch("ctl.1", timetag.Time{Sec: 6})
	half := model.Float64s(0.5)
	b.Add(in.Name(), 0, &half)
	done := make(chan struct{})
	go func() {
		deliver(b)
		close(done)
	}()
	<-done

	n, err := d.Poll(0)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "new instance and update")
	assert.Equal(t, []float32{0.5}, got)

	sess.EXPECT().Leave(session.Handle(4)).Return(nil).Once()
	sess.EXPECT().Release().Return(nil).Once()
	require.NoError(t, d.Close())
}

func TestDeviceSubscribeFailure(t *testing.T) {
	sess := mocks.NewMockSession(t)
	boom := errors.New("boom")

	sess.EXPECT().Retain().Return().Once()
	sess.EXPECT().Join("synth").Return(session.Handle(1), nil).Once()
	sess.EXPECT().Subscribe(session.Handle(1), mock.Anything).Return(boom).Once()
	sess.EXPECT().Leave(session.Handle(1)).Return(nil).Once()
	sess.EXPECT().Release().Return(nil).Once()

	_, err := device.New("synth", sess)
	assert.ErrorIs(t, err, boom)
}

func TestDevicePublishFailureIsLogged(t *testing.T) {
	sess := mocks.NewMockSession(t)
	sess.EXPECT().Retain().Return()
	sess.EXPECT().Join("synth").Return(session.Handle(1), nil)
	sess.EXPECT().Subscribe(session.Handle(1), mock.Anything).Return(nil)
	sess.EXPECT().Pump(mock.Anything).Return(0, nil)
	sess.EXPECT().Identity(session.Handle(1)).Return(session.Identity{Name: "synth.1", ID: 1}, true)
	sess.EXPECT().Publish(session.Handle(1), mock.Anything).Return(session.ErrClosed).Once()
	sess.EXPECT().Leave(session.Handle(1)).Return(nil)
	sess.EXPECT().Release().Return(nil)

	d, err := device.New("synth", sess)
	require.NoError(t, err)
	defer d.Close()
	_, err = d.Poll(0)
	require.NoError(t, err)

	out, _ := d.AddSignal(model.DirOut, "x", 1, model.TypeInt32, nil)
	assert.NoError(t, out.SetValue(0, 1), "local state changes even when publishing fails")
	_, _, ok := out.Value(0)
	assert.True(t, ok)
}
