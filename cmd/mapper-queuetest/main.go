// Command mapper-queuetest checks that queued updates arrive complete.
//
// A sender device with two output signals is mapped into one input
// signal of a receiver device. Each round opens a queue, sets both
// outputs and sends the queue; the test passes when every update sent was
// received.
//
// Usage:
//
//	mapper-queuetest [flags]
//
// Flags:
//
//	-f          Fast: poll the receiver for 1ms instead of 100ms per round
//	-q          Quiet: only print a running count
//	-t          Terminate after 50 rounds instead of waiting for Ctrl-C
//	-network    Use two UDP sessions on localhost instead of one loopback session
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/mapper-protocol/mapper-go/pkg/device"
	"github.com/mapper-protocol/mapper-go/pkg/model"
	"github.com/mapper-protocol/mapper-go/pkg/session"
	"github.com/mapper-protocol/mapper-go/pkg/timetag"
)

const rounds = 50

var (
	fast      = flag.Bool("f", false, "Fast: poll the receiver for 1ms instead of 100ms per round")
	quiet     = flag.Bool("q", false, "Quiet: only print a running count")
	terminate = flag.Bool("t", false, "Terminate after 50 rounds instead of waiting for Ctrl-C")
	network   = flag.Bool("network", false, "Use two UDP sessions on localhost instead of one loopback session")
)

// options configures one test run.
type options struct {
	Period    time.Duration
	Rounds    int // 0 runs until ctx is done
	Network   bool
	Verbose   io.Writer
	Progress  io.Writer
	ReadyWait time.Duration
}

// result counts the updates of a run.
type result struct {
	Sent     int
	Received int
}

func (r result) passed() bool { return r.Sent > 0 && r.Sent == r.Received }

func main() {
	flag.Parse()

	opts := options{
		Period:    100 * time.Millisecond,
		Network:   *network,
		Verbose:   os.Stdout,
		ReadyWait: 10 * time.Second,
	}
	if *fast {
		opts.Period = time.Millisecond
	}
	if *terminate {
		opts.Rounds = rounds
	}
	if *quiet {
		opts.Verbose = io.Discard
		opts.Progress = os.Stdout
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := run(ctx, opts)
	ok := err == nil && res.passed()
	if err != nil {
		fmt.Fprintf(opts.Verbose, "Error: %v\n", err)
	} else if !ok {
		fmt.Fprintln(opts.Verbose, "Not all sent messages were received.")
		fmt.Fprintf(opts.Verbose, "Updated value %d times, but received %d of them.\n", res.Sent, res.Received)
	}

	if ok {
		fmt.Println("...................Test \x1B[32mPASSED\x1B[0m.")
		return
	}
	fmt.Println("...................Test \x1B[31mFAILED\x1B[0m.")
	os.Exit(1)
}

func run(ctx context.Context, opts options) (result, error) {
	var res result
	out := opts.Verbose
	if out == nil {
		out = io.Discard
	}

	srcSess, dstSess, err := sessions(opts.Network)
	if err != nil {
		return res, err
	}

	dst, err := device.New("testqueue-recv", dstSess)
	if err != nil {
		return res, err
	}
	defer dst.Close()
	src, err := device.New("testqueue-send", srcSess)
	if err != nil {
		return res, err
	}
	defer src.Close()
	// The devices hold their own references.
	_ = srcSess.Release()
	if dstSess != srcSess {
		_ = dstSess.Release()
	}
	fmt.Fprintln(out, "devices created.")

	handler := device.ListenerFuncs{
		Update: func(_ *device.Signal, _ uint64, v model.Value, _ timetag.Time) {
			fmt.Fprintf(out, "handler: Got %v\n", v.Float32s())
			res.Received++
		},
	}
	bounds := &device.SignalOptions{Min: 0, Max: 1}
	out0, err := src.AddSignal(model.DirOut, "outsig", 1, model.TypeFloat32, bounds)
	if err != nil {
		return res, err
	}
	out1, err := src.AddSignal(model.DirOut, "outsig1", 1, model.TypeFloat32, bounds)
	if err != nil {
		return res, err
	}
	in, err := dst.AddSignal(model.DirIn, "insig", 1, model.TypeFloat32, &device.SignalOptions{
		Min: 0, Max: 1, Listener: handler,
	})
	if err != nil {
		return res, err
	}
	if _, err := dst.AddSignal(model.DirIn, "insig1", 1, model.TypeFloat32, bounds); err != nil {
		return res, err
	}

	if err := waitReady(ctx, opts.ReadyWait, src, dst); err != nil {
		return res, err
	}
	fmt.Fprintf(out, "%s and %s ready.\n", src.Name(), dst.Name())

	mapper := srcSess.(session.Mapper)
	for _, sig := range []*device.Signal{out0, out1} {
		if err := mapper.Map(sig.Ref(), in.Ref()); err != nil {
			return res, err
		}
	}

	fmt.Fprintln(out, "Polling device..")
	for i := 0; opts.Rounds == 0 || i < opts.Rounds; i++ {
		if ctx.Err() != nil {
			break
		}
		if _, err := src.Poll(0); err != nil {
			return res, err
		}
		// The queue must open after the poll: a poll cycle closes it.
		now, err := src.StartQueue(timetag.Time{})
		if err != nil {
			return res, err
		}
		v := float32(i)
		fmt.Fprintf(out, "Updating signal %s to %f\n", out0.Name(), v)
		if err := out0.SetValue(0, v); err != nil {
			return res, err
		}
		if err := out1.SetValue(0, v); err != nil {
			return res, err
		}
		if err := src.SendQueue(now); err != nil {
			return res, err
		}
		res.Sent += 2

		if _, err := dst.Poll(opts.Period); err != nil {
			return res, err
		}
		if opts.Progress != nil {
			fmt.Fprintf(opts.Progress, "\r  Sent: %4d, Received: %4d   ", res.Sent, res.Received)
		}
	}

	// Collect what is still in flight.
	deadline := time.Now().Add(time.Second)
	for res.Received < res.Sent && time.Now().Before(deadline) {
		if _, err := dst.Poll(10 * time.Millisecond); err != nil {
			return res, err
		}
	}
	if opts.Progress != nil {
		fmt.Fprintln(opts.Progress)
	}
	return res, nil
}

// sessions returns the sessions of the sender and the receiver. In network
// mode the receiver sends heartbeats to the sender so the sender learns
// its address.
func sessions(useNetwork bool) (session.Session, session.Session, error) {
	if !useNetwork {
		s := session.NewLoopback()
		return s, s, nil
	}

	cfg := session.DefaultNetworkConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.DisableMDNS = true
	cfg.ProbeWindow = 50 * time.Millisecond
	cfg.Liveness.HeartbeatInterval = 100 * time.Millisecond

	src, err := session.NewNetwork(cfg)
	if err != nil {
		return nil, nil, err
	}
	cfg.StaticPeers = []string{src.LocalAddr().String()}
	dst, err := session.NewNetwork(cfg)
	if err != nil {
		_ = src.Release()
		return nil, nil, err
	}
	return src, dst, nil
}

// waitReady polls both devices until they are ready and, on a network
// session, the sender knows the receiver.
func waitReady(ctx context.Context, limit time.Duration, src, dst *device.Device) error {
	deadline := time.Now().Add(limit)
	for {
		if src.Ready() && dst.Ready() && knows(src, dst.Name()) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			return errors.New("devices not ready in time")
		}
		if _, err := src.Poll(25 * time.Millisecond); err != nil {
			return err
		}
		if _, err := dst.Poll(25 * time.Millisecond); err != nil {
			return err
		}
	}
}

func knows(d *device.Device, name string) bool {
	n, ok := d.Session().(*session.Network)
	if !ok {
		return true
	}
	return slices.ContainsFunc(n.Peers(), func(p session.Identity) bool { return p.Name == name })
}
