// Command mapper-device runs a device described by a YAML file or flags.
//
// Updates arriving on input signals are printed. With -interactive a
// shell allows setting outputs, managing queues and maps.
//
// Usage:
//
//	mapper-device [flags]
//
// Flags:
//
//	-config string        Device description file (YAML)
//	-name string          Device name, overrides the file
//	-listen string        UDP listen address (default ":0")
//	-peers string         Comma separated static peers (host:port)
//	-no-mdns              Disable mDNS discovery
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-interactive          Start the command shell
//	-protocol-log string  File path for protocol event logging (CBOR format)
//	-metrics string       Serve Prometheus metrics on this address
//
// Examples:
//
//	# Run the device from a description file
//	mapper-device -config synth.yaml
//
//	# Ad-hoc device with a shell, no multicast
//	mapper-device -name probe -no-mdns -peers 10.0.0.5:7570 -interactive
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mapper-protocol/mapper-go/pkg/config"
	"github.com/mapper-protocol/mapper-go/pkg/device"
	mapperlog "github.com/mapper-protocol/mapper-go/pkg/log"
	"github.com/mapper-protocol/mapper-go/pkg/metric"
	"github.com/mapper-protocol/mapper-go/pkg/model"
	"github.com/mapper-protocol/mapper-go/pkg/session"
	"github.com/mapper-protocol/mapper-go/pkg/timetag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const pollInterval = 50 * time.Millisecond

var (
	configFile  = flag.String("config", "", "Device description file (YAML)")
	name        = flag.String("name", "", "Device name, overrides the file")
	listen      = flag.String("listen", "", "UDP listen address (default \":0\")")
	peers       = flag.String("peers", "", "Comma separated static peers (host:port)")
	noMDNS      = flag.Bool("no-mdns", false, "Disable mDNS discovery")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	interactive = flag.Bool("interactive", false, "Start the command shell")
	protocolLog = flag.String("protocol-log", "", "File path for protocol event logging (CBOR format)")
	metricsAddr = flag.String("metrics", "", "Serve Prometheus metrics on this address")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	file, err := description()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		shell  *Shell
		stdout io.Writer = os.Stdout
		stderr io.Writer = os.Stderr
	)
	if *interactive {
		shell, err = NewShell()
		if err != nil {
			return err
		}
		stdout, stderr = shell.Stdout(), shell.Stderr()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg := device.DefaultConfig()
	cfg.Logger = logger
	cfg.Network = file.NetworkConfig(cfg.Network)
	if *listen != "" {
		cfg.Network.ListenAddr = *listen
	}
	if *peers != "" {
		cfg.Network.StaticPeers = append(cfg.Network.StaticPeers, strings.Split(*peers, ",")...)
	}
	if *noMDNS {
		cfg.Network.DisableMDNS = true
	}

	if *protocolLog != "" {
		fl, err := mapperlog.NewFileLogger(*protocolLog)
		if err != nil {
			return fmt.Errorf("failed to create protocol logger: %w", err)
		}
		defer fl.Close()
		cfg.ProtocolLogger = fl
		logger.Info("protocol logging", "path", *protocolLog)
	}

	reg := prometheus.NewRegistry()
	cfg.Metrics = metric.NewMetrics(metric.DefaultNamespace)
	if err := cfg.Metrics.Register(reg); err != nil {
		return err
	}
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, reg, logger)
	}

	dev, err := device.NewWithConfig(file.Name, cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	if _, err := file.Apply(dev, printer{out: stdout}); err != nil {
		return err
	}
	logger.Info("device started", "name", file.Name, "signals", len(file.Signals))

	loop := newPollLoop(dev, file, logger)
	if shell != nil {
		shell.Attach(dev, loop.do)
		go func() {
			shell.Run(ctx)
			cancel()
		}()
	}

	err = loop.run(ctx)
	logger.Info("shutting down")
	return err
}

// description returns the device description from -config and -name.
func description() (*config.File, error) {
	file := &config.File{}
	if *configFile != "" {
		f, err := config.Load(*configFile)
		if err != nil {
			return nil, err
		}
		file = f
	}
	if *name != "" {
		file.Name = *name
	}
	if file.Name == "" {
		return nil, errors.New("a device name is required (-name or -config)")
	}
	return file, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}

// pollLoop owns the device. Other goroutines reach it through do.
type pollLoop struct {
	dev     *device.Device
	file    *config.File
	logger  *slog.Logger
	cmds    chan func()
	stopped chan struct{}
	mapped  bool
}

func newPollLoop(dev *device.Device, file *config.File, logger *slog.Logger) *pollLoop {
	return &pollLoop{
		dev:     dev,
		file:    file,
		logger:  logger,
		cmds:    make(chan func()),
		stopped: make(chan struct{}),
	}
}

func (p *pollLoop) run(ctx context.Context) error {
	defer close(p.stopped)
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-p.cmds:
			fn()
			continue
		default:
		}

		if _, err := p.dev.Poll(pollInterval); err != nil {
			return err
		}
		if !p.mapped && p.dev.Ready() {
			p.mapped = true
			p.logger.Info("device ready", "name", p.dev.Name(), "id", p.dev.ID())
			if m, ok := p.dev.Session().(session.Mapper); ok && len(p.file.Maps) > 0 {
				if err := p.file.ApplyMaps(m, p.dev.Name()); err != nil {
					p.logger.Warn("maps not created", "error", err)
				}
			}
		}
	}
}

// do runs fn on the poll goroutine and waits for it. It reports false
// when the loop has stopped.
func (p *pollLoop) do(fn func()) bool {
	done := make(chan struct{})
	select {
	case p.cmds <- func() {
		defer close(done)
		fn()
	}:
	case <-p.stopped:
		return false
	}
	select {
	case <-done:
		return true
	case <-p.stopped:
		return false
	}
}

// printer prints input updates and instance events.
type printer struct {
	out io.Writer
}

func (p printer) OnUpdate(sig *device.Signal, instance uint64, v model.Value, t timetag.Time) {
	fmt.Fprintf(p.out, "%s[%d] = %s @ %s\n", sig.Name(), instance, v, t.Time().Format(time.TimeOnly+".000"))
}

func (p printer) OnInstanceEvent(sig *device.Signal, instance uint64, ev device.InstanceEvent) {
	fmt.Fprintf(p.out, "%s[%d] %s\n", sig.Name(), instance, ev)
}
