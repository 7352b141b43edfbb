package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mapper-protocol/mapper-go/pkg/device"
	"github.com/mapper-protocol/mapper-go/pkg/model"
	"github.com/mapper-protocol/mapper-go/pkg/session"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid device description")

// LoadError describes a description that could not be read or parsed.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *LoadError) Unwrap() error { return e.Cause }

// File is a device description.
type File struct {
	Name    string   `yaml:"name"`
	Network *Network `yaml:"network,omitempty"`
	Signals []Signal `yaml:"signals"`
	Maps    []Map    `yaml:"maps,omitempty"`
}

// Network overrides parts of the private session configuration.
type Network struct {
	Listen      string        `yaml:"listen,omitempty"`
	Interface   string        `yaml:"interface,omitempty"`
	DisableMDNS bool          `yaml:"disable_mdns,omitempty"`
	Peers       []string      `yaml:"peers,omitempty"`
	Heartbeat   time.Duration `yaml:"heartbeat,omitempty"`
}

// Signal declares one signal.
type Signal struct {
	Name      string `yaml:"name"`
	Direction string `yaml:"direction"`
	Type      string `yaml:"type"`
	Length    int    `yaml:"length,omitempty"` // 0 means 1
	Unit      string `yaml:"unit,omitempty"`
	Min       any    `yaml:"min,omitempty"`
	Max       any    `yaml:"max,omitempty"`
	Instances int    `yaml:"instances,omitempty"`
}

// Map connects two signals, each given as "device/signal" or just
// "signal" for the described device.
type Map struct {
	Source      string `yaml:"source"`
	Destination string `yaml:"destination"`
}

// Load reads and validates a description file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	f, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: "invalid description", Cause: err}
	}
	return f, nil
}

// Parse decodes and validates a description. Unknown keys are errors.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the description and reports every problem found.
func (f *File) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if f.Name == "" {
		fail("name is required")
	}

	seen := make(map[string]bool)
	for i, s := range f.Signals {
		label := fmt.Sprintf("signal %d (%s)", i, s.Name)
		if s.Name == "" {
			fail("signal %d: name is required", i)
		}
		dir, err := model.ParseDirection(s.Direction)
		if err != nil || !dir.IsConcrete() {
			fail("%s: direction %q must be in or out", label, s.Direction)
		}
		if _, err := model.ParseType(s.Type); err != nil {
			fail("%s: %v", label, err)
		}
		if s.Length < 0 {
			fail("%s: negative length", label)
		}
		if s.Instances < 0 {
			fail("%s: negative instances", label)
		}
		key := dir.String() + "/" + s.Name
		if seen[key] {
			fail("%s: duplicate %s signal", label, dir)
		}
		seen[key] = true
	}

	for i, m := range f.Maps {
		if _, err := resolveRef(m.Source, "self"); err != nil {
			fail("map %d: source: %v", i, err)
		}
		if _, err := resolveRef(m.Destination, "self"); err != nil {
			fail("map %d: destination: %v", i, err)
		}
	}

	if f.Network != nil {
		if f.Network.Heartbeat < 0 {
			fail("network: negative heartbeat")
		}
	}
	return errors.Join(errs...)
}

// NetworkConfig applies the network section to base.
func (f *File) NetworkConfig(base session.NetworkConfig) session.NetworkConfig {
	n := f.Network
	if n == nil {
		return base
	}
	if n.Listen != "" {
		base.ListenAddr = n.Listen
	}
	if n.Interface != "" {
		base.Interface = n.Interface
	}
	if n.DisableMDNS {
		base.DisableMDNS = true
	}
	if len(n.Peers) > 0 {
		base.StaticPeers = append(base.StaticPeers, n.Peers...)
	}
	if n.Heartbeat > 0 {
		base.Liveness.HeartbeatInterval = n.Heartbeat
	}
	return base
}

// Apply declares the described signals on d. Input signals get l as their
// listener. Signals added before a failure stay on the device.
func (f *File) Apply(d *device.Device, l device.Listener) ([]*device.Signal, error) {
	out := make([]*device.Signal, 0, len(f.Signals))
	for _, s := range f.Signals {
		dir, err := model.ParseDirection(s.Direction)
		if err != nil {
			return out, err
		}
		typ, err := model.ParseType(s.Type)
		if err != nil {
			return out, err
		}
		length := s.Length
		if length == 0 {
			length = 1
		}

		opts := &device.SignalOptions{
			Unit:         s.Unit,
			Min:          s.Min,
			Max:          s.Max,
			MaxInstances: s.Instances,
		}
		if dir == model.DirIn {
			opts.Listener = l
		}
		sig, err := d.AddSignal(dir, s.Name, length, typ, opts)
		if err != nil {
			return out, fmt.Errorf("signal %s: %w", s.Name, err)
		}
		out = append(out, sig)
	}
	return out, nil
}

// ApplyMaps creates the described maps. self is the full name of the
// described device. Existing maps are skipped.
func (f *File) ApplyMaps(m session.Mapper, self string) error {
	var errs []error
	for _, mp := range f.Maps {
		src, err := resolveRef(mp.Source, self)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		dst, err := resolveRef(mp.Destination, self)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := m.Map(src, dst); err != nil && !errors.Is(err, session.ErrMapExists) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func resolveRef(s, self string) (session.SignalRef, error) {
	if s != "" && !strings.Contains(s, "/") {
		return session.SignalRef{Device: self, Signal: s}, nil
	}
	return session.ParseSignalRef(s)
}
