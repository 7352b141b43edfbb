package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/mapper-protocol/mapper-go/pkg/device"
	"github.com/mapper-protocol/mapper-go/pkg/model"
	"github.com/mapper-protocol/mapper-go/pkg/session"
	"github.com/mapper-protocol/mapper-go/pkg/timetag"
)

// Shell is the interactive command interface of mapper-device.
type Shell struct {
	rl  *readline.Instance
	out io.Writer

	dev *device.Device
	do  func(func()) bool
}

// NewShell creates a shell reading from the terminal.
func NewShell() (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "mapper> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("signals"),
			readline.PcItem("set"),
			readline.PcItem("release"),
			readline.PcItem("queue", readline.PcItem("start"), readline.PcItem("send")),
			readline.PcItem("map"),
			readline.PcItem("unmap"),
			readline.PcItem("maps"),
			readline.PcItem("status"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{rl: rl, out: rl.Stdout()}, nil
}

// Stdout returns a writer that does not disturb the prompt.
func (s *Shell) Stdout() io.Writer { return s.rl.Stdout() }

// Stderr returns a writer that does not disturb the prompt.
func (s *Shell) Stderr() io.Writer { return s.rl.Stderr() }

// Attach sets the device commands operate on. do runs a function on the
// goroutine that polls the device.
func (s *Shell) Attach(dev *device.Device, do func(func()) bool) {
	s.dev = dev
	s.do = do
}

// Run reads commands until quit, EOF or ctx is done.
func (s *Shell) Run(ctx context.Context) {
	defer s.rl.Close()
	s.printHelp()

	for ctx.Err() == nil {
		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			return
		}
		if s.Exec(line) {
			fmt.Fprintln(s.out, "Exiting...")
			return
		}
	}
}

// Exec runs one command line and reports whether the shell should exit.
// Commands separated by ';' run back to back inside one poll cycle.
func (s *Shell) Exec(line string) bool {
	var cmds [][]string
	for _, part := range strings.Split(line, ";") {
		if fields := strings.Fields(part); len(fields) > 0 {
			cmds = append(cmds, fields)
		}
	}
	if len(cmds) == 0 {
		return false
	}

	var quit bool
	ok := s.do(func() {
		for _, fields := range cmds {
			if quit = s.dispatch(strings.ToLower(fields[0]), fields[1:]); quit {
				return
			}
		}
	})
	return quit || !ok
}

func (s *Shell) dispatch(cmd string, args []string) (quit bool) {
	switch cmd {
	case "help", "?":
		s.printHelp()
	case "signals", "ls":
		s.cmdSignals()
	case "set", "s":
		s.cmdSet(args)
	case "release":
		s.cmdRelease(args)
	case "queue", "q":
		s.cmdQueue(args)
	case "map":
		s.cmdMap(args, true)
	case "unmap":
		s.cmdMap(args, false)
	case "maps":
		s.cmdMaps()
	case "status":
		s.cmdStatus()
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
Device Commands:
  Signals:
    signals                     - List signals and active instances
    set <sig>[#inst] <v>...     - Set an output instance (default instance 0)
    release <sig>#<inst>        - Release an output instance

  Queues:
    queue start [unix-seconds]  - Open an update queue
    queue send                  - Send the open queue as one batch
    An open queue is closed at the end of the poll cycle, so chain the
    commands with ';':  queue start; set a 1; set b 2; queue send

  Maps:
    map <src> <dst>             - Connect device/signal endpoints
    unmap <src> <dst>           - Remove a map
    maps                        - List maps

  General:
    status                      - Show device state
    help                        - Show this help
    quit                        - Exit`)
}

func (s *Shell) cmdSignals() {
	list := s.dev.Signals(model.DirAny)
	if list.Len() == 0 {
		fmt.Fprintln(s.out, "No signals")
		return
	}
	for sig := range list.All() {
		fmt.Fprintf(s.out, "  %-4s %-16s %s[%d]", sig.Direction(), sig.Name(), sig.Type(), sig.Length())
		if sig.Unit() != "" {
			fmt.Fprintf(s.out, " %s", sig.Unit())
		}
		if ids := sig.ActiveInstances(); len(ids) > 0 {
			fmt.Fprintf(s.out, " instances=%v", ids)
		}
		fmt.Fprintln(s.out)
	}
}

// signalArg parses "name" or "name#instance".
func (s *Shell) signalArg(arg string) (*device.Signal, uint64, error) {
	sigName, inst, hasInst := strings.Cut(arg, "#")
	var id uint64
	if hasInst {
		n, err := strconv.ParseUint(inst, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("bad instance %q", inst)
		}
		id = n
	}
	sig := s.dev.Signal(model.DirOut, sigName)
	if sig == nil {
		sig = s.dev.Signal(model.DirIn, sigName)
	}
	if sig == nil {
		return nil, 0, fmt.Errorf("no signal %q", sigName)
	}
	return sig, id, nil
}

func (s *Shell) cmdSet(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: set <sig>[#inst] <value>...")
		return
	}
	sig, id, err := s.signalArg(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	v, err := parseValues(sig.Type(), args[1:])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if err := sig.SetValue(id, v); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	cur, _, _ := sig.Value(id)
	fmt.Fprintf(s.out, "%s[%d] = %s\n", sig.Name(), id, cur)
}

// parseValues turns shell words into a scalar or a slice for SetValue.
func parseValues(t model.Type, words []string) (any, error) {
	if t == model.TypeString {
		if len(words) == 1 {
			return words[0], nil
		}
		return words, nil
	}
	// Integers parse exactly so int64 signals keep full precision.
	nums := make([]any, len(words))
	for i, w := range words {
		if n, err := strconv.ParseInt(w, 10, 64); err == nil {
			nums[i] = n
			continue
		}
		f, err := strconv.ParseFloat(w, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", w)
		}
		nums[i] = f
	}
	if len(nums) == 1 {
		return nums[0], nil
	}
	return nums, nil
}

func (s *Shell) cmdRelease(args []string) {
	if len(args) != 1 || !strings.Contains(args[0], "#") {
		fmt.Fprintln(s.out, "Usage: release <sig>#<inst>")
		return
	}
	sig, id, err := s.signalArg(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if err := sig.ReleaseInstance(id); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%s[%d] released\n", sig.Name(), id)
}

func (s *Shell) cmdQueue(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: queue start [unix-seconds] | queue send")
		return
	}
	switch args[0] {
	case "start":
		var t timetag.Time
		if len(args) > 1 {
			secs, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				fmt.Fprintf(s.out, "Error: bad time %q\n", args[1])
				return
			}
			t = timetag.FromTime(time.UnixMilli(int64(secs * 1000)))
		}
		got, err := s.dev.StartQueue(t)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(s.out, "Queue open @ %s\n", got.Time().Format(time.RFC3339Nano))
	case "send":
		if err := s.dev.SendQueue(timetag.Time{}); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return
		}
		fmt.Fprintln(s.out, "Queue sent")
	default:
		fmt.Fprintf(s.out, "Unknown queue command: %s\n", args[0])
	}
}

func (s *Shell) mapper() (session.Mapper, bool) {
	m, ok := s.dev.Session().(session.Mapper)
	if !ok {
		fmt.Fprintln(s.out, "Error: session does not support maps")
	}
	return m, ok
}

// endpoint parses "device/signal", or "signal" for this device.
func (s *Shell) endpoint(arg string) (session.SignalRef, error) {
	if !strings.Contains(arg, "/") {
		return session.SignalRef{Device: s.dev.Name(), Signal: arg}, nil
	}
	return session.ParseSignalRef(arg)
}

func (s *Shell) cmdMap(args []string, create bool) {
	if len(args) != 2 {
		fmt.Fprintln(s.out, "Usage: map|unmap <src> <dst>")
		return
	}
	m, ok := s.mapper()
	if !ok {
		return
	}
	src, err := s.endpoint(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	dst, err := s.endpoint(args[1])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}

	mp := session.Map{Source: src, Destination: dst}
	if create {
		err = m.Map(src, dst)
	} else {
		err = m.Unmap(src, dst)
	}
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if create {
		fmt.Fprintf(s.out, "Mapped %s\n", mp)
	} else {
		fmt.Fprintf(s.out, "Unmapped %s\n", mp)
	}
}

func (s *Shell) cmdMaps() {
	m, ok := s.mapper()
	if !ok {
		return
	}
	maps := m.Maps()
	if len(maps) == 0 {
		fmt.Fprintln(s.out, "No maps")
		return
	}
	for _, mp := range maps {
		fmt.Fprintf(s.out, "  %s\n", mp)
	}
}

func (s *Shell) cmdStatus() {
	state := "pending"
	if s.dev.Ready() {
		state = "ready"
	}
	fmt.Fprintf(s.out, "Name:    %s\n", s.dev.Name())
	fmt.Fprintf(s.out, "State:   %s\n", state)
	fmt.Fprintf(s.out, "ID:      %d\n", s.dev.ID())
	fmt.Fprintf(s.out, "Queue:   %v\n", s.dev.QueueOpen())
	fmt.Fprintf(s.out, "Signals: %d\n", s.dev.Signals(model.DirAny).Len())

	if n, ok := s.dev.Session().(*session.Network); ok {
		fmt.Fprintf(s.out, "Listen:  %s\n", n.LocalAddr())
		ps := n.Peers()
		names := make([]string, len(ps))
		for i, p := range ps {
			names[i] = p.Name
		}
		slices.Sort(names)
		fmt.Fprintf(s.out, "Peers:   %s\n", strings.Join(names, ", "))
	}
}
