package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mapper-protocol/mapper-go/pkg/log"
)

// Endpoint constants.
const (
	// DefaultMaxDatagramSize is the largest datagram an endpoint sends or
	// accepts (64 KB minus IP/UDP headers).
	DefaultMaxDatagramSize = 65507

	// DefaultQueueSize is the number of received datagrams buffered between
	// two pumps.
	DefaultQueueSize = 1024

	// DefaultListenAddr binds all interfaces on an ephemeral port.
	DefaultListenAddr = ":0"
)

// Endpoint errors.
var (
	// ErrMessageTooLarge indicates the message exceeds the maximum size.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrMessageEmpty indicates an empty message.
	ErrMessageEmpty = errors.New("message is empty")

	// ErrClosed indicates the endpoint has been closed.
	ErrClosed = errors.New("endpoint closed")

	// ErrTimeout indicates no datagram arrived in time.
	ErrTimeout = errors.New("receive timeout")
)

// Datagram is one received message.
type Datagram struct {
	Data []byte
	From *net.UDPAddr
	At   time.Time
}

// EndpointConfig configures a UDP endpoint.
type EndpointConfig struct {
	// ListenAddr is the local address to bind. Default ":0".
	ListenAddr string

	// MaxDatagramSize limits sent and received datagrams.
	MaxDatagramSize int

	// QueueSize is the capacity of the receive queue.
	QueueSize int

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// ProtocolLogger receives one FrameEvent per datagram. Optional.
	ProtocolLogger log.Logger

	// SessionID tags protocol log events.
	SessionID string
}

// DefaultEndpointConfig returns the default endpoint configuration.
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		ListenAddr:      DefaultListenAddr,
		MaxDatagramSize: DefaultMaxDatagramSize,
		QueueSize:       DefaultQueueSize,
	}
}

// Endpoint is a bound UDP socket with a background reader.
type Endpoint struct {
	config EndpointConfig
	conn   *net.UDPConn
	logger *slog.Logger
	plog   log.Logger

	incoming chan Datagram
	dropped  atomic.Uint64
	received atomic.Uint64
	sent     atomic.Uint64

	closeOnce sync.Once
	closed    atomic.Bool
	done      chan struct{}
}

// Listen binds a UDP socket and starts its reader goroutine.
func Listen(config EndpointConfig) (*Endpoint, error) {
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}
	if config.MaxDatagramSize <= 0 {
		config.MaxDatagramSize = DefaultMaxDatagramSize
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}

	addr, err := net.ResolveUDPAddr("udp", config.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", config.ListenAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", config.ListenAddr, err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &Endpoint{
		config:   config,
		conn:     conn,
		logger:   logger.With("component", "transport", "local", conn.LocalAddr().String()),
		plog:     log.OrNoop(config.ProtocolLogger),
		incoming: make(chan Datagram, config.QueueSize),
		done:     make(chan struct{}),
	}
	go e.readLoop()
	return e, nil
}

// LocalAddr returns the bound address.
func (e *Endpoint) LocalAddr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// Port returns the bound port.
func (e *Endpoint) Port() uint16 {
	return uint16(e.LocalAddr().Port)
}

// Send writes one datagram to addr.
func (e *Endpoint) Send(addr *net.UDPAddr, data []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	if len(data) > e.config.MaxDatagramSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), e.config.MaxDatagramSize)
	}

	if _, err := e.conn.WriteToUDP(data, addr); err != nil {
		return fmt.Errorf("send to %s: %w", addr, err)
	}
	e.sent.Add(1)
	e.plog.Log(e.frameEvent(data, addr, log.DirectionOut))
	return nil
}

// Incoming returns the receive queue. It is closed when the endpoint closes.
func (e *Endpoint) Incoming() <-chan Datagram {
	return e.incoming
}

// Receive waits up to timeout for a datagram. A zero timeout does not block.
func (e *Endpoint) Receive(timeout time.Duration) (Datagram, error) {
	if timeout <= 0 {
		return e.TryReceive()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d, ok := <-e.incoming:
		if !ok {
			return Datagram{}, ErrClosed
		}
		return d, nil
	case <-timer.C:
		return Datagram{}, ErrTimeout
	}
}

// TryReceive returns a queued datagram without blocking.
func (e *Endpoint) TryReceive() (Datagram, error) {
	select {
	case d, ok := <-e.incoming:
		if !ok {
			return Datagram{}, ErrClosed
		}
		return d, nil
	default:
		return Datagram{}, ErrTimeout
	}
}

// Stats returns datagram counters.
func (e *Endpoint) Stats() EndpointStats {
	return EndpointStats{
		Sent:     e.sent.Load(),
		Received: e.received.Load(),
		Dropped:  e.dropped.Load(),
	}
}

// EndpointStats contains endpoint counters.
type EndpointStats struct {
	Sent     uint64
	Received uint64
	Dropped  uint64
}

// Close closes the socket and waits for the reader to exit.
func (e *Endpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		err = e.conn.Close()
		<-e.done
	})
	return err
}

func (e *Endpoint) readLoop() {
	defer close(e.done)
	defer close(e.incoming)

	buf := make([]byte, e.config.MaxDatagramSize+1)
	for {
		n, from, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			if e.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			e.logger.Warn("read failed", "error", err)
			continue
		}
		if n == 0 {
			continue
		}
		if n > e.config.MaxDatagramSize {
			e.logger.Debug("oversized datagram dropped", "from", from, "size", n)
			e.dropped.Add(1)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		e.received.Add(1)
		e.plog.Log(e.frameEvent(data, from, log.DirectionIn))

		select {
		case e.incoming <- Datagram{Data: data, From: from, At: time.Now()}:
		default:
			e.dropped.Add(1)
			e.logger.Debug("receive queue full, datagram dropped", "from", from)
		}
	}
}

func (e *Endpoint) frameEvent(data []byte, peer *net.UDPAddr, dir log.Direction) log.Event {
	return log.Event{
		Timestamp:  time.Now(),
		SessionID:  e.config.SessionID,
		Direction:  dir,
		Layer:      log.LayerTransport,
		Category:   log.CategoryMessage,
		RemoteAddr: peer.String(),
		Frame:      log.NewFrameEvent(data),
	}
}
