package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mapper-protocol/mapper-go/pkg/connection"
	"github.com/mapper-protocol/mapper-go/pkg/discovery"
	"github.com/mapper-protocol/mapper-go/pkg/log"
	"github.com/mapper-protocol/mapper-go/pkg/metric"
	"github.com/mapper-protocol/mapper-go/pkg/transport"
	"github.com/mapper-protocol/mapper-go/pkg/version"
	"github.com/mapper-protocol/mapper-go/pkg/wire"
)

// Network defaults.
const (
	// DefaultMaxAdvertiseAttempts bounds mDNS registration retries per name.
	DefaultMaxAdvertiseAttempts = 8

	// minWait keeps Pump from spinning when a deadline has just passed.
	minWait = time.Millisecond
)

// NetworkConfig configures a network session.
type NetworkConfig struct {
	// ListenAddr is the UDP address to bind. Default ":0".
	ListenAddr string

	// Interface restricts mDNS to one network interface. Empty means all.
	Interface string

	// Advertiser announces ready members. Nil creates an mDNS advertiser
	// unless DisableMDNS is set.
	Advertiser discovery.Advertiser

	// Browser reports remote sessions. Nil creates an mDNS browser unless
	// DisableMDNS is set.
	Browser discovery.Browser

	// DisableMDNS turns off the default advertiser and browser. Peers are
	// then only learned from heartbeats and StaticPeers.
	DisableMDNS bool

	// StaticPeers are "host:port" addresses that always receive heartbeats.
	StaticPeers []string

	// ProbeWindow is how long a new member listens for existing names
	// before claiming one. Default 500ms.
	ProbeWindow time.Duration

	// Liveness configures heartbeat interval and peer expiry.
	Liveness transport.LivenessConfig

	// Retry configures the backoff of failed advertisements.
	Retry connection.BackoffConfig

	// MaxAdvertiseAttempts bounds advertisement retries. Zero means
	// DefaultMaxAdvertiseAttempts, negative retries forever.
	MaxAdvertiseAttempts int

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// ProtocolLogger receives datagram, message and presence events. Optional.
	ProtocolLogger log.Logger

	// Metrics records peers, heartbeats and drops. Optional.
	Metrics *metric.Metrics
}

// DefaultNetworkConfig returns the default network configuration.
func DefaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		ListenAddr:  transport.DefaultListenAddr,
		ProbeWindow: discovery.ProbeWindow,
		Liveness:    transport.DefaultLivenessConfig(),
		Retry: connection.BackoffConfig{
			Initial:    connection.InitialBackoff,
			Max:        connection.MaxBackoff,
			Multiplier: connection.BackoffMultiplier,
			Jitter:     connection.JitterFactor,
		},
		MaxAdvertiseAttempts: DefaultMaxAdvertiseAttempts,
	}
}

// peer is a remote device learned from a heartbeat or a browse event.
type peer struct {
	name  string
	token string
	id    uint64
	addr  *net.UDPAddr
}

// Network is a session over UDP with mDNS discovery. Members of the same
// Network reach each other without touching the socket.
type Network struct {
	*graph
	config NetworkConfig

	endpoint   *transport.Endpoint
	advertiser discovery.Advertiser
	browser    discovery.Browser
	browse     <-chan discovery.Event // owned by Pump
	ctx        context.Context
	cancel     context.CancelFunc

	liveness  *transport.Liveness
	heartbeat *rate.Limiter
	static    []*net.UDPAddr

	pumpMu sync.Mutex
	peers  map[string]*peer // guarded by graph.mu
}

// NewNetwork binds the session socket and starts discovery. It fails with
// ErrInitialization only when the socket cannot be bound; discovery
// problems are logged and the session continues with heartbeats alone.
func NewNetwork(config NetworkConfig) (*Network, error) {
	if config.ProbeWindow == 0 {
		config.ProbeWindow = discovery.ProbeWindow
	}
	if config.Liveness.HeartbeatInterval <= 0 {
		config.Liveness.HeartbeatInterval = transport.DefaultHeartbeatInterval
	}
	if config.Liveness.MaxMissedHeartbeats <= 0 {
		config.Liveness.MaxMissedHeartbeats = transport.DefaultMaxMissedHeartbeats
	}
	if config.MaxAdvertiseAttempts == 0 {
		config.MaxAdvertiseAttempts = DefaultMaxAdvertiseAttempts
	}

	g := newGraph(config.Logger, config.ProtocolLogger, config.Metrics)

	endpoint, err := transport.Listen(transport.EndpointConfig{
		ListenAddr:     config.ListenAddr,
		Logger:         config.Logger,
		ProtocolLogger: config.ProtocolLogger,
		SessionID:      g.token,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitialization, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Network{
		graph:     g,
		config:    config,
		endpoint:  endpoint,
		ctx:       ctx,
		cancel:    cancel,
		liveness:  transport.NewLiveness(config.Liveness),
		heartbeat: rate.NewLimiter(rate.Every(config.Liveness.HeartbeatInterval), 1),
		peers:     make(map[string]*peer),
	}

	for _, s := range config.StaticPeers {
		addr, err := net.ResolveUDPAddr("udp", s)
		if err != nil {
			n.logger.Warn("ignoring static peer", "addr", s, "error", err)
			continue
		}
		n.static = append(n.static, addr)
	}

	n.startDiscovery()

	n.logger.Info("network session started", "local", endpoint.LocalAddr().String())
	return n, nil
}

func (n *Network) startDiscovery() {
	n.advertiser = n.config.Advertiser
	n.browser = n.config.Browser
	if !n.config.DisableMDNS {
		if n.advertiser == nil {
			adv, err := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
				Interface: n.config.Interface,
				TTL:       discovery.DefaultTTL,
			})
			if err != nil {
				n.logger.Warn("mDNS advertising unavailable", "error", err)
			} else {
				n.advertiser = adv
			}
		}
		if n.browser == nil {
			br, err := discovery.NewMDNSBrowser(discovery.BrowserConfig{
				BrowseTimeout: discovery.BrowseTimeout,
				Interface:     n.config.Interface,
			})
			if err != nil {
				n.logger.Warn("mDNS browsing unavailable", "error", err)
			} else {
				n.browser = br
			}
		}
	}

	if n.browser != nil {
		events, err := n.browser.Browse(n.ctx)
		if err != nil {
			n.logger.Warn("browse failed", "error", err)
			return
		}
		n.browse = events
	}
}

// LocalAddr returns the address of the session socket.
func (n *Network) LocalAddr() *net.UDPAddr {
	return n.endpoint.LocalAddr()
}

// Join registers a device. It becomes ready after the probe window, once
// the names seen on the network so far have been taken into account.
func (n *Network) Join(name string) (Handle, error) {
	m, err := n.join(name, func(m *member) {
		m.probeUntil = time.Now().Add(n.config.ProbeWindow)
		m.advertise = connection.NewRetry(n.config.Retry, n.config.MaxAdvertiseAttempts)
	})
	if err != nil {
		return 0, err
	}
	return m.handle, nil
}

// Leave unregisters a member, tells peers and withdraws its advertisement.
func (n *Network) Leave(h Handle) error {
	m, err := n.leave(h)
	if err != nil {
		return err
	}
	if m.ready {
		n.sendLogout(m.ident.Name)
		n.withdraw(m.ident.Name)
	}
	return nil
}

// Publish routes b along the session maps. Local destinations are
// delivered directly, remote ones are sent to the peer's socket and
// unknown ones are dropped.
func (n *Network) Publish(h Handle, b *wire.Batch) error {
	if err := n.stamp(h, b); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	for _, db := range n.route(b) {
		if n.deliverLocal(db) {
			n.logMessage(log.DirectionOut, db, "")
			continue
		}
		addr, ok := n.peerAddr(db.Destination)
		if !ok {
			n.logger.Debug("no route to device, batch dropped", "src", db.Source, "dst", db.Destination)
			n.metrics.Drop(db.Source, metric.DropNoRoute)
			continue
		}
		data, err := wire.EncodeBatch(db)
		if err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		n.logMessage(log.DirectionOut, db, addr.String())
		if err := n.endpoint.Send(addr, data); err != nil {
			if errors.Is(err, transport.ErrMessageTooLarge) {
				return fmt.Errorf("publish: %w", err)
			}
			n.logger.Warn("send failed", "dst", db.Destination, "addr", addr.String(), "error", err)
			n.metrics.DatagramDropped()
		}
	}
	return nil
}

// Pump handles discovery events and datagrams, names members whose probe
// window has passed, sends heartbeats and expires silent peers. With
// nothing to do it waits up to timeout and returns after the first
// wake-up.
func (n *Network) Pump(timeout time.Duration) (int, error) {
	n.pumpMu.Lock()
	defer n.pumpMu.Unlock()

	deadline := time.Now().Add(timeout)
	wake, err := n.waiter()
	if err != nil {
		return 0, err
	}
	if c := n.pass(time.Now()); c > 0 {
		return c, nil
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, nil
	}

	timer := time.NewTimer(min(remaining, n.nextDue(time.Now())))
	defer timer.Stop()

	count := 0
	select {
	case d, ok := <-n.endpoint.Incoming():
		if !ok {
			return 0, ErrClosed
		}
		count += n.handleDatagram(d)
	case ev, ok := <-n.browse:
		if ok {
			count += n.handleBrowse(ev, time.Now())
		} else {
			n.browse = nil
		}
	case <-wake:
	case <-timer.C:
	}
	if n.isClosed() {
		return 0, ErrClosed
	}
	return count + n.pass(time.Now()), nil
}

// pass does one non-blocking round of work.
func (n *Network) pass(now time.Time) int {
	count := 0

drain:
	for n.browse != nil {
		select {
		case ev, ok := <-n.browse:
			if !ok {
				n.browse = nil
				break drain
			}
			count += n.handleBrowse(ev, now)
		default:
			break drain
		}
	}

	for {
		d, err := n.endpoint.TryReceive()
		if err != nil {
			break
		}
		count += n.handleDatagram(d)
	}

	if n.claimPending(now) > 0 {
		n.sendHeartbeats(now, true)
	} else {
		n.sendHeartbeats(now, false)
	}
	n.advertisePending(now)
	count += n.expire(now)

	return count + n.takeEvents()
}

// nextDue returns how long Pump may sleep before timed work is due.
func (n *Network) nextDue(now time.Time) time.Duration {
	wait := n.config.Liveness.HeartbeatInterval

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, m := range n.members {
		if !m.ready {
			wait = min(wait, m.probeUntil.Sub(now))
		} else if next := m.advertise.NextAttempt(); !next.IsZero() {
			wait = min(wait, next.Sub(now))
		}
	}
	return max(wait, minWait)
}

func (n *Network) handleDatagram(d transport.Datagram) int {
	typ, err := wire.PeekMessageType(d.Data)
	if err != nil {
		n.drop(d, err)
		return 0
	}

	switch typ {
	case wire.MessageTypeBatch:
		b, err := wire.DecodeBatch(d.Data)
		if err != nil {
			n.drop(d, err)
			return 0
		}
		n.logMessage(log.DirectionIn, b, d.From.String())
		if !n.deliverLocal(b) {
			n.logger.Debug("batch for unknown device dropped", "src", b.Source, "dst", b.Destination)
			n.metrics.Drop(b.Destination, metric.DropNoRoute)
		}
		return 1

	case wire.MessageTypeHeartbeat:
		hb, err := wire.DecodeHeartbeat(d.Data)
		if err != nil {
			n.drop(d, err)
			return 0
		}
		return n.handleHeartbeat(hb, d)

	case wire.MessageTypeLogout:
		lo, err := wire.DecodeLogout(d.Data)
		if err != nil {
			n.drop(d, err)
			return 0
		}
		if lo.Token == n.token {
			return 0
		}
		return n.forgetPeer(lo.Source, lo.Token, "logout")

	default:
		n.drop(d, fmt.Errorf("unexpected message type %d", typ))
		return 0
	}
}

func (n *Network) drop(d transport.Datagram, err error) {
	n.logger.Debug("datagram dropped", "from", d.From.String(), "error", err)
	n.metrics.DatagramDropped()
}

func (n *Network) handleHeartbeat(hb *wire.Heartbeat, d transport.Datagram) int {
	if hb.Token == n.token {
		return 0
	}
	if err := version.Check(hb.Version); err != nil {
		n.logger.Debug("heartbeat from incompatible peer", "peer", hb.Source, "error", err)
		n.metrics.DatagramDropped()
		return 0
	}
	n.metrics.Heartbeat("in")

	addr := d.From
	if hb.Port != 0 {
		addr = &net.UDPAddr{IP: d.From.IP, Port: int(hb.Port), Zone: d.From.Zone}
	}
	isNew := n.liveness.Seen(hb.Source, d.At)
	n.observePeer(&peer{name: hb.Source, token: hb.Token, id: hb.ID, addr: addr})
	if isNew {
		return 1
	}
	return 0
}

func (n *Network) handleBrowse(ev discovery.Event, now time.Time) int {
	if ev.Peer == nil || ev.Peer.Token == n.token {
		return 0
	}
	switch ev.Kind {
	case discovery.PeerAdded:
		if err := version.Check(ev.Peer.Version); err != nil {
			n.logger.Debug("ignoring incompatible peer", "peer", ev.Peer.Name, "error", err)
			return 0
		}
		addr, ok := ev.Peer.UDPAddr()
		if !ok {
			return 0
		}
		n.liveness.Seen(ev.Peer.Name, now)
		n.observePeer(&peer{name: ev.Peer.Name, token: ev.Peer.Token, id: ev.Peer.ID, addr: addr})
		return 1
	case discovery.PeerRemoved:
		return n.forgetPeer(ev.Peer.Name, ev.Peer.Token, "withdrawn")
	}
	return 0
}

// observePeer records a remote claim on a name. A local member that loses
// the conflict gives up its name and negotiates a new one immediately.
func (n *Network) observePeer(p *peer) {
	n.mu.Lock()
	loser, err := n.alloc.Observe(p.name, p.token)
	if err != nil {
		n.mu.Unlock()
		n.logger.Debug("ignoring peer with malformed name", "peer", p.name, "error", err)
		return
	}

	var lost string
	_, known := n.peers[p.name]
	switch loser {
	case p.token:
		// The remote session has to rename; its claim is not recorded.
		// It may not know our address yet, so tell it directly.
		n.mu.Unlock()
		n.sendHeartbeatsTo([]*net.UDPAddr{p.addr})
		return
	case n.token:
		if m, ok := n.byName[p.name]; ok {
			n.unreadyLocked(m, "name conflict")
			m.probeUntil = time.Time{}
			lost = p.name
		}
	}
	n.peers[p.name] = p
	count := len(n.peers)
	n.mu.Unlock()

	if lost != "" {
		n.metrics.Conflict()
		n.withdraw(lost)
	}
	if !known {
		n.logger.Info("peer appeared", "peer", p.name, "addr", p.addr.String())
		n.logPresence(p.name, p.addr.String(), "alive", "")
	}
	n.metrics.SetPeers(count)
}

// forgetPeer drops a peer. A token, if given, must match the recorded one.
func (n *Network) forgetPeer(name, token, reason string) int {
	n.mu.Lock()
	p, ok := n.peers[name]
	if ok && (token == "" || token == p.token) {
		delete(n.peers, name)
		n.alloc.Release(name, p.token)
	} else {
		ok = false
	}
	count := len(n.peers)
	n.mu.Unlock()

	if !ok {
		return 0
	}
	n.liveness.Forget(name)
	n.logger.Info("peer gone", "peer", name, "reason", reason)
	n.logPresence(name, p.addr.String(), "gone", reason)
	n.metrics.SetPeers(count)
	return 1
}

func (n *Network) expire(now time.Time) int {
	count := 0
	for _, name := range n.liveness.Expire(now) {
		count += n.forgetPeer(name, "", "expired")
	}
	return count
}

// claimPending names members whose probe window has passed.
func (n *Network) claimPending(now time.Time) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	claimed := 0
	for _, m := range n.pendingLocked() {
		if now.Before(m.probeUntil) {
			continue
		}
		if err := n.claimLocked(m); err != nil {
			n.logger.Warn("name allocation failed", "device", m.base, "error", err)
			m.probeUntil = now.Add(n.config.ProbeWindow)
			continue
		}
		m.advertise.Reset()
		claimed++
	}
	return claimed
}

// advertisePending registers ready members with the advertiser, retrying
// failures with backoff.
func (n *Network) advertisePending(now time.Time) {
	if n.advertiser == nil {
		return
	}

	type job struct {
		m   *member
		ann *discovery.Announcement
	}
	var jobs []job
	n.mu.Lock()
	for _, m := range n.members {
		if m.ready && !m.advertised && m.advertise.Due(now) {
			jobs = append(jobs, job{m: m, ann: n.announcementLocked(m)})
		}
	}
	n.mu.Unlock()

	for _, j := range jobs {
		err := n.advertiser.Advertise(n.ctx, j.ann)

		n.mu.Lock()
		if !j.m.ready || j.m.ident.Name != j.ann.Name {
			n.mu.Unlock()
			continue
		}
		if err == nil {
			j.m.advertised = true
			j.m.advertise.Succeeded()
			n.mu.Unlock()
			n.logger.Debug("advertised", "device", j.ann.Name)
			continue
		}
		rerr := j.m.advertise.Failed(now, err)
		attempts, retryAt := j.m.advertise.Attempts(), j.m.advertise.NextAttempt()
		n.mu.Unlock()
		if rerr != nil {
			n.logger.Warn("giving up advertising", "device", j.ann.Name, "attempts", attempts, "error", err)
		} else {
			n.logger.Debug("advertise failed, will retry", "device", j.ann.Name,
				"attempts", attempts, "retry_in", retryAt.Sub(now), "error", err)
		}
	}
}

func (n *Network) announcementLocked(m *member) *discovery.Announcement {
	return &discovery.Announcement{
		Name:    m.ident.Name,
		ID:      m.ident.ID,
		Token:   n.token,
		Version: version.Current,
		Port:    n.endpoint.Port(),
	}
}

func (n *Network) withdraw(name string) {
	if n.advertiser == nil {
		return
	}
	if err := n.advertiser.Withdraw(name); err != nil {
		n.logger.Debug("withdraw failed", "device", name, "error", err)
	}
}

// targets returns the distinct addresses of remote sessions.
func (n *Network) targets() []*net.UDPAddr {
	n.mu.Lock()
	defer n.mu.Unlock()

	seen := make(map[string]bool)
	var out []*net.UDPAddr
	add := func(a *net.UDPAddr) {
		if k := a.String(); !seen[k] {
			seen[k] = true
			out = append(out, a)
		}
	}
	for _, p := range n.peers {
		add(p.addr)
	}
	for _, a := range n.static {
		add(a)
	}
	return out
}

// sendHeartbeats announces every ready member to every remote session.
// Unless forced, heartbeats are limited to one round per interval.
func (n *Network) sendHeartbeats(now time.Time, force bool) {
	if !force && !n.heartbeat.AllowN(now, 1) {
		return
	}
	n.sendHeartbeatsTo(n.targets())
}

// sendHeartbeatsTo announces every ready member to the given sessions.
func (n *Network) sendHeartbeatsTo(targets []*net.UDPAddr) {
	n.mu.Lock()
	var beats []*wire.Heartbeat
	for _, m := range n.members {
		if m.ready {
			beats = append(beats, &wire.Heartbeat{
				Type:    wire.MessageTypeHeartbeat,
				Source:  m.ident.Name,
				ID:      m.ident.ID,
				Token:   n.token,
				Version: version.Current,
				Port:    n.endpoint.Port(),
			})
		}
	}
	n.mu.Unlock()

	if len(beats) == 0 || len(targets) == 0 {
		return
	}
	for _, hb := range beats {
		data, err := wire.EncodeHeartbeat(hb)
		if err != nil {
			n.logger.Warn("encode heartbeat", "device", hb.Source, "error", err)
			continue
		}
		for _, addr := range targets {
			if err := n.endpoint.Send(addr, data); err != nil {
				n.logger.Debug("heartbeat send failed", "addr", addr.String(), "error", err)
				continue
			}
			n.metrics.Heartbeat("out")
		}
	}
}

func (n *Network) sendLogout(name string) {
	data, err := wire.EncodeLogout(&wire.Logout{Type: wire.MessageTypeLogout, Source: name, Token: n.token})
	if err != nil {
		n.logger.Warn("encode logout", "device", name, "error", err)
		return
	}
	for _, addr := range n.targets() {
		if err := n.endpoint.Send(addr, data); err != nil {
			n.logger.Debug("logout send failed", "addr", addr.String(), "error", err)
		}
	}
}

func (n *Network) peerAddr(name string) (*net.UDPAddr, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p, ok := n.peers[name]
	if !ok {
		return nil, false
	}
	return p.addr, true
}

// Peers returns the identities of known remote devices, sorted by name.
func (n *Network) Peers() []Identity {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Identity, 0, len(n.peers))
	for _, p := range n.peers {
		out = append(out, Identity{Name: p.name, ID: p.id})
	}
	slices.SortFunc(out, func(a, b Identity) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

func (n *Network) logPresence(peerName, addr, state, reason string) {
	n.plog.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  n.token,
		Direction:  log.DirectionIn,
		Layer:      log.LayerWire,
		Category:   log.CategoryPresence,
		Peer:       peerName,
		RemoteAddr: addr,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			NewState: state,
			Reason:   reason,
		},
	})
}

// Release drops a reference. The last release logs out remaining members,
// stops discovery and closes the socket.
func (n *Network) Release() error {
	last, err := n.release()
	if err != nil || !last {
		return err
	}

	n.mu.Lock()
	var names []string
	for _, m := range n.members {
		if m.ready {
			names = append(names, m.ident.Name)
		}
	}
	n.mu.Unlock()
	for _, name := range names {
		n.sendLogout(name)
	}

	n.cancel()
	if n.advertiser != nil {
		n.advertiser.StopAll()
	}
	if n.browser != nil {
		n.browser.Stop()
	}
	n.logger.Info("network session closed")
	return n.endpoint.Close()
}

var (
	_ Session = (*Network)(nil)
	_ Mapper  = (*Network)(nil)
)
