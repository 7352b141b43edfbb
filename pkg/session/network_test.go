package session

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/mapper-protocol/mapper-go/pkg/discovery"
	"github.com/mapper-protocol/mapper-go/pkg/discovery/mocks"
	"github.com/mapper-protocol/mapper-go/pkg/metric"
	"github.com/mapper-protocol/mapper-go/pkg/timetag"
	"github.com/mapper-protocol/mapper-go/pkg/transport"
	"github.com/mapper-protocol/mapper-go/pkg/version"
	"github.com/mapper-protocol/mapper-go/pkg/wire"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testNetworkConfig() NetworkConfig {
	cfg := DefaultNetworkConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.DisableMDNS = true
	cfg.ProbeWindow = time.Millisecond
	cfg.Liveness = transport.LivenessConfig{
		HeartbeatInterval:   20 * time.Millisecond,
		MaxMissedHeartbeats: 3,
		Grace:               10 * time.Millisecond,
	}
	return cfg
}

func slowExpiry(c *NetworkConfig) {
	c.Liveness.MaxMissedHeartbeats = 100
}

func newTestNetwork(t *testing.T, mutate func(*NetworkConfig)) *Network {
	t.Helper()
	cfg := testNetworkConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	n, err := NewNetwork(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Release() })
	return n
}

// fakePeer is a raw socket posing as a remote session.
type fakePeer struct {
	conn *net.UDPConn
}

func newFakePeer(t *testing.T) *fakePeer {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &fakePeer{conn: conn}
}

func (p *fakePeer) port() uint16 {
	return uint16(p.conn.LocalAddr().(*net.UDPAddr).Port)
}

func (p *fakePeer) send(t *testing.T, to *net.UDPAddr, data []byte) {
	t.Helper()
	_, err := p.conn.WriteToUDP(data, to)
	require.NoError(t, err)
}

func (p *fakePeer) heartbeat(t *testing.T, to *net.UDPAddr, name, token, ver string) {
	t.Helper()
	data, err := wire.EncodeHeartbeat(&wire.Heartbeat{
		Type:    wire.MessageTypeHeartbeat,
		Source:  name,
		ID:      discovery.DeriveID(name),
		Token:   token,
		Version: ver,
		Port:    p.port(),
	})
	require.NoError(t, err)
	p.send(t, to, data)
}

func (p *fakePeer) receive(t *testing.T, timeout time.Duration) []byte {
	t.Helper()
	buf := make([]byte, transport.DefaultMaxDatagramSize)
	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(timeout)))
	n, _, err := p.conn.ReadFromUDP(buf)
	require.NoError(t, err)
	return buf[:n]
}

func hasPeer(n *Network, name string) bool {
	for _, id := range n.Peers() {
		if id.Name == name {
			return true
		}
	}
	return false
}

func TestNetworkInitializationError(t *testing.T) {
	taken, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer taken.Close()

	cfg := testNetworkConfig()
	cfg.ListenAddr = taken.LocalAddr().String()
	_, err = NewNetwork(cfg)
	assert.ErrorIs(t, err, ErrInitialization)
}

func TestNetworkJoinAdvertises(t *testing.T) {
	adv := mocks.NewMockAdvertiser(t)
	adv.EXPECT().Advertise(mock.Anything, mock.MatchedBy(func(a *discovery.Announcement) bool {
		return a.Name == "synth.1" && a.ID == discovery.DeriveID("synth.1") && a.Version == version.Current && a.Port != 0
	})).Return(nil).Once()
	adv.EXPECT().Withdraw("synth.1").Return(nil).Once()
	adv.EXPECT().StopAll().Return().Maybe()

	n := newTestNetwork(t, func(c *NetworkConfig) { c.Advertiser = adv })

	h, id := readyHandle(t, n, "synth")
	assert.Equal(t, "synth.1", id.Name)

	// Advertising happens in the pass after the claim at the latest.
	_, err := n.Pump(0)
	require.NoError(t, err)

	require.NoError(t, n.Leave(h))
}

func TestNetworkAdvertiseRetry(t *testing.T) {
	adv := mocks.NewMockAdvertiser(t)
	adv.EXPECT().Advertise(mock.Anything, mock.Anything).Return(errors.New("no multicast")).Once()
	adv.EXPECT().Advertise(mock.Anything, mock.Anything).Return(nil).Once()
	adv.EXPECT().StopAll().Return().Maybe()

	n := newTestNetwork(t, func(c *NetworkConfig) {
		c.Advertiser = adv
		c.Retry.Initial = 5 * time.Millisecond
		c.Retry.Jitter = 0
	})

	h, _ := readyHandle(t, n, "synth")
	pumpUntil(t, n, func() bool {
		n.mu.Lock()
		defer n.mu.Unlock()
		return n.members[h].advertised
	})
}

func TestNetworkRemoteDelivery(t *testing.T) {
	recv := newTestNetwork(t, nil)
	send := newTestNetwork(t, func(c *NetworkConfig) {
		c.StaticPeers = []string{recv.LocalAddr().String()}
	})

	dst, dstID := readyHandle(t, recv, "dst")
	src, srcID := readyHandle(t, send, "src")

	var got collector
	require.NoError(t, recv.Subscribe(dst, got.receive))

	// The receiver learns the sender from its heartbeat and answers.
	deadline := time.Now().Add(5 * time.Second)
	for !hasPeer(send, dstID.Name) || !hasPeer(recv, srcID.Name) {
		require.True(t, time.Now().Before(deadline), "peers did not meet")
		_, err := send.Pump(5 * time.Millisecond)
		require.NoError(t, err)
		_, err = recv.Pump(5 * time.Millisecond)
		require.NoError(t, err)
	}

	require.NoError(t, send.Map(SignalRef{srcID.Name, "x"}, SignalRef{dstID.Name, "in"}))

	tt := timetag.Now()
	b := wire.NewBatch("", tt)
	b.Add("x", 0, fval(1))
	b.Add("x", 1, fval(2))
	require.NoError(t, send.Publish(src, b))

	pumpUntil(t, recv, func() bool { return len(got.all()) == 1 })

	db := got.all()[0]
	assert.Equal(t, srcID.Name, db.Source)
	assert.Equal(t, dstID.Name, db.Destination)
	assert.True(t, tt.Equal(db.Time))
	require.Len(t, db.Updates, 2)
	assert.Equal(t, uint64(0), db.Updates[0].Instance)
	assert.Equal(t, uint64(1), db.Updates[1].Instance)
	assert.Equal(t, "in", db.Updates[1].Signal)

	// Leaving sends a logout.
	require.NoError(t, send.Leave(src))
	pumpUntil(t, recv, func() bool { return !hasPeer(recv, srcID.Name) })
}

func TestNetworkLocalShortCircuit(t *testing.T) {
	n := newTestNetwork(t, nil)

	src, srcID := readyHandle(t, n, "src")
	dst, dstID := readyHandle(t, n, "dst")
	var got collector
	require.NoError(t, n.Subscribe(dst, got.receive))
	require.NoError(t, n.Map(SignalRef{srcID.Name, "x"}, SignalRef{dstID.Name, "in"}))

	b := wire.NewBatch("", timetag.Now())
	b.Add("x", 0, fval(1))
	require.NoError(t, n.Publish(src, b))

	assert.Len(t, got.all(), 1)
	assert.Zero(t, n.endpoint.Stats().Sent, "no datagram for a local destination")
}

func TestNetworkNoRouteDropped(t *testing.T) {
	m := metric.NewMetrics("test")
	n := newTestNetwork(t, func(c *NetworkConfig) { c.Metrics = m })

	src, srcID := readyHandle(t, n, "src")
	require.NoError(t, n.Map(SignalRef{srcID.Name, "x"}, SignalRef{"ghost.1", "in"}))

	b := wire.NewBatch("", timetag.Now())
	b.Add("x", 0, fval(1))
	require.NoError(t, n.Publish(src, b))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped.WithLabelValues(srcID.Name, metric.DropNoRoute)))
}

func TestNetworkNameConflictLost(t *testing.T) {
	m := metric.NewMetrics("test")
	n := newTestNetwork(t, func(c *NetworkConfig) {
		c.Metrics = m
		slowExpiry(c)
	})
	h, id := readyHandle(t, n, "synth")
	require.Equal(t, "synth.1", id.Name)

	// Token "0" sorts before any uuid, so the remote claim wins.
	p := newFakePeer(t)
	p.heartbeat(t, n.LocalAddr(), "synth.1", "0", version.Current)

	pumpUntil(t, n, func() bool {
		got, ok := n.Identity(h)
		return ok && got.Name == "synth.2"
	})
	assert.True(t, hasPeer(n, "synth.1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NameConflicts))
}

func TestNetworkNameConflictWon(t *testing.T) {
	n := newTestNetwork(t, nil)
	h, _ := readyHandle(t, n, "synth")

	// Token "~" sorts after any uuid, so the local claim stands.
	p := newFakePeer(t)
	p.heartbeat(t, n.LocalAddr(), "synth.1", "~", version.Current)
	p.heartbeat(t, n.LocalAddr(), "other.1", "~", version.Current)

	pumpUntil(t, n, func() bool { return hasPeer(n, "other.1") })
	id, ok := n.Identity(h)
	require.True(t, ok)
	assert.Equal(t, "synth.1", id.Name)
	assert.False(t, hasPeer(n, "synth.1"))
}

func TestNetworkConflictWinnerReplies(t *testing.T) {
	n := newTestNetwork(t, nil)
	readyHandle(t, n, "synth")

	// The loser is otherwise unknown; the winner answers it directly so
	// it learns about the claim.
	p := newFakePeer(t)
	p.heartbeat(t, n.LocalAddr(), "synth.1", "~", version.Current)

	done := make(chan *wire.Heartbeat, 1)
	go func() {
		buf := make([]byte, transport.DefaultMaxDatagramSize)
		_ = p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		size, _, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			done <- nil
			return
		}
		hb, err := wire.DecodeHeartbeat(buf[:size])
		if err != nil {
			done <- nil
			return
		}
		done <- hb
	}()

	var hb *wire.Heartbeat
	require.Eventually(t, func() bool {
		_, err := n.Pump(5 * time.Millisecond)
		require.NoError(t, err)
		select {
		case hb = <-done:
			return true
		default:
			return false
		}
	}, 3*time.Second, time.Millisecond)
	require.NotNil(t, hb)
	assert.Equal(t, "synth.1", hb.Source)
	assert.Equal(t, n.Token(), hb.Token)
}

func TestNetworkProbeSkipsTakenNames(t *testing.T) {
	// The peer heartbeats once, so it must outlive the probe window.
	n := newTestNetwork(t, func(c *NetworkConfig) {
		c.ProbeWindow = 200 * time.Millisecond
		slowExpiry(c)
	})
	require.Greater(t, n.config.Liveness.DetectionDelay(), n.config.ProbeWindow)

	p := newFakePeer(t)
	p.heartbeat(t, n.LocalAddr(), "synth.1", "~", version.Current)

	h, err := n.Join("synth")
	require.NoError(t, err)
	pumpUntil(t, n, func() bool {
		_, ok := n.Identity(h)
		return ok
	})
	id, _ := n.Identity(h)
	assert.Equal(t, "synth.2", id.Name, "names seen while probing are not claimed")
}

func TestNetworkPeerExpiry(t *testing.T) {
	n := newTestNetwork(t, nil)
	p := newFakePeer(t)
	p.heartbeat(t, n.LocalAddr(), "remote.1", "~", version.Current)

	pumpUntil(t, n, func() bool { return hasPeer(n, "remote.1") })
	pumpUntil(t, n, func() bool { return !hasPeer(n, "remote.1") })
}

func TestNetworkLogoutForgetsPeer(t *testing.T) {
	n := newTestNetwork(t, slowExpiry)
	p := newFakePeer(t)
	p.heartbeat(t, n.LocalAddr(), "remote.1", "~", version.Current)
	pumpUntil(t, n, func() bool { return hasPeer(n, "remote.1") })

	// A logout with the wrong token is ignored.
	data, err := wire.EncodeLogout(&wire.Logout{Type: wire.MessageTypeLogout, Source: "remote.1", Token: "other"})
	require.NoError(t, err)
	p.send(t, n.LocalAddr(), data)
	_, err = n.Pump(20 * time.Millisecond)
	require.NoError(t, err)
	assert.True(t, hasPeer(n, "remote.1"))

	data, err = wire.EncodeLogout(&wire.Logout{Type: wire.MessageTypeLogout, Source: "remote.1", Token: "~"})
	require.NoError(t, err)
	p.send(t, n.LocalAddr(), data)
	pumpUntil(t, n, func() bool { return !hasPeer(n, "remote.1") })
}

func TestNetworkIgnoresIncompatibleVersion(t *testing.T) {
	m := metric.NewMetrics("test")
	n := newTestNetwork(t, func(c *NetworkConfig) { c.Metrics = m })
	p := newFakePeer(t)
	p.heartbeat(t, n.LocalAddr(), "future.1", "~", "9.0")
	p.send(t, n.LocalAddr(), []byte{0xff, 0x00})

	pumpUntil(t, n, func() bool { return testutil.ToFloat64(m.DatagramsDropped) == 2 })
	assert.False(t, hasPeer(n, "future.1"))
}

func TestNetworkHeartbeatsReachStaticPeers(t *testing.T) {
	p := newFakePeer(t)
	n := newTestNetwork(t, func(c *NetworkConfig) {
		c.StaticPeers = []string{p.conn.LocalAddr().String()}
	})
	_, id := readyHandle(t, n, "synth")

	var hb *wire.Heartbeat
	for hb == nil {
		_, err := n.Pump(5 * time.Millisecond)
		require.NoError(t, err)
		data := p.receive(t, time.Second)
		typ, err := wire.PeekMessageType(data)
		require.NoError(t, err)
		if typ == wire.MessageTypeHeartbeat {
			hb, err = wire.DecodeHeartbeat(data)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, id.Name, hb.Source)
	assert.Equal(t, id.ID, hb.ID)
	assert.Equal(t, n.Token(), hb.Token)
	assert.Equal(t, n.LocalAddr().Port, int(hb.Port))
}

func TestNetworkBrowseEvents(t *testing.T) {
	events := make(chan discovery.Event, 2)
	br := mocks.NewMockBrowser(t)
	br.EXPECT().Browse(mock.Anything).Return((<-chan discovery.Event)(events), nil).Once()
	br.EXPECT().Stop().Return().Maybe()

	n := newTestNetwork(t, func(c *NetworkConfig) {
		c.Browser = br
		slowExpiry(c)
	})

	remote := &discovery.Peer{
		Announcement: discovery.Announcement{
			Name:    "remote.1",
			ID:      discovery.DeriveID("remote.1"),
			Token:   "~",
			Version: version.Current,
			Port:    9999,
		},
		Addresses: []string{"127.0.0.1"},
	}
	events <- discovery.Event{Kind: discovery.PeerAdded, Peer: remote}
	pumpUntil(t, n, func() bool { return hasPeer(n, "remote.1") })

	addr, ok := n.peerAddr("remote.1")
	require.True(t, ok)
	assert.Equal(t, 9999, addr.Port)

	events <- discovery.Event{Kind: discovery.PeerRemoved, Peer: remote}
	pumpUntil(t, n, func() bool { return !hasPeer(n, "remote.1") })
}

func TestNetworkReleaseClosesSocket(t *testing.T) {
	cfg := testNetworkConfig()
	n, err := NewNetwork(cfg)
	require.NoError(t, err)

	n.Retain()
	require.NoError(t, n.Release())
	_, err = n.Pump(0)
	require.NoError(t, err, "still open with one reference")

	require.NoError(t, n.Release())
	_, err = n.Pump(0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, n.endpoint.Send(n.LocalAddr(), []byte{1}), transport.ErrClosed)
}
