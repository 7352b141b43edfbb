package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSAdvertiser implements the Advertiser interface using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu      sync.Mutex
	servers map[string]*zeroconf.Server // keyed by full device name
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) (*MDNSAdvertiser, error) {
	return &MDNSAdvertiser{
		config:  config,
		servers: make(map[string]*zeroconf.Server),
	}, nil
}

// Advertise starts advertising a ready device.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, ann *Announcement) error {
	instance := ann.InstanceName()
	if err := ValidateInstanceName(instance); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if server, exists := a.servers[ann.Name]; exists {
		server.Shutdown()
		delete(a.servers, ann.Name)
	}

	port := int(ann.Port)
	if port == 0 {
		port = DefaultPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		instance,
		ServiceType,
		Domain,
		port,
		TXTRecordsToStrings(EncodeAnnouncementTXT(ann)),
		interfaces(a.config.Interface),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", ann.Name, err)
	}

	a.servers[ann.Name] = server
	return nil
}

// Update refreshes the TXT records of an advertised device.
func (a *MDNSAdvertiser) Update(ann *Announcement) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, exists := a.servers[ann.Name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, ann.Name)
	}
	server.SetText(TXTRecordsToStrings(EncodeAnnouncementTXT(ann)))
	return nil
}

// Withdraw stops advertising the named device.
func (a *MDNSAdvertiser) Withdraw(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if server, exists := a.servers[name]; exists {
		server.Shutdown()
		delete(a.servers, name)
	}
	return nil
}

// StopAll stops all advertisements.
func (a *MDNSAdvertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for name, server := range a.servers {
		server.Shutdown()
		delete(a.servers, name)
	}
}

// MDNSBrowser implements the Browser interface using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig

	mu      sync.Mutex
	cancels []context.CancelFunc
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) (*MDNSBrowser, error) {
	return &MDNSBrowser{config: config}, nil
}

// Browse watches for mapper peers on the link.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan Event, error) {
	ctx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.cancels = append(b.cancels, cancel)
	b.mu.Unlock()

	out := make(chan Event, 16)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	var opts []zeroconf.ClientOption
	if ifaces := interfaces(b.config.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	go func() {
		defer close(out)
		agg := newPeerSet()

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				ev, emit := agg.add(peerFromRecord(entry.Instance, entry.HostName, entry.Port, entry.Text, entryIPs(entry)))
				if !emit {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				ev, emit := agg.remove(entry.Instance, entryIPs(entry))
				if !emit {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// Stop stops all active browsing operations.
func (b *MDNSBrowser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
}

// interfaces returns the network interfaces to use. Nil means all.
func interfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

func entryIPs(entry *zeroconf.ServiceEntry) []net.IP {
	ips := make([]net.IP, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	ips = append(ips, entry.AddrIPv4...)
	ips = append(ips, entry.AddrIPv6...)
	return ips
}

// peerFromRecord converts a resolved service record to a Peer. Records with
// invalid TXT data yield nil.
func peerFromRecord(instance, host string, port int, text []string, ips []net.IP) *Peer {
	ann, err := DecodeAnnouncementTXT(StringsToTXTRecords(text))
	if err != nil {
		return nil
	}
	ann.Port = uint16(port)

	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, ip.String())
	}
	return &Peer{
		Announcement: *ann,
		InstanceName: instance,
		Host:         host,
		Addresses:    addrs,
	}
}

// peerSet aggregates per-interface records of the same instance.
type peerSet struct {
	peers map[string]*Peer
}

func newPeerSet() *peerSet {
	return &peerSet{peers: make(map[string]*Peer)}
}

func (s *peerSet) add(p *Peer) (Event, bool) {
	if p == nil {
		return Event{}, false
	}
	if existing, found := s.peers[p.InstanceName]; found {
		existing.Addresses = mergeAddresses(existing.Addresses, p.Addresses)
		return Event{}, false
	}
	s.peers[p.InstanceName] = p
	cp := *p
	cp.Addresses = append([]string(nil), p.Addresses...)
	return Event{Kind: PeerAdded, Peer: &cp}, true
}

func (s *peerSet) remove(instance string, ips []net.IP) (Event, bool) {
	existing, found := s.peers[instance]
	if !found {
		return Event{}, false
	}
	existing.Addresses = removeAddresses(existing.Addresses, ips)
	if len(existing.Addresses) > 0 {
		return Event{}, false
	}
	delete(s.peers, instance)
	return Event{Kind: PeerRemoved, Peer: existing}, true
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, new []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range new {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses removes the given IPs from the list.
func removeAddresses(addresses []string, ips []net.IP) []string {
	toRemove := make(map[string]bool, len(ips))
	for _, ip := range ips {
		toRemove[ip.String()] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}

// Ensure MDNSAdvertiser implements Advertiser interface.
var _ Advertiser = (*MDNSAdvertiser)(nil)

// Ensure MDNSBrowser implements Browser interface.
var _ Browser = (*MDNSBrowser)(nil)
