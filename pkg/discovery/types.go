package discovery

import (
	"errors"
	"net"
	"strconv"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceType is the DNS-SD service type announced by ready devices.
	ServiceType = "_mapper._udp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default UDP port of a network session.
	DefaultPort = 7570
)

// TXT record key constants.
const (
	TXTKeyName    = "name" // Full device name
	TXTKeyID      = "id"   // Device id (16 hex chars)
	TXTKeyToken   = "tok"  // Session token
	TXTKeyVersion = "ver"  // Protocol version
)

// Timing constants.
const (
	// ProbeWindow is how long a session listens for existing names before
	// allocating an ordinal.
	ProbeWindow = 500 * time.Millisecond

	// BrowseTimeout is the default timeout for one-shot browsing.
	BrowseTimeout = 10 * time.Second

	// DefaultTTL is the DNS record TTL of advertisements.
	DefaultTTL = 120 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxBaseNameLen leaves room for ".NNNN" and the token suffix.
	MaxBaseNameLen = 48

	// IDLength is the hex length of a device id (64 bits).
	IDLength = 16

	// tokenSuffixLen is the number of token characters appended to instance names.
	tokenSuffixLen = 8
)

// Discovery errors.
var (
	ErrInvalidName         = errors.New("invalid device name")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("service not found")
	ErrBrowseTimeout       = errors.New("browse timeout")
	ErrNamesExhausted      = errors.New("no free ordinal")
)

// Announcement is what a ready device publishes about itself.
type Announcement struct {
	// Name is the full device name ("synth.1").
	Name string

	// ID is the device id derived from Name.
	ID uint64

	// Token identifies the owning session.
	Token string

	// Version is the protocol version of the owning session.
	Version string

	// Port is the UDP port of the owning session.
	Port uint16
}

// InstanceName returns the mDNS instance name for the announcement.
func (a *Announcement) InstanceName() string {
	suffix := a.Token
	if len(suffix) > tokenSuffixLen {
		suffix = suffix[:tokenSuffixLen]
	}
	name := a.Name
	if suffix != "" {
		name += "@" + suffix
	}
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// Peer is an announcement observed on the network.
type Peer struct {
	Announcement

	// InstanceName is the mDNS instance name.
	InstanceName string

	// Host is the advertised hostname.
	Host string

	// Addresses contains resolved IP addresses.
	Addresses []string
}

// UDPAddr returns the first usable address of the peer, preferring IPv4.
func (p *Peer) UDPAddr() (*net.UDPAddr, bool) {
	var v6 *net.UDPAddr
	for _, a := range p.Addresses {
		ip := net.ParseIP(a)
		if ip == nil {
			continue
		}
		addr := &net.UDPAddr{IP: ip, Port: int(p.Port)}
		if ip.To4() != nil {
			return addr, true
		}
		if v6 == nil {
			v6 = addr
		}
	}
	return v6, v6 != nil
}

// EventKind distinguishes browse events.
type EventKind uint8

const (
	// PeerAdded is emitted when a peer is first seen.
	PeerAdded EventKind = iota + 1
	// PeerRemoved is emitted when a peer's last address goes away.
	PeerRemoved
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case PeerAdded:
		return "ADDED"
	case PeerRemoved:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// Event is a change in the set of visible peers.
type Event struct {
	Kind EventKind
	Peer *Peer
}

func formatID(id uint64) string {
	s := strconv.FormatUint(id, 16)
	for len(s) < IDLength {
		s = "0" + s
	}
	return s
}
