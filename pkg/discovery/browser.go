package discovery

import (
	"context"
	"time"
)

// Browser provides mDNS service browsing capabilities.
type Browser interface {
	// Browse watches for peers. Addresses of the same instance seen on
	// several interfaces are merged into one peer. The channel is closed
	// when ctx is cancelled or Stop is called.
	Browse(ctx context.Context) (<-chan Event, error)

	// Stop stops all active browsing operations.
	Stop()
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout is the default timeout for FindByName.
	// Default: 10 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
		Interface:     "",
	}
}

// FindByName browses until a peer with the given full name appears.
func FindByName(ctx context.Context, b Browser, name string, timeout time.Duration) (*Peer, error) {
	if timeout <= 0 {
		timeout = BrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	events, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil, ErrNotFound
			}
			if ev.Kind == PeerAdded && ev.Peer.Name == name {
				return ev.Peer, nil
			}
		case <-ctx.Done():
			return nil, ErrBrowseTimeout
		}
	}
}
