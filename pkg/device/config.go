package device

import (
	"log/slog"

	"github.com/mapper-protocol/mapper-go/pkg/log"
	"github.com/mapper-protocol/mapper-go/pkg/metric"
	"github.com/mapper-protocol/mapper-go/pkg/session"
)

// Config configures a device.
type Config struct {
	// Session is shared with other devices. The device takes its own
	// reference. Nil creates a private network session from Network.
	Session session.Session

	// Network configures the private session.
	Network session.NetworkConfig

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// ProtocolLogger receives readiness, queue and instance events. Optional.
	ProtocolLogger log.Logger

	// Metrics records polls, updates and instance events. Optional.
	Metrics *metric.Metrics
}

// DefaultConfig returns a configuration that creates a private network
// session.
func DefaultConfig() Config {
	return Config{
		Network: session.DefaultNetworkConfig(),
	}
}
