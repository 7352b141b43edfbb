package metric

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace is used when NewMetrics is called with an empty namespace.
const DefaultNamespace = "mapper"

// Drop reasons.
const (
	DropTypeMismatch  = "type_mismatch"
	DropUnknownSignal = "unknown_signal"
	DropNoRoute       = "no_route"
	DropDecode        = "decode"
	DropQueueFull     = "queue_full"
	DropVersion       = "version"
)

// Instance event kinds.
const (
	EventUpdate   = "update"
	EventNew      = "new"
	EventRelease  = "release"
	EventOverflow = "overflow"
)

// Metrics holds the counters and gauges of devices and sessions.
type Metrics struct {
	// Device metrics
	Polls           *prometheus.CounterVec
	PollDuration    *prometheus.HistogramVec
	Events          *prometheus.CounterVec
	UpdatesSent     *prometheus.CounterVec
	UpdatesReceived *prometheus.CounterVec
	BatchesSent     *prometheus.CounterVec
	BatchesReceived *prometheus.CounterVec
	Dropped         *prometheus.CounterVec
	QueueDiscards   *prometheus.CounterVec
	ActiveInstances *prometheus.GaugeVec
	Ready           *prometheus.GaugeVec

	// Session metrics
	Peers            prometheus.Gauge
	NameConflicts    prometheus.Counter
	Heartbeats       *prometheus.CounterVec
	DatagramsDropped prometheus.Counter
}

// NewMetrics creates the metric set under namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	return &Metrics{
		Polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "device",
				Name:      "polls_total",
				Help:      "Total number of device polls",
			},
			[]string{"device"},
		),

		PollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "device",
				Name:      "poll_duration_seconds",
				Help:      "Time spent in device polls, including waiting",
				Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"device"},
		),

		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "device",
				Name:      "events_total",
				Help:      "Listener events dispatched, by kind",
			},
			[]string{"device", "kind"},
		),

		UpdatesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "signal",
				Name:      "updates_sent_total",
				Help:      "Signal instance updates published",
			},
			[]string{"device"},
		),

		UpdatesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "signal",
				Name:      "updates_received_total",
				Help:      "Signal instance updates received",
			},
			[]string{"device"},
		),

		BatchesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "device",
				Name:      "batches_sent_total",
				Help:      "Update batches published",
			},
			[]string{"device"},
		),

		BatchesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "device",
				Name:      "batches_received_total",
				Help:      "Update batches received",
			},
			[]string{"device"},
		),

		Dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "signal",
				Name:      "updates_dropped_total",
				Help:      "Updates dropped, by reason",
			},
			[]string{"device", "reason"},
		),

		QueueDiscards: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "device",
				Name:      "queue_discards_total",
				Help:      "Open update queues discarded at device close",
			},
			[]string{"device"},
		),

		ActiveInstances: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "signal",
				Name:      "active_instances",
				Help:      "Active instances per signal",
			},
			[]string{"device", "signal"},
		),

		Ready: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "device",
				Name:      "ready",
				Help:      "Device readiness (0=pending, 1=ready)",
			},
			[]string{"device"},
		),

		Peers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "peers",
				Help:      "Remote devices currently alive",
			},
		),

		NameConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "name_conflicts_total",
				Help:      "Name conflicts lost by local devices",
			},
		),

		Heartbeats: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "heartbeats_total",
				Help:      "Heartbeats sent and received",
			},
			[]string{"direction"},
		),

		DatagramsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "datagrams_dropped_total",
				Help:      "Datagrams that could not be decoded or delivered",
			},
		),
	}
}

// Collectors returns every collector of the set.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Polls, m.PollDuration, m.Events,
		m.UpdatesSent, m.UpdatesReceived,
		m.BatchesSent, m.BatchesReceived,
		m.Dropped, m.QueueDiscards, m.ActiveInstances, m.Ready,
		m.Peers, m.NameConflicts, m.Heartbeats, m.DatagramsDropped,
	}
}

// Register registers all collectors with reg. Collectors that are already
// registered are skipped, so several devices may share one set.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return fmt.Errorf("register metrics: %w", err)
		}
	}
	return nil
}

// Poll records one device poll.
func (m *Metrics) Poll(device string, d time.Duration) {
	if m == nil {
		return
	}
	m.Polls.WithLabelValues(device).Inc()
	m.PollDuration.WithLabelValues(device).Observe(d.Seconds())
}

// Event records one dispatched listener event.
func (m *Metrics) Event(device, kind string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(device, kind).Inc()
}

// Sent records one published batch of n updates.
func (m *Metrics) Sent(device string, n int) {
	if m == nil {
		return
	}
	m.BatchesSent.WithLabelValues(device).Inc()
	m.UpdatesSent.WithLabelValues(device).Add(float64(n))
}

// Received records one received batch of n updates.
func (m *Metrics) Received(device string, n int) {
	if m == nil {
		return
	}
	m.BatchesReceived.WithLabelValues(device).Inc()
	m.UpdatesReceived.WithLabelValues(device).Add(float64(n))
}

// Drop records one dropped update.
func (m *Metrics) Drop(device, reason string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(device, reason).Inc()
}

// QueueDiscarded records an open queue thrown away at close.
func (m *Metrics) QueueDiscarded(device string) {
	if m == nil {
		return
	}
	m.QueueDiscards.WithLabelValues(device).Inc()
}

// Instances sets the active instance count of a signal.
func (m *Metrics) Instances(device, signal string, n int) {
	if m == nil {
		return
	}
	m.ActiveInstances.WithLabelValues(device, signal).Set(float64(n))
}

// SetReady sets the readiness gauge of a device.
func (m *Metrics) SetReady(device string, ready bool) {
	if m == nil {
		return
	}
	v := 0.0
	if ready {
		v = 1
	}
	m.Ready.WithLabelValues(device).Set(v)
}

// Forget removes the gauge series of a closed or renamed device. Counters
// keep their totals.
func (m *Metrics) Forget(device string) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"device": device}
	m.ActiveInstances.DeletePartialMatch(labels)
	m.Ready.DeletePartialMatch(labels)
}

// SetPeers sets the number of live remote devices.
func (m *Metrics) SetPeers(n int) {
	if m == nil {
		return
	}
	m.Peers.Set(float64(n))
}

// Conflict records a lost name conflict.
func (m *Metrics) Conflict() {
	if m == nil {
		return
	}
	m.NameConflicts.Inc()
}

// Heartbeat records a heartbeat in direction "in" or "out".
func (m *Metrics) Heartbeat(direction string) {
	if m == nil {
		return
	}
	m.Heartbeats.WithLabelValues(direction).Inc()
}

// DatagramDropped records an undecodable or undeliverable datagram.
func (m *Metrics) DatagramDropped() {
	if m == nil {
		return
	}
	m.DatagramsDropped.Inc()
}
