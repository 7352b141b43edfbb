// Package metric provides Prometheus instrumentation for devices and
// sessions.
//
// A nil *Metrics is valid and records nothing, so components take an
// optional *Metrics and call its helpers unconditionally.
//
//	m := metric.NewMetrics("mapper")
//	if err := m.Register(prometheus.DefaultRegisterer); err != nil { ... }
//	dev, _ := device.NewWithConfig("synth", device.Config{Metrics: m})
package metric
