// File: control/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Prometheus collectors for one endpoint.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hioload"

// Metrics groups the counters updated by sessions and reactors.
type Metrics struct {
	SessionsOpened prometheus.Counter
	SessionsClosed prometheus.Counter
	SessionsActive prometheus.Gauge
	Rejected       prometheus.Counter
	BytesRead      prometheus.Counter
	BytesWritten   prometheus.Counter
	FramesRead     prometheus.Counter
	InvalidFrames  prometheus.Counter
	IdleEvents     prometheus.Counter
	Exceptions     prometheus.Counter
}

// NewMetrics creates the collectors labelled with backend and registers them
// on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer, backend string) (*Metrics, error) {
	labels := prometheus.Labels{"backend": backend}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "net",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	m := &Metrics{
		SessionsOpened: counter("sessions_opened_total", "Sessions opened."),
		SessionsClosed: counter("sessions_closed_total", "Sessions closed."),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "net",
			Name:        "sessions_active",
			Help:        "Sessions currently open.",
			ConstLabels: labels,
		}),
		Rejected:      counter("sessions_rejected_total", "Connections refused over the session limit."),
		BytesRead:     counter("bytes_read_total", "Bytes read from sockets."),
		BytesWritten:  counter("bytes_written_total", "Bytes written to sockets."),
		FramesRead:    counter("frames_read_total", "Complete frames split from the input."),
		InvalidFrames: counter("invalid_frames_total", "Inputs rejected by a splitter."),
		IdleEvents:    counter("idle_events_total", "Idle notifications fired."),
		Exceptions:    counter("exceptions_total", "Exceptions reported to handlers."),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SessionsOpened, m.SessionsClosed, m.SessionsActive, m.Rejected,
		m.BytesRead, m.BytesWritten, m.FramesRead, m.InvalidFrames,
		m.IdleEvents, m.Exceptions,
	}
}
