// Package metrics exposes the Prometheus counters and histograms the role
// servers and Bridge update as they decode frames, complete handshakes, and
// emit V1 notifications. It uses its own registry rather than the default
// global one, so tests can spin up independent Collectors, scoped to
// this repository's own metric names instead of pool/payout bookkeeping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors bundles every counter/histogram a role server updates.
type Collectors struct {
	Registry *prometheus.Registry

	FramesDecoded      *prometheus.CounterVec
	FramesDecodeErrors *prometheus.CounterVec
	NotifiesEmitted    prometheus.Counter
	HandshakeDuration  prometheus.Histogram
	ConnectionsActive  *prometheus.GaugeVec
}

// New builds a Collectors bundle registered against a fresh registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()

	c := &Collectors{
		Registry: reg,
		FramesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sv2bridge",
			Name:      "frames_decoded_total",
			Help:      "Sv2 frames successfully decoded, by sub-protocol.",
		}, []string{"protocol"}),
		FramesDecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sv2bridge",
			Name:      "frame_decode_errors_total",
			Help:      "Frame decode failures, by error kind.",
		}, []string{"kind"}),
		NotifiesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sv2bridge",
			Name:      "v1_notify_emitted_total",
			Help:      "V1 mining.notify messages emitted by the translator bridge.",
		}),
		HandshakeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sv2bridge",
			Name:      "noise_handshake_duration_seconds",
			Help:      "Time to complete the Noise_NX handshake.",
			Buckets:   prometheus.DefBuckets,
		}),
		ConnectionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sv2bridge",
			Name:      "connections_active",
			Help:      "Currently open connections, by role.",
		}, []string{"role"}),
	}

	reg.MustRegister(c.FramesDecoded, c.FramesDecodeErrors, c.NotifiesEmitted, c.HandshakeDuration, c.ConnectionsActive)
	return c
}

// Handler returns the HTTP handler a role server's admin listener mounts
// for Prometheus scraping.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}
