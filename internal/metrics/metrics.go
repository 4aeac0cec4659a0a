// Package metrics exposes relay counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

type Metrics struct {
	reg *prometheus.Registry

	Connections  prometheus.Gauge
	Joins        prometheus.Counter
	Leaves       prometheus.Counter
	Relayed      *prometheus.CounterVec
	Dropped      prometheus.Counter
	AuthFailures *prometheus.CounterVec
}

// New registers a fresh set of collectors on a private registry, so tests
// can create as many as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open realtime connections.",
		}),
		Joins: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_joins_total",
			Help:      "Identities that entered a room.",
		}),
		Leaves: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_leaves_total",
			Help:      "Identities that left a room, including disconnect purges.",
		}),
		Relayed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_relayed_total",
			Help:      "Frames delivered to room members, by event.",
		}, []string{"event"}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames not delivered because a member's send buffer was full or closed.",
		}),
		AuthFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected credentials, by transport and reason.",
		}, []string{"transport", "reason"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
