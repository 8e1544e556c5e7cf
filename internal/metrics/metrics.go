// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the gateway's Prometheus collectors. A nil *Metrics is
// valid everywhere and records nothing, so wiring stays optional in
// tests.
type Metrics struct {
	SessionsActive   prometheus.GaugeFunc
	ConnectsTotal    *prometheus.CounterVec
	DisconnectsTotal prometheus.Counter
	OrdersTotal      *prometheus.CounterVec
}

// New registers the gateway collectors on reg. sessionCount supplies the
// live registry size for the sessions gauge.
func New(reg prometheus.Registerer, sessionCount func() int) *Metrics {
	m := &Metrics{
		SessionsActive: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ibgate_sessions_active",
			Help: "Number of session entries currently in the registry.",
		}, func() float64 { return float64(sessionCount()) }),
		ConnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ibgate_connects_total",
			Help: "Connect attempts by outcome (connected, reused, failed).",
		}, []string{"outcome"}),
		DisconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ibgate_disconnects_total",
			Help: "Completed disconnects.",
		}),
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ibgate_orders_total",
			Help: "Orders placed by kind (entry, stop, target, flatten).",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.SessionsActive, m.ConnectsTotal, m.DisconnectsTotal, m.OrdersTotal)
	return m
}

// Connect records a connect attempt outcome. Nil-safe.
func (m *Metrics) Connect(outcome string) {
	if m == nil {
		return
	}
	m.ConnectsTotal.WithLabelValues(outcome).Inc()
}

// Disconnect records a completed disconnect. Nil-safe.
func (m *Metrics) Disconnect() {
	if m == nil {
		return
	}
	m.DisconnectsTotal.Inc()
}

// Order records a placed order by kind. Nil-safe.
func (m *Metrics) Order(kind string) {
	if m == nil {
		return
	}
	m.OrdersTotal.WithLabelValues(kind).Inc()
}
