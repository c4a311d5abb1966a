package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the identity registry.
type Metrics struct {
	// Mints by outcome ("ok", "duplicate_agent", "duplicate_hash", "error")
	MintsTotal *prometheus.CounterVec

	// Lifecycle transitions by target status
	TransitionsTotal *prometheus.CounterVec

	// Souls currently in each lifecycle state, refreshed on Stats reads
	SoulsByStatus *prometheus.GaugeVec
}

// New creates a Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		MintsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soulledger_registry_mints_total",
			Help: "Total mint attempts by outcome",
		}, []string{"outcome"}),

		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soulledger_registry_transitions_total",
			Help: "Total lifecycle transitions by resulting status",
		}, []string{"status"}),

		SoulsByStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "soulledger_registry_souls",
			Help: "Souls per lifecycle state as of the last stats read",
		}, []string{"status"}),
	}
}

// IncrementMint records a mint attempt outcome.
func (m *Metrics) IncrementMint(outcome string) {
	if m != nil {
		m.MintsTotal.WithLabelValues(outcome).Inc()
	}
}

// IncrementTransition records a lifecycle transition.
func (m *Metrics) IncrementTransition(status string) {
	if m != nil {
		m.TransitionsTotal.WithLabelValues(status).Inc()
	}
}

// SetSoulsByStatus refreshes the per-status population gauge.
func (m *Metrics) SetSoulsByStatus(status string, n int) {
	if m != nil {
		m.SoulsByStatus.WithLabelValues(status).Set(float64(n))
	}
}
