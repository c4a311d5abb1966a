package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the marketplace.
type Metrics struct {
	// Purchases by outcome ("ok", "rejected", "error")
	PurchasesTotal *prometheus.CounterVec

	// Settled trade volume in ledger units
	VolumeTotal prometheus.Counter

	// Fragment repayments completed
	RepaymentsTotal prometheus.Counter

	// Open fragments and archived souls, refreshed on Stats reads
	OpenFragments prometheus.Gauge
	ArchivedSouls prometheus.Gauge
}

// New creates a Metrics instance with all marketplace metrics registered.
func New() *Metrics {
	return &Metrics{
		PurchasesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soulledger_market_purchases_total",
			Help: "Total purchase attempts by outcome",
		}, []string{"outcome"}),

		VolumeTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "soulledger_market_volume_total",
			Help: "Total settled trade volume",
		}),

		RepaymentsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "soulledger_market_repayments_total",
			Help: "Total fragment repayments settled",
		}),

		OpenFragments: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "soulledger_market_open_fragments",
			Help: "Unrepaid fragments as of the last stats read",
		}),

		ArchivedSouls: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "soulledger_market_archived_souls",
			Help: "Graveyard entries as of the last stats read",
		}),
	}
}

// IncrementPurchase records a purchase attempt outcome.
func (m *Metrics) IncrementPurchase(outcome string) {
	if m != nil {
		m.PurchasesTotal.WithLabelValues(outcome).Inc()
	}
}

// AddVolume adds a settled sale price to the volume counter.
func (m *Metrics) AddVolume(amount uint64) {
	if m != nil {
		m.VolumeTotal.Add(float64(amount))
	}
}

// IncrementRepayment records a settled fragment repayment.
func (m *Metrics) IncrementRepayment() {
	if m != nil {
		m.RepaymentsTotal.Inc()
	}
}

// SetOpenFragments refreshes the open fragment gauge.
func (m *Metrics) SetOpenFragments(n int) {
	if m != nil {
		m.OpenFragments.Set(float64(n))
	}
}

// SetArchivedSouls refreshes the graveyard population gauge.
func (m *Metrics) SetArchivedSouls(n int) {
	if m != nil {
		m.ArchivedSouls.Set(float64(n))
	}
}
