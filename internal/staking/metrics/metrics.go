package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the prediction market.
type Metrics struct {
	// Stake placements by outcome ("ok", "rejected", "error")
	StakesTotal *prometheus.CounterVec

	// Resolutions by result ("won", "lost", "rejected", "error")
	ResolutionsTotal *prometheus.CounterVec

	// Total value placed into escrow
	StakedVolume prometheus.Counter

	// Stakes awaiting resolution, refreshed on stats reads
	OpenStakes prometheus.Gauge

	// Survival odds cache hits and misses
	OddsCacheTotal *prometheus.CounterVec
}

// New creates a Metrics instance with all staking metrics registered.
func New() *Metrics {
	return &Metrics{
		StakesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soulledger_staking_stakes_total",
			Help: "Total stake placements by outcome",
		}, []string{"outcome"}),

		ResolutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soulledger_staking_resolutions_total",
			Help: "Total stake resolutions by result",
		}, []string{"result"}),

		StakedVolume: promauto.NewCounter(prometheus.CounterOpts{
			Name: "soulledger_staking_volume_total",
			Help: "Total value placed into stake escrow",
		}),

		OpenStakes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "soulledger_staking_open_stakes",
			Help: "Stakes awaiting resolution as of the last stats read",
		}),

		OddsCacheTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soulledger_staking_odds_cache_total",
			Help: "Survival odds cache lookups by result",
		}, []string{"result"}),
	}
}

// IncrementStake records a stake placement outcome.
func (m *Metrics) IncrementStake(outcome string) {
	if m != nil {
		m.StakesTotal.WithLabelValues(outcome).Inc()
	}
}

// IncrementResolution records a resolution result.
func (m *Metrics) IncrementResolution(result string) {
	if m != nil {
		m.ResolutionsTotal.WithLabelValues(result).Inc()
	}
}

// AddStakedVolume records value entering escrow.
func (m *Metrics) AddStakedVolume(amount uint64) {
	if m != nil {
		m.StakedVolume.Add(float64(amount))
	}
}

// SetOpenStakes refreshes the open stake gauge.
func (m *Metrics) SetOpenStakes(n int) {
	if m != nil {
		m.OpenStakes.Set(float64(n))
	}
}

// IncrementOddsCache records a cache lookup result ("hit", "miss", "error").
func (m *Metrics) IncrementOddsCache(result string) {
	if m != nil {
		m.OddsCacheTotal.WithLabelValues(result).Inc()
	}
}
