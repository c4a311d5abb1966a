package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the treasury.
type Metrics struct {
	// Successful deposits and withdrawals
	DepositsTotal    prometheus.Counter
	WithdrawalsTotal prometheus.Counter

	// Settlement batches by outcome ("ok", "rejected", "error")
	SettlementsTotal *prometheus.CounterVec

	// Reserved account balances, refreshed on balance reads
	EscrowBalance   prometheus.Gauge
	PlatformBalance prometheus.Gauge
}

// New creates a Metrics instance with all treasury metrics registered.
func New() *Metrics {
	return &Metrics{
		DepositsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "soulledger_treasury_deposits_total",
			Help: "Total successful deposits",
		}),

		WithdrawalsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "soulledger_treasury_withdrawals_total",
			Help: "Total successful withdrawals",
		}),

		SettlementsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soulledger_treasury_settlements_total",
			Help: "Total settlement batches by outcome",
		}, []string{"outcome"}),

		EscrowBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "soulledger_treasury_escrow_balance",
			Help: "Escrow account balance as of the last read",
		}),

		PlatformBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "soulledger_treasury_platform_balance",
			Help: "Platform account balance as of the last read",
		}),
	}
}

// IncrementDeposit records a successful deposit.
func (m *Metrics) IncrementDeposit() {
	if m != nil {
		m.DepositsTotal.Inc()
	}
}

// IncrementWithdrawal records a successful withdrawal.
func (m *Metrics) IncrementWithdrawal() {
	if m != nil {
		m.WithdrawalsTotal.Inc()
	}
}

// IncrementSettlement records a settlement batch outcome.
func (m *Metrics) IncrementSettlement(outcome string) {
	if m != nil {
		m.SettlementsTotal.WithLabelValues(outcome).Inc()
	}
}

// SetEscrowBalance refreshes the escrow balance gauge.
func (m *Metrics) SetEscrowBalance(balance uint64) {
	if m != nil {
		m.EscrowBalance.Set(float64(balance))
	}
}

// SetPlatformBalance refreshes the platform balance gauge.
func (m *Metrics) SetPlatformBalance(balance uint64) {
	if m != nil {
		m.PlatformBalance.Set(float64(balance))
	}
}
