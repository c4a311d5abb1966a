package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the backup and recovery ledger.
type Metrics struct {
	// Backup creations by type ("auto", "manual", "critical") and outcome
	BackupsTotal *prometheus.CounterVec

	// Retention invalidations of the oldest valid entry
	InvalidationsTotal prometheus.Counter

	// Cross-chain audit records by target chain
	CrossChainTotal *prometheus.CounterVec

	// Recovery workflow steps by step ("requested", "approved", "executed",
	// "emergency") and outcome
	RecoveriesTotal *prometheus.CounterVec

	// Guardian set changes by action ("added", "removed", "threshold",
	// "backupper")
	GuardianChangesTotal *prometheus.CounterVec
}

// New creates a Metrics instance with all backup metrics registered.
func New() *Metrics {
	return &Metrics{
		BackupsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soulledger_backup_backups_total",
			Help: "Total backup creations by type and outcome",
		}, []string{"type", "outcome"}),

		InvalidationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "soulledger_backup_invalidations_total",
			Help: "Total retention invalidations of the oldest valid backup",
		}),

		CrossChainTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soulledger_backup_crosschain_total",
			Help: "Total cross-chain backup audit records by target chain",
		}, []string{"chain"}),

		RecoveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soulledger_backup_recoveries_total",
			Help: "Total recovery workflow steps by step and outcome",
		}, []string{"step", "outcome"}),

		GuardianChangesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "soulledger_backup_guardian_changes_total",
			Help: "Total guardian set changes by action",
		}, []string{"action"}),
	}
}

// IncrementBackup records a backup creation outcome.
func (m *Metrics) IncrementBackup(backupType, outcome string) {
	if m != nil {
		m.BackupsTotal.WithLabelValues(backupType, outcome).Inc()
	}
}

// IncrementInvalidation records a retention invalidation.
func (m *Metrics) IncrementInvalidation() {
	if m != nil {
		m.InvalidationsTotal.Inc()
	}
}

// IncrementCrossChain records a cross-chain audit record.
func (m *Metrics) IncrementCrossChain(chain string) {
	if m != nil {
		m.CrossChainTotal.WithLabelValues(chain).Inc()
	}
}

// IncrementRecovery records a recovery workflow step outcome.
func (m *Metrics) IncrementRecovery(step, outcome string) {
	if m != nil {
		m.RecoveriesTotal.WithLabelValues(step, outcome).Inc()
	}
}

// IncrementGuardianChange records a guardian set change.
func (m *Metrics) IncrementGuardianChange(action string) {
	if m != nil {
		m.GuardianChangesTotal.WithLabelValues(action).Inc()
	}
}
