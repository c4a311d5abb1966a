package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	backupmetrics "soulledger/internal/backup/metrics"
	"soulledger/internal/backup/models"
	registrymodels "soulledger/internal/registry/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/events"
	"soulledger/pkg/platform/sentinel"
	"soulledger/pkg/platform/tx"
)

// Defaults applied when main does not override them from config.
const (
	DefaultMinBackupInterval = time.Hour
	DefaultMaxHistory        = 100
)

// BackupStore persists backup history and cross-chain audit records. Execute
// holds the record lock (mutex or FOR UPDATE) across validate+mutate;
// appends assign per-soul indexes gaplessly.
type BackupStore interface {
	Append(ctx context.Context, backup *models.Backup) error
	Find(ctx context.Context, soulID id.SoulID, index int) (*models.Backup, error)
	FindBySoul(ctx context.Context, soulID id.SoulID) ([]*models.Backup, error)
	FindValid(ctx context.Context, soulID id.SoulID) ([]*models.Backup, error)
	Latest(ctx context.Context, soulID id.SoulID) (*models.Backup, error)
	OldestValid(ctx context.Context, soulID id.SoulID) (*models.Backup, error)
	CountValid(ctx context.Context, soulID id.SoulID) (int, error)
	Execute(ctx context.Context, soulID id.SoulID, index int, validate func(*models.Backup) error, mutate func(*models.Backup)) (*models.Backup, error)
	AppendCrossChain(ctx context.Context, record *models.CrossChainBackup) error
	FindCrossChain(ctx context.Context, soulID id.SoulID) ([]*models.CrossChainBackup, error)
}

// RecoveryStore persists recovery requests and per-soul guardian sets.
// ExecuteGuardians materializes the default set on first use.
type RecoveryStore interface {
	CreateRequest(ctx context.Context, request *models.RecoveryRequest) error
	FindRequest(ctx context.Context, requestID id.RecoveryID) (*models.RecoveryRequest, error)
	ExecuteRequest(ctx context.Context, requestID id.RecoveryID, validate func(*models.RecoveryRequest) error, mutate func(*models.RecoveryRequest)) (*models.RecoveryRequest, error)
	FindGuardians(ctx context.Context, soulID id.SoulID) (*models.Guardians, error)
	ExecuteGuardians(ctx context.Context, soulID id.SoulID, validate func(*models.Guardians) error, mutate func(*models.Guardians)) (*models.Guardians, error)
}

// StoreTx executes fn within a transactional boundary.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher records domain events. With the outbox store the append
// joins the surrounding transaction.
type EventPublisher interface {
	Emit(ctx context.Context, event events.Event) error
}

// Service runs the backup and recovery ledger: append-only content version
// history per soul, retention by invalidation, cross-chain audit records, and
// the guardian-gated recovery workflow. Recovery only records decisions;
// restoring content from a referenced backup is the consumer's job.
type Service struct {
	backups  BackupStore
	recovery RecoveryStore
	registry Registry
	tx       StoreTx
	emitter  *eventEmitter
	metrics  *backupmetrics.Metrics

	minInterval time.Duration
	maxHistory  int
}

type serviceConfig struct {
	logger      *slog.Logger
	events      EventPublisher
	metrics     *backupmetrics.Metrics
	tx          StoreTx
	minInterval time.Duration
	maxHistory  int
}

type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) {
		cfg.logger = logger
	}
}

func WithEvents(publisher EventPublisher) Option {
	return func(cfg *serviceConfig) {
		cfg.events = publisher
	}
}

func WithMetrics(m *backupmetrics.Metrics) Option {
	return func(cfg *serviceConfig) {
		cfg.metrics = m
	}
}

func WithTx(runner StoreTx) Option {
	return func(cfg *serviceConfig) {
		cfg.tx = runner
	}
}

// WithMinBackupInterval sets the minimum spacing enforced on auto backups.
func WithMinBackupInterval(interval time.Duration) Option {
	return func(cfg *serviceConfig) {
		cfg.minInterval = interval
	}
}

// WithMaxHistory sets how many valid backups a soul keeps before retention
// starts invalidating the oldest.
func WithMaxHistory(n int) Option {
	return func(cfg *serviceConfig) {
		cfg.maxHistory = n
	}
}

func New(backups BackupStore, recovery RecoveryStore, registry Registry, opts ...Option) *Service {
	cfg := &serviceConfig{
		minInterval: DefaultMinBackupInterval,
		maxHistory:  DefaultMaxHistory,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	runner := cfg.tx
	if runner == nil {
		runner = tx.NewMemoryRunner()
	}
	return &Service{
		backups:     backups,
		recovery:    recovery,
		registry:    registry,
		tx:          runner,
		emitter:     newEventEmitter(cfg.logger, cfg.events),
		metrics:     cfg.metrics,
		minInterval: cfg.minInterval,
		maxHistory:  cfg.maxHistory,
	}
}

// requireWriter checks that the caller may write backups for the soul: the
// owner always can, delegated backuppers when the owner granted them.
func (s *Service) requireWriter(ctx context.Context, caller id.Address, soul *registrymodels.Soul) error {
	if caller == soul.Owner {
		return nil
	}
	set, err := s.recovery.FindGuardians(ctx, soul.ID)
	if err != nil {
		return wrapRecoveryErr(err)
	}
	if !set.IsBackupper(caller) {
		return dErrors.New(dErrors.CodeForbidden, "only the owner or an authorized backupper may write backups")
	}
	return nil
}

// wrapBackupErr translates store sentinels into coded domain errors. Already
// coded errors pass through untouched.
func wrapBackupErr(err error) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "backup not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "backup store failure")
}

func wrapRecoveryErr(err error) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "recovery request not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "recovery store failure")
}

func requireSoulID(soulID id.SoulID) error {
	if soulID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "soul id is required")
	}
	return nil
}

func requireRecoveryID(requestID id.RecoveryID) error {
	if requestID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "recovery id is required")
	}
	return nil
}

func requireCaller(caller id.Address) error {
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller address is required")
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case dErrors.HasCode(err, dErrors.CodeForbidden):
		return "forbidden"
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation),
		dErrors.HasCode(err, dErrors.CodeValidation),
		dErrors.HasCode(err, dErrors.CodeConflict):
		return "rejected"
	default:
		return "error"
	}
}
