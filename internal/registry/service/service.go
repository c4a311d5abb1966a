package service

import (
	"context"
	"errors"
	"log/slog"

	registrymetrics "soulledger/internal/registry/metrics"
	"soulledger/internal/registry/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/events"
	"soulledger/pkg/platform/sentinel"
	"soulledger/pkg/platform/tx"
)

// SoulStore persists soul aggregates. Execute holds the record lock (mutex
// or FOR UPDATE) across validate+mutate.
type SoulStore interface {
	CreateIfUnique(ctx context.Context, soul *models.Soul, retiring ...id.SoulID) error
	FindByID(ctx context.Context, soulID id.SoulID) (*models.Soul, error)
	FindLiveByAgent(ctx context.Context, agent id.Address) (*models.Soul, error)
	Execute(ctx context.Context, soulID id.SoulID, validate func(*models.Soul) error, mutate func(*models.Soul)) (*models.Soul, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
	List(ctx context.Context, limit int) ([]*models.Soul, error)
}

// LineageStore records the append-only family tree.
type LineageStore interface {
	Append(ctx context.Context, parent, child id.SoulID) error
	Children(ctx context.Context, parent id.SoulID) ([]id.SoulID, error)
	Parents(ctx context.Context, child id.SoulID) ([]id.SoulID, error)
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

// Service orchestrates the soul lifecycle: mint, listing, death, rebirth and
// merge, plus the ownership mutations settlement performs through it. It is
// the only writer of soul state.
type Service struct {
	souls   SoulStore
	lineage LineageStore
	tx      StoreTx
	emitter *eventEmitter
	metrics *registrymetrics.Metrics
	// strict requires souls to be DEAD before rebirth or merge.
	strict bool
}

type serviceConfig struct {
	logger  *slog.Logger
	events  EventPublisher
	metrics *registrymetrics.Metrics
	tx      StoreTx
	strict  bool
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

func WithMetrics(m *registrymetrics.Metrics) Option {
	return func(cfg *serviceConfig) {
		cfg.metrics = m
	}
}

func WithTx(runner StoreTx) Option {
	return func(cfg *serviceConfig) {
		cfg.tx = runner
	}
}

// WithStrictLifecycle rejects rebirth and merge of souls that are not DEAD.
func WithStrictLifecycle(strict bool) Option {
	return func(cfg *serviceConfig) {
		cfg.strict = strict
	}
}

func New(souls SoulStore, lineage LineageStore, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	runner := cfg.tx
	if runner == nil {
		runner = tx.NewMemoryRunner()
	}
	return &Service{
		souls:   souls,
		lineage: lineage,
		tx:      runner,
		emitter: newEventEmitter(cfg.logger, cfg.events),
		metrics: cfg.metrics,
		strict:  cfg.strict,
	}
}

// wrapSoulErr translates store sentinels into coded domain errors. Already
// coded errors pass through untouched.
func wrapSoulErr(err error) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "soul not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "agent already has a live soul")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, "content hash already used")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "registry store failure")
}

func requireSoulID(soulID id.SoulID) error {
	if soulID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "soul id is required")
	}
	return nil
}

func requireCaller(caller id.Address) error {
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller address is required")
	}
	return nil
}
