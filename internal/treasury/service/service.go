package service

import (
	"context"
	"errors"
	"log/slog"

	treasurymetrics "soulledger/internal/treasury/metrics"
	"soulledger/internal/treasury/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/events"
	"soulledger/pkg/platform/sentinel"
	"soulledger/pkg/platform/tx"
)

// AccountStore persists treasury accounts. ExecuteBatch holds locks on every
// listed account (mutex or FOR UPDATE plus advisory locks) across
// validate+mutate; accounts without a record are materialized at zero balance
// and persisted only when the batch succeeds.
type AccountStore interface {
	Find(ctx context.Context, address id.Address) (*models.Account, error)
	ExecuteBatch(
		ctx context.Context,
		addresses []id.Address,
		validate func(accounts map[id.Address]*models.Account) error,
		mutate func(accounts map[id.Address]*models.Account),
	) error
	Count(ctx context.Context) (total, frozen int, err error)
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

// Service is the single writer of account balances. External surface covers
// deposits, withdrawals and freezes; the marketplace and staking slices move
// funds through CanSettle/Settle/Transfer inside their own transactions.
type Service struct {
	accounts AccountStore
	tx       StoreTx
	emitter  *eventEmitter
	metrics  *treasurymetrics.Metrics
}

type serviceConfig struct {
	logger  *slog.Logger
	events  EventPublisher
	metrics *treasurymetrics.Metrics
	tx      StoreTx
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

func WithMetrics(m *treasurymetrics.Metrics) Option {
	return func(cfg *serviceConfig) {
		cfg.metrics = m
	}
}

func WithTx(runner StoreTx) Option {
	return func(cfg *serviceConfig) {
		cfg.tx = runner
	}
}

func New(accounts AccountStore, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	runner := cfg.tx
	if runner == nil {
		runner = tx.NewMemoryRunner()
	}
	return &Service{
		accounts: accounts,
		tx:       runner,
		emitter:  newEventEmitter(cfg.logger, cfg.events),
		metrics:  cfg.metrics,
	}
}

// wrapAccountErr translates store sentinels into coded domain errors. Already
// coded errors pass through untouched.
func wrapAccountErr(err error) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "account not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "treasury store failure")
}

func requireCaller(caller id.Address) error {
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller address is required")
	}
	return nil
}

func requireAddress(address id.Address) error {
	if address.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "account address is required")
	}
	return nil
}
