package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	stakingmetrics "soulledger/internal/staking/metrics"
	"soulledger/internal/staking/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/events"
	"soulledger/pkg/platform/sentinel"
	"soulledger/pkg/platform/tx"
)

// Defaults applied when main does not override them from config.
const (
	DefaultPlatformFeeBps   uint64 = 500
	DefaultMinStakeDuration        = time.Hour
	DefaultMaxStakeDuration        = 365 * 24 * time.Hour
)

// StakeStore persists stakes and the per-soul pool aggregates. Execute and
// ExecutePool hold the record lock (mutex or FOR UPDATE) across
// validate+mutate; ExecutePool materializes the zero pool on first use.
type StakeStore interface {
	Create(ctx context.Context, stake *models.Stake) error
	Find(ctx context.Context, stakeID id.StakeID) (*models.Stake, error)
	FindBySoul(ctx context.Context, soulID id.SoulID) ([]*models.Stake, error)
	Execute(ctx context.Context, stakeID id.StakeID, validate func(*models.Stake) error, mutate func(*models.Stake)) (*models.Stake, error)
	FindPool(ctx context.Context, soulID id.SoulID) (*models.Pool, error)
	ExecutePool(ctx context.Context, soulID id.SoulID, validate func(*models.Pool) error, mutate func(*models.Pool)) (*models.Pool, error)
	CountOpen(ctx context.Context) (int, error)
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

// Service runs the lifecycle prediction market: pooled SURVIVE/DIE wagers
// whose payouts are funded entirely by the losing pool less the platform
// fee, so the ledger carries no house inventory risk. Stake amounts sit in
// escrow from placement to resolution.
type Service struct {
	stakes   StakeStore
	registry Registry
	treasury Treasury
	tx       StoreTx
	emitter  *eventEmitter
	metrics  *stakingmetrics.Metrics
	odds     OddsCache

	minDuration time.Duration
	maxDuration time.Duration

	feeMu  sync.RWMutex
	feeBps uint64
}

type serviceConfig struct {
	logger      *slog.Logger
	events      EventPublisher
	metrics     *stakingmetrics.Metrics
	tx          StoreTx
	odds        OddsCache
	feeBps      uint64
	minDuration time.Duration
	maxDuration time.Duration
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

func WithMetrics(m *stakingmetrics.Metrics) Option {
	return func(cfg *serviceConfig) {
		cfg.metrics = m
	}
}

func WithTx(runner StoreTx) Option {
	return func(cfg *serviceConfig) {
		cfg.tx = runner
	}
}

// WithOddsCache serves survival odds from cache, invalidated on every pool
// change.
func WithOddsCache(cache OddsCache) Option {
	return func(cfg *serviceConfig) {
		cfg.odds = cache
	}
}

// WithPlatformFeeBps seeds the platform fee taken from winning payouts.
// SetPlatformFeeBps changes it at runtime.
func WithPlatformFeeBps(bps uint64) Option {
	return func(cfg *serviceConfig) {
		cfg.feeBps = bps
	}
}

// WithDurationBounds constrains how short or long a stake window may be.
func WithDurationBounds(min, max time.Duration) Option {
	return func(cfg *serviceConfig) {
		cfg.minDuration = min
		cfg.maxDuration = max
	}
}

func New(stakes StakeStore, registry Registry, treasury Treasury, opts ...Option) *Service {
	cfg := &serviceConfig{
		feeBps:      DefaultPlatformFeeBps,
		minDuration: DefaultMinStakeDuration,
		maxDuration: DefaultMaxStakeDuration,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	runner := cfg.tx
	if runner == nil {
		runner = tx.NewMemoryRunner()
	}
	return &Service{
		stakes:      stakes,
		registry:    registry,
		treasury:    treasury,
		tx:          runner,
		emitter:     newEventEmitter(cfg.logger, cfg.events),
		metrics:     cfg.metrics,
		odds:        cfg.odds,
		minDuration: cfg.minDuration,
		maxDuration: cfg.maxDuration,
		feeBps:      cfg.feeBps,
	}
}

// PlatformFeeBps reads the current platform fee.
func (s *Service) PlatformFeeBps() uint64 {
	s.feeMu.RLock()
	defer s.feeMu.RUnlock()
	return s.feeBps
}

// wrapStakeErr translates store sentinels into coded domain errors. Already
// coded errors pass through untouched.
func wrapStakeErr(err error) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "stake not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "staking store failure")
}

func requireSoulID(soulID id.SoulID) error {
	if soulID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "soul id is required")
	}
	return nil
}

func requireStakeID(stakeID id.StakeID) error {
	if stakeID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "stake id is required")
	}
	return nil
}

func requireCaller(caller id.Address) error {
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller address is required")
	}
	return nil
}
