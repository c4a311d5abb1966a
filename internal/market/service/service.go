package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	marketmetrics "soulledger/internal/market/metrics"
	"soulledger/internal/market/models"
	id "soulledger/pkg/domain"
	dErrors "soulledger/pkg/domain-errors"
	"soulledger/pkg/platform/events"
	"soulledger/pkg/platform/sentinel"
	"soulledger/pkg/platform/tx"
)

// Defaults applied when main does not override them from config.
const (
	DefaultFeeBps               uint64 = 250
	DefaultMinResurrectionPrice uint64 = 1000
)

// FragmentStore persists fragment chains, appended per soul. Execute holds
// the record lock (mutex or FOR UPDATE) across validate+mutate.
type FragmentStore interface {
	Append(ctx context.Context, fragment *models.Fragment) error
	Find(ctx context.Context, soulID id.SoulID, index int) (*models.Fragment, error)
	FindBySoul(ctx context.Context, soulID id.SoulID) ([]*models.Fragment, error)
	Execute(ctx context.Context, soulID id.SoulID, index int, validate func(*models.Fragment) error, mutate func(*models.Fragment)) (*models.Fragment, error)
	OutstandingByDebtor(ctx context.Context, debtor id.Address) (uint64, error)
	CountOpen(ctx context.Context) (int, error)
}

// GraveyardStore persists archive entries, at most one per soul.
type GraveyardStore interface {
	CreateIfAbsent(ctx context.Context, entry *models.GraveyardEntry) error
	Find(ctx context.Context, soulID id.SoulID) (*models.GraveyardEntry, error)
	Execute(ctx context.Context, soulID id.SoulID, validate func(*models.GraveyardEntry) error, mutate func(*models.GraveyardEntry)) (*models.GraveyardEntry, error)
	Count(ctx context.Context) (int, error)
}

// TradeStore records the append-only purchase log.
type TradeStore interface {
	Append(ctx context.Context, trade *models.Trade) error
	Totals(ctx context.Context) (*models.TradeTotals, error)
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

// Service orchestrates marketplace settlements: purchases, fragment debt,
// graveyard archival and resurrection. Soul state changes go through the
// registry port and fund movements through the treasury port, all inside one
// transaction per operation.
type Service struct {
	fragments FragmentStore
	graveyard GraveyardStore
	trades    TradeStore
	registry  Registry
	treasury  Treasury
	tx        StoreTx
	emitter   *eventEmitter
	metrics   *marketmetrics.Metrics

	feeRecipient         id.Address
	minResurrectionPrice uint64

	feeMu  sync.RWMutex
	feeBps uint64
}

type serviceConfig struct {
	logger               *slog.Logger
	events               EventPublisher
	metrics              *marketmetrics.Metrics
	tx                   StoreTx
	feeBps               uint64
	feeRecipient         id.Address
	minResurrectionPrice uint64
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

func WithMetrics(m *marketmetrics.Metrics) Option {
	return func(cfg *serviceConfig) {
		cfg.metrics = m
	}
}

func WithTx(runner StoreTx) Option {
	return func(cfg *serviceConfig) {
		cfg.tx = runner
	}
}

// WithFeeBps seeds the marketplace fee. SetFeeBps changes it at runtime.
func WithFeeBps(bps uint64) Option {
	return func(cfg *serviceConfig) {
		cfg.feeBps = bps
	}
}

// WithFeeRecipient routes marketplace fees to addr instead of the internal
// platform account.
func WithFeeRecipient(addr id.Address) Option {
	return func(cfg *serviceConfig) {
		cfg.feeRecipient = addr
	}
}

// WithMinResurrectionPrice sets the price of raising a soul from the
// graveyard.
func WithMinResurrectionPrice(price uint64) Option {
	return func(cfg *serviceConfig) {
		cfg.minResurrectionPrice = price
	}
}

func New(fragments FragmentStore, graveyard GraveyardStore, trades TradeStore, registry Registry, treasury Treasury, opts ...Option) *Service {
	cfg := &serviceConfig{
		feeBps:               DefaultFeeBps,
		feeRecipient:         id.PlatformAddress,
		minResurrectionPrice: DefaultMinResurrectionPrice,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	runner := cfg.tx
	if runner == nil {
		runner = tx.NewMemoryRunner()
	}
	return &Service{
		fragments:            fragments,
		graveyard:            graveyard,
		trades:               trades,
		registry:             registry,
		treasury:             treasury,
		tx:                   runner,
		emitter:              newEventEmitter(cfg.logger, cfg.events),
		metrics:              cfg.metrics,
		feeRecipient:         cfg.feeRecipient,
		minResurrectionPrice: cfg.minResurrectionPrice,
		feeBps:               cfg.feeBps,
	}
}

// FeeBps reads the current marketplace fee.
func (s *Service) FeeBps() uint64 {
	s.feeMu.RLock()
	defer s.feeMu.RUnlock()
	return s.feeBps
}

// wrapFragmentErr translates store sentinels into coded domain errors.
// Already coded errors pass through untouched.
func wrapFragmentErr(err error) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "fragment not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "market store failure")
}

func wrapGraveyardErr(err error) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "soul is not in the graveyard")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "soul is already archived")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "market store failure")
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
