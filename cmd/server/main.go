package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	backuphandler "soulledger/internal/backup/handler"
	backupmetrics "soulledger/internal/backup/metrics"
	backupservice "soulledger/internal/backup/service"
	backupstore "soulledger/internal/backup/store/backup"
	recoverystore "soulledger/internal/backup/store/recovery"
	markethandler "soulledger/internal/market/handler"
	marketmetrics "soulledger/internal/market/metrics"
	marketservice "soulledger/internal/market/service"
	fragmentstore "soulledger/internal/market/store/fragment"
	graveyardstore "soulledger/internal/market/store/graveyard"
	tradestore "soulledger/internal/market/store/trade"
	"soulledger/internal/platform/config"
	"soulledger/internal/platform/httpserver"
	"soulledger/internal/platform/logger"
	platformmetrics "soulledger/internal/platform/metrics"
	platformpg "soulledger/internal/platform/postgres"
	platformredis "soulledger/internal/platform/redis"
	registryhandler "soulledger/internal/registry/handler"
	registrymetrics "soulledger/internal/registry/metrics"
	registryservice "soulledger/internal/registry/service"
	lineagestore "soulledger/internal/registry/store/lineage"
	soulstore "soulledger/internal/registry/store/soul"
	stakingcache "soulledger/internal/staking/cache"
	stakinghandler "soulledger/internal/staking/handler"
	stakingmetrics "soulledger/internal/staking/metrics"
	stakingservice "soulledger/internal/staking/service"
	stakestore "soulledger/internal/staking/store/stake"
	httptransport "soulledger/internal/transport/http"
	treasuryhandler "soulledger/internal/treasury/handler"
	treasurymetrics "soulledger/internal/treasury/metrics"
	treasuryservice "soulledger/internal/treasury/service"
	accountstore "soulledger/internal/treasury/store/account"
	id "soulledger/pkg/domain"
	"soulledger/pkg/platform/events"
	eventsconsumer "soulledger/pkg/platform/events/consumer"
	eventskafka "soulledger/pkg/platform/events/kafka"
	"soulledger/pkg/platform/events/publisher"
	eventsmemory "soulledger/pkg/platform/events/store/memory"
	eventspg "soulledger/pkg/platform/events/store/postgres"
	eventsworker "soulledger/pkg/platform/events/worker"
	"soulledger/pkg/platform/tx"
)

const consumerGroup = "soulledger-events"

// main wires stores, services and transports from config and runs the server
// lifecycle. Business logic lives in the internal service packages; this file
// only decides which implementation of each port to hand them.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage. An empty database URL runs every store in memory, which is
	// the development and test mode; postgres is the deployment mode.
	var (
		db     *sql.DB
		runner backupservice.StoreTx
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = platformpg.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := platformpg.Bootstrap(ctx, db); err != nil {
			return err
		}
		runner = tx.NewPostgresRunner(db)
		log.Info("using postgres stores")
	} else {
		runner = tx.NewMemoryRunner()
		log.Info("using in-memory stores")
	}

	var eventStore events.Store
	if db != nil {
		eventStore = eventspg.New(db)
	} else {
		eventStore = eventsmemory.NewInMemoryStore()
	}
	bus := publisher.NewPublisher(eventStore)
	defer bus.Close()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("redis odds cache enabled")
	}

	// Services.
	registrySvc := registryservice.New(newSoulStore(db), newLineageStore(db),
		registryservice.WithLogger(log),
		registryservice.WithEvents(bus),
		registryservice.WithMetrics(registrymetrics.New()),
		registryservice.WithTx(runner),
		registryservice.WithStrictLifecycle(cfg.Ledger.StrictLifecycle),
	)
	treasurySvc := treasuryservice.New(newAccountStore(db),
		treasuryservice.WithLogger(log),
		treasuryservice.WithEvents(bus),
		treasuryservice.WithMetrics(treasurymetrics.New()),
		treasuryservice.WithTx(runner),
	)

	marketOpts := []marketservice.Option{
		marketservice.WithLogger(log),
		marketservice.WithEvents(bus),
		marketservice.WithMetrics(marketmetrics.New()),
		marketservice.WithTx(runner),
		marketservice.WithFeeBps(cfg.Ledger.MarketFeeBps),
		marketservice.WithMinResurrectionPrice(cfg.Ledger.MinResurrectionPrice),
	}
	if recipient, ok := parseAddress(cfg.Admin.FeeRecipient, "fee recipient", log); ok {
		marketOpts = append(marketOpts, marketservice.WithFeeRecipient(recipient))
	}
	marketSvc := marketservice.New(newFragmentStore(db), newGraveyardStore(db), newTradeStore(db),
		registrySvc, treasurySvc, marketOpts...)

	stakingOpts := []stakingservice.Option{
		stakingservice.WithLogger(log),
		stakingservice.WithEvents(bus),
		stakingservice.WithMetrics(stakingmetrics.New()),
		stakingservice.WithTx(runner),
		stakingservice.WithPlatformFeeBps(cfg.Ledger.StakeFeeBps),
		stakingservice.WithDurationBounds(cfg.Ledger.StakeMinDuration, cfg.Ledger.StakeMaxDuration),
	}
	if redisClient != nil {
		stakingOpts = append(stakingOpts, stakingservice.WithOddsCache(stakingcache.New(redisClient.Client)))
	}
	stakingSvc := stakingservice.New(newStakeStore(db), registrySvc, treasurySvc, stakingOpts...)

	backupSvc := backupservice.New(newBackupStore(db), newRecoveryStore(db), registrySvc,
		backupservice.WithLogger(log),
		backupservice.WithEvents(bus),
		backupservice.WithMetrics(backupmetrics.New()),
		backupservice.WithTx(runner),
		backupservice.WithMinBackupInterval(cfg.Ledger.BackupMinInterval),
		backupservice.WithMaxHistory(cfg.Ledger.BackupMaxHistory),
	)

	// Privileged addresses. An unset admin leaves the matching endpoints
	// unreachable, since no HTTP caller can present a reserved address.
	feeAdmin := adminAddress(cfg.Admin.FeeAdmin, "fee admin", log)
	treasuryAdmin := adminAddress(cfg.Admin.TreasuryAdmin, "treasury admin", log)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Metrics:  platformmetrics.New(),
		Registry: registryhandler.New(registrySvc, log),
		Market:   markethandler.New(marketSvc, feeAdmin, log),
		Staking:  stakinghandler.New(stakingSvc, feeAdmin, log),
		Treasury: treasuryhandler.New(treasurySvc, treasuryAdmin, log),
		Backup:   backuphandler.New(backupSvc, log),
		Ready:    readiness(db, redisClient),
	})

	group, groupCtx := errgroup.WithContext(ctx)

	// Event relay. Kafka without postgres has no outbox to drain, so the
	// relay only runs when both are configured.
	if len(cfg.Kafka.Brokers) > 0 && db != nil {
		producer, err := eventskafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, 3, 1); err != nil {
			return err
		}

		relay := eventsworker.NewRelay(db, producer, log)
		group.Go(func() error {
			err := relay.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})

		eventRouter := eventsconsumer.NewRouter(log, nil)
		eventRouter.Register(eventskafka.Topic, eventsconsumer.NewLedgerHandler(eventspg.New(db), log))
		consumer, err := eventsconsumer.New(cfg.Kafka.Brokers, consumerGroup,
			[]string{eventskafka.Topic}, eventRouter, log)
		if err != nil {
			return err
		}
		group.Go(func() error {
			err := consumer.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		log.Info("event relay enabled", "brokers", cfg.Kafka.Brokers, "topic", eventskafka.Topic)
	}

	srv := httpserver.New(cfg.Addr, router)
	group.Go(func() error {
		log.Info("starting soulledger", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("soulledger stopped")
	return nil
}

// readiness probes every configured backend; memory mode has nothing to check.
func readiness(db *sql.DB, redisClient *platformredis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func parseAddress(raw, role string, log *slog.Logger) (id.Address, bool) {
	if raw == "" {
		return "", false
	}
	addr, err := id.ParseAddress(raw)
	if err != nil {
		log.Warn("ignoring invalid configured address", "role", role, "error", err)
		return "", false
	}
	return addr, true
}

func adminAddress(raw, role string, log *slog.Logger) id.Address {
	if addr, ok := parseAddress(raw, role, log); ok {
		return addr
	}
	log.Warn("admin address not configured, privileged endpoints disabled", "role", role)
	return id.PlatformAddress
}

func newSoulStore(db *sql.DB) registryservice.SoulStore {
	if db != nil {
		return soulstore.NewPostgres(db)
	}
	return soulstore.NewInMemoryStore()
}

func newLineageStore(db *sql.DB) registryservice.LineageStore {
	if db != nil {
		return lineagestore.NewPostgres(db)
	}
	return lineagestore.NewInMemoryStore()
}

func newTradeStore(db *sql.DB) marketservice.TradeStore {
	if db != nil {
		return tradestore.NewPostgres(db)
	}
	return tradestore.NewInMemoryStore()
}

func newFragmentStore(db *sql.DB) marketservice.FragmentStore {
	if db != nil {
		return fragmentstore.NewPostgres(db)
	}
	return fragmentstore.NewInMemoryStore()
}

func newGraveyardStore(db *sql.DB) marketservice.GraveyardStore {
	if db != nil {
		return graveyardstore.NewPostgres(db)
	}
	return graveyardstore.NewInMemoryStore()
}

func newAccountStore(db *sql.DB) treasuryservice.AccountStore {
	if db != nil {
		return accountstore.NewPostgres(db)
	}
	return accountstore.NewInMemoryStore()
}

func newStakeStore(db *sql.DB) stakingservice.StakeStore {
	if db != nil {
		return stakestore.NewPostgres(db)
	}
	return stakestore.NewInMemoryStore()
}

func newBackupStore(db *sql.DB) backupservice.BackupStore {
	if db != nil {
		return backupstore.NewPostgres(db)
	}
	return backupstore.NewInMemoryStore()
}

func newRecoveryStore(db *sql.DB) backupservice.RecoveryStore {
	if db != nil {
		return recoverystore.NewPostgres(db)
	}
	return recoverystore.NewInMemoryStore()
}
