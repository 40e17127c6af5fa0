package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	financeapp "github.com/stockledger/backend/internal/application/finance"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/finance"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/cache"
	"github.com/stockledger/backend/internal/infrastructure/config"
	"github.com/stockledger/backend/internal/infrastructure/event"
	"github.com/stockledger/backend/internal/infrastructure/lock"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"github.com/stockledger/backend/internal/infrastructure/persistence"
	"github.com/stockledger/backend/internal/infrastructure/scheduler"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting stock ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
	)

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	layerRepo := persistence.NewGormCostLayerRepository(db.DB)
	productCostingRepo := persistence.NewGormProductCostingRepository(db.DB)
	methodChangeRepo := persistence.NewGormValuationMethodChangeRepository(db.DB)
	consumptionRepo := persistence.NewGormMovementConsumptionRepository(db.DB)
	journalRepo := persistence.NewGormJournalRepository(db.DB)
	postingRuleRepo := persistence.NewGormPostingRuleRepository(db.DB)
	deadLetterRepo := persistence.NewGormPostingDeadLetterRepository(db.DB)
	movementRepo := persistence.NewGormStockMovementRepository(db.DB)

	// Valuation engine with the per-key mutation guard
	guard := lock.NewKeyedMutex()
	valuationEngine := costing.NewValuationEngine(
		layerRepo, productCostingRepo, methodChangeRepo, consumptionRepo, guard, log,
	)

	// Posting account resolution and GL reconciliation
	accountResolver := finance.NewPostingAccountResolver(postingRuleRepo, productCostingRepo, log)
	reconEngine := finance.NewGLReconciliationEngine(
		layerRepo, productCostingRepo, accountResolver, journalRepo, log,
	)

	// Event bus
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Finance integration bridge: movement events in, journal vouchers out
	bridge := financeapp.NewFinanceIntegrationBridge(
		movementRepo,
		valuationEngine,
		accountResolver,
		journalRepo,
		deadLetterRepo,
		eventBus,
		financeapp.BridgeConfig{
			DefaultGRNIAccount:      cfg.Bridge.DefaultGRNIAccount,
			DefaultInTransitAccount: cfg.Bridge.DefaultInTransitAccount,
		},
		log,
	)

	// Subscribe the bridge handlers behind event-id deduplication. The store
	// outlives the bus so late retries still dedup.
	idempotencyStore := cache.NewIdempotencyStore(cfg.Redis, log)
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()
	wrapped := event.WrapHandlersWithIdempotency(
		bridge.Handlers(),
		idempotencyStore,
		log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{
			Enabled: cfg.Event.IdempotencyEnabled,
			TTL:     cfg.Event.IdempotencyTTL,
		}),
	)
	for _, h := range wrapped {
		eventBus.Subscribe(h, h.EventTypes()...)
	}
	log.Info("Finance integration bridge registered",
		zap.Int("handlers", len(wrapped)),
		zap.Bool("idempotency_enabled", cfg.Event.IdempotencyEnabled),
	)

	// Periodic GL reconciliation sweep (if enabled)
	if cfg.Recon.Enabled {
		reconScheduler := scheduler.NewReconciliationScheduler(
			scheduler.ReconciliationSchedulerConfig{
				Enabled:    cfg.Recon.Enabled,
				Interval:   cfg.Recon.Interval,
				RunTimeout: cfg.Recon.RunTimeout,
			},
			reconEngine,
			productCostingRepo,
			log,
		)
		if err := reconScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start reconciliation scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := reconScheduler.Stop(stopCtx); err != nil {
				log.Error("Error stopping reconciliation scheduler", zap.Error(err))
			}
		}()
		log.Info("Reconciliation scheduler started",
			zap.Duration("interval", cfg.Recon.Interval),
		)
	}

	// Block until shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")
}
