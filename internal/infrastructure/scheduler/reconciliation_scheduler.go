package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/finance"
	"go.uber.org/zap"
)

// Reconciler compares GL balances against layer-derived inventory value
type Reconciler interface {
	Reconcile(ctx context.Context, companyID uuid.UUID, warehouseID *uuid.UUID, asOf time.Time) ([]finance.ReconciliationResult, error)
}

// CompanySource enumerates the companies to sweep
type CompanySource interface {
	ListCompanies(ctx context.Context) ([]uuid.UUID, error)
}

// ReconciliationSchedulerConfig holds scheduler configuration
type ReconciliationSchedulerConfig struct {
	Enabled    bool
	Interval   time.Duration
	RunTimeout time.Duration
}

// DefaultReconciliationSchedulerConfig returns default scheduler configuration
func DefaultReconciliationSchedulerConfig() ReconciliationSchedulerConfig {
	return ReconciliationSchedulerConfig{
		Enabled:    true,
		Interval:   time.Hour,
		RunTimeout: 5 * time.Minute,
	}
}

// ReconciliationScheduler runs the GL reconciliation sweep on an interval.
// Unreconciled accounts are reported through logs; the sweep itself never
// mutates state.
type ReconciliationScheduler struct {
	config     ReconciliationSchedulerConfig
	reconciler Reconciler
	companies  CompanySource
	logger     *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewReconciliationScheduler creates a new scheduler instance
func NewReconciliationScheduler(
	config ReconciliationSchedulerConfig,
	reconciler Reconciler,
	companies CompanySource,
	logger *zap.Logger,
) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		config:     config,
		reconciler: reconciler,
		companies:  companies,
		logger:     logger,
	}
}

// Start starts the periodic sweep
func (s *ReconciliationScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Reconciliation scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("run_timeout", s.config.RunTimeout),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *ReconciliationScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Reconciliation scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Reconciliation scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *ReconciliationScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
			if err := s.RunOnce(runCtx); err != nil {
				s.logger.Error("Reconciliation sweep failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// RunOnce reconciles every company immediately. Exposed so operators can
// trigger a sweep outside the schedule.
func (s *ReconciliationScheduler) RunOnce(ctx context.Context) error {
	companies, err := s.companies.ListCompanies(ctx)
	if err != nil {
		return err
	}

	asOf := time.Now()
	for _, companyID := range companies {
		results, err := s.reconciler.Reconcile(ctx, companyID, nil, asOf)
		if err != nil {
			// One broken company must not abort the sweep for the rest
			s.logger.Error("Reconciliation failed for company",
				zap.String("company_id", companyID.String()),
				zap.Error(err),
			)
			continue
		}
		for _, r := range results {
			if r.IsReconciled {
				continue
			}
			s.logger.Warn("Inventory account out of balance",
				zap.String("company_id", companyID.String()),
				zap.String("account", r.AccountCode),
				zap.String("gl_balance", r.GLBalance.String()),
				zap.String("inventory_value", r.InventoryValue.String()),
				zap.String("variance", r.Variance.String()),
			)
		}
	}
	return nil
}
