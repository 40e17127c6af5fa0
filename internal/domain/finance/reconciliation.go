package finance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// centTolerance is the absolute floor of the reconciliation tolerance
var centTolerance = decimal.NewFromFloat(0.01)

// relativeTolerance is the relative part of the tolerance: 1% of the
// inventory value
var relativeTolerance = decimal.NewFromFloat(0.01)

// ReconciliationResult compares one inventory account's GL balance against
// the value independently recomputed from cost layers. It is a report
// snapshot, never persisted as source of truth.
type ReconciliationResult struct {
	AccountCode     string          `json:"account"`
	GLBalance       decimal.Decimal `json:"gl_balance"`
	InventoryValue  decimal.Decimal `json:"inventory_value"`
	Variance        decimal.Decimal `json:"variance"`
	VariancePercent decimal.Decimal `json:"variance_percent"`
	IsReconciled    bool            `json:"is_reconciled"`
}

// GLReconciliationEngine audits the financial view against the physical
// one: for every inventory account referenced by any product it recomputes
// inventory value from open cost layers and compares it to the posted GL
// balance. Unreconciled accounts are data, not errors - the report always
// completes and returns every account's status.
type GLReconciliationEngine struct {
	layers   costing.CostLayerRepository
	products costing.ProductCostingRepository
	resolver *PostingAccountResolver
	journal  JournalRepository
	logger   *zap.Logger
}

// NewGLReconciliationEngine creates a new reconciliation engine
func NewGLReconciliationEngine(
	layers costing.CostLayerRepository,
	products costing.ProductCostingRepository,
	resolver *PostingAccountResolver,
	journal JournalRepository,
	logger *zap.Logger,
) *GLReconciliationEngine {
	return &GLReconciliationEngine{
		layers:   layers,
		products: products,
		resolver: resolver,
		journal:  journal,
		logger:   logger,
	}
}

// Reconcile compares GL balances against layer-derived inventory value for
// every inventory account of the company, optionally restricted to one
// warehouse. Historical dates recompute the GL balance from posted line
// history rather than a running balance.
func (e *GLReconciliationEngine) Reconcile(
	ctx context.Context,
	companyID uuid.UUID,
	warehouseID *uuid.UUID,
	asOf time.Time,
) ([]ReconciliationResult, error) {
	valueByAccount, err := e.inventoryValueByAccount(ctx, companyID, warehouseID, asOf)
	if err != nil {
		return nil, err
	}

	// Accounts referenced only through product configuration still show up
	// in the report, with zero layer value if nothing is open.
	configs, err := e.products.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list product costing configs: %w", err)
	}
	for _, pc := range configs {
		if pc.InventoryAccount == "" {
			continue
		}
		if _, ok := valueByAccount[pc.InventoryAccount]; !ok {
			valueByAccount[pc.InventoryAccount] = decimal.Zero
		}
	}

	accounts := make([]string, 0, len(valueByAccount))
	for account := range valueByAccount {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)

	results := make([]ReconciliationResult, 0, len(accounts))
	for _, account := range accounts {
		glBalance, err := e.journal.BalanceAsOf(ctx, companyID, account, asOf)
		if err != nil {
			return nil, fmt.Errorf("failed to compute GL balance for account %s: %w", account, err)
		}
		results = append(results, buildResult(account, glBalance, valueByAccount[account]))
	}

	e.logger.Info("reconciliation completed",
		zap.String("company_id", companyID.String()),
		zap.Time("as_of", asOf),
		zap.Int("accounts", len(results)),
		zap.Int("unreconciled", countUnreconciled(results)),
	)
	return results, nil
}

// inventoryValueByAccount maps every open layer to its inventory account
// and sums the remaining cost value per account
func (e *GLReconciliationEngine) inventoryValueByAccount(
	ctx context.Context,
	companyID uuid.UUID,
	warehouseID *uuid.UUID,
	asOf time.Time,
) (map[string]decimal.Decimal, error) {
	layers, err := e.layers.ListOpenByCompany(ctx, companyID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open layers: %w", err)
	}

	type mappingKey struct {
		product   uuid.UUID
		warehouse uuid.UUID
	}
	accountCache := make(map[mappingKey]string)
	values := make(map[string]decimal.Decimal)

	for _, layer := range layers {
		if layer.ReceiptDate.After(asOf) {
			continue
		}
		key := mappingKey{product: layer.ProductID, warehouse: layer.WarehouseID}
		account, cached := accountCache[key]
		if !cached {
			resolved, err := e.resolver.Resolve(ctx, companyID, layer.ProductID, layer.WarehouseID, TransactionTypeReceipt)
			switch {
			case err == nil:
				account = resolved.InventoryAccount
			case errors.Is(err, shared.ErrUnresolvedAccount):
				// An unmappable layer cannot be attributed to any account;
				// surface it in logs and keep reconciling the rest.
				e.logger.Warn("cost layer has no resolvable inventory account, excluded from reconciliation",
					zap.String("layer_id", layer.ID.String()),
					zap.String("product_id", layer.ProductID.String()),
					zap.String("warehouse_id", layer.WarehouseID.String()),
				)
				account = ""
			default:
				return nil, err
			}
			accountCache[key] = account
		}
		if account == "" {
			continue
		}
		values[account] = values[account].Add(layer.CostRemaining())
	}
	return values, nil
}

// buildResult computes variance and the reconciliation verdict. The
// tolerance is the larger of one cent and 1% of the inventory value.
func buildResult(account string, glBalance, inventoryValue decimal.Decimal) ReconciliationResult {
	variance := glBalance.Sub(inventoryValue)
	tolerance := decimal.Max(centTolerance, inventoryValue.Abs().Mul(relativeTolerance))

	variancePercent := decimal.Zero
	if !inventoryValue.IsZero() {
		variancePercent = variance.Div(inventoryValue).Mul(decimal.NewFromInt(100)).Round(4)
	}

	return ReconciliationResult{
		AccountCode:     account,
		GLBalance:       glBalance,
		InventoryValue:  inventoryValue,
		Variance:        variance,
		VariancePercent: variancePercent,
		IsReconciled:    variance.Abs().LessThanOrEqual(tolerance),
	}
}

func countUnreconciled(results []ReconciliationResult) int {
	n := 0
	for _, r := range results {
		if !r.IsReconciled {
			n++
		}
	}
	return n
}
