package costing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ValuationEngine is the single entry point for everything that creates or
// mutates cost layers: opening receipt lots, pricing and committing
// consumptions, and spreading landed cost charges. All mutation runs under
// the per-(company, product, warehouse) mutation guard; pricing is atomic -
// a failed consumption leaves no partial layer mutation behind.
type ValuationEngine struct {
	layers       CostLayerRepository
	products     ProductCostingRepository
	changes      ValuationMethodChangeRepository
	consumptions MovementConsumptionRepository
	guard        MutationGuard
	factory      *ValuationStrategyFactory
	allocator    *LandedCostAllocator
	logger       *zap.Logger
}

// NewValuationEngine creates a new valuation engine
func NewValuationEngine(
	layers CostLayerRepository,
	products ProductCostingRepository,
	changes ValuationMethodChangeRepository,
	consumptions MovementConsumptionRepository,
	guard MutationGuard,
	logger *zap.Logger,
) *ValuationEngine {
	return &ValuationEngine{
		layers:       layers,
		products:     products,
		changes:      changes,
		consumptions: consumptions,
		guard:        guard,
		factory:      NewValuationStrategyFactory(),
		allocator:    NewLandedCostAllocator(),
		logger:       logger,
	}
}

// OpenLayer creates a new receipt lot with the next FIFO sequence
func (e *ValuationEngine) OpenLayer(
	ctx context.Context,
	companyID, productID, warehouseID uuid.UUID,
	qty, costPerUnit decimal.Decimal,
	receiptDate time.Time,
	expiryDate *time.Time,
) (*CostLayer, error) {
	release := e.guard.Acquire(companyID, productID, warehouseID)
	defer release()

	return e.openLayerLocked(ctx, companyID, productID, warehouseID, qty, costPerUnit, receiptDate, expiryDate, nil)
}

// OpenLayerForMovement creates a receipt lot tied to a stock movement. If
// the movement already opened a layer for this (product, warehouse) the
// existing layer is returned, which makes receipt events replay-safe. A
// replay asking for a different quantity than the recorded lot is rejected.
func (e *ValuationEngine) OpenLayerForMovement(
	ctx context.Context,
	movementID, companyID, productID, warehouseID uuid.UUID,
	qty, costPerUnit decimal.Decimal,
	receiptDate time.Time,
	expiryDate *time.Time,
) (*CostLayer, bool, error) {
	release := e.guard.Acquire(companyID, productID, warehouseID)
	defer release()

	existing, err := e.layers.ListByMovement(ctx, movementID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check layers for movement: %w", err)
	}
	for i := range existing {
		if existing[i].ProductID == productID && existing[i].WarehouseID == warehouseID {
			if !existing[i].QtyOriginal.Equal(qty) {
				return nil, false, shared.NewDomainError("RECEIPT_CONFLICT",
					fmt.Sprintf("Movement %s already opened a layer of %s for product %s, cannot open %s",
						movementID, existing[i].QtyOriginal, productID, qty))
			}
			return &existing[i], false, nil
		}
	}

	layer, err := e.openLayerLocked(ctx, companyID, productID, warehouseID, qty, costPerUnit, receiptDate, expiryDate, &movementID)
	if err != nil {
		return nil, false, err
	}
	return layer, true, nil
}

// openLayerLocked creates and saves a layer; the caller holds the guard.
func (e *ValuationEngine) openLayerLocked(
	ctx context.Context,
	companyID, productID, warehouseID uuid.UUID,
	qty, costPerUnit decimal.Decimal,
	receiptDate time.Time,
	expiryDate *time.Time,
	sourceMovementID *uuid.UUID,
) (*CostLayer, error) {
	seq, err := e.layers.NextFIFOSequence(ctx, companyID, productID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate fifo sequence: %w", err)
	}

	layer, err := NewCostLayer(companyID, productID, warehouseID, seq, qty, costPerUnit, receiptDate, expiryDate)
	if err != nil {
		return nil, err
	}
	layer.SourceMovementID = sourceMovementID
	if err := e.layers.Save(ctx, layer); err != nil {
		return nil, fmt.Errorf("failed to save cost layer: %w", err)
	}

	e.logger.Info("cost layer opened",
		zap.String("company_id", companyID.String()),
		zap.String("product_id", productID.String()),
		zap.String("warehouse_id", warehouseID.String()),
		zap.Int64("fifo_sequence", seq),
		zap.String("qty", qty.String()),
		zap.String("cost_per_unit", costPerUnit.String()),
	)
	return layer, nil
}

// PriceConsumption prices the requested quantity with the product's
// configured valuation method (or an explicit override) and commits the
// consumption against the underlying layers. The whole call is atomic:
// either the full quantity is priced and the layers are reduced, or the
// call fails and nothing changes.
func (e *ValuationEngine) PriceConsumption(
	ctx context.Context,
	companyID, productID, warehouseID uuid.UUID,
	qty decimal.Decimal,
	methodOverride *ValuationMethod,
) (*ConsumptionResult, error) {
	release := e.guard.Acquire(companyID, productID, warehouseID)
	defer release()

	return e.priceAndApplyLocked(ctx, companyID, productID, warehouseID, qty, methodOverride)
}

// PriceConsumptionForMovement prices and commits a consumption on behalf of
// a stock movement line. Repricing the same line with the same quantity
// returns the recorded result without touching the layers again, so posting
// retries never double-spend quantity; repricing with a different quantity
// is a conflict and fails.
func (e *ValuationEngine) PriceConsumptionForMovement(
	ctx context.Context,
	movementID, companyID, productID, warehouseID uuid.UUID,
	qty decimal.Decimal,
) (*ConsumptionResult, error) {
	release := e.guard.Acquire(companyID, productID, warehouseID)
	defer release()

	recorded, err := e.consumptions.FindByMovementLine(ctx, movementID, productID, warehouseID)
	switch {
	case err == nil:
		// A replay must ask for the quantity that was committed. A
		// different quantity means the movement was repriced with other
		// lines, and handing back the recorded result would let the books
		// drift from the layers.
		if !recorded.Qty.Equal(qty) {
			return nil, shared.NewDomainError("CONSUMPTION_CONFLICT",
				fmt.Sprintf("Movement %s already consumed %s of product %s, cannot price %s",
					movementID, recorded.Qty, productID, qty))
		}
		e.logger.Debug("movement line already consumed, returning recorded pricing",
			zap.String("movement_id", movementID.String()),
			zap.String("product_id", productID.String()),
		)
		return recorded.Result()
	case errors.Is(err, shared.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to check movement consumption: %w", err)
	}

	result, err := e.priceAndApplyLocked(ctx, companyID, productID, warehouseID, qty, nil)
	if err != nil {
		return nil, err
	}

	record, err := NewMovementConsumption(companyID, movementID, productID, warehouseID, qty, result)
	if err != nil {
		return nil, err
	}
	if err := e.consumptions.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record movement consumption: %w", err)
	}
	return result, nil
}

// priceAndApplyLocked prices the consumption and commits the takes; the
// caller holds the guard.
func (e *ValuationEngine) priceAndApplyLocked(
	ctx context.Context,
	companyID, productID, warehouseID uuid.UUID,
	qty decimal.Decimal,
	methodOverride *ValuationMethod,
) (*ConsumptionResult, error) {
	result, open, err := e.price(ctx, companyID, productID, warehouseID, qty, methodOverride)
	if err != nil {
		return nil, err
	}
	if len(result.Consumed) == 0 {
		return result, nil
	}

	byID := make(map[uuid.UUID]*CostLayer, len(open))
	for i := range open {
		byID[open[i].ID] = &open[i]
	}
	mutated := make([]*CostLayer, 0, len(result.Consumed))
	for _, c := range result.Consumed {
		layer, ok := byID[c.LayerID]
		if !ok {
			return nil, shared.NewDomainError("LAYER_NOT_FOUND", "Priced layer not found: "+c.LayerID.String())
		}
		if err := layer.Consume(c.QtyTaken); err != nil {
			return nil, err
		}
		mutated = append(mutated, layer)
	}
	if err := e.layers.SaveAll(ctx, mutated); err != nil {
		return nil, fmt.Errorf("failed to persist consumption: %w", err)
	}

	e.logger.Info("consumption priced",
		zap.String("company_id", companyID.String()),
		zap.String("product_id", productID.String()),
		zap.String("warehouse_id", warehouseID.String()),
		zap.String("qty", qty.String()),
		zap.String("method", result.Method.String()),
		zap.String("total_cost", result.TotalCost.String()),
		zap.Int("layers_touched", len(result.Consumed)),
	)
	return result, nil
}

// Simulate prices a consumption without committing it. Used by reporting
// collaborators to compare methods side by side.
func (e *ValuationEngine) Simulate(
	ctx context.Context,
	companyID, productID, warehouseID uuid.UUID,
	qty decimal.Decimal,
	method ValuationMethod,
) (*ConsumptionResult, error) {
	result, _, err := e.price(ctx, companyID, productID, warehouseID, qty, &method)
	return result, err
}

// price loads the open layers and runs the strategy. Returns the priced
// result together with the loaded layers so the caller can apply the takes.
func (e *ValuationEngine) price(
	ctx context.Context,
	companyID, productID, warehouseID uuid.UUID,
	qty decimal.Decimal,
	methodOverride *ValuationMethod,
) (*ConsumptionResult, []CostLayer, error) {
	method := ValuationMethodFIFO
	standardCost := decimal.Zero

	pc, err := e.products.FindByProduct(ctx, companyID, productID)
	switch {
	case err == nil:
		method = pc.Method
		standardCost = pc.StandardCost
	case errors.Is(err, shared.ErrNotFound):
		// Products without explicit costing configuration value at FIFO.
	default:
		return nil, nil, fmt.Errorf("failed to load product costing: %w", err)
	}
	if methodOverride != nil {
		method = *methodOverride
	}

	strategy, err := e.factory.GetStrategy(method, standardCost)
	if err != nil {
		return nil, nil, err
	}

	open, err := e.layers.ListOpen(ctx, companyID, productID, warehouseID, LayerOrderFIFO)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list open layers: %w", err)
	}

	result, err := strategy.PriceConsumption(qty, open)
	if err != nil {
		return nil, nil, err
	}
	return result, open, nil
}

// ApplyLandedCost spreads the charge across the currently-open layers and
// commits the per-unit adjustments. Returns the allocations so the caller
// can post the matching journal entry.
func (e *ValuationEngine) ApplyLandedCost(
	ctx context.Context,
	companyID, productID, warehouseID uuid.UUID,
	totalCharge decimal.Decimal,
	basis AllocationBasis,
) ([]LayerAllocation, error) {
	release := e.guard.Acquire(companyID, productID, warehouseID)
	defer release()

	open, err := e.layers.ListOpen(ctx, companyID, productID, warehouseID, LayerOrderFIFO)
	if err != nil {
		return nil, fmt.Errorf("failed to list open layers: %w", err)
	}

	allocations, err := e.allocator.Allocate(totalCharge, basis, open)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*CostLayer, len(open))
	for i := range open {
		byID[open[i].ID] = &open[i]
	}
	mutated := make([]*CostLayer, 0, len(allocations))
	for _, alloc := range allocations {
		layer, ok := byID[alloc.LayerID]
		if !ok {
			return nil, shared.NewDomainError("LAYER_NOT_FOUND", "Allocated layer not found: "+alloc.LayerID.String())
		}
		if err := layer.ApplyLandedCost(alloc.PerUnitDelta); err != nil {
			return nil, err
		}
		mutated = append(mutated, layer)
	}
	if err := e.layers.SaveAll(ctx, mutated); err != nil {
		return nil, fmt.Errorf("failed to persist landed cost allocation: %w", err)
	}

	e.logger.Info("landed cost allocated",
		zap.String("company_id", companyID.String()),
		zap.String("product_id", productID.String()),
		zap.String("warehouse_id", warehouseID.String()),
		zap.String("total_charge", totalCharge.String()),
		zap.String("basis", basis.String()),
		zap.Int("layers_touched", len(allocations)),
	)
	return allocations, nil
}

// GetCurrentCost returns the effective unit cost of the oldest open layer.
// Fails with INSUFFICIENT_STOCK when nothing is open.
func (e *ValuationEngine) GetCurrentCost(ctx context.Context, companyID, productID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	open, err := e.layers.ListOpen(ctx, companyID, productID, warehouseID, LayerOrderFIFO)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list open layers: %w", err)
	}
	if len(open) == 0 {
		return decimal.Zero, shared.ErrInsufficientStock
	}
	return open[0].EffectiveUnitCost(), nil
}

// ChangeValuationMethod switches the product's valuation method and records
// the auditable change. Historical layers and journal entries are never
// rewritten; only future consumptions use the new method.
func (e *ValuationEngine) ChangeValuationMethod(
	ctx context.Context,
	companyID, productID uuid.UUID,
	newMethod ValuationMethod,
	effectiveDate time.Time,
	reason, approvedBy string,
) (*ValuationMethodChange, error) {
	pc, err := e.products.FindByProduct(ctx, companyID, productID)
	if errors.Is(err, shared.ErrNotFound) {
		pc = NewProductCosting(companyID, productID)
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product costing: %w", err)
	}

	change, err := pc.ChangeMethod(newMethod, effectiveDate, reason, approvedBy)
	if err != nil {
		return nil, err
	}
	if err := e.products.Save(ctx, pc); err != nil {
		return nil, fmt.Errorf("failed to save product costing: %w", err)
	}
	if err := e.changes.Save(ctx, change); err != nil {
		return nil, fmt.Errorf("failed to save valuation method change: %w", err)
	}

	e.logger.Info("valuation method changed",
		zap.String("company_id", companyID.String()),
		zap.String("product_id", productID.String()),
		zap.String("old_method", change.OldMethod.String()),
		zap.String("new_method", change.NewMethod.String()),
		zap.String("approved_by", approvedBy),
	)
	return change, nil
}
