package costing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/costing"
	"go.uber.org/zap"
)

// CostingService is the application facade over the valuation engine. Write
// operations delegate straight to the engine; the method-comparison queries
// run read-only simulations so callers can see what an issue would cost
// under each method without touching any layer.
type CostingService struct {
	engine *costing.ValuationEngine
	logger *zap.Logger
}

// NewCostingService creates a new costing service
func NewCostingService(engine *costing.ValuationEngine, logger *zap.Logger) *CostingService {
	return &CostingService{engine: engine, logger: logger}
}

// GetCurrentCost returns the effective unit cost of the oldest open layer
func (s *CostingService) GetCurrentCost(ctx context.Context, companyID, productID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	return s.engine.GetCurrentCost(ctx, companyID, productID, warehouseID)
}

// CalculateFIFOCost prices a hypothetical consumption under FIFO
func (s *CostingService) CalculateFIFOCost(ctx context.Context, companyID, productID, warehouseID uuid.UUID, qty decimal.Decimal) (*costing.ConsumptionResult, error) {
	return s.engine.Simulate(ctx, companyID, productID, warehouseID, qty, costing.ValuationMethodFIFO)
}

// CalculateLIFOCost prices a hypothetical consumption under LIFO
func (s *CostingService) CalculateLIFOCost(ctx context.Context, companyID, productID, warehouseID uuid.UUID, qty decimal.Decimal) (*costing.ConsumptionResult, error) {
	return s.engine.Simulate(ctx, companyID, productID, warehouseID, qty, costing.ValuationMethodLIFO)
}

// CalculateWeightedAverageCost prices a hypothetical consumption at the
// blended average of the open layers
func (s *CostingService) CalculateWeightedAverageCost(ctx context.Context, companyID, productID, warehouseID uuid.UUID, qty decimal.Decimal) (*costing.ConsumptionResult, error) {
	return s.engine.Simulate(ctx, companyID, productID, warehouseID, qty, costing.ValuationMethodWeightedAverage)
}

// MethodComparison pairs a valuation method with its simulated pricing
type MethodComparison struct {
	Method    costing.ValuationMethod `json:"method"`
	TotalCost decimal.Decimal         `json:"total_cost"`
	UnitCost  decimal.Decimal         `json:"unit_cost"`
}

// CompareMethods simulates the same consumption under FIFO, LIFO and
// weighted average side by side
func (s *CostingService) CompareMethods(ctx context.Context, companyID, productID, warehouseID uuid.UUID, qty decimal.Decimal) ([]MethodComparison, error) {
	methods := []costing.ValuationMethod{
		costing.ValuationMethodFIFO,
		costing.ValuationMethodLIFO,
		costing.ValuationMethodWeightedAverage,
	}

	comparisons := make([]MethodComparison, 0, len(methods))
	for _, method := range methods {
		result, err := s.engine.Simulate(ctx, companyID, productID, warehouseID, qty, method)
		if err != nil {
			return nil, err
		}
		unitCost := decimal.Zero
		if qty.GreaterThan(decimal.Zero) {
			unitCost = result.TotalCost.Div(qty)
		}
		comparisons = append(comparisons, MethodComparison{
			Method:    method,
			TotalCost: result.TotalCost.RoundBank(2),
			UnitCost:  unitCost,
		})
	}
	return comparisons, nil
}

// OpenLayer books a new receipt lot
func (s *CostingService) OpenLayer(
	ctx context.Context,
	companyID, productID, warehouseID uuid.UUID,
	qty, costPerUnit decimal.Decimal,
	receiptDate time.Time,
	expiryDate *time.Time,
) (*costing.CostLayer, error) {
	return s.engine.OpenLayer(ctx, companyID, productID, warehouseID, qty, costPerUnit, receiptDate, expiryDate)
}

// ApplyLandedCost spreads a charge across the open layers of a product
func (s *CostingService) ApplyLandedCost(
	ctx context.Context,
	companyID, productID, warehouseID uuid.UUID,
	totalCharge decimal.Decimal,
	basis costing.AllocationBasis,
) ([]costing.LayerAllocation, error) {
	return s.engine.ApplyLandedCost(ctx, companyID, productID, warehouseID, totalCharge, basis)
}

// ChangeValuationMethod switches a product's valuation method with an audit
// trail entry
func (s *CostingService) ChangeValuationMethod(
	ctx context.Context,
	companyID, productID uuid.UUID,
	newMethod costing.ValuationMethod,
	effectiveDate time.Time,
	reason, approvedBy string,
) (*costing.ValuationMethodChange, error) {
	return s.engine.ChangeValuationMethod(ctx, companyID, productID, newMethod, effectiveDate, reason, approvedBy)
}
