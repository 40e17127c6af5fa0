package costing

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/shared/strategy"
)

// LayerConsumption records how much was taken from a single layer and at
// which unit cost it was priced.
type LayerConsumption struct {
	LayerID      uuid.UUID       // ID of the consumed layer
	FIFOSequence int64           // Sequence of the layer, for audit trails
	QtyTaken     decimal.Decimal // Quantity taken from this layer
	UnitCost     decimal.Decimal // Unit cost the quantity was priced at
	Cost         decimal.Decimal // QtyTaken * UnitCost
}

// ConsumptionResult is the complete pricing of one consumption request.
// Either the full requested quantity is covered or the pricing fails;
// partial results are never produced.
type ConsumptionResult struct {
	Consumed  []LayerConsumption // Per-layer takes in consumption order
	TotalCost decimal.Decimal    // Monetary value of the consumption
	Method    ValuationMethod    // Method that produced the pricing

	// Variance is only set by STANDARD_COST: physical FIFO cost minus the
	// standard-priced total (the purchase price variance). Zero otherwise.
	Variance decimal.Decimal
}

// TotalQty returns the sum of quantities taken across all layers
func (r *ConsumptionResult) TotalQty() decimal.Decimal {
	total := decimal.Zero
	for _, c := range r.Consumed {
		total = total.Add(c.QtyTaken)
	}
	return total
}

// ValuationStrategy prices a consumption against a set of open layers.
// Strategies never mutate the layers they are given; applying the resulting
// takes to storage is the engine's job.
type ValuationStrategy interface {
	strategy.Strategy
	// Method returns the valuation method implemented by this strategy
	Method() ValuationMethod
	// PriceConsumption prices the requested quantity against the open layers
	PriceConsumption(qty decimal.Decimal, layers []CostLayer) (*ConsumptionResult, error)
}

// sortLayersFIFO orders layers oldest-first: fifo_sequence, then receipt
// date for back-dated entries that tie on sequence, then creation order
// for full determinism.
func sortLayersFIFO(layers []CostLayer) []CostLayer {
	sorted := make([]CostLayer, len(layers))
	copy(sorted, layers)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].FIFOSequence != sorted[j].FIFOSequence {
			return sorted[i].FIFOSequence < sorted[j].FIFOSequence
		}
		if !sorted[i].ReceiptDate.Equal(sorted[j].ReceiptDate) {
			return sorted[i].ReceiptDate.Before(sorted[j].ReceiptDate)
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	return sorted
}

// sortLayersLIFO orders layers newest-first (reverse of FIFO order)
func sortLayersLIFO(layers []CostLayer) []CostLayer {
	sorted := sortLayersFIFO(layers)
	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}
	return sorted
}

// openLayers filters to layers that still hold quantity
func openLayers(layers []CostLayer) []CostLayer {
	open := make([]CostLayer, 0, len(layers))
	for _, l := range layers {
		if l.IsOpen() {
			open = append(open, l)
		}
	}
	return open
}

// totalRemaining sums the remaining quantity across layers
func totalRemaining(layers []CostLayer) decimal.Decimal {
	total := decimal.Zero
	for _, l := range layers {
		total = total.Add(l.QtyRemaining)
	}
	return total
}

// validateRequestedQty enforces the shared edge cases: negative quantity is
// rejected, zero is a no-op signalled by a true second return.
func validateRequestedQty(qty decimal.Decimal) (noop bool, err error) {
	if qty.IsNegative() {
		return false, shared.ErrInvalidQuantity
	}
	return qty.IsZero(), nil
}

// emptyResult returns a zero-cost result for qty = 0 requests
func emptyResult(method ValuationMethod) *ConsumptionResult {
	return &ConsumptionResult{
		Consumed:  make([]LayerConsumption, 0),
		TotalCost: decimal.Zero,
		Method:    method,
		Variance:  decimal.Zero,
	}
}

// greedyConsume takes from the pre-sorted layers until qty is satisfied.
// Each take is priced at the layer's effective unit cost. The caller has
// already verified that the layers hold enough quantity.
func greedyConsume(qty decimal.Decimal, sorted []CostLayer) []LayerConsumption {
	consumed := make([]LayerConsumption, 0)
	remaining := qty
	for _, layer := range sorted {
		if remaining.IsZero() {
			break
		}
		if layer.QtyRemaining.LessThanOrEqual(decimal.Zero) {
			continue
		}
		take := decimal.Min(remaining, layer.QtyRemaining)
		unitCost := layer.EffectiveUnitCost()
		consumed = append(consumed, LayerConsumption{
			LayerID:      layer.ID,
			FIFOSequence: layer.FIFOSequence,
			QtyTaken:     take,
			UnitCost:     unitCost,
			Cost:         take.Mul(unitCost),
		})
		remaining = remaining.Sub(take)
	}
	return consumed
}

// sumCost totals the per-layer costs
func sumCost(consumed []LayerConsumption) decimal.Decimal {
	total := decimal.Zero
	for _, c := range consumed {
		total = total.Add(c.Cost)
	}
	return total
}

// FIFOValuationStrategy consumes the oldest layers first
type FIFOValuationStrategy struct {
	strategy.BaseStrategy
}

// NewFIFOValuationStrategy creates a new FIFO valuation strategy
func NewFIFOValuationStrategy() *FIFOValuationStrategy {
	return &FIFOValuationStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"fifo_valuation",
			strategy.StrategyTypeValuation,
			"FIFO valuation - consumes oldest receipt lots first",
		),
	}
}

// Method returns the valuation method
func (s *FIFOValuationStrategy) Method() ValuationMethod {
	return ValuationMethodFIFO
}

// PriceConsumption prices the quantity by consuming oldest layers first
func (s *FIFOValuationStrategy) PriceConsumption(qty decimal.Decimal, layers []CostLayer) (*ConsumptionResult, error) {
	noop, err := validateRequestedQty(qty)
	if err != nil {
		return nil, err
	}
	if noop {
		return emptyResult(ValuationMethodFIFO), nil
	}

	open := openLayers(layers)
	if totalRemaining(open).LessThan(qty) {
		return nil, shared.ErrInsufficientStock
	}

	consumed := greedyConsume(qty, sortLayersFIFO(open))
	return &ConsumptionResult{
		Consumed:  consumed,
		TotalCost: sumCost(consumed),
		Method:    ValuationMethodFIFO,
		Variance:  decimal.Zero,
	}, nil
}

// LIFOValuationStrategy consumes the newest layers first
type LIFOValuationStrategy struct {
	strategy.BaseStrategy
}

// NewLIFOValuationStrategy creates a new LIFO valuation strategy
func NewLIFOValuationStrategy() *LIFOValuationStrategy {
	return &LIFOValuationStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"lifo_valuation",
			strategy.StrategyTypeValuation,
			"LIFO valuation - consumes newest receipt lots first",
		),
	}
}

// Method returns the valuation method
func (s *LIFOValuationStrategy) Method() ValuationMethod {
	return ValuationMethodLIFO
}

// PriceConsumption prices the quantity by consuming newest layers first
func (s *LIFOValuationStrategy) PriceConsumption(qty decimal.Decimal, layers []CostLayer) (*ConsumptionResult, error) {
	noop, err := validateRequestedQty(qty)
	if err != nil {
		return nil, err
	}
	if noop {
		return emptyResult(ValuationMethodLIFO), nil
	}

	open := openLayers(layers)
	if totalRemaining(open).LessThan(qty) {
		return nil, shared.ErrInsufficientStock
	}

	consumed := greedyConsume(qty, sortLayersLIFO(open))
	return &ConsumptionResult{
		Consumed:  consumed,
		TotalCost: sumCost(consumed),
		Method:    ValuationMethodLIFO,
		Variance:  decimal.Zero,
	}, nil
}

// WeightedAverageValuationStrategy prices at the blended unit cost over all
// open layers at the instant of consumption. The blended cost is recomputed
// on every call rather than cached; under concurrent mutation a cached
// average cannot be trusted.
type WeightedAverageValuationStrategy struct {
	strategy.BaseStrategy
}

// NewWeightedAverageValuationStrategy creates a new weighted average strategy
func NewWeightedAverageValuationStrategy() *WeightedAverageValuationStrategy {
	return &WeightedAverageValuationStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"weighted_average_valuation",
			strategy.StrategyTypeValuation,
			"Weighted average valuation - prices at the blended cost of all open lots",
		),
	}
}

// Method returns the valuation method
func (s *WeightedAverageValuationStrategy) Method() ValuationMethod {
	return ValuationMethodWeightedAverage
}

// PriceConsumption prices at the blended cost, consuming oldest layers
// first for quantity bookkeeping. The blended cost need not match any
// single layer's unit cost.
func (s *WeightedAverageValuationStrategy) PriceConsumption(qty decimal.Decimal, layers []CostLayer) (*ConsumptionResult, error) {
	noop, err := validateRequestedQty(qty)
	if err != nil {
		return nil, err
	}
	if noop {
		return emptyResult(ValuationMethodWeightedAverage), nil
	}

	open := openLayers(layers)
	totalQty := totalRemaining(open)
	if totalQty.LessThan(qty) {
		return nil, shared.ErrInsufficientStock
	}

	totalValue := decimal.Zero
	for _, l := range open {
		totalValue = totalValue.Add(l.CostRemaining())
	}
	blendedUnitCost := totalValue.Div(totalQty)

	consumed := greedyConsume(qty, sortLayersFIFO(open))
	for i := range consumed {
		consumed[i].UnitCost = blendedUnitCost
		consumed[i].Cost = consumed[i].QtyTaken.Mul(blendedUnitCost)
	}

	return &ConsumptionResult{
		Consumed:  consumed,
		TotalCost: qty.Mul(blendedUnitCost),
		Method:    ValuationMethodWeightedAverage,
		Variance:  decimal.Zero,
	}, nil
}

// StandardCostValuationStrategy prices at the product's configured standard
// cost. Physical layers are still consumed in FIFO order for quantity
// tracking; the gap between the physical FIFO cost and the standard-priced
// total is reported as the purchase price variance.
type StandardCostValuationStrategy struct {
	strategy.BaseStrategy
	standardCost decimal.Decimal
}

// NewStandardCostValuationStrategy creates a standard cost strategy priced
// at the given per-unit standard cost
func NewStandardCostValuationStrategy(standardCost decimal.Decimal) *StandardCostValuationStrategy {
	return &StandardCostValuationStrategy{
		BaseStrategy: strategy.NewBaseStrategy(
			"standard_cost_valuation",
			strategy.StrategyTypeValuation,
			"Standard cost valuation - prices at the configured standard cost, tracks variance against FIFO",
		),
		standardCost: standardCost,
	}
}

// Method returns the valuation method
func (s *StandardCostValuationStrategy) Method() ValuationMethod {
	return ValuationMethodStandardCost
}

// StandardCost returns the configured per-unit standard cost
func (s *StandardCostValuationStrategy) StandardCost() decimal.Decimal {
	return s.standardCost
}

// PriceConsumption consumes physical layers FIFO and prices at standard cost
func (s *StandardCostValuationStrategy) PriceConsumption(qty decimal.Decimal, layers []CostLayer) (*ConsumptionResult, error) {
	noop, err := validateRequestedQty(qty)
	if err != nil {
		return nil, err
	}
	if noop {
		return emptyResult(ValuationMethodStandardCost), nil
	}
	if s.standardCost.IsNegative() {
		return nil, shared.NewDomainError("INVALID_COST", "Standard cost cannot be negative")
	}

	open := openLayers(layers)
	if totalRemaining(open).LessThan(qty) {
		return nil, shared.ErrInsufficientStock
	}

	// Per-layer takes keep the physical unit cost for the audit trail;
	// the voucher amount comes from TotalCost.
	consumed := greedyConsume(qty, sortLayersFIFO(open))
	physicalCost := sumCost(consumed)
	standardTotal := qty.Mul(s.standardCost)

	return &ConsumptionResult{
		Consumed:  consumed,
		TotalCost: standardTotal,
		Method:    ValuationMethodStandardCost,
		Variance:  physicalCost.Sub(standardTotal),
	}, nil
}

// ValuationStrategyFactory creates valuation strategies by method
type ValuationStrategyFactory struct{}

// NewValuationStrategyFactory creates a new factory
func NewValuationStrategyFactory() *ValuationStrategyFactory {
	return &ValuationStrategyFactory{}
}

// GetStrategy returns the strategy for the given method. The standard cost
// is only consulted by STANDARD_COST.
func (f *ValuationStrategyFactory) GetStrategy(method ValuationMethod, standardCost decimal.Decimal) (ValuationStrategy, error) {
	switch method {
	case ValuationMethodFIFO:
		return NewFIFOValuationStrategy(), nil
	case ValuationMethodLIFO:
		return NewLIFOValuationStrategy(), nil
	case ValuationMethodWeightedAverage:
		return NewWeightedAverageValuationStrategy(), nil
	case ValuationMethodStandardCost:
		return NewStandardCostValuationStrategy(standardCost), nil
	default:
		return nil, shared.NewDomainError("INVALID_METHOD", "Unknown valuation method: "+method.String())
	}
}
