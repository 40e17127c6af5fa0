package costing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/shared/strategy"
)

// AllocationBasis selects the weight used to spread a landed cost charge
// across open layers
type AllocationBasis string

const (
	// AllocationByValue weights each layer by its remaining cost value
	AllocationByValue AllocationBasis = "BY_VALUE"
	// AllocationByQuantity weights each layer by its remaining quantity
	AllocationByQuantity AllocationBasis = "BY_QUANTITY"
)

// IsValid checks if the allocation basis is valid
func (b AllocationBasis) IsValid() bool {
	switch b {
	case AllocationByValue, AllocationByQuantity:
		return true
	}
	return false
}

// String returns the string representation
func (b AllocationBasis) String() string {
	return string(b)
}

// LayerAllocation is the portion of a landed cost charge absorbed by one layer
type LayerAllocation struct {
	LayerID      uuid.UUID       // Layer absorbing the charge
	FIFOSequence int64           // Sequence of the layer, for audit trails
	Weight       decimal.Decimal // The layer's weight at allocation time
	Delta        decimal.Decimal // Total charge absorbed by the layer
	PerUnitDelta decimal.Decimal // Delta divided by remaining quantity
}

// LandedCostAllocator distributes an external charge (freight, customs,
// handling) across currently-open layers, proportionally by value or
// quantity. The sum of the per-layer deltas always equals the total charge
// exactly; rounding residue goes to the largest-weight layer.
type LandedCostAllocator struct {
	strategy.BaseStrategy
}

// NewLandedCostAllocator creates a new landed cost allocator
func NewLandedCostAllocator() *LandedCostAllocator {
	return &LandedCostAllocator{
		BaseStrategy: strategy.NewBaseStrategy(
			"landed_cost_allocation",
			strategy.StrategyTypeAllocation,
			"Distributes a landed cost charge across open lots by value or quantity",
		),
	}
}

// Allocate computes the per-layer deltas for the given charge. Fails with
// ZERO_WEIGHT_BASIS when nothing is open to absorb the charge; the caller
// must post such charges to a variance or expense account instead.
func (a *LandedCostAllocator) Allocate(totalCharge decimal.Decimal, basis AllocationBasis, layers []CostLayer) ([]LayerAllocation, error) {
	if totalCharge.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_CHARGE", "Landed cost charge must be positive")
	}
	if !basis.IsValid() {
		return nil, shared.ErrInvalidInput
	}

	open := openLayers(layers)
	weights := make([]decimal.Decimal, len(open))
	totalWeight := decimal.Zero
	for i, l := range open {
		switch basis {
		case AllocationByQuantity:
			weights[i] = l.QtyRemaining
		default:
			weights[i] = l.CostRemaining()
		}
		totalWeight = totalWeight.Add(weights[i])
	}
	if totalWeight.LessThanOrEqual(decimal.Zero) {
		return nil, shared.ErrZeroWeightBasis
	}

	allocations := make([]LayerAllocation, 0, len(open))
	allocated := decimal.Zero
	largestIdx := 0
	for i, l := range open {
		if weights[i].GreaterThan(weights[largestIdx]) {
			largestIdx = i
		}
		// Banker's rounding to the cent keeps the per-layer deltas stable
		// across reallocation runs.
		delta := totalCharge.Mul(weights[i]).Div(totalWeight).RoundBank(2)
		allocations = append(allocations, LayerAllocation{
			LayerID:      l.ID,
			FIFOSequence: l.FIFOSequence,
			Weight:       weights[i],
			Delta:        delta,
		})
		allocated = allocated.Add(delta)
	}

	// The rounding residue lands on the single largest-weight layer so the
	// deltas sum to the charge exactly.
	residual := totalCharge.Sub(allocated)
	if !residual.IsZero() {
		allocations[largestIdx].Delta = allocations[largestIdx].Delta.Add(residual)
	}

	for i := range allocations {
		qty := open[i].QtyRemaining
		if qty.GreaterThan(decimal.Zero) {
			allocations[i].PerUnitDelta = allocations[i].Delta.Div(qty)
		}
	}

	return allocations, nil
}
