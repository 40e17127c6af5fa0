package costing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumDeltas(allocations []LayerAllocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Delta)
	}
	return total
}

func TestLandedCostAllocator(t *testing.T) {
	a := NewLandedCostAllocator()

	// Three unequal lots so proportional shares do not divide evenly:
	// values 15.00, 35.00, 50.00 (total 100.00), quantities 3, 7, 10.
	unequalLots := func(t *testing.T) []CostLayer {
		t.Helper()
		lots := []CostLayer{
			*newLayer(t, 1, "3", "5.00"),
			*newLayer(t, 2, "7", "5.00"),
			*newLayer(t, 3, "10", "5.00"),
		}
		return lots
	}

	t.Run("by value allocation is exact", func(t *testing.T) {
		lots := unequalLots(t)
		charge := decimal.RequireFromString("10.01")

		allocations, err := a.Allocate(charge, AllocationByValue, lots)
		require.NoError(t, err)
		require.Len(t, allocations, 3)

		// Shares are 15%, 35%, 50% of 10.01; the rounding residue lands on
		// the largest lot so the deltas sum to the charge exactly.
		assert.True(t, sumDeltas(allocations).Equal(charge),
			"allocated %s of %s", sumDeltas(allocations), charge)
		assert.True(t, allocations[0].Delta.Equal(decimal.RequireFromString("1.50")))
		assert.True(t, allocations[1].Delta.Equal(decimal.RequireFromString("3.50")))
		assert.True(t, allocations[2].Delta.Equal(decimal.RequireFromString("5.01")))
	})

	t.Run("by quantity allocation weights remaining units", func(t *testing.T) {
		lots := unequalLots(t)
		// Different unit costs must not matter under BY_QUANTITY
		lots[0].CostPerUnit = decimal.RequireFromString("99.00")
		charge := decimal.RequireFromString("20.00")

		allocations, err := a.Allocate(charge, AllocationByQuantity, lots)
		require.NoError(t, err)
		assert.True(t, allocations[0].Delta.Equal(decimal.RequireFromString("3.00")))
		assert.True(t, allocations[1].Delta.Equal(decimal.RequireFromString("7.00")))
		assert.True(t, allocations[2].Delta.Equal(decimal.RequireFromString("10.00")))
		assert.True(t, sumDeltas(allocations).Equal(charge))
	})

	t.Run("residual cent goes to the largest lot", func(t *testing.T) {
		lots := []CostLayer{
			*newLayer(t, 1, "1", "1.00"),
			*newLayer(t, 2, "1", "1.00"),
			*newLayer(t, 3, "1", "1.00"),
		}
		charge := decimal.RequireFromString("0.10")

		allocations, err := a.Allocate(charge, AllocationByValue, lots)
		require.NoError(t, err)
		assert.True(t, sumDeltas(allocations).Equal(charge))
	})

	t.Run("per-unit delta divides the share by remaining quantity", func(t *testing.T) {
		lots := unequalLots(t)
		allocations, err := a.Allocate(decimal.RequireFromString("10.00"), AllocationByQuantity, lots)
		require.NoError(t, err)
		for i, alloc := range allocations {
			expected := alloc.Delta.Div(lots[i].QtyRemaining)
			assert.True(t, alloc.PerUnitDelta.Equal(expected))
		}
	})

	t.Run("exhausted lots absorb nothing", func(t *testing.T) {
		lots := unequalLots(t)
		lots[2].QtyRemaining = decimal.Zero

		allocations, err := a.Allocate(decimal.RequireFromString("10.00"), AllocationByValue, lots)
		require.NoError(t, err)
		require.Len(t, allocations, 2)
	})

	t.Run("no open lots fails with zero weight basis", func(t *testing.T) {
		lots := unequalLots(t)
		for i := range lots {
			lots[i].QtyRemaining = decimal.Zero
		}
		_, err := a.Allocate(decimal.RequireFromString("10.00"), AllocationByValue, lots)
		assert.ErrorIs(t, err, shared.ErrZeroWeightBasis)
	})

	t.Run("zero value lots fail by value but allocate by quantity", func(t *testing.T) {
		lots := []CostLayer{*newLayer(t, 1, "10", "0")}

		_, err := a.Allocate(decimal.RequireFromString("5.00"), AllocationByValue, lots)
		assert.ErrorIs(t, err, shared.ErrZeroWeightBasis)

		allocations, err := a.Allocate(decimal.RequireFromString("5.00"), AllocationByQuantity, lots)
		require.NoError(t, err)
		assert.True(t, allocations[0].Delta.Equal(decimal.RequireFromString("5.00")))
	})

	t.Run("non-positive charge is rejected", func(t *testing.T) {
		_, err := a.Allocate(decimal.Zero, AllocationByValue, unequalLots(t))
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_CHARGE", domainErr.Code)
	})

	t.Run("unknown basis is rejected", func(t *testing.T) {
		_, err := a.Allocate(decimal.RequireFromString("5.00"), AllocationBasis("BY_WEIGHT"), unequalLots(t))
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}
