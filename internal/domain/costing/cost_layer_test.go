package costing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLayer(t *testing.T, seq int64, qty, cost string) *CostLayer {
	t.Helper()
	layer, err := NewCostLayer(
		uuid.New(), uuid.New(), uuid.New(), seq,
		decimal.RequireFromString(qty), decimal.RequireFromString(cost),
		time.Now(), nil,
	)
	require.NoError(t, err)
	return layer
}

func TestNewCostLayer(t *testing.T) {
	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := NewCostLayer(uuid.New(), uuid.New(), uuid.New(), 1,
			decimal.Zero, decimal.RequireFromString("5"), time.Now(), nil)
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity)

		_, err = NewCostLayer(uuid.New(), uuid.New(), uuid.New(), 1,
			decimal.RequireFromString("-1"), decimal.RequireFromString("5"), time.Now(), nil)
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity)
	})

	t.Run("rejects negative cost", func(t *testing.T) {
		_, err := NewCostLayer(uuid.New(), uuid.New(), uuid.New(), 1,
			decimal.RequireFromString("10"), decimal.RequireFromString("-0.01"), time.Now(), nil)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_COST", domainErr.Code)
	})

	t.Run("zero cost layers are allowed", func(t *testing.T) {
		layer := newLayer(t, 1, "10", "0")
		assert.True(t, layer.CostRemaining().IsZero())
		assert.True(t, layer.IsOpen())
	})
}

func TestCostLayerConsume(t *testing.T) {
	t.Run("reduces remaining quantity", func(t *testing.T) {
		layer := newLayer(t, 1, "10", "5.00")
		require.NoError(t, layer.Consume(decimal.RequireFromString("4")))
		assert.True(t, layer.QtyRemaining.Equal(decimal.RequireFromString("6")))
		assert.True(t, layer.QtyOriginal.Equal(decimal.RequireFromString("10")))
		assert.True(t, layer.CostRemaining().Equal(decimal.RequireFromString("30.00")))
	})

	t.Run("draining the layer closes it", func(t *testing.T) {
		layer := newLayer(t, 1, "10", "5.00")
		require.NoError(t, layer.Consume(decimal.RequireFromString("10")))
		assert.False(t, layer.IsOpen())
	})

	t.Run("over-consumption leaves the layer untouched", func(t *testing.T) {
		layer := newLayer(t, 1, "10", "5.00")
		err := layer.Consume(decimal.RequireFromString("10.0001"))
		assert.ErrorIs(t, err, shared.ErrInsufficientLayerQuantity)
		assert.True(t, layer.QtyRemaining.Equal(decimal.RequireFromString("10")))
	})

	t.Run("zero is a no-op, negative is rejected", func(t *testing.T) {
		layer := newLayer(t, 1, "10", "5.00")
		require.NoError(t, layer.Consume(decimal.Zero))
		assert.True(t, layer.QtyRemaining.Equal(decimal.RequireFromString("10")))

		err := layer.Consume(decimal.RequireFromString("-1"))
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity)
	})
}

func TestCostLayerApplyLandedCost(t *testing.T) {
	t.Run("raises the effective unit cost", func(t *testing.T) {
		layer := newLayer(t, 1, "10", "5.00")
		require.NoError(t, layer.ApplyLandedCost(decimal.RequireFromString("0.25")))
		assert.True(t, layer.EffectiveUnitCost().Equal(decimal.RequireFromString("5.25")))
		assert.True(t, layer.CostRemaining().Equal(decimal.RequireFromString("52.50")))
	})

	t.Run("adjustments accumulate and reversals subtract", func(t *testing.T) {
		layer := newLayer(t, 1, "10", "5.00")
		require.NoError(t, layer.ApplyLandedCost(decimal.RequireFromString("0.30")))
		require.NoError(t, layer.ApplyLandedCost(decimal.RequireFromString("-0.10")))
		assert.True(t, layer.EffectiveUnitCost().Equal(decimal.RequireFromString("5.20")))
	})

	t.Run("effective cost cannot go negative", func(t *testing.T) {
		layer := newLayer(t, 1, "10", "5.00")
		err := layer.ApplyLandedCost(decimal.RequireFromString("-5.01"))
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_COST", domainErr.Code)
		assert.True(t, layer.EffectiveUnitCost().Equal(decimal.RequireFromString("5.00")))
	})
}
