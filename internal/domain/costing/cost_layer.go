package costing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// CostLayer is one receipt lot: a quantity received at a known unit cost,
// consumed over time by issues and transfers. Layers are append-only per
// (company, product, warehouse); a fully consumed layer is kept for audit
// and aging history, never deleted.
type CostLayer struct {
	shared.BaseEntity
	CompanyID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cost_layer_key,priority:1"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cost_layer_key,priority:2"`
	WarehouseID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_cost_layer_key,priority:3"`

	// FIFOSequence is monotonically increasing per (company, product, warehouse)
	// and defines FIFO consumption order. ReceiptDate is the secondary ordering
	// key for back-dated entries that tie on sequence.
	FIFOSequence int64      `gorm:"not null;uniqueIndex:idx_cost_layer_key,priority:4"`
	ReceiptDate  time.Time  `gorm:"not null;index"`
	ExpiryDate   *time.Time `gorm:"type:timestamp"`

	QtyOriginal  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QtyRemaining decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CostPerUnit  decimal.Decimal `gorm:"type:decimal(18,4);not null"`

	// SourceMovementID links the layer to the stock movement that opened
	// it, making receipt processing idempotent under event redelivery.
	SourceMovementID *uuid.UUID `gorm:"type:uuid;index"`

	// LandedCostAdjustment is an additive per-unit charge (freight, customs)
	// applied after receipt via landed cost allocation.
	LandedCostAdjustment decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0"`
}

// TableName returns the table name for GORM
func (CostLayer) TableName() string {
	return "cost_layers"
}

// NewCostLayer creates a new receipt lot. QtyOriginal and CostPerUnit are
// immutable after creation.
func NewCostLayer(
	companyID, productID, warehouseID uuid.UUID,
	fifoSequence int64,
	qty, costPerUnit decimal.Decimal,
	receiptDate time.Time,
	expiryDate *time.Time,
) (*CostLayer, error) {
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, shared.ErrInvalidQuantity
	}
	if costPerUnit.IsNegative() {
		return nil, shared.NewDomainError("INVALID_COST", "Cost per unit cannot be negative")
	}
	return &CostLayer{
		BaseEntity:           shared.NewBaseEntity(),
		CompanyID:            companyID,
		ProductID:            productID,
		WarehouseID:          warehouseID,
		FIFOSequence:         fifoSequence,
		ReceiptDate:          receiptDate,
		ExpiryDate:           expiryDate,
		QtyOriginal:          qty,
		QtyRemaining:         qty,
		CostPerUnit:          costPerUnit,
		LandedCostAdjustment: decimal.Zero,
	}, nil
}

// EffectiveUnitCost returns the per-unit cost including landed cost adjustments
func (l *CostLayer) EffectiveUnitCost() decimal.Decimal {
	return l.CostPerUnit.Add(l.LandedCostAdjustment)
}

// CostRemaining returns the monetary value still held by this layer
func (l *CostLayer) CostRemaining() decimal.Decimal {
	return l.QtyRemaining.Mul(l.EffectiveUnitCost())
}

// IsOpen returns true if the layer still holds unconsumed quantity
func (l *CostLayer) IsOpen() bool {
	return l.QtyRemaining.GreaterThan(decimal.Zero)
}

// Consume reduces the remaining quantity. Consuming more than remains is a
// caller error and leaves the layer untouched.
func (l *CostLayer) Consume(qty decimal.Decimal) error {
	if qty.IsNegative() {
		return shared.ErrInvalidQuantity
	}
	if qty.IsZero() {
		return nil
	}
	if qty.GreaterThan(l.QtyRemaining) {
		return shared.ErrInsufficientLayerQuantity
	}
	l.QtyRemaining = l.QtyRemaining.Sub(qty)
	l.UpdatedAt = time.Now()
	return nil
}

// ApplyLandedCost adds a per-unit charge to the layer. The delta may be
// negative for landed cost reversals but the effective unit cost must not
// go below zero.
func (l *CostLayer) ApplyLandedCost(perUnitDelta decimal.Decimal) error {
	adjusted := l.LandedCostAdjustment.Add(perUnitDelta)
	if l.CostPerUnit.Add(adjusted).IsNegative() {
		return shared.NewDomainError("INVALID_COST", "Landed cost adjustment would make effective unit cost negative")
	}
	l.LandedCostAdjustment = adjusted
	l.UpdatedAt = time.Now()
	return nil
}
