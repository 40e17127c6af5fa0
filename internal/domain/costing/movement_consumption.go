package costing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// MovementConsumption records the committed consumption for one product
// position of a movement, one record per (movement, product, warehouse).
// It is the idempotency anchor for issues and transfers: pricing the same
// position again with the same quantity returns the recorded result instead
// of spending layer quantity twice.
type MovementConsumption struct {
	shared.BaseEntity
	CompanyID   uuid.UUID `gorm:"type:uuid;not null;index"`
	MovementID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_movement_consumption,priority:1"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_movement_consumption,priority:2"`
	WarehouseID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_movement_consumption,priority:3"`

	Qty       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TotalCost decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Variance  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Method    ValuationMethod `gorm:"type:varchar(32);not null"`

	// ConsumedDetail is the per-layer take list serialized as JSON, kept
	// for audit trails and replay.
	ConsumedDetail string `gorm:"type:text;not null"`
}

// TableName returns the table name for GORM
func (MovementConsumption) TableName() string {
	return "movement_consumptions"
}

// NewMovementConsumption snapshots a priced consumption for a movement line
func NewMovementConsumption(companyID, movementID, productID, warehouseID uuid.UUID, qty decimal.Decimal, result *ConsumptionResult) (*MovementConsumption, error) {
	detail, err := json.Marshal(result.Consumed)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize consumption detail: %w", err)
	}
	return &MovementConsumption{
		BaseEntity:     shared.NewBaseEntity(),
		CompanyID:      companyID,
		MovementID:     movementID,
		ProductID:      productID,
		WarehouseID:    warehouseID,
		Qty:            qty,
		TotalCost:      result.TotalCost,
		Variance:       result.Variance,
		Method:         result.Method,
		ConsumedDetail: string(detail),
	}, nil
}

// Result reconstructs the consumption result recorded for this line
func (mc *MovementConsumption) Result() (*ConsumptionResult, error) {
	var consumed []LayerConsumption
	if err := json.Unmarshal([]byte(mc.ConsumedDetail), &consumed); err != nil {
		return nil, fmt.Errorf("failed to deserialize consumption detail: %w", err)
	}
	return &ConsumptionResult{
		Consumed:  consumed,
		TotalCost: mc.TotalCost,
		Method:    mc.Method,
		Variance:  mc.Variance,
	}, nil
}

// MovementConsumptionRepository stores committed consumptions per movement line
type MovementConsumptionRepository interface {
	// FindByMovementLine returns the recorded consumption for the movement
	// line, or shared.ErrNotFound when none exists
	FindByMovementLine(ctx context.Context, movementID, productID, warehouseID uuid.UUID) (*MovementConsumption, error)
	Save(ctx context.Context, mc *MovementConsumption) error
}
