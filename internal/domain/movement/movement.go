package movement

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// MovementType classifies a stock movement
type MovementType string

const (
	MovementTypeReceipt  MovementType = "RECEIPT"
	MovementTypeIssue    MovementType = "ISSUE"
	MovementTypeTransfer MovementType = "TRANSFER"
)

// IsValid checks if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeReceipt, MovementTypeIssue, MovementTypeTransfer:
		return true
	}
	return false
}

// String returns the string representation
func (t MovementType) String() string {
	return string(t)
}

// StockMovement is the read model of a physical movement owned by the
// inventory subsystem. The costing engine never mutates movements; it is
// informed of them through events and loads them by id for posting.
type StockMovement struct {
	shared.BaseEntity
	CompanyID   uuid.UUID    `gorm:"type:uuid;not null;index"`
	Type        MovementType `gorm:"type:varchar(20);not null"`
	WarehouseID uuid.UUID    `gorm:"type:uuid;not null"`

	// DestinationWarehouseID is only set on transfers; WarehouseID is the
	// source leg in that case.
	DestinationWarehouseID *uuid.UUID `gorm:"type:uuid"`

	Lines []StockMovementLine `gorm:"foreignKey:MovementID"`
}

// TableName returns the table name for GORM
func (StockMovement) TableName() string {
	return "stock_movements"
}

// StockMovementLine is one product position on a movement
type StockMovementLine struct {
	shared.BaseEntity
	MovementID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID  uuid.UUID       `gorm:"type:uuid;not null"`
	Qty        decimal.Decimal `gorm:"type:decimal(18,4);not null"`

	// UnitCost is only meaningful on receipts, where it seeds the new
	// cost layer. Issues and transfers are priced by the valuation engine.
	UnitCost decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (StockMovementLine) TableName() string {
	return "stock_movement_lines"
}

// StockMovementRepository loads movements referenced by events
type StockMovementRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*StockMovement, error)
	Save(ctx context.Context, m *StockMovement) error
}
