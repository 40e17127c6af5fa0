package movement

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// Event types emitted by the inventory subsystem and consumed by the
// finance integration bridge
const (
	EventTypeStockReceived        = "stock.received"
	EventTypeStockShipped         = "stock.shipped"
	EventTypeStockTransferOut     = "stock.transfer_out"
	EventTypeStockTransferIn      = "stock.transfer_in"
	EventTypeLandedCostAdjustment = "stock.landed_cost_adjustment"
)

// StockReceivedEvent signals that a RECEIPT movement has been booked
type StockReceivedEvent struct {
	shared.BaseDomainEvent
	StockMovementID uuid.UUID `json:"stock_movement_id"`
}

// NewStockReceivedEvent creates a new stock received event
func NewStockReceivedEvent(companyID, stockMovementID uuid.UUID) *StockReceivedEvent {
	return &StockReceivedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockReceived, "StockMovement", stockMovementID, companyID),
		StockMovementID: stockMovementID,
	}
}

// StockShippedEvent signals that an ISSUE movement has been booked
type StockShippedEvent struct {
	shared.BaseDomainEvent
	StockMovementID uuid.UUID `json:"stock_movement_id"`
}

// NewStockShippedEvent creates a new stock shipped event
func NewStockShippedEvent(companyID, stockMovementID uuid.UUID) *StockShippedEvent {
	return &StockShippedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockShipped, "StockMovement", stockMovementID, companyID),
		StockMovementID: stockMovementID,
	}
}

// StockTransferOutEvent signals the outbound leg of a transfer. Both legs
// carry the same stock movement id; the bridge posts the transfer once.
type StockTransferOutEvent struct {
	shared.BaseDomainEvent
	StockMovementID uuid.UUID `json:"stock_movement_id"`
}

// NewStockTransferOutEvent creates a new transfer-out event
func NewStockTransferOutEvent(companyID, stockMovementID uuid.UUID) *StockTransferOutEvent {
	return &StockTransferOutEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockTransferOut, "StockMovement", stockMovementID, companyID),
		StockMovementID: stockMovementID,
	}
}

// StockTransferInEvent signals the inbound leg of a transfer
type StockTransferInEvent struct {
	shared.BaseDomainEvent
	StockMovementID uuid.UUID `json:"stock_movement_id"`
}

// NewStockTransferInEvent creates a new transfer-in event
func NewStockTransferInEvent(companyID, stockMovementID uuid.UUID) *StockTransferInEvent {
	return &StockTransferInEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockTransferIn, "StockMovement", stockMovementID, companyID),
		StockMovementID: stockMovementID,
	}
}

// AccountAmount is one per-account portion of a landed cost charge
type AccountAmount struct {
	AccountCode string          `json:"account_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
}

// LandedCostAdjustmentEvent carries an already-allocated landed cost charge:
// per-account debit amounts for inventory and COGS plus the accrued-charges
// credit account.
type LandedCostAdjustmentEvent struct {
	shared.BaseDomainEvent
	GoodsReceiptID     uuid.UUID       `json:"goods_receipt_id" validate:"required"`
	InventoryByAccount []AccountAmount `json:"inventory_by_account" validate:"dive"`
	COGSByAccount      []AccountAmount `json:"cogs_by_account" validate:"dive"`
	CreditAccountCode  string          `json:"credit_account_code" validate:"required"`
	Reason             string          `json:"reason"`
}

// NewLandedCostAdjustmentEvent creates a new landed cost adjustment event
func NewLandedCostAdjustmentEvent(
	companyID, goodsReceiptID uuid.UUID,
	inventoryByAccount, cogsByAccount []AccountAmount,
	creditAccountCode, reason string,
) *LandedCostAdjustmentEvent {
	return &LandedCostAdjustmentEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeLandedCostAdjustment, "GoodsReceipt", goodsReceiptID, companyID),
		GoodsReceiptID:     goodsReceiptID,
		InventoryByAccount: inventoryByAccount,
		COGSByAccount:      cogsByAccount,
		CreditAccountCode:  creditAccountCode,
		Reason:             reason,
	}
}

// TotalCharge sums all per-account amounts on the event
func (e *LandedCostAdjustmentEvent) TotalCharge() decimal.Decimal {
	total := decimal.Zero
	for _, a := range e.InventoryByAccount {
		total = total.Add(a.Amount)
	}
	for _, a := range e.COGSByAccount {
		total = total.Add(a.Amount)
	}
	return total
}
