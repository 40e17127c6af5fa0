package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/finance"
	"github.com/stockledger/backend/internal/domain/movement"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// LandedCostHandler posts landed cost adjustments. The event arrives with the
// charge already split per account: the still-on-hand portion debits the
// inventory accounts, the already-sold portion debits COGS, and the full
// charge credits the accrued-charges account named on the event. The layer
// revaluation itself happens upstream through the valuation engine; this
// handler only records the financial side.
type LandedCostHandler struct {
	posting  *PostingService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewLandedCostHandler creates a new handler for landed cost events
func NewLandedCostHandler(posting *PostingService, logger *zap.Logger) *LandedCostHandler {
	return &LandedCostHandler{
		posting:  posting,
		validate: validator.New(),
		logger:   logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *LandedCostHandler) EventTypes() []string {
	return []string{movement.EventTypeLandedCostAdjustment}
}

// Handle processes a landed cost adjustment event
func (h *LandedCostHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	ev, ok := event.(*movement.LandedCostAdjustmentEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			movement.EventTypeLandedCostAdjustment, event.EventType())
	}

	if err := h.validate.Struct(ev); err != nil {
		return h.posting.Fail(ctx, ev.CompanyID(), ev.GoodsReceiptID, event.EventType(),
			finance.PostingStateReceived,
			shared.NewDomainError("INVALID_LANDED_COST_EVENT", err.Error()))
	}

	posted, err := h.posting.AlreadyPosted(ctx, finance.SourceTypeLandedCost, ev.GoodsReceiptID)
	if err != nil {
		return err
	}
	if posted {
		h.logger.Debug("landed cost adjustment already posted, skipping",
			zap.String("goods_receipt_id", ev.GoodsReceiptID.String()),
		)
		return nil
	}

	total := ev.TotalCharge()
	if total.LessThanOrEqual(decimal.Zero) {
		h.logger.Info("landed cost adjustment has no positive charge, skipping",
			zap.String("goods_receipt_id", ev.GoodsReceiptID.String()),
			zap.String("total", total.String()),
		)
		return nil
	}

	memo := "Landed cost adjustment " + ev.GoodsReceiptID.String()
	if ev.Reason != "" {
		memo = memo + ": " + ev.Reason
	}
	voucher := finance.NewJournalVoucher(
		ev.CompanyID(), finance.SourceTypeLandedCost, ev.GoodsReceiptID, time.Now(), memo,
	)

	for _, a := range ev.InventoryByAccount {
		voucher.AddDebit(a.AccountCode, a.Amount, "Landed cost on inventory")
	}
	for _, a := range ev.COGSByAccount {
		voucher.AddDebit(a.AccountCode, a.Amount, "Landed cost on sold goods")
	}
	voucher.AddCredit(ev.CreditAccountCode, total, "Accrued landed charges")

	if err := h.posting.Post(ctx, voucher); err != nil {
		return failOrPropagate(ctx, h.posting, ev.CompanyID(), ev.GoodsReceiptID,
			event.EventType(), finance.PostingStatePosted, err)
	}
	return h.posting.Resolve(ctx, ev.GoodsReceiptID)
}

// Ensure LandedCostHandler implements shared.EventHandler
var _ shared.EventHandler = (*LandedCostHandler)(nil)
