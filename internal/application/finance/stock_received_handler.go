package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/finance"
	"github.com/stockledger/backend/internal/domain/movement"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// StockReceivedHandler posts goods receipts: every movement line opens a
// cost layer and the voucher debits the resolved inventory accounts against
// the GRNI clearing account.
type StockReceivedHandler struct {
	movements movement.StockMovementRepository
	engine    *costing.ValuationEngine
	resolver  *finance.PostingAccountResolver
	posting   *PostingService
	config    BridgeConfig
	logger    *zap.Logger
}

// NewStockReceivedHandler creates a new handler for stock received events
func NewStockReceivedHandler(
	movements movement.StockMovementRepository,
	engine *costing.ValuationEngine,
	resolver *finance.PostingAccountResolver,
	posting *PostingService,
	config BridgeConfig,
	logger *zap.Logger,
) *StockReceivedHandler {
	return &StockReceivedHandler{
		movements: movements,
		engine:    engine,
		resolver:  resolver,
		posting:   posting,
		config:    config,
		logger:    logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *StockReceivedHandler) EventTypes() []string {
	return []string{movement.EventTypeStockReceived}
}

// Handle processes a stock received event by opening cost layers and
// posting the receipt voucher
func (h *StockReceivedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	ev, ok := event.(*movement.StockReceivedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			movement.EventTypeStockReceived, event.EventType())
	}

	posted, err := h.posting.AlreadyPosted(ctx, finance.SourceTypeStockMovement, ev.StockMovementID)
	if err != nil {
		return err
	}
	if posted {
		h.logger.Debug("receipt already posted, skipping",
			zap.String("movement_id", ev.StockMovementID.String()),
		)
		return nil
	}

	m, err := h.movements.FindByID(ctx, ev.StockMovementID)
	if err != nil {
		return failOrPropagate(ctx, h.posting, ev.CompanyID(), ev.StockMovementID,
			event.EventType(), finance.PostingStateReceived, err)
	}
	if m.Type != movement.MovementTypeReceipt {
		return h.posting.Fail(ctx, m.CompanyID, m.ID, event.EventType(), finance.PostingStateReceived,
			fmt.Errorf("movement %s is %s, expected RECEIPT", m.ID, m.Type))
	}

	voucher := finance.NewJournalVoucher(
		m.CompanyID, finance.SourceTypeStockMovement, m.ID, time.Now(),
		"Goods receipt "+m.ID.String(),
	)

	for _, line := range m.Lines {
		accounts, err := h.resolver.Resolve(ctx, m.CompanyID, line.ProductID, m.WarehouseID, finance.TransactionTypeReceipt)
		if err != nil {
			return failOrPropagate(ctx, h.posting, m.CompanyID, m.ID,
				event.EventType(), finance.PostingStateAccountResolved, err)
		}
		clearing := accounts.ClearingAccount
		if clearing == "" {
			clearing = h.config.DefaultGRNIAccount
		}
		if accounts.InventoryAccount == "" || clearing == "" {
			return h.posting.Fail(ctx, m.CompanyID, m.ID, event.EventType(), finance.PostingStateAccountResolved,
				shared.ErrUnresolvedAccount)
		}

		if _, _, err := h.engine.OpenLayerForMovement(
			ctx, m.ID, m.CompanyID, line.ProductID, m.WarehouseID,
			line.Qty, line.UnitCost, m.CreatedAt, nil,
		); err != nil {
			return failOrPropagate(ctx, h.posting, m.CompanyID, m.ID,
				event.EventType(), finance.PostingStatePriced, err)
		}

		value := line.Qty.Mul(line.UnitCost).RoundBank(2)
		voucher.AddDebit(accounts.InventoryAccount, value, "Inventory receipt")
		voucher.AddCredit(clearing, value, "Goods received not invoiced")
	}

	if err := h.posting.Post(ctx, voucher); err != nil {
		return failOrPropagate(ctx, h.posting, m.CompanyID, m.ID,
			event.EventType(), finance.PostingStatePosted, err)
	}
	return h.posting.Resolve(ctx, m.ID)
}

// Ensure StockReceivedHandler implements shared.EventHandler
var _ shared.EventHandler = (*StockReceivedHandler)(nil)
