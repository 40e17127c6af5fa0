package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/finance"
	"github.com/stockledger/backend/internal/domain/movement"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// StockTransferHandler moves stock between warehouses at cost. Both legs of
// a transfer carry the same movement id, so whichever event arrives first
// performs the full posting and the other leg becomes a no-op against the
// voucher's source-document key. The goods leave the source at their blended
// layer cost and arrive at the destination as a fresh layer at that same
// unit cost, so no gain or loss is ever created by a transfer.
type StockTransferHandler struct {
	movements movement.StockMovementRepository
	engine    *costing.ValuationEngine
	resolver  *finance.PostingAccountResolver
	posting   *PostingService
	config    BridgeConfig
	logger    *zap.Logger
}

// NewStockTransferHandler creates a new handler for transfer events
func NewStockTransferHandler(
	movements movement.StockMovementRepository,
	engine *costing.ValuationEngine,
	resolver *finance.PostingAccountResolver,
	posting *PostingService,
	config BridgeConfig,
	logger *zap.Logger,
) *StockTransferHandler {
	return &StockTransferHandler{
		movements: movements,
		engine:    engine,
		resolver:  resolver,
		posting:   posting,
		config:    config,
		logger:    logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *StockTransferHandler) EventTypes() []string {
	return []string{movement.EventTypeStockTransferOut, movement.EventTypeStockTransferIn}
}

// Handle processes either leg of a warehouse transfer
func (h *StockTransferHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var movementID uuid.UUID
	switch ev := event.(type) {
	case *movement.StockTransferOutEvent:
		movementID = ev.StockMovementID
	case *movement.StockTransferInEvent:
		movementID = ev.StockMovementID
	default:
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	posted, err := h.posting.AlreadyPosted(ctx, finance.SourceTypeStockMovement, movementID)
	if err != nil {
		return err
	}
	if posted {
		h.logger.Debug("transfer already posted, skipping",
			zap.String("movement_id", movementID.String()),
			zap.String("event_type", event.EventType()),
		)
		return nil
	}

	m, err := h.movements.FindByID(ctx, movementID)
	if err != nil {
		return failOrPropagate(ctx, h.posting, event.CompanyID(), movementID,
			event.EventType(), finance.PostingStateReceived, err)
	}
	if m.Type != movement.MovementTypeTransfer {
		return h.posting.Fail(ctx, m.CompanyID, m.ID, event.EventType(), finance.PostingStateReceived,
			fmt.Errorf("movement %s is %s, expected TRANSFER", m.ID, m.Type))
	}
	if m.DestinationWarehouseID == nil {
		return h.posting.Fail(ctx, m.CompanyID, m.ID, event.EventType(), finance.PostingStateReceived,
			shared.NewDomainError("MISSING_DESTINATION", "Transfer movement has no destination warehouse"))
	}
	destWarehouseID := *m.DestinationWarehouseID

	voucher := finance.NewJournalVoucher(
		m.CompanyID, finance.SourceTypeStockMovement, m.ID, time.Now(),
		"Warehouse transfer "+m.ID.String(),
	)

	for _, line := range aggregateLines(m.Lines) {
		// A zero-quantity line moves nothing and has no unit cost to carry
		// to the destination.
		if line.Qty.IsZero() {
			h.logger.Debug("transfer line has no quantity, skipping",
				zap.String("movement_id", m.ID.String()),
				zap.String("product_id", line.ProductID.String()),
			)
			continue
		}

		sourceAccounts, err := h.resolver.Resolve(ctx, m.CompanyID, line.ProductID, m.WarehouseID, finance.TransactionTypeTransfer)
		if err != nil {
			return failOrPropagate(ctx, h.posting, m.CompanyID, m.ID,
				event.EventType(), finance.PostingStateAccountResolved, err)
		}
		destAccounts, err := h.resolver.Resolve(ctx, m.CompanyID, line.ProductID, destWarehouseID, finance.TransactionTypeTransfer)
		if err != nil {
			return failOrPropagate(ctx, h.posting, m.CompanyID, m.ID,
				event.EventType(), finance.PostingStateAccountResolved, err)
		}
		if sourceAccounts.InventoryAccount == "" || destAccounts.InventoryAccount == "" {
			return h.posting.Fail(ctx, m.CompanyID, m.ID, event.EventType(), finance.PostingStateAccountResolved,
				shared.ErrUnresolvedAccount)
		}

		result, err := h.engine.PriceConsumptionForMovement(
			ctx, m.ID, m.CompanyID, line.ProductID, m.WarehouseID, line.Qty,
		)
		if err != nil {
			return failOrPropagate(ctx, h.posting, m.CompanyID, m.ID,
				event.EventType(), finance.PostingStatePriced, err)
		}

		// The physical cost of the consumed lots travels with the goods.
		physical := result.TotalCost.Add(result.Variance)
		value := physical.RoundBank(2)
		unitCost := physical.Div(line.Qty)

		if _, _, err := h.engine.OpenLayerForMovement(
			ctx, m.ID, m.CompanyID, line.ProductID, destWarehouseID,
			line.Qty, unitCost, m.CreatedAt, nil,
		); err != nil {
			return failOrPropagate(ctx, h.posting, m.CompanyID, m.ID,
				event.EventType(), finance.PostingStatePriced, err)
		}

		inTransit := sourceAccounts.ClearingAccount
		if inTransit == "" {
			inTransit = h.config.DefaultInTransitAccount
		}
		if inTransit != "" && inTransit != sourceAccounts.InventoryAccount {
			voucher.AddDebit(inTransit, value, "Stock in transit")
			voucher.AddCredit(sourceAccounts.InventoryAccount, value, "Transfer out")
			voucher.AddDebit(destAccounts.InventoryAccount, value, "Transfer in")
			voucher.AddCredit(inTransit, value, "Stock in transit cleared")
		} else {
			voucher.AddDebit(destAccounts.InventoryAccount, value, "Transfer in")
			voucher.AddCredit(sourceAccounts.InventoryAccount, value, "Transfer out")
		}
	}

	// Zero-value lines leave nothing to post.
	if len(voucher.Lines) == 0 {
		h.logger.Info("transfer has no net financial effect, skipping voucher",
			zap.String("movement_id", m.ID.String()),
		)
		return h.posting.Resolve(ctx, m.ID)
	}

	if err := h.posting.Post(ctx, voucher); err != nil {
		return failOrPropagate(ctx, h.posting, m.CompanyID, m.ID,
			event.EventType(), finance.PostingStatePosted, err)
	}
	return h.posting.Resolve(ctx, m.ID)
}

// Ensure StockTransferHandler implements shared.EventHandler
var _ shared.EventHandler = (*StockTransferHandler)(nil)
