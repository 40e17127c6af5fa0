package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/finance"
	"github.com/stockledger/backend/internal/domain/movement"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// StockShippedHandler posts issues: each movement line is priced by the
// valuation engine, COGS is debited and inventory credited, with lines to
// the same account merged. Under standard costing the purchase price
// variance goes to the variance account when one is configured, otherwise
// it folds into COGS.
type StockShippedHandler struct {
	movements movement.StockMovementRepository
	engine    *costing.ValuationEngine
	resolver  *finance.PostingAccountResolver
	posting   *PostingService
	logger    *zap.Logger
}

// NewStockShippedHandler creates a new handler for stock shipped events
func NewStockShippedHandler(
	movements movement.StockMovementRepository,
	engine *costing.ValuationEngine,
	resolver *finance.PostingAccountResolver,
	posting *PostingService,
	logger *zap.Logger,
) *StockShippedHandler {
	return &StockShippedHandler{
		movements: movements,
		engine:    engine,
		resolver:  resolver,
		posting:   posting,
		logger:    logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *StockShippedHandler) EventTypes() []string {
	return []string{movement.EventTypeStockShipped}
}

// Handle processes a stock shipped event by pricing the consumption and
// posting the issue voucher
func (h *StockShippedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	ev, ok := event.(*movement.StockShippedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			movement.EventTypeStockShipped, event.EventType())
	}

	posted, err := h.posting.AlreadyPosted(ctx, finance.SourceTypeStockMovement, ev.StockMovementID)
	if err != nil {
		return err
	}
	if posted {
		h.logger.Debug("issue already posted, skipping",
			zap.String("movement_id", ev.StockMovementID.String()),
		)
		return nil
	}

	m, err := h.movements.FindByID(ctx, ev.StockMovementID)
	if err != nil {
		return failOrPropagate(ctx, h.posting, ev.CompanyID(), ev.StockMovementID,
			event.EventType(), finance.PostingStateReceived, err)
	}
	if m.Type != movement.MovementTypeIssue {
		return h.posting.Fail(ctx, m.CompanyID, m.ID, event.EventType(), finance.PostingStateReceived,
			fmt.Errorf("movement %s is %s, expected ISSUE", m.ID, m.Type))
	}

	voucher := finance.NewJournalVoucher(
		m.CompanyID, finance.SourceTypeStockMovement, m.ID, time.Now(),
		"Stock issue "+m.ID.String(),
	)

	for _, line := range aggregateLines(m.Lines) {
		// Resolve before pricing so an unresolvable movement fails without
		// touching any layer.
		accounts, err := h.resolver.Resolve(ctx, m.CompanyID, line.ProductID, m.WarehouseID, finance.TransactionTypeIssue)
		if err != nil {
			return failOrPropagate(ctx, h.posting, m.CompanyID, m.ID,
				event.EventType(), finance.PostingStateAccountResolved, err)
		}
		if accounts.InventoryAccount == "" || accounts.COGSAccount == "" {
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

		priced := result.TotalCost.RoundBank(2)
		physical := result.TotalCost.Add(result.Variance).RoundBank(2)
		varianceAmount := physical.Sub(priced)

		cogsAmount := priced
		if varianceAmount.IsZero() || accounts.VarianceAccount == "" {
			cogsAmount = physical
			varianceAmount = decimal.Zero
		}

		voucher.AddDebit(accounts.COGSAccount, cogsAmount, "Cost of goods sold")
		if varianceAmount.GreaterThan(decimal.Zero) {
			voucher.AddDebit(accounts.VarianceAccount, varianceAmount, "Purchase price variance")
		} else if varianceAmount.LessThan(decimal.Zero) {
			voucher.AddCredit(accounts.VarianceAccount, varianceAmount.Neg(), "Purchase price variance")
		}
		voucher.AddCredit(accounts.InventoryAccount, physical, "Inventory issue")
	}

	if err := h.posting.Post(ctx, voucher); err != nil {
		return failOrPropagate(ctx, h.posting, m.CompanyID, m.ID,
			event.EventType(), finance.PostingStatePosted, err)
	}
	return h.posting.Resolve(ctx, m.ID)
}

// Ensure StockShippedHandler implements shared.EventHandler
var _ shared.EventHandler = (*StockShippedHandler)(nil)
