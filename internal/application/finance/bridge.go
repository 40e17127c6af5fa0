package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/finance"
	"github.com/stockledger/backend/internal/domain/movement"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// FinanceIntegrationBridge wires the inventory event stream into the general
// ledger. It owns the four posting handlers and the dead-letter retry path.
type FinanceIntegrationBridge struct {
	received    *StockReceivedHandler
	shipped     *StockShippedHandler
	transfer    *StockTransferHandler
	landedCost  *LandedCostHandler
	posting     *PostingService
	deadLetters finance.PostingDeadLetterRepository
	publisher   shared.EventPublisher
	logger      *zap.Logger
}

// NewFinanceIntegrationBridge creates the bridge and its handlers
func NewFinanceIntegrationBridge(
	movements movement.StockMovementRepository,
	engine *costing.ValuationEngine,
	resolver *finance.PostingAccountResolver,
	journal finance.JournalRepository,
	deadLetters finance.PostingDeadLetterRepository,
	publisher shared.EventPublisher,
	config BridgeConfig,
	logger *zap.Logger,
) *FinanceIntegrationBridge {
	posting := NewPostingService(journal, deadLetters, logger)
	return &FinanceIntegrationBridge{
		received:    NewStockReceivedHandler(movements, engine, resolver, posting, config, logger),
		shipped:     NewStockShippedHandler(movements, engine, resolver, posting, logger),
		transfer:    NewStockTransferHandler(movements, engine, resolver, posting, config, logger),
		landedCost:  NewLandedCostHandler(posting, logger),
		posting:     posting,
		deadLetters: deadLetters,
		publisher:   publisher,
		logger:      logger,
	}
}

// Register subscribes every bridge handler on the event bus
func (b *FinanceIntegrationBridge) Register(bus shared.EventSubscriber) {
	for _, h := range b.Handlers() {
		bus.Subscribe(h, h.EventTypes()...)
	}
	b.logger.Info("finance integration bridge registered",
		zap.Int("handlers", len(b.Handlers())),
	)
}

// Handlers returns the posting handlers so callers can decorate them, for
// example with event-id idempotency, before subscribing
func (b *FinanceIntegrationBridge) Handlers() []shared.EventHandler {
	return []shared.EventHandler{b.received, b.shipped, b.transfer, b.landedCost}
}

// ListDeadLetters returns the open posting failures of a company
func (b *FinanceIntegrationBridge) ListDeadLetters(ctx context.Context, companyID uuid.UUID) ([]finance.PostingDeadLetter, error) {
	return b.posting.ListDeadLetters(ctx, companyID)
}

// RetryDeadLetter republishes the originating movement event of a failed
// posting. The handlers are idempotent end to end, so a retry that races a
// late redelivery still posts the voucher exactly once. Landed cost events
// carry their allocation in the payload and cannot be rebuilt from the dead
// letter alone; those must be re-emitted by the upstream system.
func (b *FinanceIntegrationBridge) RetryDeadLetter(ctx context.Context, deadLetterID uuid.UUID) error {
	dl, err := b.deadLetters.FindByID(ctx, deadLetterID)
	if err != nil {
		return fmt.Errorf("failed to load dead letter: %w", err)
	}
	if dl.Resolved {
		return shared.NewDomainError("DEAD_LETTER_RESOLVED", "Dead letter is already resolved: "+deadLetterID.String())
	}

	var event shared.DomainEvent
	switch dl.EventType {
	case movement.EventTypeStockReceived:
		event = movement.NewStockReceivedEvent(dl.CompanyID, dl.MovementID)
	case movement.EventTypeStockShipped:
		event = movement.NewStockShippedEvent(dl.CompanyID, dl.MovementID)
	case movement.EventTypeStockTransferOut:
		event = movement.NewStockTransferOutEvent(dl.CompanyID, dl.MovementID)
	case movement.EventTypeStockTransferIn:
		event = movement.NewStockTransferInEvent(dl.CompanyID, dl.MovementID)
	default:
		return shared.NewDomainError("DEAD_LETTER_NOT_RETRYABLE",
			"Event type cannot be rebuilt for retry: "+dl.EventType)
	}

	if err := b.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("failed to republish event: %w", err)
	}
	b.logger.Info("dead letter retried",
		zap.String("dead_letter_id", deadLetterID.String()),
		zap.String("movement_id", dl.MovementID.String()),
		zap.String("event_type", dl.EventType),
	)
	return nil
}

// RetryAllOpen republishes every retryable open dead letter of a company and
// returns how many were dispatched
func (b *FinanceIntegrationBridge) RetryAllOpen(ctx context.Context, companyID uuid.UUID) (int, error) {
	open, err := b.deadLetters.ListOpen(ctx, companyID)
	if err != nil {
		return 0, fmt.Errorf("failed to list dead letters: %w", err)
	}

	retried := 0
	for i := range open {
		err := b.RetryDeadLetter(ctx, open[i].ID)
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			b.logger.Warn("skipping non-retryable dead letter",
				zap.String("dead_letter_id", open[i].ID.String()),
				zap.String("code", domainErr.Code),
			)
			continue
		}
		if err != nil {
			return retried, err
		}
		retried++
	}
	return retried, nil
}
