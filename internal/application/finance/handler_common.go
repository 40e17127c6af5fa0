package finance

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/finance"
	"github.com/stockledger/backend/internal/domain/movement"
	"github.com/stockledger/backend/internal/domain/shared"
)

// aggregateLines merges movement lines for the same product into a single
// quantity. The valuation engine records exactly one consumption per
// (movement, product, warehouse), so each product must be priced once with
// its full quantity or a redelivery would replay the wrong line's result.
func aggregateLines(lines []movement.StockMovementLine) []movement.StockMovementLine {
	merged := make([]movement.StockMovementLine, 0, len(lines))
	index := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			merged[i].Qty = merged[i].Qty.Add(line.Qty)
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

// failOrPropagate decides what a handler does with an error: domain errors
// (unresolved account, insufficient stock, bad input) are final for the
// movement and go to the dead-letter list without blocking the queue;
// anything else is transient and propagates so the event is redelivered.
func failOrPropagate(
	ctx context.Context,
	posting *PostingService,
	companyID, movementID uuid.UUID,
	eventType string,
	failedAt finance.PostingState,
	err error,
) error {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return posting.Fail(ctx, companyID, movementID, eventType, failedAt, err)
	}
	return err
}
