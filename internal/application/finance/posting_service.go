package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/finance"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// BridgeConfig holds the company-wide default accounts used when a posting
// rule does not supply a clearing account
type BridgeConfig struct {
	// DefaultGRNIAccount receives the credit side of receipts when no rule
	// provides a clearing account
	DefaultGRNIAccount string

	// DefaultInTransitAccount routes two-leg transfers; empty posts
	// transfers directly between the warehouse inventory accounts
	DefaultInTransitAccount string
}

// PostingService carries the mechanics shared by every bridge handler:
// voucher-level idempotency, validated posting, and the dead-letter trail
// for failed movements.
type PostingService struct {
	journal     finance.JournalRepository
	deadLetters finance.PostingDeadLetterRepository
	logger      *zap.Logger
}

// NewPostingService creates a new posting service
func NewPostingService(
	journal finance.JournalRepository,
	deadLetters finance.PostingDeadLetterRepository,
	logger *zap.Logger,
) *PostingService {
	return &PostingService{
		journal:     journal,
		deadLetters: deadLetters,
		logger:      logger,
	}
}

// AlreadyPosted reports whether a voucher exists for the source document
func (s *PostingService) AlreadyPosted(ctx context.Context, sourceType string, sourceID uuid.UUID) (bool, error) {
	exists, err := s.journal.ExistsBySource(ctx, sourceType, sourceID)
	if err != nil {
		return false, fmt.Errorf("failed to check voucher existence: %w", err)
	}
	return exists, nil
}

// Post validates and inserts the voucher. A concurrent duplicate insert on
// the same source document is treated as already posted, which keeps the
// existence check plus insert linearizable under the unique constraint.
func (s *PostingService) Post(ctx context.Context, voucher *finance.JournalVoucher) error {
	if err := voucher.Validate(); err != nil {
		return err
	}
	if err := s.journal.Save(ctx, voucher); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			s.logger.Warn("voucher already posted by a concurrent worker, skipping",
				zap.String("source_type", voucher.SourceDocumentType),
				zap.String("source_id", voucher.SourceDocumentID.String()),
			)
			return nil
		}
		return fmt.Errorf("failed to post journal voucher: %w", err)
	}

	s.logger.Info("journal voucher posted",
		zap.String("voucher_id", voucher.ID.String()),
		zap.String("source_type", voucher.SourceDocumentType),
		zap.String("source_id", voucher.SourceDocumentID.String()),
		zap.String("total_debit", voucher.TotalDebit().String()),
		zap.Int("lines", len(voucher.Lines)),
	)
	return nil
}

// Fail records the movement on the dead-letter list. The physical stock
// ledger is not rolled back; reconciliation surfaces the variance until an
// operator retries.
func (s *PostingService) Fail(
	ctx context.Context,
	companyID, movementID uuid.UUID,
	eventType string,
	failedAt finance.PostingState,
	cause error,
) error {
	existing, err := s.deadLetters.FindOpenByMovement(ctx, movementID)
	switch {
	case err == nil:
		existing.RecordRetry()
		existing.FailedAt = failedAt
		existing.Reason = cause.Error()
		if saveErr := s.deadLetters.Save(ctx, existing); saveErr != nil {
			return fmt.Errorf("failed to update dead letter: %w", saveErr)
		}
	case errors.Is(err, shared.ErrNotFound):
		dl := finance.NewPostingDeadLetter(companyID, movementID, eventType, failedAt, cause.Error())
		if saveErr := s.deadLetters.Save(ctx, dl); saveErr != nil {
			return fmt.Errorf("failed to save dead letter: %w", saveErr)
		}
	default:
		return fmt.Errorf("failed to look up dead letter: %w", err)
	}

	s.logger.Error("movement posting failed",
		zap.String("company_id", companyID.String()),
		zap.String("movement_id", movementID.String()),
		zap.String("event_type", eventType),
		zap.String("failed_at", failedAt.String()),
		zap.Error(cause),
	)
	return nil
}

// Resolve closes the open dead letter for a movement after a successful
// retry. Missing dead letters are fine - most movements never fail.
func (s *PostingService) Resolve(ctx context.Context, movementID uuid.UUID) error {
	dl, err := s.deadLetters.FindOpenByMovement(ctx, movementID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up dead letter: %w", err)
	}
	dl.MarkResolved()
	if err := s.deadLetters.Save(ctx, dl); err != nil {
		return fmt.Errorf("failed to resolve dead letter: %w", err)
	}
	return nil
}

// ListDeadLetters returns the open dead letters of a company so operators
// can inspect and retry failed postings
func (s *PostingService) ListDeadLetters(ctx context.Context, companyID uuid.UUID) ([]finance.PostingDeadLetter, error) {
	return s.deadLetters.ListOpen(ctx, companyID)
}
