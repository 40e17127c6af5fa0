package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalRepository proposes balanced vouchers to the finance ledger. The
// ledger owns posted vouchers; this engine only inserts and reads them.
type JournalRepository interface {
	// ExistsBySource reports whether a voucher was already posted for the
	// source document. Together with the unique index on
	// (source_document_type, source_document_id) this makes event
	// redelivery safe.
	ExistsBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) (bool, error)

	// FindBySource loads the voucher posted for a source document
	FindBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) (*JournalVoucher, error)

	// Save inserts the voucher and its lines. A duplicate source document
	// maps to shared.ErrAlreadyExists so callers can treat the redelivery
	// as already posted.
	Save(ctx context.Context, voucher *JournalVoucher) error

	// BalanceAsOf recomputes debit minus credit on the account from posted
	// line history up to the date, regardless of posting order.
	BalanceAsOf(ctx context.Context, companyID uuid.UUID, accountCode string, asOf time.Time) (decimal.Decimal, error)
}

// PostingRuleRepository stores account mapping rules. A nil categoryID or
// warehouseID matches rules where that column is NULL, which is how the
// scope levels of the fallback hierarchy are encoded.
type PostingRuleRepository interface {
	// FindActive returns the active rule at exactly the given scope, or
	// nil when none exists.
	FindActive(ctx context.Context, companyID uuid.UUID, categoryID, warehouseID *uuid.UUID, txType TransactionType) (*PostingRule, error)

	Save(ctx context.Context, rule *PostingRule) error
}

// PostingDeadLetterRepository stores failed postings so operators can see
// and retry them instead of losing them in logs
type PostingDeadLetterRepository interface {
	Save(ctx context.Context, dl *PostingDeadLetter) error
	FindByID(ctx context.Context, id uuid.UUID) (*PostingDeadLetter, error)
	FindOpenByMovement(ctx context.Context, movementID uuid.UUID) (*PostingDeadLetter, error)
	ListOpen(ctx context.Context, companyID uuid.UUID) ([]PostingDeadLetter, error)
}
