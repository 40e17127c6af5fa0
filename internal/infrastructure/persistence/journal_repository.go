package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/finance"
	"github.com/stockledger/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormJournalRepository implements JournalRepository using GORM. The unique
// index on (source_document_type, source_document_id) is the last line of
// defense against double posting; a duplicate insert surfaces as
// shared.ErrAlreadyExists.
type GormJournalRepository struct {
	db *gorm.DB
}

// NewGormJournalRepository creates a new GormJournalRepository
func NewGormJournalRepository(db *gorm.DB) *GormJournalRepository {
	return &GormJournalRepository{db: db}
}

// ExistsBySource reports whether a voucher exists for the source document
func (r *GormJournalRepository) ExistsBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&finance.JournalVoucher{}).
		Where("source_document_type = ? AND source_document_id = ?", sourceType, sourceID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindBySource loads the voucher posted for a source document
func (r *GormJournalRepository) FindBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) (*finance.JournalVoucher, error) {
	var voucher finance.JournalVoucher
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("source_document_type = ? AND source_document_id = ?", sourceType, sourceID).
		First(&voucher).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &voucher, nil
}

// Save inserts the voucher and its lines in one transaction
func (r *GormJournalRepository) Save(ctx context.Context, voucher *finance.JournalVoucher) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(voucher).Error
	})
	if err != nil && isUniqueViolation(err) {
		return shared.ErrAlreadyExists
	}
	return err
}

// BalanceAsOf recomputes debit minus credit on the account from posted line
// history up to the date
func (r *GormJournalRepository) BalanceAsOf(ctx context.Context, companyID uuid.UUID, accountCode string, asOf time.Time) (decimal.Decimal, error) {
	var balance decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&finance.JournalLine{}).
		Select("SUM(journal_lines.debit - journal_lines.credit)").
		Joins("JOIN journal_vouchers ON journal_vouchers.id = journal_lines.voucher_id").
		Where("journal_vouchers.company_id = ? AND journal_lines.account_code = ? AND journal_vouchers.posting_date <= ?",
			companyID, accountCode, asOf).
		Scan(&balance).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !balance.Valid {
		return decimal.Zero, nil
	}
	return balance.Decimal, nil
}

// isUniqueViolation detects duplicate-key errors across the drivers in use
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	// sqlite, used by the test suite
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Ensure GormJournalRepository implements JournalRepository
var _ finance.JournalRepository = (*GormJournalRepository)(nil)
