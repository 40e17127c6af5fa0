package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// Source document types producing journal vouchers
const (
	SourceTypeStockMovement = "StockMovement"
	SourceTypeLandedCost    = "LandedCostAdjustment"
)

// JournalVoucher is a balanced set of journal lines proposed to the finance
// ledger. The (source_document_type, source_document_id) pair is the
// idempotency key: exactly one voucher may exist per financial effect.
type JournalVoucher struct {
	shared.CompanyAggregateRoot
	SourceDocumentType string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_journal_source,priority:1"`
	SourceDocumentID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_journal_source,priority:2"`
	PostingDate        time.Time `gorm:"not null;index"`
	Memo               string    `gorm:"type:text"`

	Lines []JournalLine `gorm:"foreignKey:VoucherID"`
}

// TableName returns the table name for GORM
func (JournalVoucher) TableName() string {
	return "journal_vouchers"
}

// JournalLine is one debit or credit position on a voucher
type JournalLine struct {
	shared.BaseEntity
	VoucherID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	AccountCode string          `gorm:"type:varchar(50);not null;index"`
	Debit       decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Credit      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	Description string          `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (JournalLine) TableName() string {
	return "journal_lines"
}

// NewJournalVoucher creates an empty voucher for the given source document
func NewJournalVoucher(companyID uuid.UUID, sourceType string, sourceID uuid.UUID, postingDate time.Time, memo string) *JournalVoucher {
	return &JournalVoucher{
		CompanyAggregateRoot: shared.NewCompanyAggregateRoot(companyID),
		SourceDocumentType:   sourceType,
		SourceDocumentID:     sourceID,
		PostingDate:          postingDate,
		Memo:                 memo,
		Lines:                make([]JournalLine, 0),
	}
}

// AddDebit adds a debit amount to the account. Amounts to the same account
// are merged into one line; zero and negative amounts are ignored.
func (v *JournalVoucher) AddDebit(accountCode string, amount decimal.Decimal, description string) {
	v.addLine(accountCode, amount, decimal.Zero, description)
}

// AddCredit adds a credit amount to the account, merging with any existing
// credit line for the same account.
func (v *JournalVoucher) AddCredit(accountCode string, amount decimal.Decimal, description string) {
	v.addLine(accountCode, decimal.Zero, amount, description)
}

func (v *JournalVoucher) addLine(accountCode string, debit, credit decimal.Decimal, description string) {
	if debit.LessThanOrEqual(decimal.Zero) && credit.LessThanOrEqual(decimal.Zero) {
		return
	}
	for i := range v.Lines {
		line := &v.Lines[i]
		if line.AccountCode != accountCode {
			continue
		}
		if debit.GreaterThan(decimal.Zero) && line.Debit.GreaterThan(decimal.Zero) {
			line.Debit = line.Debit.Add(debit)
			return
		}
		if credit.GreaterThan(decimal.Zero) && line.Credit.GreaterThan(decimal.Zero) {
			line.Credit = line.Credit.Add(credit)
			return
		}
	}
	v.Lines = append(v.Lines, JournalLine{
		BaseEntity:  shared.NewBaseEntity(),
		VoucherID:   v.ID,
		AccountCode: accountCode,
		Debit:       debit,
		Credit:      credit,
		Description: description,
	})
}

// TotalDebit sums the debit side of the voucher
func (v *JournalVoucher) TotalDebit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range v.Lines {
		total = total.Add(l.Debit)
	}
	return total
}

// TotalCredit sums the credit side of the voucher
func (v *JournalVoucher) TotalCredit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range v.Lines {
		total = total.Add(l.Credit)
	}
	return total
}

// Validate checks the double-entry invariant: debits equal credits exactly
// and the voucher carries at least one line on each side.
func (v *JournalVoucher) Validate() error {
	if len(v.Lines) < 2 {
		return shared.NewDomainError("EMPTY_VOUCHER", "Journal voucher needs at least one debit and one credit line")
	}
	if !v.TotalDebit().Equal(v.TotalCredit()) {
		return shared.ErrUnbalancedVoucher
	}
	return nil
}
