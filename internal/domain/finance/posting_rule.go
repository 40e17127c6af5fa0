package finance

import (
	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/shared"
)

// TransactionType classifies the movement being posted
type TransactionType string

const (
	TransactionTypeReceipt  TransactionType = "RECEIPT"
	TransactionTypeIssue    TransactionType = "ISSUE"
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

// IsValid checks if the transaction type is valid
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeReceipt, TransactionTypeIssue, TransactionTypeTransfer:
		return true
	}
	return false
}

// String returns the string representation
func (t TransactionType) String() string {
	return string(t)
}

// PostingRule maps a transaction context to GL accounts. Rules are scoped
// (company, category, warehouse, transaction type); a NULL category or
// warehouse widens the scope, forming the fallback hierarchy the resolver
// walks from most to least specific.
type PostingRule struct {
	shared.BaseEntity
	CompanyID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_posting_rule_scope,priority:1"`
	CategoryID      *uuid.UUID      `gorm:"type:uuid;index:idx_posting_rule_scope,priority:2"`
	WarehouseID     *uuid.UUID      `gorm:"type:uuid;index:idx_posting_rule_scope,priority:3"`
	TransactionType TransactionType `gorm:"type:varchar(20);not null;index:idx_posting_rule_scope,priority:4"`

	InventoryAccount string `gorm:"type:varchar(50)"`
	COGSAccount      string `gorm:"type:varchar(50)"`

	// ClearingAccount holds GRNI on receipts and the in-transit account on
	// two-leg transfers.
	ClearingAccount string `gorm:"type:varchar(50)"`

	// VarianceAccount receives the purchase price variance under standard
	// costing. Empty folds the variance into COGS.
	VarianceAccount string `gorm:"type:varchar(50)"`

	Active bool `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (PostingRule) TableName() string {
	return "posting_rules"
}

// NewPostingRule creates an active posting rule for the given scope
func NewPostingRule(companyID uuid.UUID, categoryID, warehouseID *uuid.UUID, txType TransactionType) *PostingRule {
	return &PostingRule{
		BaseEntity:      shared.NewBaseEntity(),
		CompanyID:       companyID,
		CategoryID:      categoryID,
		WarehouseID:     warehouseID,
		TransactionType: txType,
		Active:          true,
	}
}
