package costing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/shared"
)

// ValuationMethod determines which algorithm prices a consumption
type ValuationMethod string

const (
	ValuationMethodFIFO            ValuationMethod = "FIFO"
	ValuationMethodLIFO            ValuationMethod = "LIFO"
	ValuationMethodWeightedAverage ValuationMethod = "WEIGHTED_AVERAGE"
	ValuationMethodStandardCost    ValuationMethod = "STANDARD_COST"
)

// IsValid checks if the valuation method is valid
func (m ValuationMethod) IsValid() bool {
	switch m {
	case ValuationMethodFIFO, ValuationMethodLIFO, ValuationMethodWeightedAverage, ValuationMethodStandardCost:
		return true
	}
	return false
}

// String returns the string representation
func (m ValuationMethod) String() string {
	return string(m)
}

// AllValuationMethods returns all valid valuation methods
func AllValuationMethods() []ValuationMethod {
	return []ValuationMethod{
		ValuationMethodFIFO,
		ValuationMethodLIFO,
		ValuationMethodWeightedAverage,
		ValuationMethodStandardCost,
	}
}

// ProductCosting holds the costing configuration for one product within a
// company: the valuation method, the standard cost used by STANDARD_COST,
// and the product's own fallback posting accounts.
type ProductCosting struct {
	shared.BaseEntity
	CompanyID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_product_costing,priority:1"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_product_costing,priority:2"`
	CategoryID   *uuid.UUID      `gorm:"type:uuid;index"`
	Method       ValuationMethod `gorm:"type:varchar(32);not null;default:'FIFO'"`
	StandardCost decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	// Fallback posting accounts used when no posting rule matches (the last
	// level of the account resolution hierarchy).
	InventoryAccount string `gorm:"type:varchar(50)"`
	ExpenseAccount   string `gorm:"type:varchar(50)"`
}

// TableName returns the table name for GORM
func (ProductCosting) TableName() string {
	return "product_costings"
}

// NewProductCosting creates a product costing configuration with FIFO default
func NewProductCosting(companyID, productID uuid.UUID) *ProductCosting {
	return &ProductCosting{
		BaseEntity:   shared.NewBaseEntity(),
		CompanyID:    companyID,
		ProductID:    productID,
		Method:       ValuationMethodFIFO,
		StandardCost: decimal.Zero,
	}
}

// ValuationMethodChange is the audit record for a valuation method switch.
// Changing the method never rewrites historical layers or journal entries;
// it only changes which algorithm future consumptions use.
type ValuationMethodChange struct {
	shared.BaseEntity
	CompanyID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	OldMethod     ValuationMethod `gorm:"type:varchar(32);not null"`
	NewMethod     ValuationMethod `gorm:"type:varchar(32);not null"`
	EffectiveDate time.Time       `gorm:"not null"`
	Reason        string          `gorm:"type:text"`
	ApprovedBy    string          `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (ValuationMethodChange) TableName() string {
	return "valuation_method_changes"
}

// ChangeMethod switches the product's valuation method and returns the audit
// record describing the change. A no-op change (same method) is rejected.
func (p *ProductCosting) ChangeMethod(newMethod ValuationMethod, effectiveDate time.Time, reason, approvedBy string) (*ValuationMethodChange, error) {
	if !newMethod.IsValid() {
		return nil, shared.NewDomainError("INVALID_METHOD", "Unknown valuation method: "+newMethod.String())
	}
	if newMethod == p.Method {
		return nil, shared.NewDomainError("INVALID_STATE", "Product already uses valuation method "+newMethod.String())
	}
	change := &ValuationMethodChange{
		BaseEntity:    shared.NewBaseEntity(),
		CompanyID:     p.CompanyID,
		ProductID:     p.ProductID,
		OldMethod:     p.Method,
		NewMethod:     newMethod,
		EffectiveDate: effectiveDate,
		Reason:        reason,
		ApprovedBy:    approvedBy,
	}
	p.Method = newMethod
	p.UpdatedAt = time.Now()
	return change, nil
}
