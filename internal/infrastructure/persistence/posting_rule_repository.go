package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/finance"
	"gorm.io/gorm"
)

// GormPostingRuleRepository implements PostingRuleRepository using GORM
type GormPostingRuleRepository struct {
	db *gorm.DB
}

// NewGormPostingRuleRepository creates a new GormPostingRuleRepository
func NewGormPostingRuleRepository(db *gorm.DB) *GormPostingRuleRepository {
	return &GormPostingRuleRepository{db: db}
}

// FindActive returns the active rule at exactly the given scope. A nil
// category or warehouse matches rules where that column is NULL, which is
// how the fallback levels are distinguished.
func (r *GormPostingRuleRepository) FindActive(ctx context.Context, companyID uuid.UUID, categoryID, warehouseID *uuid.UUID, txType finance.TransactionType) (*finance.PostingRule, error) {
	query := r.db.WithContext(ctx).
		Where("company_id = ? AND transaction_type = ? AND active = ?", companyID, txType, true)

	if categoryID != nil {
		query = query.Where("category_id = ?", *categoryID)
	} else {
		query = query.Where("category_id IS NULL")
	}
	if warehouseID != nil {
		query = query.Where("warehouse_id = ?", *warehouseID)
	} else {
		query = query.Where("warehouse_id IS NULL")
	}

	var rule finance.PostingRule
	if err := query.First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// Save creates or updates a posting rule
func (r *GormPostingRuleRepository) Save(ctx context.Context, rule *finance.PostingRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

// Ensure GormPostingRuleRepository implements PostingRuleRepository
var _ finance.PostingRuleRepository = (*GormPostingRuleRepository)(nil)
