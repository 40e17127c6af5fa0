package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormProductCostingRepository implements ProductCostingRepository using GORM
type GormProductCostingRepository struct {
	db *gorm.DB
}

// NewGormProductCostingRepository creates a new GormProductCostingRepository
func NewGormProductCostingRepository(db *gorm.DB) *GormProductCostingRepository {
	return &GormProductCostingRepository{db: db}
}

// FindByProduct loads the costing configuration of one product
func (r *GormProductCostingRepository) FindByProduct(ctx context.Context, companyID, productID uuid.UUID) (*costing.ProductCosting, error) {
	var pc costing.ProductCosting
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND product_id = ?", companyID, productID).
		First(&pc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &pc, nil
}

// ListByCompany returns every costing configuration of a company
func (r *GormProductCostingRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]costing.ProductCosting, error) {
	var configs []costing.ProductCosting
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("product_id").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

// ListCompanies returns the distinct companies with costing configuration
func (r *GormProductCostingRepository) ListCompanies(ctx context.Context) ([]uuid.UUID, error) {
	var companies []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&costing.ProductCosting{}).
		Distinct("company_id").
		Order("company_id").
		Pluck("company_id", &companies).Error
	if err != nil {
		return nil, err
	}
	return companies, nil
}

// Save creates or updates a costing configuration
func (r *GormProductCostingRepository) Save(ctx context.Context, pc *costing.ProductCosting) error {
	return r.db.WithContext(ctx).Save(pc).Error
}

// Ensure GormProductCostingRepository implements ProductCostingRepository
var _ costing.ProductCostingRepository = (*GormProductCostingRepository)(nil)

// GormValuationMethodChangeRepository stores the valuation method audit trail
type GormValuationMethodChangeRepository struct {
	db *gorm.DB
}

// NewGormValuationMethodChangeRepository creates a new repository
func NewGormValuationMethodChangeRepository(db *gorm.DB) *GormValuationMethodChangeRepository {
	return &GormValuationMethodChangeRepository{db: db}
}

// Save appends an audit record
func (r *GormValuationMethodChangeRepository) Save(ctx context.Context, change *costing.ValuationMethodChange) error {
	return r.db.WithContext(ctx).Save(change).Error
}

// ListByProduct returns the change history of a product, newest first
func (r *GormValuationMethodChangeRepository) ListByProduct(ctx context.Context, companyID, productID uuid.UUID) ([]costing.ValuationMethodChange, error) {
	var changes []costing.ValuationMethodChange
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND product_id = ?", companyID, productID).
		Order("created_at DESC").
		Find(&changes).Error
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// Ensure GormValuationMethodChangeRepository implements the interface
var _ costing.ValuationMethodChangeRepository = (*GormValuationMethodChangeRepository)(nil)
