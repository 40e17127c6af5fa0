package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormCostLayerRepository implements CostLayerRepository using GORM
type GormCostLayerRepository struct {
	db *gorm.DB
}

// NewGormCostLayerRepository creates a new GormCostLayerRepository
func NewGormCostLayerRepository(db *gorm.DB) *GormCostLayerRepository {
	return &GormCostLayerRepository{db: db}
}

// NextFIFOSequence returns the next sequence for the key. The caller holds
// the mutation guard, so max+1 cannot race with another writer of the same
// key.
func (r *GormCostLayerRepository) NextFIFOSequence(ctx context.Context, companyID, productID, warehouseID uuid.UUID) (int64, error) {
	var maxSeq int64
	err := r.db.WithContext(ctx).
		Model(&costing.CostLayer{}).
		Where("company_id = ? AND product_id = ? AND warehouse_id = ?", companyID, productID, warehouseID).
		Select("COALESCE(MAX(fifo_sequence), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return 0, err
	}
	return maxSeq + 1, nil
}

// FindByID finds a layer by its ID
func (r *GormCostLayerRepository) FindByID(ctx context.Context, id uuid.UUID) (*costing.CostLayer, error) {
	var layer costing.CostLayer
	if err := r.db.WithContext(ctx).First(&layer, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &layer, nil
}

// ListOpen returns layers with remaining quantity in the requested order
func (r *GormCostLayerRepository) ListOpen(ctx context.Context, companyID, productID, warehouseID uuid.UUID, order costing.LayerOrder) ([]costing.CostLayer, error) {
	ordering := "fifo_sequence ASC, receipt_date ASC, created_at ASC"
	if order == costing.LayerOrderLIFO {
		ordering = "fifo_sequence DESC, receipt_date DESC, created_at DESC"
	}

	var layers []costing.CostLayer
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND product_id = ? AND warehouse_id = ? AND qty_remaining > 0",
			companyID, productID, warehouseID).
		Order(ordering).
		Find(&layers).Error
	if err != nil {
		return nil, err
	}
	return layers, nil
}

// ListOpenByCompany returns all open layers of a company, optionally scoped
// to one warehouse
func (r *GormCostLayerRepository) ListOpenByCompany(ctx context.Context, companyID uuid.UUID, warehouseID *uuid.UUID) ([]costing.CostLayer, error) {
	query := r.db.WithContext(ctx).
		Where("company_id = ? AND qty_remaining > 0", companyID)
	if warehouseID != nil {
		query = query.Where("warehouse_id = ?", *warehouseID)
	}

	var layers []costing.CostLayer
	if err := query.Order("product_id, warehouse_id, fifo_sequence").Find(&layers).Error; err != nil {
		return nil, err
	}
	return layers, nil
}

// ListByMovement returns the layers opened by a stock movement
func (r *GormCostLayerRepository) ListByMovement(ctx context.Context, movementID uuid.UUID) ([]costing.CostLayer, error) {
	var layers []costing.CostLayer
	err := r.db.WithContext(ctx).
		Where("source_movement_id = ?", movementID).
		Find(&layers).Error
	if err != nil {
		return nil, err
	}
	return layers, nil
}

// Save persists a single layer
func (r *GormCostLayerRepository) Save(ctx context.Context, layer *costing.CostLayer) error {
	return r.db.WithContext(ctx).Save(layer).Error
}

// SaveAll persists the layers in one transaction
func (r *GormCostLayerRepository) SaveAll(ctx context.Context, layers []*costing.CostLayer) error {
	if len(layers) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, layer := range layers {
			if err := tx.Save(layer).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Ensure GormCostLayerRepository implements CostLayerRepository
var _ costing.CostLayerRepository = (*GormCostLayerRepository)(nil)
