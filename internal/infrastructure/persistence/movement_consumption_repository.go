package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormMovementConsumptionRepository implements MovementConsumptionRepository
// using GORM
type GormMovementConsumptionRepository struct {
	db *gorm.DB
}

// NewGormMovementConsumptionRepository creates a new repository
func NewGormMovementConsumptionRepository(db *gorm.DB) *GormMovementConsumptionRepository {
	return &GormMovementConsumptionRepository{db: db}
}

// FindByMovementLine returns the recorded consumption of one movement line
func (r *GormMovementConsumptionRepository) FindByMovementLine(ctx context.Context, movementID, productID, warehouseID uuid.UUID) (*costing.MovementConsumption, error) {
	var mc costing.MovementConsumption
	err := r.db.WithContext(ctx).
		Where("movement_id = ? AND product_id = ? AND warehouse_id = ?", movementID, productID, warehouseID).
		First(&mc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &mc, nil
}

// Save persists a consumption record
func (r *GormMovementConsumptionRepository) Save(ctx context.Context, mc *costing.MovementConsumption) error {
	return r.db.WithContext(ctx).Save(mc).Error
}

// Ensure GormMovementConsumptionRepository implements the interface
var _ costing.MovementConsumptionRepository = (*GormMovementConsumptionRepository)(nil)
