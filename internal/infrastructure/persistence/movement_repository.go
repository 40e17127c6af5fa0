package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/movement"
	"github.com/stockledger/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormStockMovementRepository implements StockMovementRepository using GORM
type GormStockMovementRepository struct {
	db *gorm.DB
}

// NewGormStockMovementRepository creates a new GormStockMovementRepository
func NewGormStockMovementRepository(db *gorm.DB) *GormStockMovementRepository {
	return &GormStockMovementRepository{db: db}
}

// FindByID loads a movement with its lines
func (r *GormStockMovementRepository) FindByID(ctx context.Context, id uuid.UUID) (*movement.StockMovement, error) {
	var m movement.StockMovement
	err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&m, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// Save persists a movement and its lines
func (r *GormStockMovementRepository) Save(ctx context.Context, m *movement.StockMovement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Save(m).Error
	})
}

// Ensure GormStockMovementRepository implements StockMovementRepository
var _ movement.StockMovementRepository = (*GormStockMovementRepository)(nil)
