package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/finance"
	"github.com/stockledger/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormPostingDeadLetterRepository implements PostingDeadLetterRepository
// using GORM
type GormPostingDeadLetterRepository struct {
	db *gorm.DB
}

// NewGormPostingDeadLetterRepository creates a new repository
func NewGormPostingDeadLetterRepository(db *gorm.DB) *GormPostingDeadLetterRepository {
	return &GormPostingDeadLetterRepository{db: db}
}

// Save creates or updates a dead letter
func (r *GormPostingDeadLetterRepository) Save(ctx context.Context, dl *finance.PostingDeadLetter) error {
	return r.db.WithContext(ctx).Save(dl).Error
}

// FindByID finds a dead letter by its ID
func (r *GormPostingDeadLetterRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.PostingDeadLetter, error) {
	var dl finance.PostingDeadLetter
	if err := r.db.WithContext(ctx).First(&dl, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &dl, nil
}

// FindOpenByMovement returns the unresolved dead letter of a movement
func (r *GormPostingDeadLetterRepository) FindOpenByMovement(ctx context.Context, movementID uuid.UUID) (*finance.PostingDeadLetter, error) {
	var dl finance.PostingDeadLetter
	err := r.db.WithContext(ctx).
		Where("movement_id = ? AND resolved = ?", movementID, false).
		First(&dl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &dl, nil
}

// ListOpen returns the unresolved dead letters of a company, oldest first
func (r *GormPostingDeadLetterRepository) ListOpen(ctx context.Context, companyID uuid.UUID) ([]finance.PostingDeadLetter, error) {
	var letters []finance.PostingDeadLetter
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND resolved = ?", companyID, false).
		Order("created_at ASC").
		Find(&letters).Error
	if err != nil {
		return nil, err
	}
	return letters, nil
}

// Ensure GormPostingDeadLetterRepository implements the interface
var _ finance.PostingDeadLetterRepository = (*GormPostingDeadLetterRepository)(nil)
