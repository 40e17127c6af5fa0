package costing

import (
	"context"

	"github.com/google/uuid"
)

// LayerOrder selects the ordering of open layers returned by ListOpen
type LayerOrder string

const (
	// LayerOrderFIFO orders oldest-first: fifo_sequence, receipt_date, id
	LayerOrderFIFO LayerOrder = "FIFO"
	// LayerOrderLIFO orders newest-first
	LayerOrderLIFO LayerOrder = "LIFO"
)

// CostLayerRepository owns the append-only set of receipt lots per
// (company, product, warehouse)
type CostLayerRepository interface {
	// NextFIFOSequence returns the next monotonically increasing sequence
	// for the (company, product, warehouse) key. Must be called while
	// holding the mutation guard for that key.
	NextFIFOSequence(ctx context.Context, companyID, productID, warehouseID uuid.UUID) (int64, error)

	// FindByID finds a layer by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*CostLayer, error)

	// ListOpen returns layers with remaining quantity in the given order
	ListOpen(ctx context.Context, companyID, productID, warehouseID uuid.UUID, order LayerOrder) ([]CostLayer, error)

	// ListOpenByCompany returns all open layers of a company, optionally
	// filtered to one warehouse. Used by reconciliation.
	ListOpenByCompany(ctx context.Context, companyID uuid.UUID, warehouseID *uuid.UUID) ([]CostLayer, error)

	// ListByMovement returns layers opened by the given stock movement
	ListByMovement(ctx context.Context, movementID uuid.UUID) ([]CostLayer, error)

	// Save persists a single layer
	Save(ctx context.Context, layer *CostLayer) error

	// SaveAll persists the layers atomically; either every mutation is
	// visible or none is.
	SaveAll(ctx context.Context, layers []*CostLayer) error
}

// ProductCostingRepository stores per-product costing configuration
type ProductCostingRepository interface {
	FindByProduct(ctx context.Context, companyID, productID uuid.UUID) (*ProductCosting, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]ProductCosting, error)

	// ListCompanies returns every company with at least one costing config.
	// The reconciliation scheduler iterates these.
	ListCompanies(ctx context.Context) ([]uuid.UUID, error)

	Save(ctx context.Context, pc *ProductCosting) error
}

// ValuationMethodChangeRepository stores the audit trail of method switches
type ValuationMethodChangeRepository interface {
	Save(ctx context.Context, change *ValuationMethodChange) error
	ListByProduct(ctx context.Context, companyID, productID uuid.UUID) ([]ValuationMethodChange, error)
}

// MutationGuard serializes layer mutation per (company, product, warehouse).
// Concurrent consumption against the same layer set would double-spend
// quantity; every consume/apply-landed-cost sequence runs under this guard.
// The guard is not held across journal posting, which is idempotent and
// retried independently.
type MutationGuard interface {
	// Acquire blocks until the key is exclusively held and returns the
	// release function.
	Acquire(companyID, productID, warehouseID uuid.UUID) (release func())
}
