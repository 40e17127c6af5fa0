package finance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLayerRepo struct {
	layers []costing.CostLayer
}

func (r *fakeLayerRepo) NextFIFOSequence(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) (int64, error) {
	return int64(len(r.layers) + 1), nil
}

func (r *fakeLayerRepo) FindByID(context.Context, uuid.UUID) (*costing.CostLayer, error) {
	return nil, shared.ErrNotFound
}

func (r *fakeLayerRepo) ListOpen(context.Context, uuid.UUID, uuid.UUID, uuid.UUID, costing.LayerOrder) ([]costing.CostLayer, error) {
	return nil, nil
}

func (r *fakeLayerRepo) ListOpenByCompany(_ context.Context, companyID uuid.UUID, warehouseID *uuid.UUID) ([]costing.CostLayer, error) {
	var open []costing.CostLayer
	for _, layer := range r.layers {
		if layer.CompanyID != companyID || !layer.QtyRemaining.IsPositive() {
			continue
		}
		if warehouseID != nil && layer.WarehouseID != *warehouseID {
			continue
		}
		open = append(open, layer)
	}
	return open, nil
}

func (r *fakeLayerRepo) ListByMovement(context.Context, uuid.UUID) ([]costing.CostLayer, error) {
	return nil, nil
}

func (r *fakeLayerRepo) Save(_ context.Context, layer *costing.CostLayer) error {
	r.layers = append(r.layers, *layer)
	return nil
}

func (r *fakeLayerRepo) SaveAll(ctx context.Context, layers []*costing.CostLayer) error {
	for _, layer := range layers {
		if err := r.Save(ctx, layer); err != nil {
			return err
		}
	}
	return nil
}

type fakeJournalRepo struct {
	balances map[string]decimal.Decimal
	vouchers map[string]*JournalVoucher
}

func newFakeJournalRepo() *fakeJournalRepo {
	return &fakeJournalRepo{
		balances: make(map[string]decimal.Decimal),
		vouchers: make(map[string]*JournalVoucher),
	}
}

func sourceKey(sourceType string, sourceID uuid.UUID) string {
	return sourceType + "/" + sourceID.String()
}

func (r *fakeJournalRepo) ExistsBySource(_ context.Context, sourceType string, sourceID uuid.UUID) (bool, error) {
	_, ok := r.vouchers[sourceKey(sourceType, sourceID)]
	return ok, nil
}

func (r *fakeJournalRepo) FindBySource(_ context.Context, sourceType string, sourceID uuid.UUID) (*JournalVoucher, error) {
	v, ok := r.vouchers[sourceKey(sourceType, sourceID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return v, nil
}

func (r *fakeJournalRepo) Save(_ context.Context, voucher *JournalVoucher) error {
	key := sourceKey(voucher.SourceDocumentType, voucher.SourceDocumentID)
	if _, ok := r.vouchers[key]; ok {
		return shared.ErrAlreadyExists
	}
	r.vouchers[key] = voucher
	return nil
}

func (r *fakeJournalRepo) BalanceAsOf(_ context.Context, _ uuid.UUID, accountCode string, _ time.Time) (decimal.Decimal, error) {
	return r.balances[accountCode], nil
}

// reconFixture holds one company whose products all fall back to their own
// posting accounts, the simplest mapping for reconciliation
type reconFixture struct {
	layers   *fakeLayerRepo
	costings *fakeCostingRepo
	journal  *fakeJournalRepo
	engine   *GLReconciliationEngine

	companyID uuid.UUID
}

func newReconFixture(t *testing.T) *reconFixture {
	t.Helper()
	f := &reconFixture{
		layers:    &fakeLayerRepo{},
		costings:  newFakeCostingRepo(),
		journal:   newFakeJournalRepo(),
		companyID: uuid.New(),
	}
	resolver := NewPostingAccountResolver(newFakeRuleRepo(), f.costings, zap.NewNop())
	f.engine = NewGLReconciliationEngine(f.layers, f.costings, resolver, f.journal, zap.NewNop())
	return f
}

// addProduct registers a product whose inventory posts to the account
func (f *reconFixture) addProduct(t *testing.T, inventoryAccount string) uuid.UUID {
	t.Helper()
	pc := costing.NewProductCosting(f.companyID, uuid.New())
	pc.InventoryAccount = inventoryAccount
	require.NoError(t, f.costings.Save(context.Background(), pc))
	return pc.ProductID
}

func (f *reconFixture) addLayer(t *testing.T, productID, warehouseID uuid.UUID, qtyStr, costStr string, receiptDate time.Time) {
	t.Helper()
	layer, err := costing.NewCostLayer(f.companyID, productID, warehouseID, int64(len(f.layers.layers)+1),
		decimal.RequireFromString(qtyStr), decimal.RequireFromString(costStr), receiptDate, nil)
	require.NoError(t, err)
	require.NoError(t, f.layers.Save(context.Background(), layer))
}

func (f *reconFixture) reconcile(t *testing.T, warehouseID *uuid.UUID, asOf time.Time) []ReconciliationResult {
	t.Helper()
	results, err := f.engine.Reconcile(context.Background(), f.companyID, warehouseID, asOf)
	require.NoError(t, err)
	return results
}

func resultFor(t *testing.T, results []ReconciliationResult, account string) ReconciliationResult {
	t.Helper()
	for _, r := range results {
		if r.AccountCode == account {
			return r
		}
	}
	t.Fatalf("no result for account %s", account)
	return ReconciliationResult{}
}

func TestGLReconciliationEngine(t *testing.T) {
	asOf := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	received := asOf.AddDate(0, -1, 0)

	t.Run("matching balances reconcile with zero variance", func(t *testing.T) {
		f := newReconFixture(t)
		productID := f.addProduct(t, "1400")
		f.addLayer(t, productID, uuid.New(), "1", "990.05", received)
		f.journal.balances["1400"] = decimal.RequireFromString("990.05")

		results := f.reconcile(t, nil, asOf)
		require.Len(t, results, 1)
		r := results[0]
		assert.Equal(t, "1400", r.AccountCode)
		assert.True(t, r.InventoryValue.Equal(decimal.RequireFromString("990.05")))
		assert.True(t, r.Variance.IsZero())
		assert.True(t, r.IsReconciled)
	})

	t.Run("variance beyond one percent is flagged", func(t *testing.T) {
		f := newReconFixture(t)
		productID := f.addProduct(t, "1400")
		f.addLayer(t, productID, uuid.New(), "1", "990.05", received)
		f.journal.balances["1400"] = decimal.RequireFromString("1000.00")

		// Inventory is 990.05 so the tolerance is 9.9005; the 9.95 variance
		// just exceeds it.
		r := resultFor(t, f.reconcile(t, nil, asOf), "1400")
		assert.True(t, r.Variance.Equal(decimal.RequireFromString("9.95")))
		assert.True(t, r.VariancePercent.Equal(decimal.RequireFromString("1.005")))
		assert.False(t, r.IsReconciled)
	})

	t.Run("variance within one percent reconciles", func(t *testing.T) {
		f := newReconFixture(t)
		productID := f.addProduct(t, "1400")
		f.addLayer(t, productID, uuid.New(), "199", "5", received)
		f.journal.balances["1400"] = decimal.RequireFromString("1000.00")

		// Inventory 995.00, variance 5.00, tolerance 9.95
		r := resultFor(t, f.reconcile(t, nil, asOf), "1400")
		assert.True(t, r.IsReconciled)
	})

	t.Run("the cent floor covers near-empty accounts", func(t *testing.T) {
		f := newReconFixture(t)
		productID := f.addProduct(t, "1400")
		f.addLayer(t, productID, uuid.New(), "1", "0.30", received)
		f.journal.balances["1400"] = decimal.RequireFromString("0.31")

		// 1% of 0.30 is below a cent, so the cent floor applies
		r := resultFor(t, f.reconcile(t, nil, asOf), "1400")
		assert.True(t, r.IsReconciled)
	})

	t.Run("accounts known only from product config appear with zero value", func(t *testing.T) {
		f := newReconFixture(t)
		f.addProduct(t, "1450")
		f.journal.balances["1450"] = decimal.RequireFromString("3.00")

		r := resultFor(t, f.reconcile(t, nil, asOf), "1450")
		assert.True(t, r.InventoryValue.IsZero())
		assert.True(t, r.Variance.Equal(decimal.RequireFromString("3.00")))
		assert.False(t, r.IsReconciled)
	})

	t.Run("unmappable layers are excluded, the rest still reconciles", func(t *testing.T) {
		f := newReconFixture(t)
		mapped := f.addProduct(t, "1400")
		f.addLayer(t, mapped, uuid.New(), "10", "5.00", received)
		// This product has no costing config and no rule matches it
		f.addLayer(t, uuid.New(), uuid.New(), "10", "99.00", received)
		f.journal.balances["1400"] = decimal.RequireFromString("50.00")

		results := f.reconcile(t, nil, asOf)
		require.Len(t, results, 1)
		assert.True(t, results[0].IsReconciled)
		assert.True(t, results[0].InventoryValue.Equal(decimal.RequireFromString("50.00")))
	})

	t.Run("warehouse filter narrows the layer population", func(t *testing.T) {
		f := newReconFixture(t)
		productID := f.addProduct(t, "1400")
		mainWarehouse, overflow := uuid.New(), uuid.New()
		f.addLayer(t, productID, mainWarehouse, "10", "5.00", received)
		f.addLayer(t, productID, overflow, "10", "5.00", received)
		f.journal.balances["1400"] = decimal.RequireFromString("50.00")

		r := resultFor(t, f.reconcile(t, &mainWarehouse, asOf), "1400")
		assert.True(t, r.InventoryValue.Equal(decimal.RequireFromString("50.00")))
		assert.True(t, r.IsReconciled)
	})

	t.Run("layers received after the cutoff are invisible", func(t *testing.T) {
		f := newReconFixture(t)
		productID := f.addProduct(t, "1400")
		f.addLayer(t, productID, uuid.New(), "10", "5.00", received)
		f.addLayer(t, productID, uuid.New(), "10", "5.00", asOf.AddDate(0, 0, 1))
		f.journal.balances["1400"] = decimal.RequireFromString("50.00")

		r := resultFor(t, f.reconcile(t, nil, asOf), "1400")
		assert.True(t, r.InventoryValue.Equal(decimal.RequireFromString("50.00")))
	})
}
