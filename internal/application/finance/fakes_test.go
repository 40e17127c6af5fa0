package finance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/finance"
	"github.com/stockledger/backend/internal/domain/movement"
	"github.com/stockledger/backend/internal/domain/shared"
)

// In-memory repositories backing the bridge tests. Reads hand out copies so
// a failed pricing attempt cannot leak partial mutation into the store.

type memMovementRepo struct {
	movements map[uuid.UUID]*movement.StockMovement
}

func newMemMovementRepo() *memMovementRepo {
	return &memMovementRepo{movements: make(map[uuid.UUID]*movement.StockMovement)}
}

func (r *memMovementRepo) FindByID(_ context.Context, id uuid.UUID) (*movement.StockMovement, error) {
	m, ok := r.movements[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return m, nil
}

func (r *memMovementRepo) Save(_ context.Context, m *movement.StockMovement) error {
	r.movements[m.ID] = m
	return nil
}

type memLayerRepo struct {
	layers map[uuid.UUID]costing.CostLayer
	seqs   map[string]int64
}

func newMemLayerRepo() *memLayerRepo {
	return &memLayerRepo{
		layers: make(map[uuid.UUID]costing.CostLayer),
		seqs:   make(map[string]int64),
	}
}

func layerScope(companyID, productID, warehouseID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/%s", companyID, productID, warehouseID)
}

func (r *memLayerRepo) NextFIFOSequence(_ context.Context, companyID, productID, warehouseID uuid.UUID) (int64, error) {
	key := layerScope(companyID, productID, warehouseID)
	r.seqs[key]++
	return r.seqs[key], nil
}

func (r *memLayerRepo) FindByID(_ context.Context, id uuid.UUID) (*costing.CostLayer, error) {
	layer, ok := r.layers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &layer, nil
}

func (r *memLayerRepo) ListOpen(_ context.Context, companyID, productID, warehouseID uuid.UUID, order costing.LayerOrder) ([]costing.CostLayer, error) {
	var open []costing.CostLayer
	for _, layer := range r.layers {
		if layer.CompanyID == companyID && layer.ProductID == productID &&
			layer.WarehouseID == warehouseID && layer.QtyRemaining.IsPositive() {
			open = append(open, layer)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		if order == costing.LayerOrderLIFO {
			return open[i].FIFOSequence > open[j].FIFOSequence
		}
		return open[i].FIFOSequence < open[j].FIFOSequence
	})
	return open, nil
}

func (r *memLayerRepo) ListOpenByCompany(_ context.Context, companyID uuid.UUID, warehouseID *uuid.UUID) ([]costing.CostLayer, error) {
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

func (r *memLayerRepo) ListByMovement(_ context.Context, movementID uuid.UUID) ([]costing.CostLayer, error) {
	var layers []costing.CostLayer
	for _, layer := range r.layers {
		if layer.SourceMovementID != nil && *layer.SourceMovementID == movementID {
			layers = append(layers, layer)
		}
	}
	return layers, nil
}

func (r *memLayerRepo) Save(_ context.Context, layer *costing.CostLayer) error {
	r.layers[layer.ID] = *layer
	return nil
}

func (r *memLayerRepo) SaveAll(ctx context.Context, layers []*costing.CostLayer) error {
	for _, layer := range layers {
		if err := r.Save(ctx, layer); err != nil {
			return err
		}
	}
	return nil
}

type memCostingRepo struct {
	configs map[string]*costing.ProductCosting
}

func newMemCostingRepo() *memCostingRepo {
	return &memCostingRepo{configs: make(map[string]*costing.ProductCosting)}
}

func productScope(companyID, productID uuid.UUID) string {
	return companyID.String() + "/" + productID.String()
}

func (r *memCostingRepo) FindByProduct(_ context.Context, companyID, productID uuid.UUID) (*costing.ProductCosting, error) {
	pc, ok := r.configs[productScope(companyID, productID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return pc, nil
}

func (r *memCostingRepo) ListByCompany(_ context.Context, companyID uuid.UUID) ([]costing.ProductCosting, error) {
	var configs []costing.ProductCosting
	for _, pc := range r.configs {
		if pc.CompanyID == companyID {
			configs = append(configs, *pc)
		}
	}
	return configs, nil
}

func (r *memCostingRepo) ListCompanies(_ context.Context) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var companies []uuid.UUID
	for _, pc := range r.configs {
		if !seen[pc.CompanyID] {
			seen[pc.CompanyID] = true
			companies = append(companies, pc.CompanyID)
		}
	}
	return companies, nil
}

func (r *memCostingRepo) Save(_ context.Context, pc *costing.ProductCosting) error {
	r.configs[productScope(pc.CompanyID, pc.ProductID)] = pc
	return nil
}

type memChangeRepo struct {
	changes []costing.ValuationMethodChange
}

func (r *memChangeRepo) Save(_ context.Context, change *costing.ValuationMethodChange) error {
	r.changes = append(r.changes, *change)
	return nil
}

func (r *memChangeRepo) ListByProduct(_ context.Context, companyID, productID uuid.UUID) ([]costing.ValuationMethodChange, error) {
	var out []costing.ValuationMethodChange
	for _, c := range r.changes {
		if c.CompanyID == companyID && c.ProductID == productID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memConsumptionRepo struct {
	records map[string]*costing.MovementConsumption
}

func newMemConsumptionRepo() *memConsumptionRepo {
	return &memConsumptionRepo{records: make(map[string]*costing.MovementConsumption)}
}

func consumptionScope(movementID, productID, warehouseID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/%s", movementID, productID, warehouseID)
}

func (r *memConsumptionRepo) FindByMovementLine(_ context.Context, movementID, productID, warehouseID uuid.UUID) (*costing.MovementConsumption, error) {
	mc, ok := r.records[consumptionScope(movementID, productID, warehouseID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return mc, nil
}

func (r *memConsumptionRepo) Save(_ context.Context, mc *costing.MovementConsumption) error {
	r.records[consumptionScope(mc.MovementID, mc.ProductID, mc.WarehouseID)] = mc
	return nil
}

type memJournalRepo struct {
	vouchers map[string]*finance.JournalVoucher
}

func newMemJournalRepo() *memJournalRepo {
	return &memJournalRepo{vouchers: make(map[string]*finance.JournalVoucher)}
}

func journalSource(sourceType string, sourceID uuid.UUID) string {
	return sourceType + "/" + sourceID.String()
}

func (r *memJournalRepo) ExistsBySource(_ context.Context, sourceType string, sourceID uuid.UUID) (bool, error) {
	_, ok := r.vouchers[journalSource(sourceType, sourceID)]
	return ok, nil
}

func (r *memJournalRepo) FindBySource(_ context.Context, sourceType string, sourceID uuid.UUID) (*finance.JournalVoucher, error) {
	v, ok := r.vouchers[journalSource(sourceType, sourceID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return v, nil
}

func (r *memJournalRepo) Save(_ context.Context, voucher *finance.JournalVoucher) error {
	key := journalSource(voucher.SourceDocumentType, voucher.SourceDocumentID)
	if _, ok := r.vouchers[key]; ok {
		return shared.ErrAlreadyExists
	}
	r.vouchers[key] = voucher
	return nil
}

func (r *memJournalRepo) BalanceAsOf(_ context.Context, _ uuid.UUID, accountCode string, _ time.Time) (decimal.Decimal, error) {
	balance := decimal.Zero
	for _, v := range r.vouchers {
		for _, line := range v.Lines {
			if line.AccountCode == accountCode {
				balance = balance.Add(line.Debit).Sub(line.Credit)
			}
		}
	}
	return balance, nil
}

type memRuleRepo struct {
	rules []*finance.PostingRule
}

func (r *memRuleRepo) FindActive(_ context.Context, companyID uuid.UUID, categoryID, warehouseID *uuid.UUID, txType finance.TransactionType) (*finance.PostingRule, error) {
	for _, rule := range r.rules {
		if rule.CompanyID != companyID || rule.TransactionType != txType || !rule.Active {
			continue
		}
		if !uuidPtrEqual(rule.CategoryID, categoryID) || !uuidPtrEqual(rule.WarehouseID, warehouseID) {
			continue
		}
		return rule, nil
	}
	return nil, nil
}

func (r *memRuleRepo) Save(_ context.Context, rule *finance.PostingRule) error {
	r.rules = append(r.rules, rule)
	return nil
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type memDeadLetterRepo struct {
	letters map[uuid.UUID]*finance.PostingDeadLetter
}

func newMemDeadLetterRepo() *memDeadLetterRepo {
	return &memDeadLetterRepo{letters: make(map[uuid.UUID]*finance.PostingDeadLetter)}
}

func (r *memDeadLetterRepo) Save(_ context.Context, dl *finance.PostingDeadLetter) error {
	r.letters[dl.ID] = dl
	return nil
}

func (r *memDeadLetterRepo) FindByID(_ context.Context, id uuid.UUID) (*finance.PostingDeadLetter, error) {
	dl, ok := r.letters[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return dl, nil
}

func (r *memDeadLetterRepo) FindOpenByMovement(_ context.Context, movementID uuid.UUID) (*finance.PostingDeadLetter, error) {
	for _, dl := range r.letters {
		if dl.MovementID == movementID && !dl.Resolved {
			return dl, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memDeadLetterRepo) ListOpen(_ context.Context, companyID uuid.UUID) ([]finance.PostingDeadLetter, error) {
	var open []finance.PostingDeadLetter
	for _, dl := range r.letters {
		if dl.CompanyID == companyID && !dl.Resolved {
			open = append(open, *dl)
		}
	}
	return open, nil
}

// capturePublisher records published events so retry tests can redeliver
// them by hand
type capturePublisher struct {
	events []shared.DomainEvent
}

func (p *capturePublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

// noopGuard satisfies the mutation guard without locking; the tests are
// single-goroutine
type noopGuard struct{}

func (noopGuard) Acquire(_, _, _ uuid.UUID) (release func()) {
	return func() {}
}
