package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ResolvedAccounts are the GL accounts a movement posts to
type ResolvedAccounts struct {
	InventoryAccount string
	COGSAccount      string
	ClearingAccount  string
	VarianceAccount  string

	// Source names the resolver that produced the result, for audit logs
	Source string
}

// ResolutionContext carries everything a resolver may consult
type ResolutionContext struct {
	CompanyID       uuid.UUID
	ProductID       uuid.UUID
	WarehouseID     uuid.UUID
	CategoryID      *uuid.UUID
	TransactionType TransactionType

	// Product is the costing configuration of the product, pre-loaded by
	// the resolver chain. Nil when the product has none.
	Product *costing.ProductCosting
}

// AccountResolver is one level of the resolution hierarchy. A nil result
// without error means "no match here, try the next level".
type AccountResolver interface {
	// Name identifies the resolver in logs
	Name() string
	// Resolve attempts to resolve accounts for the context
	Resolve(ctx context.Context, rc ResolutionContext) (*ResolvedAccounts, error)
}

// ruleScope narrows which posting rule columns must match
type ruleScope int

const (
	scopeCategoryWarehouse ruleScope = iota // (company, category, warehouse, type)
	scopeCategory                           // (company, category, type)
	scopeCompany                            // (company, type)
)

// postingRuleResolver resolves from posting rules at one scope level
type postingRuleResolver struct {
	rules PostingRuleRepository
	scope ruleScope
}

func (r *postingRuleResolver) Name() string {
	switch r.scope {
	case scopeCategoryWarehouse:
		return "rule:company+category+warehouse"
	case scopeCategory:
		return "rule:company+category"
	default:
		return "rule:company"
	}
}

func (r *postingRuleResolver) Resolve(ctx context.Context, rc ResolutionContext) (*ResolvedAccounts, error) {
	var categoryID, warehouseID *uuid.UUID
	switch r.scope {
	case scopeCategoryWarehouse:
		if rc.CategoryID == nil {
			return nil, nil
		}
		categoryID = rc.CategoryID
		warehouseID = &rc.WarehouseID
	case scopeCategory:
		if rc.CategoryID == nil {
			return nil, nil
		}
		categoryID = rc.CategoryID
	}

	rule, err := r.rules.FindActive(ctx, rc.CompanyID, categoryID, warehouseID, rc.TransactionType)
	if err != nil {
		return nil, fmt.Errorf("failed to query posting rule: %w", err)
	}
	if rule == nil {
		return nil, nil
	}
	return &ResolvedAccounts{
		InventoryAccount: rule.InventoryAccount,
		COGSAccount:      rule.COGSAccount,
		ClearingAccount:  rule.ClearingAccount,
		VarianceAccount:  rule.VarianceAccount,
		Source:           r.Name(),
	}, nil
}

// productAccountResolver falls back to the accounts configured on the
// product itself, the last level of the hierarchy
type productAccountResolver struct{}

func (r *productAccountResolver) Name() string {
	return "product"
}

func (r *productAccountResolver) Resolve(_ context.Context, rc ResolutionContext) (*ResolvedAccounts, error) {
	if rc.Product == nil {
		return nil, nil
	}
	if rc.Product.InventoryAccount == "" && rc.Product.ExpenseAccount == "" {
		return nil, nil
	}
	return &ResolvedAccounts{
		InventoryAccount: rc.Product.InventoryAccount,
		COGSAccount:      rc.Product.ExpenseAccount,
		Source:           r.Name(),
	}, nil
}

// PostingAccountResolver walks an explicit, ordered list of resolver
// strategies and returns the first match. Exhausting every level is fatal
// for the movement being posted (UNRESOLVED_ACCOUNT), never silently
// skipped.
type PostingAccountResolver struct {
	products  costing.ProductCostingRepository
	resolvers []AccountResolver
	logger    *zap.Logger
}

// NewPostingAccountResolver builds the default four-level chain:
// category+warehouse rule, category rule, company rule, product accounts.
func NewPostingAccountResolver(
	rules PostingRuleRepository,
	products costing.ProductCostingRepository,
	logger *zap.Logger,
) *PostingAccountResolver {
	return &PostingAccountResolver{
		products: products,
		resolvers: []AccountResolver{
			&postingRuleResolver{rules: rules, scope: scopeCategoryWarehouse},
			&postingRuleResolver{rules: rules, scope: scopeCategory},
			&postingRuleResolver{rules: rules, scope: scopeCompany},
			&productAccountResolver{},
		},
		logger: logger,
	}
}

// Resolve resolves the GL accounts for a transaction. The product's costing
// configuration is loaded once and shared by every level of the chain.
func (r *PostingAccountResolver) Resolve(
	ctx context.Context,
	companyID, productID, warehouseID uuid.UUID,
	txType TransactionType,
) (*ResolvedAccounts, error) {
	if !txType.IsValid() {
		return nil, shared.ErrInvalidInput
	}

	rc := ResolutionContext{
		CompanyID:       companyID,
		ProductID:       productID,
		WarehouseID:     warehouseID,
		TransactionType: txType,
	}

	pc, err := r.products.FindByProduct(ctx, companyID, productID)
	switch {
	case err == nil:
		rc.Product = pc
		rc.CategoryID = pc.CategoryID
	case errors.Is(err, shared.ErrNotFound):
		// No costing configuration; rule levels may still match.
	default:
		return nil, fmt.Errorf("failed to load product costing: %w", err)
	}

	for _, resolver := range r.resolvers {
		accounts, err := resolver.Resolve(ctx, rc)
		if err != nil {
			return nil, err
		}
		if accounts != nil {
			r.logger.Debug("posting accounts resolved",
				zap.String("company_id", companyID.String()),
				zap.String("product_id", productID.String()),
				zap.String("transaction_type", txType.String()),
				zap.String("resolver", accounts.Source),
				zap.String("inventory_account", accounts.InventoryAccount),
			)
			return accounts, nil
		}
	}

	r.logger.Warn("posting account resolution exhausted all levels",
		zap.String("company_id", companyID.String()),
		zap.String("product_id", productID.String()),
		zap.String("warehouse_id", warehouseID.String()),
		zap.String("transaction_type", txType.String()),
	)
	return nil, shared.ErrUnresolvedAccount
}
