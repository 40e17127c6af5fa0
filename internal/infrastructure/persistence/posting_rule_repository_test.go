package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/finance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormPostingRuleRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("scope levels are matched exactly", func(t *testing.T) {
		repo := NewGormPostingRuleRepository(newTestDB(t))
		companyID := uuid.New()
		categoryID, warehouseID := uuid.New(), uuid.New()

		companyWide := finance.NewPostingRule(companyID, nil, nil, finance.TransactionTypeIssue)
		companyWide.InventoryAccount = "1400"
		companyWide.COGSAccount = "5000"
		require.NoError(t, repo.Save(ctx, companyWide))

		categoryScoped := finance.NewPostingRule(companyID, &categoryID, nil, finance.TransactionTypeIssue)
		categoryScoped.InventoryAccount = "1410"
		categoryScoped.COGSAccount = "5010"
		require.NoError(t, repo.Save(ctx, categoryScoped))

		fullScope := finance.NewPostingRule(companyID, &categoryID, &warehouseID, finance.TransactionTypeIssue)
		fullScope.InventoryAccount = "1420"
		require.NoError(t, repo.Save(ctx, fullScope))

		rule, err := repo.FindActive(ctx, companyID, &categoryID, &warehouseID, finance.TransactionTypeIssue)
		require.NoError(t, err)
		require.NotNil(t, rule)
		assert.Equal(t, "1420", rule.InventoryAccount)

		rule, err = repo.FindActive(ctx, companyID, &categoryID, nil, finance.TransactionTypeIssue)
		require.NoError(t, err)
		require.NotNil(t, rule)
		assert.Equal(t, "1410", rule.InventoryAccount)

		rule, err = repo.FindActive(ctx, companyID, nil, nil, finance.TransactionTypeIssue)
		require.NoError(t, err)
		require.NotNil(t, rule)
		assert.Equal(t, "1400", rule.InventoryAccount)

		// A category+warehouse scope that was never configured does not fall
		// through here; the resolver walks the levels itself.
		otherWarehouse := uuid.New()
		rule, err = repo.FindActive(ctx, companyID, &categoryID, &otherWarehouse, finance.TransactionTypeIssue)
		require.NoError(t, err)
		assert.Nil(t, rule)
	})

	t.Run("inactive rules are invisible", func(t *testing.T) {
		repo := NewGormPostingRuleRepository(newTestDB(t))
		companyID := uuid.New()

		rule := finance.NewPostingRule(companyID, nil, nil, finance.TransactionTypeReceipt)
		rule.Active = false
		require.NoError(t, repo.Save(ctx, rule))

		found, err := repo.FindActive(ctx, companyID, nil, nil, finance.TransactionTypeReceipt)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("transaction type is part of the scope", func(t *testing.T) {
		repo := NewGormPostingRuleRepository(newTestDB(t))
		companyID := uuid.New()

		receipt := finance.NewPostingRule(companyID, nil, nil, finance.TransactionTypeReceipt)
		receipt.InventoryAccount = "1400"
		require.NoError(t, repo.Save(ctx, receipt))

		found, err := repo.FindActive(ctx, companyID, nil, nil, finance.TransactionTypeIssue)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}
