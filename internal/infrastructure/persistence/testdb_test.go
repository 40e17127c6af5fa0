package persistence

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stockledger/backend/internal/domain/costing"
	"github.com/stockledger/backend/internal/domain/finance"
	"github.com/stockledger/backend/internal/domain/movement"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter atomic.Int64

// newTestDB opens an isolated in-memory database with the full schema. The
// named shared-cache DSN keeps the connection pool on one database while
// still isolating tests from each other.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&costing.CostLayer{},
		&costing.ProductCosting{},
		&costing.ValuationMethodChange{},
		&costing.MovementConsumption{},
		&finance.JournalVoucher{},
		&finance.JournalLine{},
		&finance.PostingRule{},
		&finance.PostingDeadLetter{},
		&movement.StockMovement{},
		&movement.StockMovementLine{},
	))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return db
}
