package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"larder/internal/database"
	"larder/internal/models"
	"larder/internal/units"

	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "ledger_test.db")
	db, err := database.Open("sqlite3", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db))
	return NewStore(db, zerolog.Nop())
}

func newButter(t *testing.T, s *Store) *models.Ingredient {
	t.Helper()

	butter := &models.Ingredient{
		Name:         "Butter",
		Category:     "Dairy",
		Unit:         "kg",
		CurrentStock: 1.1,
		ReorderLevel: 0.5,
		UnitCost:     400,
	}
	require.NoError(t, s.Create(context.Background(), butter))
	return butter
}

func TestStoreCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	butter := newButter(t, s)

	assert.NotEmpty(t, butter.ItemID)
	assert.Equal(t, string(models.IngredientStatusActive), butter.Status)

	got, err := s.Get(ctx, butter.ItemID)
	require.NoError(t, err)
	assert.Equal(t, "Butter", got.Name)
	assert.Equal(t, 1.1, got.CurrentStock)

	// Name lookup is case-insensitive.
	got, err = s.GetByName(ctx, "  bUtTeR ")
	require.NoError(t, err)
	assert.Equal(t, butter.ItemID, got.ItemID)

	_, err = s.Get(ctx, "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreCreateValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newButter(t, s)

	err := s.Create(ctx, &models.Ingredient{Name: "butter", Unit: "kg"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	err = s.Create(ctx, &models.Ingredient{Name: "Saffron", Unit: "pinches"})
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestStoreCompareAndDeduct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	butter := newButter(t, s)

	// 1.1 kg = 1100 gm; deduct 400 gm; 700 gm = 0.7 kg remain.
	res, err := s.CompareAndDeduct(ctx, butter.ItemID, 400, units.Gram, TransactionMeta{
		OrderID:        "order-1",
		MenuItem:       "Butter Naan",
		RecipeQuantity: 400,
		RecipeUnit:     "gm",
	})
	require.NoError(t, err)

	assert.Equal(t, 1.1, res.PreviousStock)
	assert.Equal(t, 0.7, res.NewStock)
	assert.Equal(t, 700.0, res.NewStockBase)
	assert.Equal(t, units.Gram, res.BaseUnit)

	got, err := s.Get(ctx, butter.ItemID)
	require.NoError(t, err)
	assert.Equal(t, 0.7, got.CurrentStock)
	assert.Equal(t, 1, got.Version)

	require.NotNil(t, res.Transaction)
	txn := res.Transaction
	assert.Equal(t, 400.0, txn.QuantityDeducted)
	assert.Equal(t, "gm", txn.Unit)
	assert.Equal(t, 1.1, txn.PreviousStock)
	assert.Equal(t, 0.7, txn.NewStock)
	assert.Equal(t, "kg", txn.StorageUnit)
	assert.Equal(t, "order-1", txn.OrderID)

	txns, err := s.Transactions(ctx, TransactionFilter{OrderID: "order-1"})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "Butter", txns[0].ItemName)
}

func TestStoreInsufficientStockLeavesStockUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	butter := newButter(t, s)

	_, err := s.CompareAndDeduct(ctx, butter.ItemID, 2000, units.Gram, TransactionMeta{OrderID: "order-1"})

	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 2000.0, insufficient.Required)
	assert.Equal(t, 1100.0, insufficient.Available)
	assert.Equal(t, units.Gram, insufficient.Unit)

	// Failed attempts are idempotent: nothing written, nothing logged.
	got, err := s.Get(ctx, butter.ItemID)
	require.NoError(t, err)
	assert.Equal(t, 1.1, got.CurrentStock)
	assert.Equal(t, 0, got.Version)

	txns, err := s.Transactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestStoreUnitMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	butter := newButter(t, s)

	_, err := s.CompareAndDeduct(ctx, butter.ItemID, 3, units.Pieces, TransactionMeta{OrderID: "order-1"})

	var mismatch *UnitMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, units.Gram, mismatch.Have)
	assert.Equal(t, units.Pieces, mismatch.Want)
}

func TestStoreAdjustLogsManualAdjustment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	butter := newButter(t, s)

	res, err := s.Adjust(ctx, butter.ItemID, 5, "manager")
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.NewStock)

	txns, err := s.Transactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, string(models.TransactionManualAdjustment), txns[0].TransactionType)
	assert.Equal(t, "manager", txns[0].CreatedBy)
	// Stock rose from 1.1 kg to 5 kg: signed delta is -3900 gm.
	assert.Equal(t, -3900.0, txns[0].QuantityDeducted)

	_, err = s.Adjust(ctx, butter.ItemID, -1, "manager")
	assert.Error(t, err)
}

func TestStoreReplayInvariant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	butter := newButter(t, s)

	_, err := s.CompareAndDeduct(ctx, butter.ItemID, 200, units.Gram, TransactionMeta{OrderID: "o1"})
	require.NoError(t, err)
	_, err = s.Adjust(ctx, butter.ItemID, 2, "manager")
	require.NoError(t, err)
	_, err = s.CompareAndDeduct(ctx, butter.ItemID, 500, units.Gram, TransactionMeta{OrderID: "o2"})
	require.NoError(t, err)

	// Replaying the log oldest-first reproduces the current stock.
	txns, err := s.Transactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 3)
	for i, j := 0, len(txns)-1; i < j; i, j = i+1, j-1 {
		txns[i], txns[j] = txns[j], txns[i]
	}

	stock := 1.1
	for _, txn := range txns {
		assert.InDelta(t, stock, txn.PreviousStock, 0.01)
		stock = txn.NewStock
	}

	got, err := s.Get(ctx, butter.ItemID)
	require.NoError(t, err)
	assert.InDelta(t, stock, got.CurrentStock, 0.01)
}

func TestStoreSoftDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	butter := newButter(t, s)

	_, err := s.CompareAndDeduct(ctx, butter.ItemID, 100, units.Gram, TransactionMeta{OrderID: "o1"})
	require.NoError(t, err)

	require.NoError(t, s.SoftDelete(ctx, butter.ItemID))

	_, err = s.Get(ctx, butter.ItemID)
	assert.ErrorIs(t, err, ErrNotFound)

	// History survives the delete.
	txns, err := s.Transactions(ctx, TransactionFilter{ItemName: "butter"})
	require.NoError(t, err)
	assert.Len(t, txns, 1)

	// The row is still there, just inactive.
	items, err := s.List(ctx, Filter{Status: string(models.IngredientStatusInactive)})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestStoreLowStockAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &models.Ingredient{
		Name: "Paneer", Category: "Dairy", Unit: "kg",
		CurrentStock: 10, ReorderLevel: 2, UnitCost: 350,
	}))
	require.NoError(t, s.Create(ctx, &models.Ingredient{
		Name: "Tomato", Category: "Vegetables", Unit: "kg",
		CurrentStock: 1.5, ReorderLevel: 2, UnitCost: 40,
	}))
	require.NoError(t, s.Create(ctx, &models.Ingredient{
		Name: "Onion", Category: "Vegetables", Unit: "kg",
		CurrentStock: 0.5, ReorderLevel: 2, UnitCost: 30,
	}))

	low, err := s.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, models.UrgencyCritical, low[0].Urgency()) // Onion at 25% of reorder level
	assert.Equal(t, models.UrgencyWarning, low[1].Urgency())  // Tomato at 75%

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalItems)
	assert.Equal(t, 2, stats.LowStockItems)
	assert.InDelta(t, 10*350+1.5*40+0.5*30, stats.TotalInventoryValue, 0.01)
	assert.Equal(t, 0, stats.RecentTransactions)
}

func TestStoreListFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &models.Ingredient{
		Name: "Paneer", Category: "Dairy", Unit: "kg", CurrentStock: 10, ReorderLevel: 2,
	}))
	require.NoError(t, s.Create(ctx, &models.Ingredient{
		Name: "Tomato", Category: "Vegetables", Unit: "kg", CurrentStock: 1, ReorderLevel: 2,
	}))

	dairy, err := s.List(ctx, Filter{Category: "Dairy"})
	require.NoError(t, err)
	require.Len(t, dairy, 1)
	assert.Equal(t, "Paneer", dairy[0].Name)

	low, err := s.List(ctx, Filter{LowStockOnly: true})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "Tomato", low[0].Name)
}

func TestStoreUpdateValidatesUnit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	butter := newButter(t, s)

	err := s.Update(ctx, butter.ItemID, map[string]interface{}{"unit": "handfuls"})
	assert.ErrorIs(t, err, ErrUnknownUnit)

	err = s.Update(ctx, butter.ItemID, map[string]interface{}{"current_stock": 2.567})
	require.NoError(t, err)

	got, err := s.Get(ctx, butter.ItemID)
	require.NoError(t, err)
	assert.Equal(t, 2.57, got.CurrentStock)
}

func TestStoreUpdateRejectsDuplicateRename(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	butter := newButter(t, s)

	ghee := &models.Ingredient{Name: "Ghee", Unit: "kg", CurrentStock: 3}
	require.NoError(t, s.Create(ctx, ghee))

	err := s.Update(ctx, ghee.ItemID, map[string]interface{}{"name": "butter"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	// Renaming an item to its own name is not a conflict.
	err = s.Update(ctx, butter.ItemID, map[string]interface{}{"name": "Butter", "unit_cost": 420.0})
	require.NoError(t, err)

	got, err := s.Get(ctx, ghee.ItemID)
	require.NoError(t, err)
	assert.Equal(t, "Ghee", got.Name)
}

// Guard against accidentally returning gorm's record-not-found directly.
func TestStoreNotFoundIsPackageSentinel(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetByName(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, errors.Is(err, gorm.ErrRecordNotFound))
}
