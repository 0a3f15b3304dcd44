package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"larder/internal/models"
	"larder/internal/units"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryWith(t *testing.T, item *models.Ingredient) *Memory {
	t.Helper()
	m := NewMemory()
	require.NoError(t, m.Create(context.Background(), item))
	return m
}

func TestMemoryDeductMatchesStoreSemantics(t *testing.T) {
	ctx := context.Background()
	butter := &models.Ingredient{Name: "Butter", Unit: "kg", CurrentStock: 1.1, ReorderLevel: 0.5}
	m := newMemoryWith(t, butter)

	res, err := m.CompareAndDeduct(ctx, butter.ItemID, 400, units.Gram, TransactionMeta{OrderID: "o1"})
	require.NoError(t, err)
	assert.Equal(t, 0.7, res.NewStock)
	assert.Equal(t, 700.0, res.NewStockBase)

	got, err := m.Get(ctx, butter.ItemID)
	require.NoError(t, err)
	assert.Equal(t, 0.7, got.CurrentStock)

	txns, err := m.Transactions(ctx, TransactionFilter{OrderID: "o1"})
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestMemoryConcurrentDeductionSingleWinner(t *testing.T) {
	// 500 gm on hand; two concurrent orders each need 400 gm. Exactly one may
	// win, and stock must never go negative.
	ctx := context.Background()
	butter := &models.Ingredient{Name: "Butter", Unit: "gm", CurrentStock: 500}
	m := newMemoryWith(t, butter)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.CompareAndDeduct(ctx, butter.ItemID, 400, units.Gram, TransactionMeta{OrderID: "race"})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, insufficient int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		var e *InsufficientStockError
		require.ErrorAs(t, err, &e)
		insufficient++
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, insufficient)

	got, err := m.Get(ctx, butter.ItemID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.CurrentStock)
}

func TestMemoryConcurrentDeductionsDrainExactly(t *testing.T) {
	ctx := context.Background()
	flour := &models.Ingredient{Name: "Flour", Unit: "kg", CurrentStock: 1}
	m := newMemoryWith(t, flour)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.CompareAndDeduct(ctx, flour.ItemID, 100, units.Gram, TransactionMeta{OrderID: "drain"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := m.Get(ctx, flour.ItemID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.CurrentStock)

	txns, err := m.Transactions(ctx, TransactionFilter{OrderID: "drain"})
	require.NoError(t, err)
	assert.Len(t, txns, 10)
}

func TestMemorySoftDeleteHidesItem(t *testing.T) {
	ctx := context.Background()
	butter := &models.Ingredient{Name: "Butter", Unit: "kg", CurrentStock: 1}
	m := newMemoryWith(t, butter)

	require.NoError(t, m.SoftDelete(ctx, butter.ItemID))

	_, err := m.Get(ctx, butter.ItemID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.CompareAndDeduct(ctx, butter.ItemID, 100, units.Gram, TransactionMeta{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUpdateRejectsDuplicateRename(t *testing.T) {
	ctx := context.Background()
	butter := &models.Ingredient{Name: "Butter", Unit: "kg", CurrentStock: 1}
	m := newMemoryWith(t, butter)

	ghee := &models.Ingredient{Name: "Ghee", Unit: "kg", CurrentStock: 3}
	require.NoError(t, m.Create(ctx, ghee))

	err := m.Update(ctx, ghee.ItemID, map[string]interface{}{"name": "butter"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	// Renaming an item to its own name is not a conflict.
	require.NoError(t, m.Update(ctx, butter.ItemID, map[string]interface{}{"name": "Butter"}))

	got, err := m.Get(ctx, ghee.ItemID)
	require.NoError(t, err)
	assert.Equal(t, "Ghee", got.Name)
}

func TestMemoryTransactionLimitClamps(t *testing.T) {
	ctx := context.Background()
	flour := &models.Ingredient{Name: "Flour", Unit: "kg", CurrentStock: 100}
	m := newMemoryWith(t, flour)

	for i := 0; i < 60; i++ {
		_, err := m.CompareAndDeduct(ctx, flour.ItemID, 100, units.Gram, TransactionMeta{OrderID: "bulk"})
		require.NoError(t, err)
	}

	// Zero falls back to the default page size.
	txns, err := m.Transactions(ctx, TransactionFilter{})
	require.NoError(t, err)
	assert.Len(t, txns, 50)

	// An oversized limit clamps to the maximum rather than the default.
	txns, err = m.Transactions(ctx, TransactionFilter{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, txns, 60)
}

func TestMemoryContextCancellation(t *testing.T) {
	butter := &models.Ingredient{Name: "Butter", Unit: "kg", CurrentStock: 1}
	m := newMemoryWith(t, butter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.CompareAndDeduct(ctx, butter.ItemID, 100, units.Gram, TransactionMeta{})
	assert.True(t, errors.Is(err, context.Canceled))
}
