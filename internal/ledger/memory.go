package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"larder/internal/models"
	"larder/internal/units"

	"github.com/google/uuid"
)

// Memory is an in-process ledger with the same semantics as Store. A single
// mutex serializes all mutations, which trivially satisfies the per-ingredient
// atomicity requirement. Intended for tests and for embedding without a
// database.
type Memory struct {
	mu    sync.Mutex
	items map[string]*models.Ingredient
	txns  []models.StockTransaction
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]*models.Ingredient)}
}

// Create adds a new ingredient to the active set.
func (m *Memory) Create(ctx context.Context, item *models.Ingredient) error {
	if item.Name == "" {
		return fmt.Errorf("ingredient name is required")
	}
	if !units.Known(item.Unit) {
		return fmt.Errorf("%w: %q", ErrUnknownUnit, item.Unit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.items {
		if existing.Status == string(models.IngredientStatusActive) &&
			strings.EqualFold(existing.Name, item.Name) {
			return fmt.Errorf("%w: %q", ErrDuplicateName, item.Name)
		}
	}

	if item.ItemID == "" {
		item.ItemID = uuid.NewString()
	}
	item.Unit = units.Canonical(item.Unit)
	item.CurrentStock = units.Round2(item.CurrentStock)
	item.ReorderLevel = units.Round2(item.ReorderLevel)
	item.Status = string(models.IngredientStatusActive)
	item.LastUpdated = time.Now().UTC()

	clone := *item
	m.items[item.ItemID] = &clone
	return nil
}

// Get retrieves an active ingredient by its ID.
func (m *Memory) Get(ctx context.Context, itemID string) (*models.Ingredient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(itemID)
}

func (m *Memory) getLocked(itemID string) (*models.Ingredient, error) {
	item, ok := m.items[itemID]
	if !ok || item.Status != string(models.IngredientStatusActive) {
		return nil, ErrNotFound
	}
	clone := *item
	return &clone, nil
}

// GetByName retrieves an active ingredient by case-insensitive name.
func (m *Memory) GetByName(ctx context.Context, name string) (*models.Ingredient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name = strings.TrimSpace(name)
	for _, item := range m.items {
		if item.Status == string(models.IngredientStatusActive) && strings.EqualFold(item.Name, name) {
			clone := *item
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

// List returns ingredients matching the filter, sorted by name.
func (m *Memory) List(ctx context.Context, filter Filter) ([]models.Ingredient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := filter.Status
	if status == "" {
		status = string(models.IngredientStatusActive)
	}

	var out []models.Ingredient
	for _, item := range m.items {
		if item.Status != status {
			continue
		}
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		if filter.LowStockOnly && !item.BelowReorderLevel() {
			continue
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Update applies field updates to an ingredient.
func (m *Memory) Update(ctx context.Context, itemID string, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return ErrNotFound
	}

	if name, ok := updates["name"].(string); ok {
		for id, other := range m.items {
			if id != itemID && other.Status == string(models.IngredientStatusActive) &&
				strings.EqualFold(other.Name, strings.TrimSpace(name)) {
				return fmt.Errorf("%w: %q", ErrDuplicateName, name)
			}
		}
		item.Name = name
	}
	if category, ok := updates["category"].(string); ok {
		item.Category = category
	}
	if unit, ok := updates["unit"].(string); ok {
		if !units.Known(unit) {
			return fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
		}
		item.Unit = units.Canonical(unit)
	}
	if stock, ok := updates["current_stock"].(float64); ok {
		item.CurrentStock = units.Round2(stock)
	}
	if reorder, ok := updates["reorder_level"].(float64); ok {
		item.ReorderLevel = units.Round2(reorder)
	}
	if cost, ok := updates["unit_cost"].(float64); ok {
		item.UnitCost = cost
	}
	item.LastUpdated = time.Now().UTC()
	return nil
}

// SoftDelete marks an ingredient inactive.
func (m *Memory) SoftDelete(ctx context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return ErrNotFound
	}
	item.Status = string(models.IngredientStatusInactive)
	item.LastUpdated = time.Now().UTC()
	return nil
}

// CompareAndDeduct atomically checks sufficiency and decrements stock,
// appending the ledger entry under the same lock.
func (m *Memory) CompareAndDeduct(ctx context.Context, itemID string, baseQty float64, baseUnit string, meta TransactionMeta) (*DeductionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok || item.Status != string(models.IngredientStatusActive) {
		return nil, ErrNotFound
	}

	want := units.Canonical(baseUnit)
	stockBase, stockBaseUnit := units.Normalize(item.CurrentStock, item.Unit)
	if stockBaseUnit != want {
		return nil, &UnitMismatchError{Have: stockBaseUnit, Want: want}
	}
	if stockBase < baseQty {
		return nil, &InsufficientStockError{Required: baseQty, Available: stockBase, Unit: stockBaseUnit}
	}

	newBase := units.Round2(stockBase - baseQty)
	newStorage := units.Denormalize(newBase, stockBaseUnit, item.Unit)
	now := time.Now().UTC()

	txn := models.StockTransaction{
		TransactionID:    uuid.NewString(),
		ItemID:           item.ItemID,
		ItemName:         item.Name,
		TransactionType:  string(models.TransactionOrderDeduction),
		QuantityDeducted: baseQty,
		Unit:             stockBaseUnit,
		PreviousStock:    item.CurrentStock,
		NewStock:         newStorage,
		StorageUnit:      item.Unit,
		OrderID:          meta.OrderID,
		MenuItem:         meta.MenuItem,
		RecipeQuantity:   meta.RecipeQuantity,
		RecipeUnit:       meta.RecipeUnit,
		TransactionDate:  now,
		CreatedBy:        actorOrSystem(meta.Actor),
	}

	prev := item.CurrentStock
	item.CurrentStock = newStorage
	item.Version++
	item.LastUpdated = now
	m.txns = append(m.txns, txn)

	return &DeductionResult{
		PreviousStock: prev,
		NewStock:      newStorage,
		NewStockBase:  newBase,
		BaseUnit:      stockBaseUnit,
		Transaction:   &txn,
	}, nil
}

// Adjust sets stock to a new level and logs a manual adjustment.
func (m *Memory) Adjust(ctx context.Context, itemID string, newStock float64, actor string) (*DeductionResult, error) {
	newStock = units.Round2(newStock)
	if newStock < 0 {
		return nil, fmt.Errorf("stock cannot be negative: %g", newStock)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok || item.Status != string(models.IngredientStatusActive) {
		return nil, ErrNotFound
	}

	prevBase, baseUnit := units.Normalize(item.CurrentStock, item.Unit)
	newBase, _ := units.Normalize(newStock, item.Unit)
	now := time.Now().UTC()

	txn := models.StockTransaction{
		TransactionID:    uuid.NewString(),
		ItemID:           item.ItemID,
		ItemName:         item.Name,
		TransactionType:  string(models.TransactionManualAdjustment),
		QuantityDeducted: units.Round2(prevBase - newBase),
		Unit:             baseUnit,
		PreviousStock:    item.CurrentStock,
		NewStock:         newStock,
		StorageUnit:      item.Unit,
		TransactionDate:  now,
		CreatedBy:        actorOrSystem(actor),
	}

	prev := item.CurrentStock
	item.CurrentStock = newStock
	item.Version++
	item.LastUpdated = now
	m.txns = append(m.txns, txn)

	return &DeductionResult{
		PreviousStock: prev,
		NewStock:      newStock,
		NewStockBase:  newBase,
		BaseUnit:      baseUnit,
		Transaction:   &txn,
	}, nil
}

// LowStock returns active ingredients at or below their reorder level.
func (m *Memory) LowStock(ctx context.Context) ([]models.Ingredient, error) {
	return m.List(ctx, Filter{LowStockOnly: true})
}

// Transactions returns ledger history, newest first.
func (m *Memory) Transactions(ctx context.Context, filter TransactionFilter) ([]models.StockTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	} else if limit > 500 {
		limit = 500
	}

	var out []models.StockTransaction
	for i := len(m.txns) - 1; i >= 0 && len(out) < limit; i-- {
		txn := m.txns[i]
		if filter.OrderID != "" && txn.OrderID != filter.OrderID {
			continue
		}
		if filter.ItemName != "" && !strings.Contains(strings.ToLower(txn.ItemName), strings.ToLower(filter.ItemName)) {
			continue
		}
		out = append(out, txn)
	}
	return out, nil
}

// Stats returns dashboard aggregates over the active set.
func (m *Memory) Stats(ctx context.Context) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &Stats{}
	for _, item := range m.items {
		if item.Status != string(models.IngredientStatusActive) {
			continue
		}
		stats.TotalItems++
		if item.BelowReorderLevel() {
			stats.LowStockItems++
		}
		stats.TotalInventoryValue += item.InventoryValue()
	}
	stats.TotalInventoryValue = units.Round2(stats.TotalInventoryValue)

	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	for i := range m.txns {
		if m.txns[i].TransactionDate.After(yesterday) {
			stats.RecentTransactions++
		}
	}
	return stats, nil
}

var _ Ledger = (*Memory)(nil)
var _ Ledger = (*Store)(nil)
