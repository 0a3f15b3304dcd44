package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"larder/internal/models"
	"larder/internal/units"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog"
)

// casRetries bounds the optimistic-concurrency retry loop. A conflict means
// another writer committed between our read and our conditional update; after
// this many losses the deduction is reported as a persistence failure.
const casRetries = 5

// Store is the GORM-backed ledger. The sufficiency check and the decrement
// are made atomic with a versioned conditional update: the write only lands
// if the row still carries the version we read, otherwise we re-read and
// retry. The stock update and the transaction-log append share one database
// transaction so both commit or neither does.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewStore creates a ledger store over an open database connection.
func NewStore(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "ledger").Logger()}
}

// Create adds a new ingredient to the active set.
func (s *Store) Create(ctx context.Context, item *models.Ingredient) error {
	if item.Name == "" {
		return fmt.Errorf("ingredient name is required")
	}
	if !units.Known(item.Unit) {
		return fmt.Errorf("%w: %q", ErrUnknownUnit, item.Unit)
	}
	if existing, err := s.GetByName(ctx, item.Name); err == nil && existing != nil {
		return fmt.Errorf("%w: %q", ErrDuplicateName, item.Name)
	}

	if item.ItemID == "" {
		item.ItemID = uuid.NewString()
	}
	item.Unit = units.Canonical(item.Unit)
	item.CurrentStock = units.Round2(item.CurrentStock)
	item.ReorderLevel = units.Round2(item.ReorderLevel)
	item.Status = string(models.IngredientStatusActive)
	item.LastUpdated = time.Now().UTC()

	if err := s.db.Create(item).Error; err != nil {
		return fmt.Errorf("failed to create ingredient: %w", err)
	}
	s.log.Info().Str("item_id", item.ItemID).Str("name", item.Name).Msg("ingredient created")
	return nil
}

// Get retrieves an active ingredient by its ID.
func (s *Store) Get(ctx context.Context, itemID string) (*models.Ingredient, error) {
	var item models.Ingredient
	err := s.db.Where("item_id = ? AND status = ?", itemID, string(models.IngredientStatusActive)).First(&item).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ingredient %s: %w", itemID, err)
	}
	return &item, nil
}

// GetByName retrieves an active ingredient by case-insensitive name.
func (s *Store) GetByName(ctx context.Context, name string) (*models.Ingredient, error) {
	var item models.Ingredient
	err := s.db.Where("status = ? AND LOWER(name) = ?",
		string(models.IngredientStatusActive), strings.ToLower(strings.TrimSpace(name))).First(&item).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ingredient %q: %w", name, err)
	}
	return &item, nil
}

// List returns ingredients matching the filter.
func (s *Store) List(ctx context.Context, filter Filter) ([]models.Ingredient, error) {
	query := s.db
	status := filter.Status
	if status == "" {
		status = string(models.IngredientStatusActive)
	}
	query = query.Where("status = ?", status)
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.LowStockOnly {
		query = query.Where("current_stock <= reorder_level")
	}

	var items []models.Ingredient
	if err := query.Order("name").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	return items, nil
}

// Update applies field updates to an ingredient. Stock changes through here
// bypass the transaction log; use Adjust for audited stock corrections.
func (s *Store) Update(ctx context.Context, itemID string, updates map[string]interface{}) error {
	if name, ok := updates["name"].(string); ok {
		if existing, err := s.GetByName(ctx, name); err == nil && existing.ItemID != itemID {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}
	if unit, ok := updates["unit"].(string); ok {
		if !units.Known(unit) {
			return fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
		}
		updates["unit"] = units.Canonical(unit)
	}
	if stock, ok := updates["current_stock"].(float64); ok {
		updates["current_stock"] = units.Round2(stock)
	}
	updates["last_updated"] = time.Now().UTC()

	res := s.db.Model(&models.Ingredient{}).Where("item_id = ?", itemID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update ingredient %s: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks an ingredient inactive. The row stays so that historical
// transactions keep a valid reference.
func (s *Store) SoftDelete(ctx context.Context, itemID string) error {
	res := s.db.Model(&models.Ingredient{}).Where("item_id = ?", itemID).Updates(map[string]interface{}{
		"status":       string(models.IngredientStatusInactive),
		"last_updated": time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to delete ingredient %s: %w", itemID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.log.Info().Str("item_id", itemID).Msg("ingredient soft-deleted")
	return nil
}

// CompareAndDeduct atomically checks that the ingredient holds at least
// baseQty of stock (compared in base units) and decrements it, appending the
// ledger entry in the same database transaction.
func (s *Store) CompareAndDeduct(ctx context.Context, itemID string, baseQty float64, baseUnit string, meta TransactionMeta) (*DeductionResult, error) {
	want := units.Canonical(baseUnit)

	for attempt := 0; attempt < casRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item, err := s.Get(ctx, itemID)
		if err != nil {
			return nil, err
		}

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

		txn := &models.StockTransaction{
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

		tx := s.db.Begin()
		if tx.Error != nil {
			return nil, fmt.Errorf("failed to begin deduction transaction: %w", tx.Error)
		}

		res := tx.Model(&models.Ingredient{}).
			Where("item_id = ? AND version = ?", item.ItemID, item.Version).
			Updates(map[string]interface{}{
				"current_stock": newStorage,
				"version":       item.Version + 1,
				"last_updated":  now,
			})
		if res.Error != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to deduct stock for %s: %w", item.Name, res.Error)
		}
		if res.RowsAffected == 0 {
			// Another writer committed first; re-read and retry.
			tx.Rollback()
			s.log.Debug().Str("item_id", itemID).Int("attempt", attempt+1).Msg("deduction version conflict, retrying")
			continue
		}

		if err := tx.Create(txn).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to record transaction for %s: %w", item.Name, err)
		}
		if err := tx.Commit().Error; err != nil {
			return nil, fmt.Errorf("failed to commit deduction for %s: %w", item.Name, err)
		}

		return &DeductionResult{
			PreviousStock: item.CurrentStock,
			NewStock:      newStorage,
			NewStockBase:  newBase,
			BaseUnit:      stockBaseUnit,
			Transaction:   txn,
		}, nil
	}

	return nil, fmt.Errorf("deduction for %s lost %d optimistic retries", itemID, casRetries)
}

// Adjust sets an ingredient's stock to a new level and logs the correction as
// a manual adjustment so the replay invariant survives human intervention.
func (s *Store) Adjust(ctx context.Context, itemID string, newStock float64, actor string) (*DeductionResult, error) {
	newStock = units.Round2(newStock)
	if newStock < 0 {
		return nil, fmt.Errorf("stock cannot be negative: %g", newStock)
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item, err := s.Get(ctx, itemID)
		if err != nil {
			return nil, err
		}

		prevBase, baseUnit := units.Normalize(item.CurrentStock, item.Unit)
		newBase, _ := units.Normalize(newStock, item.Unit)
		now := time.Now().UTC()

		// Signed delta in base units: positive when stock went down.
		txn := &models.StockTransaction{
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

		tx := s.db.Begin()
		if tx.Error != nil {
			return nil, fmt.Errorf("failed to begin adjustment transaction: %w", tx.Error)
		}

		res := tx.Model(&models.Ingredient{}).
			Where("item_id = ? AND version = ?", item.ItemID, item.Version).
			Updates(map[string]interface{}{
				"current_stock": newStock,
				"version":       item.Version + 1,
				"last_updated":  now,
			})
		if res.Error != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to adjust stock for %s: %w", item.Name, res.Error)
		}
		if res.RowsAffected == 0 {
			tx.Rollback()
			continue
		}

		if err := tx.Create(txn).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to record adjustment for %s: %w", item.Name, err)
		}
		if err := tx.Commit().Error; err != nil {
			return nil, fmt.Errorf("failed to commit adjustment for %s: %w", item.Name, err)
		}

		return &DeductionResult{
			PreviousStock: item.CurrentStock,
			NewStock:      newStock,
			NewStockBase:  newBase,
			BaseUnit:      baseUnit,
			Transaction:   txn,
		}, nil
	}

	return nil, fmt.Errorf("adjustment for %s lost %d optimistic retries", itemID, casRetries)
}

// LowStock returns active ingredients at or below their reorder level.
func (s *Store) LowStock(ctx context.Context) ([]models.Ingredient, error) {
	var items []models.Ingredient
	err := s.db.Where("status = ? AND current_stock <= reorder_level",
		string(models.IngredientStatusActive)).Order("name").Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query low stock: %w", err)
	}
	return items, nil
}

// Transactions returns ledger history, newest first.
func (s *Store) Transactions(ctx context.Context, filter TransactionFilter) ([]models.StockTransaction, error) {
	query := s.db
	if filter.OrderID != "" {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.ItemName != "" {
		query = query.Where("LOWER(item_name) LIKE ?", "%"+strings.ToLower(filter.ItemName)+"%")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	} else if limit > 500 {
		limit = 500
	}

	var txns []models.StockTransaction
	if err := query.Order("transaction_date DESC").Limit(limit).Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return txns, nil
}

// Stats returns dashboard aggregates over the active set.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	active := string(models.IngredientStatusActive)

	var total int
	if err := s.db.Model(&models.Ingredient{}).Where("status = ?", active).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count ingredients: %w", err)
	}

	var low int
	if err := s.db.Model(&models.Ingredient{}).
		Where("status = ? AND current_stock <= reorder_level", active).Count(&low).Error; err != nil {
		return nil, fmt.Errorf("failed to count low stock: %w", err)
	}

	var items []models.Ingredient
	if err := s.db.Where("status = ?", active).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load ingredients: %w", err)
	}
	var value float64
	for i := range items {
		value += items[i].InventoryValue()
	}

	var recent int
	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	if err := s.db.Model(&models.StockTransaction{}).
		Where("transaction_date >= ?", yesterday).Count(&recent).Error; err != nil {
		return nil, fmt.Errorf("failed to count recent transactions: %w", err)
	}

	return &Stats{
		TotalItems:          total,
		LowStockItems:       low,
		TotalInventoryValue: units.Round2(value),
		RecentTransactions:  recent,
	}, nil
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return "system"
	}
	return actor
}
