// Package ledger holds the current stock level per ingredient and the
// append-only log of every stock movement. Its central operation,
// CompareAndDeduct, performs the sufficiency check and the decrement as one
// atomic step per ingredient so that two concurrent orders can never
// double-spend the same stock.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"larder/internal/models"
)

// ErrNotFound is returned when an ingredient does not exist in the active set.
var ErrNotFound = errors.New("ingredient not found")

// ErrUnknownUnit is returned when an ingredient is created or updated with a
// unit outside the supported families. Recipes keep the permissive fallback;
// stock records do not.
var ErrUnknownUnit = errors.New("unknown unit")

// ErrDuplicateName is returned when an active ingredient with the same
// case-insensitive name already exists.
var ErrDuplicateName = errors.New("ingredient name already exists")

// InsufficientStockError reports that the required base-unit quantity exceeds
// what is available. It is business data, not an operational fault.
type InsufficientStockError struct {
	Required  float64
	Available float64
	Unit      string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock (need %g %s, have %g %s)", e.Required, e.Unit, e.Available, e.Unit)
}

// UnitMismatchError reports that the stock's base-unit family disagrees with
// the one the deduction was computed in.
type UnitMismatchError struct {
	Have string
	Want string
}

func (e *UnitMismatchError) Error() string {
	return fmt.Sprintf("unit mismatch (stock: %s, requested: %s)", e.Have, e.Want)
}

// TransactionMeta carries the audit context written alongside a deduction.
type TransactionMeta struct {
	OrderID        string
	MenuItem       string
	RecipeQuantity float64
	RecipeUnit     string
	Actor          string
}

// DeductionResult describes a committed deduction.
type DeductionResult struct {
	PreviousStock float64 // storage units
	NewStock      float64 // storage units
	NewStockBase  float64 // base units
	BaseUnit      string
	Transaction   *models.StockTransaction
}

// Filter narrows ingredient listings.
type Filter struct {
	Category     string
	Status       string
	LowStockOnly bool
}

// TransactionFilter narrows ledger history queries.
type TransactionFilter struct {
	OrderID  string
	ItemName string
	Limit    int
}

// Stats summarizes the inventory for dashboards.
type Stats struct {
	TotalItems          int     `json:"total_items"`
	LowStockItems       int     `json:"low_stock_items"`
	TotalInventoryValue float64 `json:"total_inventory_value"`
	RecentTransactions  int     `json:"recent_transactions"`
}

// Ledger is the full stock persistence surface. Store implements it over
// GORM; Memory implements it in-process for tests and embedding.
type Ledger interface {
	Create(ctx context.Context, item *models.Ingredient) error
	Get(ctx context.Context, itemID string) (*models.Ingredient, error)
	GetByName(ctx context.Context, name string) (*models.Ingredient, error)
	List(ctx context.Context, filter Filter) ([]models.Ingredient, error)
	Update(ctx context.Context, itemID string, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, itemID string) error

	CompareAndDeduct(ctx context.Context, itemID string, baseQty float64, baseUnit string, meta TransactionMeta) (*DeductionResult, error)
	Adjust(ctx context.Context, itemID string, newStock float64, actor string) (*DeductionResult, error)

	LowStock(ctx context.Context) ([]models.Ingredient, error)
	Transactions(ctx context.Context, filter TransactionFilter) ([]models.StockTransaction, error)
	Stats(ctx context.Context) (*Stats, error)
}
