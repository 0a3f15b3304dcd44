// Package engine orchestrates inventory auto-deduction for placed orders.
//
// For every line item it resolves the recipe, normalizes required and on-hand
// quantities into base units, checks sufficiency, and drives the ledger's
// atomic compare-and-deduct. Ingredient-level problems are collected into the
// report rather than raised: order placement must never be blocked by
// imperfect stock bookkeeping.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"larder/internal/ledger"
	"larder/internal/models"
	"larder/internal/monitoring"
	"larder/internal/units"

	"github.com/rs/zerolog"
)

// ErrInvalidOrder is returned for structurally invalid input: a missing order
// ID, an empty item list, or a non-positive quantity. This is the only way a
// deduction run fails as a whole.
var ErrInvalidOrder = errors.New("invalid order descriptor")

// Ledger is the slice of the stock ledger the engine drives.
type Ledger interface {
	Get(ctx context.Context, itemID string) (*models.Ingredient, error)
	CompareAndDeduct(ctx context.Context, itemID string, baseQty float64, baseUnit string, meta ledger.TransactionMeta) (*ledger.DeductionResult, error)
}

// RecipeSource resolves a menu item reference into its ingredient
// requirements. Untracked items resolve to an empty list.
type RecipeSource interface {
	Resolve(ctx context.Context, ref string) ([]models.IngredientRequirement, error)
}

// Engine performs per-order inventory deduction.
type Engine struct {
	ledger  Ledger
	recipes RecipeSource
	metrics *monitoring.Collector
	log     zerolog.Logger
}

// New creates a deduction engine. metrics may be nil.
func New(l Ledger, r RecipeSource, metrics *monitoring.Collector, log zerolog.Logger) *Engine {
	return &Engine{
		ledger:  l,
		recipes: r,
		metrics: metrics,
		log:     log.With().Str("component", "engine").Logger(),
	}
}

// DeductForOrder runs the deduction for one order and returns the outcome
// report. It only returns an error for a malformed descriptor; stock
// insufficiency, unit mismatches, missing ingredients, and per-ingredient
// persistence failures all land in the report's FailedItems.
func (e *Engine) DeductForOrder(ctx context.Context, orderID string, items []LineItem) (*Report, error) {
	if orderID == "" || len(items) == 0 {
		return nil, fmt.Errorf("%w: order_id and items are required", ErrInvalidOrder)
	}
	for _, li := range items {
		if li.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive for %q", ErrInvalidOrder, li.MenuItemID)
		}
	}

	started := time.Now()
	report := &Report{
		OrderID:       orderID,
		DeductedItems: []DeductedItem{},
		FailedItems:   []string{},
		Status:        StatusSuccess,
	}

	for _, li := range items {
		e.deductLineItem(ctx, orderID, li, report)
	}

	if len(report.FailedItems) > 0 {
		report.Status = StatusPartialSuccess
	}

	e.metrics.RecordDeduction(string(report.Status), time.Since(started), report.TransactionsLogged)
	e.log.Info().
		Str("order_id", orderID).
		Int("deducted", len(report.DeductedItems)).
		Int("failed", len(report.FailedItems)).
		Str("status", string(report.Status)).
		Msg("order deduction completed")

	return report, nil
}

func (e *Engine) deductLineItem(ctx context.Context, orderID string, li LineItem, report *Report) {
	reqs, err := e.recipes.Resolve(ctx, li.MenuItemID)
	if err != nil {
		report.FailedItems = append(report.FailedItems,
			fmt.Sprintf("%s: recipe lookup failed: %v", itemLabel(li), err))
		e.metrics.RecordFailure("persistence")
		e.log.Error().Err(err).Str("order_id", orderID).Str("menu_item", li.MenuItemID).Msg("recipe lookup failed")
		return
	}
	if len(reqs) == 0 {
		// Not every dish participates in inventory tracking.
		e.log.Debug().Str("order_id", orderID).Str("menu_item", itemLabel(li)).Msg("no recipe attached, skipping")
		return
	}

	for _, req := range reqs {
		e.deductIngredient(ctx, orderID, li, req, report)
	}
}

func (e *Engine) deductIngredient(ctx context.Context, orderID string, li LineItem, req models.IngredientRequirement, report *Report) {
	// Keep the recipe-unit product at full precision; rounding happens inside
	// Normalize, after conversion into base units. Rounding here would turn
	// 0.125 kg into 0.13 kg and deduct 130 gm instead of 125.
	required := units.Round6(req.Quantity * float64(li.Quantity))

	item, err := e.ledger.Get(ctx, req.IngredientID)
	if errors.Is(err, ledger.ErrNotFound) {
		report.FailedItems = append(report.FailedItems,
			fmt.Sprintf("%s: not found in inventory", req.IngredientName))
		e.metrics.RecordFailure("not_found")
		return
	}
	if err != nil {
		report.FailedItems = append(report.FailedItems,
			fmt.Sprintf("%s: stock lookup failed: %v", req.IngredientName, err))
		e.metrics.RecordFailure("persistence")
		e.log.Error().Err(err).Str("order_id", orderID).Str("ingredient", req.IngredientName).Msg("stock lookup failed")
		return
	}

	if !units.Known(item.Unit) {
		e.log.Warn().Str("ingredient", item.Name).Str("unit", item.Unit).Msg("unknown storage unit, treating as base unit")
	}
	if !units.Known(req.Unit) {
		e.log.Warn().Str("ingredient", item.Name).Str("unit", req.Unit).Msg("unknown recipe unit, treating as base unit")
	}

	stockBase, stockBaseUnit := units.Normalize(item.CurrentStock, item.Unit)
	requiredBase, requiredBaseUnit := units.Normalize(required, req.Unit)

	if stockBaseUnit != requiredBaseUnit {
		report.FailedItems = append(report.FailedItems,
			fmt.Sprintf("%s: unit mismatch (inventory: %s, recipe: %s)", item.Name, stockBaseUnit, requiredBaseUnit))
		e.metrics.RecordFailure("unit_mismatch")
		return
	}

	if stockBase < requiredBase {
		report.FailedItems = append(report.FailedItems,
			fmt.Sprintf("%s: insufficient stock (need %g %s, have %g %s)",
				item.Name, requiredBase, stockBaseUnit, stockBase, stockBaseUnit))
		e.metrics.RecordFailure("insufficient_stock")
		return
	}

	res, err := e.ledger.CompareAndDeduct(ctx, item.ItemID, requiredBase, stockBaseUnit, ledger.TransactionMeta{
		OrderID:        orderID,
		MenuItem:       itemLabel(li),
		RecipeQuantity: required,
		RecipeUnit:     req.Unit,
	})
	if err != nil {
		e.recordDeductError(orderID, item.Name, err, report)
		return
	}

	report.TransactionsLogged++
	report.DeductedItems = append(report.DeductedItems, DeductedItem{
		Ingredient:       item.Name,
		Deducted:         requiredBase,
		DeductedUnit:     stockBaseUnit,
		DeductedDisplay:  units.FormatForDisplay(requiredBase, stockBaseUnit),
		Remaining:        res.NewStock,
		RemainingUnit:    item.Unit,
		RemainingDisplay: units.FormatForDisplay(res.NewStock, item.Unit),
		RecipeRequested:  fmt.Sprintf("%g %s", required, req.Unit),
	})

	e.log.Info().
		Str("order_id", orderID).
		Str("ingredient", item.Name).
		Float64("deducted", requiredBase).
		Str("unit", stockBaseUnit).
		Float64("remaining", res.NewStock).
		Str("remaining_unit", item.Unit).
		Msg("stock deducted")
}

// recordDeductError maps a compare-and-deduct failure into the report. The
// sufficiency pre-check above is advisory only; under concurrency the ledger
// is the arbiter and can still report insufficiency or a mismatch here.
func (e *Engine) recordDeductError(orderID, name string, err error, report *Report) {
	var insufficient *ledger.InsufficientStockError
	var mismatch *ledger.UnitMismatchError

	switch {
	case errors.As(err, &insufficient):
		report.FailedItems = append(report.FailedItems,
			fmt.Sprintf("%s: insufficient stock (need %g %s, have %g %s)",
				name, insufficient.Required, insufficient.Unit, insufficient.Available, insufficient.Unit))
		e.metrics.RecordFailure("insufficient_stock")
	case errors.As(err, &mismatch):
		report.FailedItems = append(report.FailedItems,
			fmt.Sprintf("%s: unit mismatch (inventory: %s, recipe: %s)", name, mismatch.Have, mismatch.Want))
		e.metrics.RecordFailure("unit_mismatch")
	case errors.Is(err, ledger.ErrNotFound):
		report.FailedItems = append(report.FailedItems,
			fmt.Sprintf("%s: not found in inventory", name))
		e.metrics.RecordFailure("not_found")
	default:
		// Operational failure (connectivity, timeout, lost retries). Logged at
		// error level so alerting can tell it apart from business conditions.
		report.FailedItems = append(report.FailedItems,
			fmt.Sprintf("%s: stock update failed: %v", name, err))
		e.metrics.RecordFailure("persistence")
		e.log.Error().Err(err).Str("order_id", orderID).Str("ingredient", name).Msg("stock update failed")
	}
}

func itemLabel(li LineItem) string {
	if li.MenuItemName != "" {
		return li.MenuItemName
	}
	return li.MenuItemID
}
