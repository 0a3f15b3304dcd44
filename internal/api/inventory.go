package api

import (
	"errors"
	"net/http"
	"strconv"

	"larder/internal/engine"
	"larder/internal/ledger"
	"larder/internal/models"
	"larder/internal/units"

	"github.com/gin-gonic/gin"
)

// DeductOrderRequest is the order descriptor posted by order creation.
type DeductOrderRequest struct {
	OrderID string            `json:"order_id" binding:"required"`
	Items   []engine.LineItem `json:"items" binding:"required"`
}

// DeductForOrder runs the deduction engine for a placed order. Ingredient
// failures come back in the report; the only client error is a malformed
// descriptor. Order creation is expected to proceed whatever the outcome.
func (s *Server) DeductForOrder(c *gin.Context) {
	var req DeductOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := s.engine.DeductForOrder(c.Request.Context(), req.OrderID, req.Items)
	if errors.Is(err, engine.ErrInvalidOrder) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.hub.Broadcast("deduction", report)
	s.refreshLowStock(c)

	c.JSON(http.StatusOK, gin.H{
		"message":             "Inventory deduction completed",
		"order_id":            report.OrderID,
		"deducted_items":      report.DeductedItems,
		"failed_items":        report.FailedItems,
		"transactions_logged": report.TransactionsLogged,
		"status":              report.Status,
	})
}

// refreshLowStock updates the low-stock gauge and pushes an alert event when
// anything sits at or below its reorder level.
func (s *Server) refreshLowStock(c *gin.Context) {
	low, err := s.stock.LowStock(c.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("low stock refresh failed")
		return
	}
	s.metrics.SetLowStockItems(len(low))
	if len(low) > 0 {
		s.hub.Broadcast("low_stock", formatLowStock(low))
	}
}

// CreateItemRequest is the payload for adding a stocked ingredient.
type CreateItemRequest struct {
	Name            string  `json:"name" binding:"required"`
	Category        string  `json:"category"`
	Unit            string  `json:"unit" binding:"required"`
	CurrentStock    float64 `json:"current_stock"`
	ReorderLevel    float64 `json:"reorder_level"`
	UnitCost        float64 `json:"unit_cost"`
	Supplier        string  `json:"supplier"`
	SupplierContact string  `json:"supplier_contact"`
}

// CreateItem adds a new ingredient to the ledger.
func (s *Server) CreateItem(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item := &models.Ingredient{
		Name:            req.Name,
		Category:        req.Category,
		Unit:            req.Unit,
		CurrentStock:    req.CurrentStock,
		ReorderLevel:    req.ReorderLevel,
		UnitCost:        req.UnitCost,
		Supplier:        req.Supplier,
		SupplierContact: req.SupplierContact,
	}

	err := s.stock.Create(c.Request.Context(), item)
	switch {
	case errors.Is(err, ledger.ErrUnknownUnit):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ledger.ErrDuplicateName):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":      item.ItemID,
		"message": "Inventory item created successfully",
		"status":  "success",
		"data":    formatItem(item),
	})
}

// ListItems returns inventory items with optional category / low-stock /
// status filters.
func (s *Server) ListItems(c *gin.Context) {
	lowOnly, _ := strconv.ParseBool(c.DefaultQuery("low_stock_only", "false"))
	filter := ledger.Filter{
		Category:     c.Query("category"),
		Status:       c.DefaultQuery("status", string(models.IngredientStatusActive)),
		LowStockOnly: lowOnly,
	}

	items, err := s.stock.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	formatted := make([]gin.H, 0, len(items))
	for i := range items {
		formatted = append(formatted, formatItem(&items[i]))
	}
	c.JSON(http.StatusOK, formatted)
}

// GetItem returns a single inventory item by ID.
func (s *Server) GetItem(c *gin.Context) {
	item, err := s.stock.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ledger.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Inventory item not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, formatItem(item))
}

// UpdateItem applies field updates to an inventory item. Stock set through
// here bypasses the audit log; use the adjust endpoint for corrections that
// should be traceable.
func (s *Server) UpdateItem(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := make(map[string]interface{})
	for _, key := range []string{"name", "category", "unit", "current_stock", "reorder_level", "unit_cost", "supplier", "supplier_contact"} {
		if v, ok := body[key]; ok {
			updates[key] = v
		}
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no updatable fields in request"})
		return
	}

	err := s.stock.Update(c.Request.Context(), c.Param("id"), updates)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Inventory item not found"})
	case errors.Is(err, ledger.ErrUnknownUnit):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Item updated successfully", "status": "success"})
	}
}

// DeleteItem soft-deletes an inventory item; history keeps pointing at it.
func (s *Server) DeleteItem(c *gin.Context) {
	err := s.stock.SoftDelete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ledger.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Inventory item not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item deleted successfully", "status": "success"})
}

// AdjustRequest sets an item's stock to an absolute level, with an audit
// trail entry.
type AdjustRequest struct {
	CurrentStock float64 `json:"current_stock"`
	Actor        string  `json:"actor"`
}

// AdjustStock performs a logged manual stock correction.
func (s *Server) AdjustStock(c *gin.Context) {
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.stock.Adjust(c.Request.Context(), c.Param("id"), req.CurrentStock, req.Actor)
	if errors.Is(err, ledger.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Inventory item not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.refreshLowStock(c)
	c.JSON(http.StatusOK, gin.H{
		"message":        "Stock adjusted successfully",
		"status":         "success",
		"previous_stock": res.PreviousStock,
		"new_stock":      res.NewStock,
		"transaction_id": res.Transaction.TransactionID,
	})
}

// BulkUpsertItems creates or updates a batch of ingredients, matching by
// case-insensitive name as bulk imports always have.
func (s *Server) BulkUpsertItems(c *gin.Context) {
	var rows []CreateItemRequest
	if err := c.ShouldBindJSON(&rows); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	imported, updated := 0, 0
	rowErrors := []string{}

	for _, row := range rows {
		if row.Name == "" {
			continue
		}
		existing, err := s.stock.GetByName(ctx, row.Name)
		if err == nil {
			updateErr := s.stock.Update(ctx, existing.ItemID, map[string]interface{}{
				"category":         row.Category,
				"unit":             row.Unit,
				"current_stock":    row.CurrentStock,
				"reorder_level":    row.ReorderLevel,
				"unit_cost":        row.UnitCost,
				"supplier":         row.Supplier,
				"supplier_contact": row.SupplierContact,
			})
			if updateErr != nil {
				rowErrors = append(rowErrors, row.Name+": "+updateErr.Error())
				continue
			}
			updated++
			continue
		}

		item := &models.Ingredient{
			Name:            row.Name,
			Category:        row.Category,
			Unit:            row.Unit,
			CurrentStock:    row.CurrentStock,
			ReorderLevel:    row.ReorderLevel,
			UnitCost:        row.UnitCost,
			Supplier:        row.Supplier,
			SupplierContact: row.SupplierContact,
		}
		if err := s.stock.Create(ctx, item); err != nil {
			rowErrors = append(rowErrors, row.Name+": "+err.Error())
			continue
		}
		imported++
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Inventory items imported successfully",
		"imported": imported,
		"updated":  updated,
		"total":    imported + updated,
		"errors":   rowErrors,
		"status":   "success",
	})
}

// LowStockAlerts returns items at or below their reorder level.
func (s *Server) LowStockAlerts(c *gin.Context) {
	items, err := s.stock.LowStock(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.metrics.SetLowStockItems(len(items))

	formatted := formatLowStock(items)
	critical := 0
	for _, item := range items {
		if item.Urgency() == models.UrgencyCritical {
			critical++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"low_stock_items": formatted,
		"count":           len(formatted),
		"critical_count":  critical,
		"status":          "success",
	})
}

// Transactions returns stock ledger history, newest first.
func (s *Server) Transactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	txns, err := s.stock.Transactions(c.Request.Context(), ledger.TransactionFilter{
		OrderID:  c.Query("order_id"),
		ItemName: c.Query("item_name"),
		Limit:    limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	formatted := make([]gin.H, 0, len(txns))
	for i := range txns {
		txn := &txns[i]
		formatted = append(formatted, gin.H{
			"id":                txn.TransactionID,
			"item_name":         txn.ItemName,
			"transaction_type":  txn.TransactionType,
			"quantity_deducted": txn.QuantityDeducted,
			"unit":              txn.Unit,
			"previous_stock":    units.Round2(txn.PreviousStock),
			"new_stock":         units.Round2(txn.NewStock),
			"storage_unit":      txn.StorageUnit,
			"order_id":          txn.OrderID,
			"menu_item":         txn.MenuItem,
			"recipe_quantity":   txn.RecipeQuantity,
			"recipe_unit":       txn.RecipeUnit,
			"transaction_date":  txn.TransactionDate,
			"created_by":        txn.CreatedBy,
		})
	}

	c.JSON(http.StatusOK, gin.H{"transactions": formatted, "count": len(formatted)})
}

// DashboardStats returns inventory dashboard aggregates.
func (s *Server) DashboardStats(c *gin.Context) {
	stats, err := s.stock.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_items":           stats.TotalItems,
		"low_stock_items":       stats.LowStockItems,
		"total_inventory_value": stats.TotalInventoryValue,
		"recent_transactions":   stats.RecentTransactions,
		"status":                "success",
	})
}

func formatItem(item *models.Ingredient) gin.H {
	return gin.H{
		"id":                    item.ItemID,
		"name":                  item.Name,
		"category":              item.Category,
		"unit":                  item.Unit,
		"current_stock":         units.Round2(item.CurrentStock),
		"current_stock_display": units.FormatForDisplay(item.CurrentStock, item.Unit),
		"reorder_level":         units.Round2(item.ReorderLevel),
		"unit_cost":             item.UnitCost,
		"supplier":              item.Supplier,
		"supplier_contact":      item.SupplierContact,
		"status":                item.Status,
		"inventory_value":       units.Round2(item.InventoryValue()),
		"last_updated":          item.LastUpdated,
	}
}

func formatLowStock(items []models.Ingredient) []gin.H {
	formatted := make([]gin.H, 0, len(items))
	for i := range items {
		item := &items[i]
		needed := item.ReorderLevel - item.CurrentStock
		if needed < 0 {
			needed = 0
		}
		formatted = append(formatted, gin.H{
			"id":                    item.ItemID,
			"name":                  item.Name,
			"category":              item.Category,
			"current_stock":         units.Round2(item.CurrentStock),
			"current_stock_display": units.FormatForDisplay(item.CurrentStock, item.Unit),
			"reorder_level":         units.Round2(item.ReorderLevel),
			"unit":                  item.Unit,
			"urgency":               item.Urgency(),
			"needed":                units.Round2(needed),
			"supplier":              item.Supplier,
			"supplier_contact":      item.SupplierContact,
		})
	}
	return formatted
}
