package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

// Ingredient represents a stocked item in the larder. Stock is denominated in
// the item's storage unit, which is not necessarily the base unit deductions
// are computed in. Ingredients are never physically removed; deletion flips
// Status to inactive so historical transactions keep a valid reference.
type Ingredient struct {
	gorm.Model
	ItemID          string `gorm:"column:item_id;unique_index"`
	Name            string
	Category        string
	Unit            string // storage unit (kg, gm, ltr, ml, pieces, ...)
	CurrentStock    float64
	ReorderLevel    float64
	UnitCost        float64
	Supplier        string
	SupplierContact string
	Status          string
	Version         int // optimistic lock counter for compare-and-deduct
	LastUpdated     time.Time
}

// TableName sets the table name for Ingredient
func (Ingredient) TableName() string {
	return "inventory_items"
}

// IngredientStatus represents the lifecycle state of an ingredient
type IngredientStatus string

const (
	IngredientStatusActive   IngredientStatus = "active"
	IngredientStatusInactive IngredientStatus = "inactive"
)

// InventoryValue returns the monetary value of the current stock.
func (i *Ingredient) InventoryValue() float64 {
	return i.CurrentStock * i.UnitCost
}

// BelowReorderLevel reports whether the item needs restocking.
func (i *Ingredient) BelowReorderLevel() bool {
	return i.CurrentStock <= i.ReorderLevel
}

// StockUrgency represents how urgently a low-stock item needs attention
type StockUrgency string

const (
	UrgencyWarning  StockUrgency = "warning"
	UrgencyCritical StockUrgency = "critical"
)

// Urgency classifies a low-stock item: critical once stock falls to half the
// reorder level, warning otherwise.
func (i *Ingredient) Urgency() StockUrgency {
	if i.CurrentStock <= i.ReorderLevel*0.5 {
		return UrgencyCritical
	}
	return UrgencyWarning
}
