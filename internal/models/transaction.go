package models

import (
	"time"

	"github.com/jinzhu/gorm"
)

// StockTransaction is one immutable entry in the append-only stock ledger.
// Replaying an ingredient's transactions in date order against its stock at
// time zero reproduces the current stock value; manual adjustments are logged
// too so the invariant holds across them.
type StockTransaction struct {
	gorm.Model
	TransactionID    string `gorm:"column:transaction_id;unique_index"`
	ItemID           string `gorm:"index"`
	ItemName         string
	TransactionType  string
	QuantityDeducted float64 // in base units
	Unit             string  // base unit the deduction was computed in
	PreviousStock    float64 // in storage units
	NewStock         float64 // in storage units
	StorageUnit      string
	OrderID          string `gorm:"index"`
	MenuItem         string
	RecipeQuantity   float64
	RecipeUnit       string
	TransactionDate  time.Time
	CreatedBy        string
}

// TableName sets the table name for StockTransaction
func (StockTransaction) TableName() string {
	return "stock_transactions"
}

// TransactionType represents what caused a stock movement
type TransactionType string

const (
	TransactionOrderDeduction   TransactionType = "order_deduction"
	TransactionManualAdjustment TransactionType = "manual_adjustment"
)
