package engine

// Status represents the overall outcome of an order deduction
type Status string

const (
	// StatusSuccess means every touched ingredient was deducted.
	StatusSuccess Status = "success"
	// StatusPartialSuccess means at least one ingredient failed; the rest of
	// the order was still processed.
	StatusPartialSuccess Status = "partial_success"
)

// LineItem is one entry of the order descriptor handed in by order creation.
type LineItem struct {
	MenuItemID   string `json:"menu_item_id" binding:"required"`
	MenuItemName string `json:"menu_item_name"`
	Quantity     int    `json:"quantity" binding:"required"`
}

// DeductedItem describes one successful per-ingredient deduction, carrying
// both base-unit and storage-unit views plus display strings for the UI.
type DeductedItem struct {
	Ingredient       string  `json:"ingredient"`
	Deducted         float64 `json:"deducted"`
	DeductedUnit     string  `json:"deducted_unit"`
	DeductedDisplay  string  `json:"deducted_display"`
	Remaining        float64 `json:"remaining"`
	RemainingUnit    string  `json:"remaining_unit"`
	RemainingDisplay string  `json:"remaining_display"`
	RecipeRequested  string  `json:"recipe_requested"`
}

// Report is the structured outcome of deducting one order. Failures are data
// here, not faults: the caller surfaces FailedItems as advisory warnings and
// places the order regardless.
type Report struct {
	OrderID            string         `json:"order_id"`
	DeductedItems      []DeductedItem `json:"deducted_items"`
	FailedItems        []string       `json:"failed_items"`
	TransactionsLogged int            `json:"transactions_logged"`
	Status             Status         `json:"status"`
}
