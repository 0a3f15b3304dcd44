package models

import (
	"encoding/json"
	"time"

	"github.com/jinzhu/gorm"
)

// MenuItem represents a dish on the menu. A menu item may carry a list of
// ingredient requirements (its recipe); items without one simply do not
// participate in inventory tracking.
type MenuItem struct {
	gorm.Model
	MenuItemID      string `gorm:"column:menu_item_id;unique_index"`
	Name            string
	Description     string
	Category        string
	FoodType        string
	Price           float64
	PreparationTime time.Duration
	IsAvailable     bool
	IngredientsJSON string `gorm:"type:text"`
	// Transient field (ignored by GORM)
	Ingredients []IngredientRequirement `gorm:"-"`
}

// TableName sets the table name for MenuItem
func (MenuItem) TableName() string {
	return "menu_items"
}

// IngredientRequirement represents one line of a recipe: how much of which
// stocked ingredient a single serving consumes. The unit is independent of the
// ingredient's storage unit but must resolve to the same base-unit family.
type IngredientRequirement struct {
	IngredientID   string  `json:"ingredient_id"`
	IngredientName string  `json:"ingredient_name"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit"`
	CostPerUnit    float64 `json:"cost_per_unit"`
}

// GetIngredients returns the deserialized ingredient requirements
func (m *MenuItem) GetIngredients() ([]IngredientRequirement, error) {
	if len(m.Ingredients) > 0 {
		return m.Ingredients, nil
	}
	var ingredients []IngredientRequirement
	if m.IngredientsJSON == "" {
		return ingredients, nil
	}
	if err := json.Unmarshal([]byte(m.IngredientsJSON), &ingredients); err != nil {
		return nil, err
	}
	m.Ingredients = ingredients
	return ingredients, nil
}

// SetIngredients serializes the ingredient requirements for storage
func (m *MenuItem) SetIngredients(ingredients []IngredientRequirement) error {
	data, err := json.Marshal(ingredients)
	if err != nil {
		return err
	}
	m.IngredientsJSON = string(data)
	m.Ingredients = ingredients
	return nil
}
