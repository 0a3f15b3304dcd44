package api

import (
	"net/http"
	"strings"
	"time"

	"larder/internal/menu"
	"larder/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateMenuItemRequest describes a menu item and its recipe. Ingredients uses
// the "Name(quantity unit)" list syntax shared with bulk import.
type CreateMenuItemRequest struct {
	Name               string  `json:"name" binding:"required"`
	Price              float64 `json:"price" binding:"required"`
	Category           string  `json:"category"`
	FoodType           string  `json:"food_type"`
	PreparationMinutes int     `json:"preparation_time"`
	Description        string  `json:"description"`
	Ingredients        string  `json:"ingredients"`
}

// CreateMenuItem creates or replaces a menu item with its recipe. Recipe
// problems (malformed entries, ingredients missing from inventory) come back
// as warnings; the item is saved with whatever resolved.
func (s *Server) CreateMenuItem(c *gin.Context) {
	var req CreateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	parsed, parseErrs := menu.ParseRequirementList(req.Ingredients)
	reqs, problems := s.menu.BuildRequirements(ctx, parsed)
	warnings := make([]string, 0, len(parseErrs)+len(problems))
	warnings = append(warnings, parseErrs...)
	warnings = append(warnings, problems...)

	prep := req.PreparationMinutes
	if prep <= 0 {
		prep = 10
	}
	foodType := strings.TrimSpace(req.FoodType)
	if foodType == "" {
		foodType = "veg"
	}

	item := &models.MenuItem{
		Name:            strings.TrimSpace(req.Name),
		Price:           req.Price,
		Category:        strings.TrimSpace(req.Category),
		FoodType:        foodType,
		PreparationTime: time.Duration(prep) * time.Minute,
		Description:     req.Description,
		IsAvailable:     true,
	}
	if err := item.SetIngredients(reqs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	created, err := s.menu.Upsert(ctx, item)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	message := "Menu item updated successfully"
	if created {
		status = http.StatusCreated
		message = "Menu item created successfully"
	}
	c.JSON(status, gin.H{
		"id":       item.MenuItemID,
		"message":  message,
		"status":   "success",
		"warnings": warnings,
		"data":     formatMenuItem(item, reqs),
	})
}

// ListMenuItems returns all menu items with their recipes.
func (s *Server) ListMenuItems(c *gin.Context) {
	items, err := s.menu.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	formatted := make([]gin.H, 0, len(items))
	for i := range items {
		item := &items[i]
		reqs, decodeErr := item.GetIngredients()
		if decodeErr != nil {
			s.log.Error().Err(decodeErr).Str("name", item.Name).Msg("failed to decode recipe")
			reqs = nil
		}
		formatted = append(formatted, formatMenuItem(item, reqs))
	}
	c.JSON(http.StatusOK, formatted)
}

// ImportMenu bulk-imports menu items with recipes.
func (s *Server) ImportMenu(c *gin.Context) {
	var rows []menu.ImportRow
	if err := c.ShouldBindJSON(&rows); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.menu.BulkImport(c.Request.Context(), rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Menu items imported successfully",
		"imported_count": result.Imported,
		"updated_count":  result.Updated,
		"total":          result.Imported + result.Updated,
		"errors":         result.Errors,
		"status":         "success",
	})
}

func formatMenuItem(item *models.MenuItem, reqs []models.IngredientRequirement) gin.H {
	if reqs == nil {
		reqs = []models.IngredientRequirement{}
	}
	return gin.H{
		"id":               item.MenuItemID,
		"name":             item.Name,
		"description":      item.Description,
		"category":         item.Category,
		"food_type":        item.FoodType,
		"price":            item.Price,
		"preparation_time": int(item.PreparationTime / time.Minute),
		"is_available":     item.IsAvailable,
		"ingredients":      reqs,
	}
}
