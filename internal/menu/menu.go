// Package menu manages menu items and their recipes, and resolves a menu item
// reference into the ingredient requirements the deduction engine consumes.
package menu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"larder/internal/models"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog"
)

// IngredientLookup resolves recipe ingredient names against the stock ledger.
type IngredientLookup interface {
	GetByName(ctx context.Context, name string) (*models.Ingredient, error)
}

// Store persists menu items and serves recipe lookups through a bounded,
// expiring cache. The cache replaces the process-global menu dictionaries the
// surrounding application historically kept: eviction and expiry are explicit.
type Store struct {
	db    *gorm.DB
	stock IngredientLookup
	cache *expirable.LRU[string, []models.IngredientRequirement]
	log   zerolog.Logger
}

// NewStore creates a menu store. cacheSize and cacheTTL bound the recipe
// cache; a zero size disables caching.
func NewStore(db *gorm.DB, stock IngredientLookup, cacheSize int, cacheTTL time.Duration, log zerolog.Logger) *Store {
	var cache *expirable.LRU[string, []models.IngredientRequirement]
	if cacheSize > 0 {
		cache = expirable.NewLRU[string, []models.IngredientRequirement](cacheSize, nil, cacheTTL)
	}
	return &Store{
		db:    db,
		stock: stock,
		cache: cache,
		log:   log.With().Str("component", "menu").Logger(),
	}
}

// Resolve returns the ingredient requirements for a menu item reference (ID,
// falling back to case-insensitive name). An untracked or unknown item
// resolves to an empty list, not an error: not every dish participates in
// inventory tracking.
func (s *Store) Resolve(ctx context.Context, ref string) ([]models.IngredientRequirement, error) {
	if s.cache != nil {
		if reqs, ok := s.cache.Get(ref); ok {
			return reqs, nil
		}
	}

	item, err := s.find(ref)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	reqs, err := item.GetIngredients()
	if err != nil {
		return nil, fmt.Errorf("failed to decode recipe for %q: %w", item.Name, err)
	}

	if s.cache != nil {
		s.cache.Add(ref, reqs)
	}
	return reqs, nil
}

func (s *Store) find(ref string) (*models.MenuItem, error) {
	var item models.MenuItem
	err := s.db.Where("menu_item_id = ?", ref).First(&item).Error
	if gorm.IsRecordNotFoundError(err) {
		err = s.db.Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(ref))).First(&item).Error
	}
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load menu item %q: %w", ref, err)
	}
	return &item, nil
}

// Get returns a menu item by reference, or nil when absent.
func (s *Store) Get(ctx context.Context, ref string) (*models.MenuItem, error) {
	return s.find(ref)
}

// List returns all menu items.
func (s *Store) List(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	if err := s.db.Order("name").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}
	return items, nil
}

// Upsert creates a menu item, or replaces the existing item with the same
// case-insensitive name. Any cached recipe for it is dropped.
func (s *Store) Upsert(ctx context.Context, item *models.MenuItem) (created bool, err error) {
	if item.Name == "" {
		return false, fmt.Errorf("menu item name is required")
	}

	var existing models.MenuItem
	lookupErr := s.db.Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(item.Name))).First(&existing).Error

	switch {
	case gorm.IsRecordNotFoundError(lookupErr):
		if item.MenuItemID == "" {
			item.MenuItemID = uuid.NewString()
		}
		if err := s.db.Create(item).Error; err != nil {
			return false, fmt.Errorf("failed to create menu item %q: %w", item.Name, err)
		}
		created = true
	case lookupErr != nil:
		return false, fmt.Errorf("failed to look up menu item %q: %w", item.Name, lookupErr)
	default:
		item.ID = existing.ID
		item.MenuItemID = existing.MenuItemID
		if err := s.db.Save(item).Error; err != nil {
			return false, fmt.Errorf("failed to update menu item %q: %w", item.Name, err)
		}
	}

	if s.cache != nil {
		s.cache.Purge()
	}
	s.log.Info().Str("name", item.Name).Bool("created", created).Int("ingredients", len(item.Ingredients)).Msg("menu item upserted")
	return created, nil
}

// BuildRequirements resolves a parsed requirement list against the stock
// ledger. Unresolvable names are reported as strings, not errors; the caller
// decides whether to proceed with the partial recipe.
func (s *Store) BuildRequirements(ctx context.Context, parsed []ParsedRequirement) ([]models.IngredientRequirement, []string) {
	var reqs []models.IngredientRequirement
	var problems []string

	for _, p := range parsed {
		ing, err := s.stock.GetByName(ctx, p.Name)
		if err != nil {
			problems = append(problems, fmt.Sprintf("ingredient %q not found in inventory, add it to inventory first", p.Name))
			continue
		}
		reqs = append(reqs, models.IngredientRequirement{
			IngredientID:   ing.ItemID,
			IngredientName: ing.Name,
			Quantity:       p.Quantity,
			Unit:           p.Unit,
			CostPerUnit:    ing.UnitCost,
		})
	}
	return reqs, problems
}

// ImportRow is one menu item in a bulk import payload. Ingredients uses the
// "Name(quantity unit)" list syntax, e.g. "Butter(200 gm), Bun(2 pieces)".
type ImportRow struct {
	Name               string  `json:"name"`
	Price              float64 `json:"price"`
	Category           string  `json:"category"`
	FoodType           string  `json:"food_type"`
	PreparationMinutes int     `json:"preparation_time"`
	Description        string  `json:"description"`
	Ingredients        string  `json:"ingredients"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Imported int      `json:"imported_count"`
	Updated  int      `json:"updated_count"`
	Errors   []string `json:"errors,omitempty"`
}

// BulkImport upserts a batch of menu items with their recipes.
func (s *Store) BulkImport(ctx context.Context, rows []ImportRow) (*ImportResult, error) {
	result := &ImportResult{}

	for i, row := range rows {
		if strings.TrimSpace(row.Name) == "" {
			continue
		}

		parsed, parseErrs := ParseRequirementList(row.Ingredients)
		for _, e := range parseErrs {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %s", i+1, e))
		}
		reqs, problems := s.BuildRequirements(ctx, parsed)
		for _, p := range problems {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %s", i+1, p))
		}

		prep := row.PreparationMinutes
		if prep <= 0 {
			prep = 10
		}
		item := &models.MenuItem{
			Name:            strings.TrimSpace(row.Name),
			Price:           row.Price,
			Category:        strings.TrimSpace(row.Category),
			FoodType:        defaultFoodType(row.FoodType),
			PreparationTime: time.Duration(prep) * time.Minute,
			Description:     row.Description,
			IsAvailable:     true,
		}
		if err := item.SetIngredients(reqs); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}

		created, err := s.Upsert(ctx, item)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		if created {
			result.Imported++
		} else {
			result.Updated++
		}
	}

	return result, nil
}

func defaultFoodType(ft string) string {
	if strings.TrimSpace(ft) == "" {
		return "veg"
	}
	return strings.TrimSpace(ft)
}
