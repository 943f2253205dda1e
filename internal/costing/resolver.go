package costing

import (
	"context"

	"gorm.io/gorm"

	"fichapro/models"
)

// Resolver derives a composite's total cost and final weight from its
// persisted line items, recursing through sub-recipe references. Every
// call re-reads the graph; nothing is cached between calls. Results are
// unrounded so nested callers keep full precision; rounding happens once,
// where a value is persisted or exposed.
//
// The composition graph is assumed to be a DAG. Cycles are rejected when
// line items are written (see CreatesCycle); the resolver has no depth
// guard of its own.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// RecipeCost sums the cost of every line of the recipe. Ingredient lines
// charge unit cost times the IC/IPC-adjusted quantity; sub-recipe lines
// charge the sub-recipe's total cost times the raw quantity, with no
// adjustment applied to the sub-recipe contribution.
func (r *Resolver) RecipeCost(ctx context.Context, recipeID uint) (float64, error) {
	items, err := r.recipeItems(ctx, recipeID)
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, item := range items {
		switch {
		case item.IngredientID != nil:
			total += ingredientLineCost(item.Ingredient, item.Quantity, item.IC, item.IPC, item.ApplyAdjustment)
		case item.SubRecipeID != nil:
			subCost, err := r.RecipeCost(ctx, *item.SubRecipeID)
			if err != nil {
				return 0, err
			}
			total += subCost * item.Quantity
		}
	}
	return total, nil
}

// RecipeWeight sums the yield weight of every line of the recipe.
// Ingredient lines contribute their adjusted quantity; sub-recipe lines
// contribute the sub-recipe's weight times the quantity, where quantity
// counts yield-units of the sub-recipe rather than a mass.
func (r *Resolver) RecipeWeight(ctx context.Context, recipeID uint) (float64, error) {
	items, err := r.recipeItems(ctx, recipeID)
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, item := range items {
		switch {
		case item.IngredientID != nil:
			total += AdjustedQuantity(item.Quantity, item.IC, item.IPC, item.ApplyAdjustment)
		case item.SubRecipeID != nil:
			subWeight, err := r.RecipeWeight(ctx, *item.SubRecipeID)
			if err != nil {
				return 0, err
			}
			total += subWeight * item.Quantity
		}
	}
	return total, nil
}

// SheetCost sums the cost of every line of the technical sheet. Recipe
// lines are pro-rated by the fraction of the recipe's yield actually
// used; when the recipe's yield is zero or unknown the full recipe cost
// is charged unadjusted.
func (r *Resolver) SheetCost(ctx context.Context, sheetID uint) (float64, error) {
	items, err := r.sheetItems(ctx, sheetID)
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, item := range items {
		switch {
		case item.IngredientID != nil:
			total += ingredientLineCost(item.Ingredient, item.Quantity, item.IC, item.IPC, item.ApplyAdjustment)
		case item.RecipeID != nil:
			subCost, err := r.RecipeCost(ctx, *item.RecipeID)
			if err != nil {
				return 0, err
			}
			subWeight, err := r.RecipeWeight(ctx, *item.RecipeID)
			if err != nil {
				return 0, err
			}
			if subWeight > 0 {
				total += subCost * (item.Quantity / subWeight)
			} else {
				total += subCost
			}
		}
	}
	return total, nil
}

// SheetWeight sums the final weight of every line of the technical sheet.
func (r *Resolver) SheetWeight(ctx context.Context, sheetID uint) (float64, error) {
	items, err := r.sheetItems(ctx, sheetID)
	if err != nil {
		return 0, err
	}

	total := 0.0
	for _, item := range items {
		switch {
		case item.IngredientID != nil:
			total += AdjustedQuantity(item.Quantity, item.IC, item.IPC, item.ApplyAdjustment)
		case item.RecipeID != nil:
			subWeight, err := r.RecipeWeight(ctx, *item.RecipeID)
			if err != nil {
				return 0, err
			}
			total += subWeight * item.Quantity
		}
	}
	return total, nil
}

func (r *Resolver) recipeItems(ctx context.Context, recipeID uint) ([]models.RecipeItem, error) {
	var items []models.RecipeItem
	err := r.db.WithContext(ctx).
		Preload("Ingredient").
		Where("recipe_id = ?", recipeID).
		Order("id asc").
		Find(&items).Error
	return items, err
}

func (r *Resolver) sheetItems(ctx context.Context, sheetID uint) ([]models.TechnicalSheetItem, error) {
	var items []models.TechnicalSheetItem
	err := r.db.WithContext(ctx).
		Preload("Ingredient").
		Where("sheet_id = ?", sheetID).
		Order("id asc").
		Find(&items).Error
	return items, err
}

// ingredientLineCost charges unit cost times adjusted quantity. An
// absent ingredient row or a missing price or reference weight makes the
// line free rather than failing the whole resolution.
func ingredientLineCost(ingredient *models.Ingredient, quantity, ic, ipc float64, apply bool) float64 {
	if ingredient == nil || ingredient.Price <= 0 || ingredient.ReferenceWeight <= 0 {
		return 0
	}
	unitCost := ingredient.Price / ingredient.ReferenceWeight
	return unitCost * AdjustedQuantity(quantity, ic, ipc, apply)
}
