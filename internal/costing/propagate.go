package costing

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fichapro/models"
)

// RecalculateRecipe re-derives the recipe's total cost, final weight and
// suggested prices from its current line items and persists them. It is
// idempotent and writes only the derived columns, so saving the result
// can never re-trigger another recalculation. Runs in its own
// transaction (a savepoint when already inside one); on postgres the
// recipe row is locked so concurrent propagations serialize.
func RecalculateRecipe(ctx context.Context, db *gorm.DB, recipeID uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipe models.Recipe
		if err := lockForUpdate(tx).First(&recipe, recipeID).Error; err != nil {
			return err
		}

		var restaurant models.Restaurant
		if err := tx.First(&restaurant, recipe.RestaurantID).Error; err != nil {
			return err
		}

		resolver := NewResolver(tx)
		cost, err := resolver.RecipeCost(ctx, recipeID)
		if err != nil {
			return err
		}
		weight, err := resolver.RecipeWeight(ctx, recipeID)
		if err != nil {
			return err
		}

		restaurantPrice, platformPrice := SuggestedPrices(cost, restaurant.CorrectionFactor)
		updates := map[string]any{
			"total_cost":       Round2(cost),
			"restaurant_price": restaurantPrice,
			"platform_price":   platformPrice,
		}
		// An explicit yield-weight override wins over the computed weight.
		if recipe.YieldWeight == nil {
			updates["final_weight"] = Round2(weight)
		}

		return tx.Model(&models.Recipe{}).Where("id = ?", recipeID).Updates(updates).Error
	})
}

// RecalculateSheet is RecalculateRecipe for technical sheets. Sheets
// have no yield override, so the final weight is always rewritten.
func RecalculateSheet(ctx context.Context, db *gorm.DB, sheetID uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sheet models.TechnicalSheet
		if err := lockForUpdate(tx).First(&sheet, sheetID).Error; err != nil {
			return err
		}

		var restaurant models.Restaurant
		if err := tx.First(&restaurant, sheet.RestaurantID).Error; err != nil {
			return err
		}

		resolver := NewResolver(tx)
		cost, err := resolver.SheetCost(ctx, sheetID)
		if err != nil {
			return err
		}
		weight, err := resolver.SheetWeight(ctx, sheetID)
		if err != nil {
			return err
		}

		restaurantPrice, platformPrice := SuggestedPrices(cost, restaurant.CorrectionFactor)
		return tx.Model(&models.TechnicalSheet{}).Where("id = ?", sheetID).Updates(map[string]any{
			"total_cost":       Round2(cost),
			"final_weight":     Round2(weight),
			"restaurant_price": restaurantPrice,
			"platform_price":   platformPrice,
		}).Error
	})
}

// RecalculateRestaurant re-derives every recipe and technical sheet of
// the restaurant. Used as a maintenance pass after the correction
// factor changes.
func RecalculateRestaurant(ctx context.Context, db *gorm.DB, restaurantID uint) error {
	var recipeIDs []uint
	if err := db.WithContext(ctx).
		Model(&models.Recipe{}).
		Where("restaurant_id = ?", restaurantID).
		Pluck("id", &recipeIDs).Error; err != nil {
		return err
	}
	for _, id := range recipeIDs {
		if err := RecalculateRecipe(ctx, db, id); err != nil {
			return err
		}
	}

	var sheetIDs []uint
	if err := db.WithContext(ctx).
		Model(&models.TechnicalSheet{}).
		Where("restaurant_id = ?", restaurantID).
		Pluck("id", &sheetIDs).Error; err != nil {
		return err
	}
	for _, id := range sheetIDs {
		if err := RecalculateSheet(ctx, db, id); err != nil {
			return err
		}
	}

	return nil
}

// IngredientOwners lists the recipes and sheets with a line referencing
// the ingredient, so callers can recompute them after the ingredient
// (and, by cascade, those lines) is deleted or its price changes.
func IngredientOwners(ctx context.Context, db *gorm.DB, ingredientID uint) (recipeIDs, sheetIDs []uint, err error) {
	if err = db.WithContext(ctx).
		Model(&models.RecipeItem{}).
		Where("ingredient_id = ?", ingredientID).
		Distinct().
		Pluck("recipe_id", &recipeIDs).Error; err != nil {
		return nil, nil, err
	}
	if err = db.WithContext(ctx).
		Model(&models.TechnicalSheetItem{}).
		Where("ingredient_id = ?", ingredientID).
		Distinct().
		Pluck("sheet_id", &sheetIDs).Error; err != nil {
		return nil, nil, err
	}
	return recipeIDs, sheetIDs, nil
}

// RecipeOwners lists the recipes and sheets with a line referencing the
// recipe as a component.
func RecipeOwners(ctx context.Context, db *gorm.DB, recipeID uint) (recipeIDs, sheetIDs []uint, err error) {
	if err = db.WithContext(ctx).
		Model(&models.RecipeItem{}).
		Where("sub_recipe_id = ?", recipeID).
		Distinct().
		Pluck("recipe_id", &recipeIDs).Error; err != nil {
		return nil, nil, err
	}
	if err = db.WithContext(ctx).
		Model(&models.TechnicalSheetItem{}).
		Where("recipe_id = ?", recipeID).
		Distinct().
		Pluck("sheet_id", &sheetIDs).Error; err != nil {
		return nil, nil, err
	}
	return recipeIDs, sheetIDs, nil
}

// RecalculateIngredientDependents re-derives every recipe and sheet
// whose value depends on the ingredient, directly or through nested
// sub-recipes. Invoked after an ingredient's price or reference weight
// changes, and after its line items are removed.
func RecalculateIngredientDependents(ctx context.Context, db *gorm.DB, ingredientID uint) error {
	recipeIDs, sheetIDs, err := IngredientOwners(ctx, db, ingredientID)
	if err != nil {
		return err
	}
	return recalculateUpward(ctx, db, recipeIDs, sheetIDs)
}

// RecalculateRecipeDependents is RecalculateIngredientDependents for a
// recipe: every composite that uses it as a component is re-derived.
func RecalculateRecipeDependents(ctx context.Context, db *gorm.DB, recipeID uint) error {
	recipeIDs, sheetIDs, err := RecipeOwners(ctx, db, recipeID)
	if err != nil {
		return err
	}
	return recalculateUpward(ctx, db, recipeIDs, sheetIDs)
}

// RecalculateComposites re-derives the given recipes and sheets plus
// everything upward of the recipes. Callers that capture owner lists
// before deleting the referencing lines hand them in here.
func RecalculateComposites(ctx context.Context, db *gorm.DB, recipeIDs, sheetIDs []uint) error {
	return recalculateUpward(ctx, db, recipeIDs, sheetIDs)
}

// recalculateUpward walks the ownership graph from the seed composites,
// collecting every recipe and sheet reachable through sub-recipe lines,
// and re-derives all of them. Each recompute resolves the live graph,
// so visit order does not matter.
func recalculateUpward(ctx context.Context, db *gorm.DB, seedRecipes, seedSheets []uint) error {
	recipes := make(map[uint]bool)
	sheets := make(map[uint]bool)
	for _, id := range seedSheets {
		sheets[id] = true
	}

	queue := append([]uint(nil), seedRecipes...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if recipes[id] {
			continue
		}
		recipes[id] = true

		ownerRecipes, ownerSheets, err := RecipeOwners(ctx, db, id)
		if err != nil {
			return err
		}
		queue = append(queue, ownerRecipes...)
		for _, sheetID := range ownerSheets {
			sheets[sheetID] = true
		}
	}

	for id := range recipes {
		if err := RecalculateRecipe(ctx, db, id); err != nil {
			return err
		}
	}
	for id := range sheets {
		if err := RecalculateSheet(ctx, db, id); err != nil {
			return err
		}
	}
	return nil
}

// Row locks are only supported on postgres; sqlite test databases run
// the same statement without the clause.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
