package costing

import (
	"context"

	"gorm.io/gorm"

	"fichapro/models"
)

// CreatesCycle reports whether adding a line on recipeID that references
// subRecipeID would close a cycle in the composition graph. It walks the
// sub-recipe edges reachable from subRecipeID breadth-first and looks
// for a path back to recipeID. Called before a sub-recipe line is
// written; the resolver relies on this check and never re-verifies.
func CreatesCycle(ctx context.Context, db *gorm.DB, recipeID, subRecipeID uint) (bool, error) {
	if recipeID == subRecipeID {
		return true, nil
	}

	seen := map[uint]bool{subRecipeID: true}
	frontier := []uint{subRecipeID}

	for len(frontier) > 0 {
		var next []uint
		if err := db.WithContext(ctx).
			Model(&models.RecipeItem{}).
			Where("recipe_id IN ? AND sub_recipe_id IS NOT NULL", frontier).
			Pluck("sub_recipe_id", &next).Error; err != nil {
			return false, err
		}

		frontier = frontier[:0]
		for _, id := range next {
			if id == recipeID {
				return true, nil
			}
			if !seen[id] {
				seen[id] = true
				frontier = append(frontier, id)
			}
		}
	}

	return false, nil
}
