package models

import (
	"gorm.io/gorm"
)

// RecipeItem is one line of a recipe. Exactly one of IngredientID and
// SubRecipeID is set. IC and IPC are percentages; with the adjustment
// applied, the charged quantity becomes Quantity / ((IC/100)*(IPC/100)).
type RecipeItem struct {
	gorm.Model
	RecipeID uint    `gorm:"not null;index" json:"recipe_id"`
	Recipe   *Recipe `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"-"`

	IngredientID *uint `gorm:"index" json:"ingredient_id,omitempty"`
	SubRecipeID  *uint `gorm:"index" json:"sub_recipe_id,omitempty"`

	Quantity        float64 `gorm:"not null" json:"quantity"`
	IC              float64 `gorm:"not null;default:100" json:"ic"`
	IPC             float64 `gorm:"not null;default:100" json:"ipc"`
	ApplyAdjustment bool    `gorm:"not null;default:true" json:"apply_adjustment"`

	Ingredient *Ingredient `gorm:"foreignKey:IngredientID;constraint:OnDelete:CASCADE" json:"ingredient,omitempty"`
	SubRecipe  *Recipe     `gorm:"foreignKey:SubRecipeID;constraint:OnDelete:CASCADE" json:"sub_recipe,omitempty"`
}
