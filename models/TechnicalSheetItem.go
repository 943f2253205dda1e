package models

import (
	"gorm.io/gorm"
)

const (
	ICDirectionLoss = "loss"
	ICDirectionGain = "gain"
)

// TechnicalSheetItem is one line of a technical sheet, referencing
// either a raw ingredient or a recipe (never both). ICDirection records
// whether the cooking index represents weight loss or gain; it is
// descriptive only and does not enter the cost formula.
type TechnicalSheetItem struct {
	gorm.Model
	SheetID uint            `gorm:"not null;index" json:"sheet_id"`
	Sheet   *TechnicalSheet `gorm:"foreignKey:SheetID;constraint:OnDelete:CASCADE" json:"-"`

	IngredientID *uint `gorm:"index" json:"ingredient_id,omitempty"`
	RecipeID     *uint `gorm:"index" json:"recipe_id,omitempty"`

	Quantity        float64 `gorm:"not null" json:"quantity"`
	Unit            string  `gorm:"size:2;not null;default:g" json:"unit"`
	IC              float64 `gorm:"not null;default:100" json:"ic"`
	ICDirection     string  `gorm:"size:10;not null;default:loss" json:"ic_direction"`
	IPC             float64 `gorm:"not null;default:100" json:"ipc"`
	ApplyAdjustment bool    `gorm:"not null;default:true" json:"apply_adjustment"`

	Ingredient *Ingredient `gorm:"foreignKey:IngredientID;constraint:OnDelete:CASCADE" json:"ingredient,omitempty"`
	Recipe     *Recipe     `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE" json:"recipe,omitempty"`
}

// ValidICDirection reports whether value names a known cooking-index direction.
func ValidICDirection(value string) bool {
	return value == ICDirectionLoss || value == ICDirectionGain
}
