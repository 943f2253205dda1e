package models

import (
	"gorm.io/gorm"
)

const (
	UnitGram       = "g"
	UnitMilliliter = "ml"
	UnitPiece      = "un"
)

// Ingredient is a purchasable raw input. Price covers the full
// ReferenceWeight, so unit cost is Price / ReferenceWeight.
type Ingredient struct {
	gorm.Model
	RestaurantID    uint        `gorm:"not null;index" json:"restaurant_id"`
	Restaurant      *Restaurant `gorm:"foreignKey:RestaurantID;constraint:OnDelete:CASCADE" json:"restaurant,omitempty"`
	Name            string      `gorm:"not null" json:"name"`
	ReferenceWeight float64     `gorm:"not null" json:"reference_weight"`
	Unit            string      `gorm:"size:2;not null;default:g" json:"unit"`
	Price           float64     `gorm:"not null" json:"price"`
}

// ValidUnit reports whether value is one of the supported units of measure.
func ValidUnit(value string) bool {
	switch value {
	case UnitGram, UnitMilliliter, UnitPiece:
		return true
	}
	return false
}
