package models

import (
	"gorm.io/gorm"
)

// TechnicalSheet is the plated-dish counterpart of Recipe. It carries
// the same derived fields, but FinalWeight is always resolver-computed;
// there is no yield-weight override.
type TechnicalSheet struct {
	gorm.Model
	RestaurantID uint        `gorm:"not null;index" json:"restaurant_id"`
	Restaurant   *Restaurant `gorm:"foreignKey:RestaurantID;constraint:OnDelete:CASCADE" json:"restaurant,omitempty"`
	Name         string      `gorm:"not null" json:"name"`
	Yield        string      `gorm:"size:100" json:"yield"`
	Preparation  string      `gorm:"type:text" json:"preparation"`
	ImagePath    string      `json:"image_path,omitempty"`

	TotalCost       *float64 `json:"total_cost,omitempty"`
	FinalWeight     *float64 `json:"final_weight,omitempty"`
	RestaurantPrice *float64 `json:"restaurant_price,omitempty"`
	PlatformPrice   *float64 `json:"platform_price,omitempty"`

	Items []TechnicalSheetItem `gorm:"foreignKey:SheetID" json:"items"`
}
