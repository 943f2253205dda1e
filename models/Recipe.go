package models

import (
	"gorm.io/gorm"
)

// Recipe is a composite preparation owned by one restaurant. Its line
// items may reference raw ingredients or other recipes, forming a DAG.
// TotalCost, FinalWeight and the two suggested prices are derived
// fields maintained by the costing propagator; FinalWeight is left
// alone when YieldWeight declares an explicit override.
type Recipe struct {
	gorm.Model
	RestaurantID     uint        `gorm:"not null;index" json:"restaurant_id"`
	Restaurant       *Restaurant `gorm:"foreignKey:RestaurantID;constraint:OnDelete:CASCADE" json:"restaurant,omitempty"`
	Name             string      `gorm:"not null" json:"name"`
	PrepTimeMinutes  uint        `json:"prep_time_minutes"`
	SuggestedPortion string      `gorm:"size:100" json:"suggested_portion"`
	Preparation      string      `gorm:"type:text" json:"preparation"`
	YieldWeight      *float64    `json:"yield_weight,omitempty"`
	Yield            string      `gorm:"size:100" json:"yield,omitempty"`
	ImagePath        string      `json:"image_path,omitempty"`

	TotalCost       *float64 `json:"total_cost,omitempty"`
	FinalWeight     *float64 `json:"final_weight,omitempty"`
	RestaurantPrice *float64 `json:"restaurant_price,omitempty"`
	PlatformPrice   *float64 `json:"platform_price,omitempty"`

	Items []RecipeItem `gorm:"foreignKey:RecipeID" json:"items"`
}
