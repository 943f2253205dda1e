package models

import (
	"gorm.io/gorm"
)

const (
	RoleMaster   = "master"
	RoleEditor   = "editor"
	RoleOrdinary = "ordinary"
)

// RestaurantRole links a user to a restaurant under one role. A user
// holds at most one role per restaurant; the handler enforces the pair
// so a revoked link does not block a later re-grant. A missing link
// means no access; the global administrator flag lives on the User
// record.
type RestaurantRole struct {
	gorm.Model
	UserID       uint        `gorm:"not null;index:idx_user_restaurant" json:"user_id"`
	RestaurantID uint        `gorm:"not null;index:idx_user_restaurant" json:"restaurant_id"`
	Role         string      `gorm:"size:20;not null" json:"role"`
	User         *User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Restaurant   *Restaurant `gorm:"foreignKey:RestaurantID;constraint:OnDelete:CASCADE" json:"restaurant,omitempty"`
}

// ValidRole reports whether value names a restaurant-scoped role.
func ValidRole(value string) bool {
	switch value {
	case RoleMaster, RoleEditor, RoleOrdinary:
		return true
	}
	return false
}
