package models

import "gorm.io/gorm"

// User represents an application account that can authenticate with the platform.
// Admin grants the system-wide administrator role; every other role is scoped to
// a restaurant through a RestaurantRole link.
type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Name         string
	Admin        bool `gorm:"not null;default:false"`
}
