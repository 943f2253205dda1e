package models

import (
	"gorm.io/gorm"
)

// ActivityRecord is one append-only audit entry. UserID is nulled when
// the actor account is deleted so the history survives.
type ActivityRecord struct {
	gorm.Model
	UserID      *uint  `json:"user_id,omitempty"`
	User        *User  `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"-"`
	Role        string `gorm:"size:50" json:"role"`
	Kind        string `gorm:"size:50;index" json:"kind"`
	Action      string `gorm:"size:20;index" json:"action"`
	Name        string `json:"name"`
	Description string `gorm:"type:text" json:"description"`
}
