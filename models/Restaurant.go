package models

import (
	"gorm.io/gorm"
)

type Restaurant struct {
	gorm.Model
	Name     string `gorm:"not null" json:"name"`
	// TaxID uniqueness is enforced in the handler for non-empty values,
	// since restaurants may be registered before a tax ID is known.
	TaxID    string `gorm:"index;size:18" json:"tax_id"`
	Email    string `json:"email"`
	Phone    string `gorm:"size:20" json:"phone"`
	LogoPath string `json:"logo_path"`

	// Address
	PostalCode string `gorm:"size:9" json:"postal_code"`
	Street     string `json:"street"`
	Number     string `gorm:"size:10" json:"number"`
	Complement string `json:"complement"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `gorm:"size:2" json:"state"`

	// CorrectionFactor is the markup multiplier applied to cost when
	// deriving suggested prices.
	CorrectionFactor float64 `gorm:"not null;default:1.0" json:"correction_factor"`
}
