package models

import (
	"time"

	"gorm.io/gorm"
)

// Role is the workflow role of a staff member.
type Role string

const (
	RoleAdmin             Role = "admin"
	RoleQuoteCreator      Role = "quote_creator"
	RolePriceManager      Role = "price_manager"
	RoleQualityController Role = "quality_controller"
)

// Roles lists every known role.
var Roles = []Role{RoleAdmin, RoleQuoteCreator, RolePriceManager, RoleQualityController}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// User is a staff member. Identity is established by the bearer token subject.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string         `gorm:"size:255" json:"name,omitempty"`
	Role      Role           `gorm:"size:32;not null;default:'quote_creator'" json:"role"`
}
