package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered user in the system. Registration and
// credential verification live in the identity service; this API only
// resolves users referenced by already-issued tokens.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Name      string         `gorm:"not null" json:"name"`
	Role      string         `gorm:"type:varchar(20);default:'student'" json:"role"` // student, instructor, admin

	// Relationships
	CartItems   []CartItem   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Orders      []Order      `gorm:"foreignKey:UserID" json:"-"`
	Enrollments []Enrollment `gorm:"foreignKey:UserID" json:"-"`
}
