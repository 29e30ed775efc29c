package model

import "time"

// CartItem is a pending course selection. One row per (user, course);
// rows are deleted when the cart is converted into an order.
type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_user_course" json:"user_id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_cart_user_course" json:"course_id"`
	CreatedAt time.Time `json:"added_at"`

	// Relationships
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}

// TableName specifies the table name for CartItem
func (CartItem) TableName() string {
	return "cart_items"
}
