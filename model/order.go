package model

import "time"

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is an immutable purchase created from the cart. TotalPrice is the
// sum of item snapshot prices at creation time and is never recomputed.
type Order struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	UserID      uint        `gorm:"not null;index" json:"user_id"`
	MerchantUID string      `gorm:"type:varchar(64);uniqueIndex;not null" json:"merchant_uid"`
	TotalPrice  int64       `gorm:"not null" json:"total_price"`
	Status      OrderStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	// Relationships
	Items   []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Payment *Payment    `gorm:"foreignKey:OrderID" json:"payment,omitempty"`
}

// OrderItem is a purchase-time snapshot of one course. It is decoupled from
// later catalog edits: title, slug, thumbnail and price are frozen here.
type OrderItem struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	OrderID         uint      `gorm:"not null;index" json:"order_id"`
	CourseID        uint      `gorm:"not null" json:"course_id"`
	CourseTitle     string    `gorm:"not null" json:"course_title"`
	CourseSlug      string    `gorm:"not null" json:"course_slug"`
	CourseThumbnail string    `gorm:"type:varchar(500)" json:"course_thumbnail"`
	PriceAtPurchase int64     `gorm:"not null" json:"price_at_purchase"`
	CreatedAt       time.Time `json:"created_at"`
}
