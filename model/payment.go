package model

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentStatus mirrors the gateway-side payment lifecycle
type PaymentStatus string

const (
	PaymentStatusReady     PaymentStatus = "READY"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// Payment is the local mirror of the gateway's authoritative payment record.
// At most one row exists per order (unique OrderID); rows are created lazily
// on first reconciliation and never deleted.
type Payment struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	ImpUID        string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"imp_uid"`
	OrderID       uint           `gorm:"uniqueIndex;not null" json:"order_id"`
	TransactionID string         `gorm:"type:varchar(100)" json:"transaction_id"`
	Amount        int64          `gorm:"not null" json:"amount"`
	Currency      string         `gorm:"type:varchar(10);default:'KRW'" json:"currency"`
	Method        string         `gorm:"type:varchar(50)" json:"method"`
	PGProvider    string         `gorm:"type:varchar(50)" json:"pg_provider"`
	Status        PaymentStatus  `gorm:"type:varchar(20);not null;default:'READY'" json:"status"`
	FailureReason string         `gorm:"type:text" json:"failure_reason,omitempty"`
	PaidAt        *time.Time     `json:"paid_at,omitempty"`
	CancelledAt   *time.Time     `json:"cancelled_at,omitempty"`
	RawPayload    datatypes.JSON `gorm:"type:jsonb" json:"-"` // gateway response as received
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`

	// Relationships
	Order Order `gorm:"foreignKey:OrderID" json:"-"`
}

// TableName specifies the table name for Payment
func (Payment) TableName() string {
	return "payments"
}
