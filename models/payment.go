package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a single money-received event. It references its transaction by id
// and is never modified after creation.
type Payment struct {
	PaymentID     string          `gorm:"primaryKey;size:80" json:"payment_id"`
	TransactionID string          `gorm:"not null;index;size:64" json:"transaction_id"`
	PaymentAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"payment_amount"`
	PaymentMode   string          `gorm:"not null;size:20" json:"payment_mode"`
	PaymentDate   time.Time       `gorm:"not null;index" json:"payment_date"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Payment model
func (Payment) TableName() string {
	return "payments"
}
