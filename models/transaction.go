package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment statuses asserted by the caller; the backend does not recompute them.
const (
	PaymentStatusNotPaid = "NP"
	PaymentStatusPartial = "PARTIAL"
	PaymentStatusPaid    = "PAID"
)

// Payment modes accepted on intake and on payment records.
const (
	PaymentModeCash  = "Cash"
	PaymentModeBank  = "Bank"
	PaymentModeGCash = "GCash"
	PaymentModeOther = "Other"
)

var (
	PaymentStatuses = []string{PaymentStatusNotPaid, PaymentStatusPartial, PaymentStatusPaid}
	PaymentModes    = []string{PaymentModeCash, PaymentModeBank, PaymentModeGCash, PaymentModeOther}
)

// Transaction is one service-intake event. LineItemIDs keeps creation order and is
// never rewritten after intake; NoReleased and AmountPaid only grow.
type Transaction struct {
	TransactionID  string                      `gorm:"primaryKey;size:64" json:"transaction_id"`
	LineItemIDs    datatypes.JSONSlice[string] `gorm:"not null" json:"line_item_id"`
	BranchID       string                      `gorm:"not null;index;size:50" json:"branch_id"`
	DateIn         time.Time                   `gorm:"not null" json:"date_in"`
	ReceivedBy     string                      `gorm:"not null;size:50" json:"received_by"`
	DateOut        *time.Time                  `json:"date_out"`
	CustID         string                      `gorm:"not null;index;size:50" json:"cust_id"`
	NoPairs        int                         `gorm:"not null;default:0" json:"no_pairs"`
	NoReleased     int                         `gorm:"not null;default:0" json:"no_released"`
	TotalAmount    decimal.Decimal             `gorm:"type:numeric(12,2);not null;default:0" json:"total_amount"`
	DiscountAmount decimal.Decimal             `gorm:"type:numeric(12,2);not null;default:0" json:"discount_amount"`
	AmountPaid     decimal.Decimal             `gorm:"type:numeric(12,2);not null;default:0" json:"amount_paid"`
	PaymentStatus  string                      `gorm:"not null;default:'NP';size:10" json:"payment_status"`
	PaymentMode    string                      `gorm:"not null;default:''" json:"payment_mode"`
	Payments       datatypes.JSONSlice[string] `gorm:"not null" json:"payments"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// TableName specifies the table name for the Transaction model
func (Transaction) TableName() string {
	return "transactions"
}

// Remaining returns how many pairs are still waiting to be released.
func (t *Transaction) Remaining() int {
	return t.NoPairs - t.NoReleased
}

// HasPayment reports whether paymentID is already attached.
func (t *Transaction) HasPayment(paymentID string) bool {
	for _, id := range t.Payments {
		if id == paymentID {
			return true
		}
	}
	return false
}

// AttachPayment appends paymentID once.
func (t *Transaction) AttachPayment(paymentID string) {
	if t.HasPayment(paymentID) {
		return
	}
	t.Payments = append(t.Payments, paymentID)
}
