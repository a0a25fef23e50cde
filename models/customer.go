package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is matched on (cust_name, cust_bdate) at intake and created lazily.
// TotalServices and TotalExpenditure only move when a line item is picked up.
type Customer struct {
	CustID           string          `gorm:"primaryKey;size:50" json:"cust_id"`
	CustName         string          `gorm:"not null;index:idx_customer_identity" json:"cust_name"`
	CustBdate        *string         `gorm:"size:10;index:idx_customer_identity" json:"cust_bdate"` // YYYY-MM-DD
	CustAddress      *string         `json:"cust_address"`
	CustEmail        *string         `json:"cust_email"`
	CustContact      *string         `json:"cust_contact"`
	TotalServices    int             `gorm:"not null;default:0" json:"total_services"`
	TotalExpenditure decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_expenditure"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Customer model
func (Customer) TableName() string {
	return "customers"
}
