package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Branch is a physical service location. BranchNumber and BranchCode are the
// scoping keys used when minting customer, transaction and payment ids.
type Branch struct {
	BranchID     string    `gorm:"primaryKey;size:50" json:"branch_id"`
	BranchName   string    `gorm:"not null" json:"branch_name"`
	BranchCode   string    `gorm:"uniqueIndex;not null;size:50" json:"branch_code"`
	BranchNumber int       `gorm:"uniqueIndex;not null" json:"branch_number"`
	Location     string    `json:"location"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Branch model
func (Branch) TableName() string {
	return "branches"
}

// Service is an entry of the service catalog (cleaning, repaint, sole repair...)
type Service struct {
	ServiceID        string          `gorm:"primaryKey;size:50" json:"service_id"`
	ServiceName      string          `gorm:"not null" json:"service_name"`
	ServiceBasePrice decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"service_base_price"`
	ServiceDuration  int             `json:"service_duration"` // days
	ServiceType      string          `json:"service_type"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Service model
func (Service) TableName() string {
	return "services"
}
