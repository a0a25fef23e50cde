package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	PriorityRush   = "Rush"
	PriorityNormal = "Normal"

	LocationHub    = "Hub"
	LocationBranch = "Branch"

	LineItemStatusQueued         = "Queued"
	LineItemStatusReadyForPickup = "Ready for Pickup"
	LineItemStatusPickedUp       = "Picked Up"
)

var (
	Priorities = []string{PriorityRush, PriorityNormal}
	Locations  = []string{LocationHub, LocationBranch}
)

// LineItemService is one {service_id, quantity} entry of a line item.
type LineItemService struct {
	ServiceID string `json:"service_id"`
	Quantity  int    `json:"quantity"`
}

// LineItem is one physical pair being serviced. Once CurrentStatus is
// "Picked Up" the item drops out of the active listings for good.
type LineItem struct {
	LineItemID      string                               `gorm:"primaryKey;size:80" json:"line_item_id"`
	TransactionID   string                               `gorm:"not null;index;size:64" json:"transaction_id"`
	Priority        string                               `gorm:"not null;default:'Normal';size:10" json:"priority"`
	CustID          string                               `gorm:"not null;index;size:50" json:"cust_id"`
	Services        datatypes.JSONSlice[LineItemService] `gorm:"not null" json:"services"`
	StorageFee      decimal.Decimal                      `gorm:"type:numeric(12,2);not null;default:0" json:"storage_fee"`
	BranchID        string                               `gorm:"not null;index;size:50" json:"branch_id"`
	Shoes           string                               `gorm:"not null" json:"shoes"`
	CurrentLocation string                               `gorm:"not null;size:10" json:"current_location"`
	CurrentStatus   string                               `gorm:"not null;index;size:50" json:"current_status"`
	DueDate         *time.Time                           `json:"due_date"`
	LatestUpdate    time.Time                            `gorm:"not null" json:"latest_update"`
	BeforeImg       *string                              `json:"before_img"`
	AfterImg        *string                              `json:"after_img"`
	PickUpNotice    *time.Time                           `json:"pickUpNotice"`
}

// TableName specifies the table name for the LineItem model
func (LineItem) TableName() string {
	return "line_items"
}

// IsPickedUp reports whether the item reached its terminal status.
func (li *LineItem) IsPickedUp() bool {
	return li.CurrentStatus == LineItemStatusPickedUp
}

func (li *LineItem) AfterCreate(tx *gorm.DB) error {
	return recordChange(tx, CollectionLineItems, OperationInsert, li.LineItemID, li.BranchID, li)
}

func (li *LineItem) AfterUpdate(tx *gorm.DB) error {
	return recordChange(tx, CollectionLineItems, OperationUpdate, li.LineItemID, li.BranchID, li)
}

func (li *LineItem) AfterDelete(tx *gorm.DB) error {
	return recordChange(tx, CollectionLineItems, OperationDelete, li.LineItemID, li.BranchID, nil)
}
