package models

import (
	"gorm.io/gorm"
)

const (
	UnavailabilityFullDay    = "Full Day"
	UnavailabilityPartialDay = "Partial Day"
)

// Unavailability is a closed window declared by a branch. TimeStart and
// TimeEnd are only set for partial days.
type Unavailability struct {
	UnavailabilityID string  `gorm:"primaryKey;size:50" json:"unavailability_id"`
	BranchID         string  `gorm:"not null;index;size:50" json:"branch_id"`
	DateUnavailable  string  `gorm:"not null;index;size:10" json:"date_unavailable"` // YYYY-MM-DD
	Type             string  `gorm:"not null;size:20" json:"type"`
	TimeStart        *string `gorm:"size:5" json:"time_start"`
	TimeEnd          *string `gorm:"size:5" json:"time_end"`
	Note             *string `gorm:"size:255" json:"note"`
}

// TableName specifies the table name for the Unavailability model
func (Unavailability) TableName() string {
	return "unavailabilities"
}

func (u *Unavailability) AfterCreate(tx *gorm.DB) error {
	return recordChange(tx, CollectionUnavailabilities, OperationInsert, u.UnavailabilityID, u.BranchID, u)
}

func (u *Unavailability) AfterUpdate(tx *gorm.DB) error {
	return recordChange(tx, CollectionUnavailabilities, OperationUpdate, u.UnavailabilityID, u.BranchID, u)
}

func (u *Unavailability) AfterDelete(tx *gorm.DB) error {
	return recordChange(tx, CollectionUnavailabilities, OperationDelete, u.UnavailabilityID, u.BranchID, nil)
}
