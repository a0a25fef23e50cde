package models

import (
	"gorm.io/gorm"
)

const (
	AppointmentPending   = "Pending"
	AppointmentCancelled = "Cancelled"
	AppointmentApproved  = "Approved"
)

var AppointmentStatuses = []string{AppointmentPending, AppointmentCancelled, AppointmentApproved}

// Appointment is a scheduled inquiry slot. Appointments are booked by the
// customer-facing app; this backend only changes their status.
type Appointment struct {
	AppointmentID  string  `gorm:"primaryKey;size:50" json:"appointment_id"`
	CustID         string  `gorm:"not null;index;size:50" json:"cust_id"`
	BranchID       string  `gorm:"not null;index;size:50" json:"branch_id"`
	DateForInquiry string  `gorm:"not null;index;size:10" json:"date_for_inquiry"` // YYYY-MM-DD
	TimeStart      string  `gorm:"not null;size:5" json:"time_start"`              // HH:mm
	TimeEnd        string  `gorm:"not null;size:5" json:"time_end"`                // HH:mm
	Status         string  `gorm:"not null;default:'Pending';index;size:10" json:"status"`
	CancelReason   *string `json:"cancel_reason,omitempty"`
}

// TableName specifies the table name for the Appointment model
func (Appointment) TableName() string {
	return "appointments"
}

func (a *Appointment) AfterCreate(tx *gorm.DB) error {
	return recordChange(tx, CollectionAppointments, OperationInsert, a.AppointmentID, a.BranchID, a)
}

func (a *Appointment) AfterUpdate(tx *gorm.DB) error {
	return recordChange(tx, CollectionAppointments, OperationUpdate, a.AppointmentID, a.BranchID, a)
}

func (a *Appointment) AfterDelete(tx *gorm.DB) error {
	return recordChange(tx, CollectionAppointments, OperationDelete, a.AppointmentID, a.BranchID, nil)
}
