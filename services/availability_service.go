package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/solecare/solecare-api/metrics"
	"github.com/solecare/solecare-api/models"
	"gorm.io/gorm"
)

// UnavailabilityInput declares a branch closed for a day or part of it.
type UnavailabilityInput struct {
	BranchID        string  `json:"branch_id"`
	DateUnavailable string  `json:"date_unavailable" binding:"required,ymd"`
	Type            string  `json:"type" binding:"required,oneof='Full Day' 'Partial Day'"`
	TimeStart       *string `json:"time_start" binding:"omitempty,hhmm"`
	TimeEnd         *string `json:"time_end" binding:"omitempty,hhmm"`
	Note            *string `json:"note"`
}

// UnavailabilityFilter selects a listing; All ignores BranchID.
type UnavailabilityFilter struct {
	BranchID string
	All      bool
}

// AvailabilityService keeps approved appointments consistent with branch
// unavailability and notifies customers about status changes.
type AvailabilityService struct {
	db       *gorm.DB
	ids      *IDGenerator
	notifier PushNotifier
}

func NewAvailabilityService(db *gorm.DB, ids *IDGenerator, notifier PushNotifier) *AvailabilityService {
	if ids == nil {
		ids = NewIDGenerator(nil)
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &AvailabilityService{db: db, ids: ids, notifier: notifier}
}

func validateUnavailability(in *UnavailabilityInput) error {
	var errs validationErrors
	errs.checkTags(in)

	if in.BranchID == "" {
		errs.add("branch_id is required")
	}
	if in.Type == models.UnavailabilityPartialDay {
		start, end := emptyToNil(in.TimeStart), emptyToNil(in.TimeEnd)
		switch {
		case start == nil || end == nil:
			errs.add("time_start and time_end are required for Partial Day")
		case isClockTime(*start) && isClockTime(*end) && *start >= *end:
			errs.add("time_start must be before time_end")
		}
	}

	return errs.err()
}

// RecordUnavailability persists the window and then cancels affected
// appointments. Cancellation is a side effect: its failure is only logged.
func (s *AvailabilityService) RecordUnavailability(ctx context.Context, in *UnavailabilityInput) (*models.Unavailability, error) {
	if err := validateUnavailability(in); err != nil {
		return nil, err
	}

	record := models.Unavailability{
		BranchID:        in.BranchID,
		DateUnavailable: in.DateUnavailable,
		Type:            in.Type,
		Note:            emptyToNil(in.Note),
	}
	if in.Type == models.UnavailabilityPartialDay {
		record.TimeStart = emptyToNil(in.TimeStart)
		record.TimeEnd = emptyToNil(in.TimeEnd)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := s.ids.UnavailabilityID(tx)
		if err != nil {
			return err
		}
		record.UnavailabilityID = id
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to create unavailability: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.CancelAffected(ctx, record); err != nil {
		log.Printf("[availability] WARN failed to cancel appointments for %s: %v", record.UnavailabilityID, err)
	}
	return &record, nil
}

// CancelAffected cancels every Approved appointment that falls inside the
// unavailable window and returns how many were cancelled. A Full Day window
// takes the whole date; a Partial Day window takes appointments overlapping
// [time_start, time_end), so touching boundaries are left alone. When the
// window names a branch only that branch's appointments are considered.
func (s *AvailabilityService) CancelAffected(ctx context.Context, window models.Unavailability) (int, error) {
	if window.DateUnavailable == "" || window.Type == "" {
		return 0, &ValidationError{Messages: []string{"date_unavailable and type are required"}}
	}

	query := s.db.WithContext(ctx).
		Where("status = ? AND date_for_inquiry = ?", models.AppointmentApproved, window.DateUnavailable)
	if window.BranchID != "" {
		query = query.Where("branch_id = ?", window.BranchID)
	}
	if window.Type == models.UnavailabilityPartialDay {
		if window.TimeStart == nil || window.TimeEnd == nil {
			return 0, &ValidationError{Messages: []string{"time_start and time_end are required for Partial Day"}}
		}
		query = query.Where("time_start < ? AND time_end > ?", *window.TimeEnd, *window.TimeStart)
	}

	var affected []models.Appointment
	if err := query.Find(&affected).Error; err != nil {
		return 0, fmt.Errorf("failed to find affected appointments: %w", err)
	}
	if len(affected) == 0 {
		return 0, nil
	}

	reason := fmt.Sprintf("Cancelled due to unavailability (%s)", window.Type)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range affected {
			affected[i].Status = models.AppointmentCancelled
			affected[i].CancelReason = &reason
			if err := tx.Save(&affected[i]).Error; err != nil {
				return fmt.Errorf("failed to cancel appointment %s: %w", affected[i].AppointmentID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.AddAppointmentsCancelled(window.Type, len(affected))
	log.Printf("[availability] cancelled %d appointment(s) affected by unavailability on %s", len(affected), window.DateUnavailable)

	for _, appt := range affected {
		s.notifyStatus(ctx, appt)
	}
	return len(affected), nil
}

// UpdateAppointmentStatus sets the status and then tells the customer. The
// notification outcome never changes the result.
func (s *AvailabilityService) UpdateAppointmentStatus(ctx context.Context, appointmentID, status string) (*models.Appointment, error) {
	if !slices.Contains(models.AppointmentStatuses, status) {
		return nil, &ValidationError{Messages: []string{"status must be one of Pending, Cancelled, Approved"}}
	}

	var appt models.Appointment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("appointment_id = ?", appointmentID).First(&appt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "Appointment", Key: appointmentID}
			}
			return fmt.Errorf("failed to load appointment: %w", err)
		}
		appt.Status = status
		if err := tx.Save(&appt).Error; err != nil {
			return fmt.Errorf("failed to update appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyStatus(ctx, appt)
	return &appt, nil
}

func (s *AvailabilityService) notifyStatus(ctx context.Context, appt models.Appointment) {
	if appt.CustID == "" || appt.DateForInquiry == "" {
		return
	}

	title, body := appointmentMessage(appt)
	if title == "" {
		return
	}

	result := s.notifier.Notify(ctx, Notification{
		CustomerID: appt.CustID,
		Title:      title,
		Body:       body,
		Data: map[string]string{
			"appointmentId": appt.AppointmentID,
			"status":        appt.Status,
			"date":          appt.DateForInquiry,
			"timeStart":     appt.TimeStart,
			"timeEnd":       appt.TimeEnd,
		},
	})
	if result.Err != nil {
		log.Printf("[availability] WARN push notification failed for appointment %s: %v", appt.AppointmentID, result.Err)
	} else if result.Delivered {
		log.Printf("[availability] push notification sent for appointment %s", appt.AppointmentID)
	}
}

func appointmentMessage(appt models.Appointment) (string, string) {
	date := appt.DateForInquiry
	if parsed, err := time.Parse("2006-01-02", appt.DateForInquiry); err == nil {
		date = parsed.Format("Monday, January 2, 2006")
	}

	switch appt.Status {
	case models.AppointmentApproved:
		return "Appointment Acknowledged", fmt.Sprintf("Your appointment on %s has been acknowledged.", date)
	case models.AppointmentCancelled:
		return "Appointment Cancelled", fmt.Sprintf("Your appointment on %s has been cancelled.", date)
	default:
		return "", ""
	}
}

// ListAppointments returns appointments with status ordered by date then start time.
func (s *AvailabilityService) ListAppointments(ctx context.Context, status, branchID string) ([]models.Appointment, error) {
	query := s.db.WithContext(ctx).Where("status = ?", status).Order("date_for_inquiry ASC").Order("time_start ASC")
	if branchID != "" {
		query = query.Where("branch_id = ?", branchID)
	}

	appointments := []models.Appointment{}
	if err := query.Find(&appointments).Error; err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// ListUnavailability returns windows ordered by date. A branch is required unless All is set.
func (s *AvailabilityService) ListUnavailability(ctx context.Context, filter UnavailabilityFilter) ([]models.Unavailability, error) {
	query := s.db.WithContext(ctx).Order("date_unavailable ASC")
	if !filter.All {
		if filter.BranchID == "" {
			return nil, &ValidationError{Messages: []string{"branch_id query is required unless all=true"}}
		}
		query = query.Where("branch_id = ?", filter.BranchID)
	}

	records := []models.Unavailability{}
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list unavailability: %w", err)
	}
	return records, nil
}

// GetUnavailability loads one window by id.
func (s *AvailabilityService) GetUnavailability(ctx context.Context, id string) (*models.Unavailability, error) {
	var record models.Unavailability
	if err := s.db.WithContext(ctx).Where("unavailability_id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "Unavailability", Key: id}
		}
		return nil, fmt.Errorf("failed to load unavailability: %w", err)
	}
	return &record, nil
}

// DeleteUnavailability removes a window. Appointments it cancelled stay cancelled.
func (s *AvailabilityService) DeleteUnavailability(ctx context.Context, id string) (*models.Unavailability, error) {
	var record models.Unavailability
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("unavailability_id = ?", id).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "Unavailability", Key: id}
			}
			return fmt.Errorf("failed to load unavailability: %w", err)
		}
		if err := tx.Delete(&record).Error; err != nil {
			return fmt.Errorf("failed to delete unavailability: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}
