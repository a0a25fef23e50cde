package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/solecare/solecare-api/config"
	"github.com/solecare/solecare-api/models"
	"github.com/solecare/solecare-api/services"
)

// UpdateAppointmentStatusRequest is the body of PUT /appointments/:appointment_id/status
type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=Pending Cancelled Approved"`
}

// CancelAffectedRequest is the unavailability window to apply.
type CancelAffectedRequest struct {
	BranchID        string  `json:"branch_id"`
	DateUnavailable string  `json:"date_unavailable" binding:"required,ymd"`
	Type            string  `json:"type" binding:"required,oneof='Full Day' 'Partial Day'"`
	TimeStart       *string `json:"time_start" binding:"omitempty,hhmm"`
	TimeEnd         *string `json:"time_end" binding:"omitempty,hhmm"`
}

func newAvailabilityService() *services.AvailabilityService {
	return services.NewAvailabilityService(config.GetDB(), services.NewIDGenerator(nil), services.GetNotifier())
}

// ListApprovedAppointments handles GET /api/v1/appointments/approved
func ListApprovedAppointments(c *gin.Context) {
	listAppointments(c, models.AppointmentApproved)
}

// ListPendingAppointments handles GET /api/v1/appointments/pending
func ListPendingAppointments(c *gin.Context) {
	listAppointments(c, models.AppointmentPending)
}

func listAppointments(c *gin.Context, status string) {
	appointments, err := newAvailabilityService().ListAppointments(c.Request.Context(), status, c.Query("branch_id"))
	if err != nil {
		respondReadError(c, err)
		return
	}

	respondOK(c, http.StatusOK, appointments)
}

// CancelAffectedAppointments handles POST /api/v1/appointments/cancel-affected
func CancelAffectedAppointments(c *gin.Context) {
	var req CancelAffectedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cancelled, err := newAvailabilityService().CancelAffected(c.Request.Context(), models.Unavailability{
		BranchID:        req.BranchID,
		DateUnavailable: req.DateUnavailable,
		Type:            req.Type,
		TimeStart:       req.TimeStart,
		TimeEnd:         req.TimeEnd,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{"cancelled": cancelled})
}

// UpdateAppointmentStatus handles PUT /api/v1/appointments/:appointment_id/status
func UpdateAppointmentStatus(c *gin.Context) {
	var req UpdateAppointmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	appointment, err := newAvailabilityService().UpdateAppointmentStatus(c.Request.Context(), c.Param("appointment_id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, appointment)
}
