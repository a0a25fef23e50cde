package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/solecare/solecare-api/middleware"
	"github.com/solecare/solecare-api/services"
)

// CreateUnavailability handles POST /api/v1/unavailability - also cancels affected appointments
func CreateUnavailability(c *gin.Context) {
	var req services.UnavailabilityInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.BranchID == "" {
		req.BranchID = middleware.GetBranchID(c)
	}

	record, err := newAvailabilityService().RecordUnavailability(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, record)
}

// ListUnavailability handles GET /api/v1/unavailability?branch_id=&all=true
func ListUnavailability(c *gin.Context) {
	filter := services.UnavailabilityFilter{
		BranchID: c.Query("branch_id"),
		All:      c.Query("all") == "true",
	}

	records, err := newAvailabilityService().ListUnavailability(c.Request.Context(), filter)
	if err != nil {
		respondReadError(c, err)
		return
	}

	respondOK(c, http.StatusOK, records)
}

// GetUnavailability handles GET /api/v1/unavailability/:id
func GetUnavailability(c *gin.Context) {
	record, err := newAvailabilityService().GetUnavailability(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondReadError(c, err)
		return
	}

	respondOK(c, http.StatusOK, record)
}

// DeleteUnavailability handles DELETE /api/v1/unavailability/:id
func DeleteUnavailability(c *gin.Context) {
	record, err := newAvailabilityService().DeleteUnavailability(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, record)
}
