package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/solecare/solecare-api/config"
	"github.com/solecare/solecare-api/middleware"
	"github.com/solecare/solecare-api/services"
)

// CreateServiceRequest handles POST /api/v1/service-request - intake of a customer's shoes
func CreateServiceRequest(c *gin.Context) {
	var req services.ServiceRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	// Terminals bound to a branch may omit it from the body
	if req.BranchID == "" {
		req.BranchID = middleware.GetBranchID(c)
	}

	svc := services.NewServiceRequestService(config.GetDB(), services.NewIDGenerator(nil), services.GetPaymentStatusPolicy())
	result, err := svc.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, result)
}
