package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/solecare/solecare-api/middleware"
	"github.com/solecare/solecare-api/services"
)

// CreatePayment handles POST /api/v1/payments - records a payment ahead of apply-payment
func CreatePayment(c *gin.Context) {
	var req services.CreatePaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.BranchID == "" {
		req.BranchID = middleware.GetBranchID(c)
	}

	payment, err := newPaymentService().CreatePayment(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, payment)
}

// GetPayment handles GET /api/v1/payments/:payment_id
func GetPayment(c *gin.Context) {
	payment, err := newPaymentService().GetPayment(c.Request.Context(), c.Param("payment_id"))
	if err != nil {
		respondReadError(c, err)
		return
	}

	respondOK(c, http.StatusOK, payment)
}

// GetLatestPayment handles GET /api/v1/payments/transaction/:transaction_id/latest
func GetLatestPayment(c *gin.Context) {
	payment, err := newPaymentService().LatestPaymentForTransaction(c.Request.Context(), c.Param("transaction_id"))
	if err != nil {
		respondReadError(c, err)
		return
	}

	respondOK(c, http.StatusOK, payment)
}
