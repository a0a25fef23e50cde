package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/solecare/solecare-api/config"
	"github.com/solecare/solecare-api/services"
)

// ListTransactions handles GET /api/v1/transactions?branch_id=&cust_id=&payment_status=
func ListTransactions(c *gin.Context) {
	svc := services.NewTransactionService(config.GetDB(), services.GetTransactionCache())
	transactions, err := svc.List(c.Request.Context(), services.TransactionFilter{
		BranchID:      c.Query("branch_id"),
		CustID:        c.Query("cust_id"),
		PaymentStatus: c.Query("payment_status"),
	})
	if err != nil {
		respondReadError(c, err)
		return
	}

	respondOK(c, http.StatusOK, transactions)
}

// GetTransaction handles GET /api/v1/transactions/:transaction_id
func GetTransaction(c *gin.Context) {
	svc := services.NewTransactionService(config.GetDB(), services.GetTransactionCache())
	details, err := svc.GetDetails(c.Request.Context(), c.Param("transaction_id"))
	if err != nil {
		respondReadError(c, err)
		return
	}

	respondOK(c, http.StatusOK, details)
}

// ApplyPayment handles POST /api/v1/transactions/:transaction_id/apply-payment
func ApplyPayment(c *gin.Context) {
	var req services.ApplyPaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.TransactionID = c.Param("transaction_id")

	result, err := newPaymentService().ApplyPayment(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, result)
}

func newPaymentService() *services.PaymentService {
	return services.NewPaymentService(
		config.GetDB(),
		services.NewIDGenerator(nil),
		services.GetPaymentStatusPolicy(),
		services.GetTransactionCache(),
	)
}
