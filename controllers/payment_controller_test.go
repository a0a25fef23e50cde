package controllers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/solecare/solecare-api/models"
	"github.com/solecare/solecare-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPaymentRouter() *gin.Engine {
	router := setupTestRouter()
	router.POST("/payments", CreatePayment)
	router.GET("/payments/:payment_id", GetPayment)
	router.GET("/payments/transaction/:transaction_id/latest", GetLatestPayment)
	return router
}

func TestCreatePayment(t *testing.T) {
	setupControllerDB(t)
	intake := createIntake(t, 1000, 0, 1)
	router := setupPaymentRouter()

	w := performJSON(router, http.MethodPost, "/payments", gin.H{
		"transaction_id": intake.Transaction.TransactionID,
		"payment_amount": 400,
		"payment_mode":   "Bank",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var payment models.Payment
	decodeEnvelope(t, w, &payment)
	assert.True(t, strings.HasPrefix(payment.PaymentID, "PAY-1-"), payment.PaymentID)
	assert.True(t, strings.HasSuffix(payment.PaymentID, testutil.BranchCode), payment.PaymentID)
	assert.Equal(t, "Bank", payment.PaymentMode)
	assert.True(t, decimal.NewFromInt(400).Equal(payment.PaymentAmount))

	w = performJSON(router, http.MethodGet, "/payments/"+payment.PaymentID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var fetched models.Payment
	decodeEnvelope(t, w, &fetched)
	assert.Equal(t, payment.PaymentID, fetched.PaymentID)
}

func TestCreatePayment_Errors(t *testing.T) {
	tests := []struct {
		name           string
		body           gin.H
		expectedStatus int
		expectedCode   string
	}{
		{"missing transaction", gin.H{"payment_amount": 100}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"non-positive amount", gin.H{"transaction_id": "x", "payment_amount": 0}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown transaction", gin.H{"transaction_id": "2025-01-99999-VAL-B-NCR", "payment_amount": 10}, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupControllerDB(t)
			router := setupPaymentRouter()

			w := performJSON(router, http.MethodPost, "/payments", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedCode, decodeEnvelope(t, w, nil).Error.Code)
		})
	}
}

func TestGetLatestPayment(t *testing.T) {
	setupControllerDB(t)
	intake := createIntake(t, 1000, 300, 1)
	router := setupPaymentRouter()

	w := performJSON(router, http.MethodGet, "/payments/transaction/"+intake.Transaction.TransactionID+"/latest", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payment models.Payment
	decodeEnvelope(t, w, &payment)
	assert.Equal(t, intake.Transaction.TransactionID, payment.TransactionID)
	assert.True(t, decimal.NewFromInt(300).Equal(payment.PaymentAmount))

	w = performJSON(router, http.MethodGet, "/payments/transaction/none/latest", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
