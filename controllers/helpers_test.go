package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/solecare/solecare-api/services"
	"github.com/solecare/solecare-api/tests/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router
}

// mockAuthMiddleware simulates EnsureValidToken for a staff member at branchID.
func mockAuthMiddleware(userID, branchID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		testutil.SetMockAuthContext(c, userID, branchID, role)
		c.Next()
	}
}

// setupControllerDB installs a fresh database with the default branch and
// SERVICE-1, and resets the service singletons the handlers read.
func setupControllerDB(t *testing.T) *gorm.DB {
	t.Helper()

	db := testutil.NewTestDB(t)
	testutil.SeedBranch(t, db)
	testutil.SeedService(t, db, testutil.ServiceID, 350)

	services.SetPaymentStatusPolicy(services.TrustCallerPolicy{})
	services.SetTransactionCache(nil)
	services.SetNotifier(services.NoopNotifier{})
	t.Cleanup(func() {
		services.SetTransactionCache(nil)
		services.SetNotifier(services.NoopNotifier{})
		services.SetImageService(nil)
	})
	return db
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func performJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil && env.Success {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func intakeBody(total, paid float64, pairs int) gin.H {
	items := make([]gin.H, 0, pairs)
	for i := 0; i < pairs; i++ {
		items = append(items, gin.H{
			"priority": "Normal",
			"shoes":    "leather boots",
			"services": []gin.H{{"service_id": testutil.ServiceID, "quantity": 1}},
		})
	}
	status := "NP"
	if paid > 0 {
		status = "PARTIAL"
	}
	return gin.H{
		"cust_name":       "Juan Dela Cruz",
		"cust_contact":    "+639171234567",
		"branch_id":       testutil.BranchID,
		"received_by":     "Staff A",
		"total_amount":    total,
		"discount_amount": 0,
		"amount_paid":     paid,
		"payment_status":  status,
		"payment_mode":    "Cash",
		"lineItems":       items,
	}
}

// createIntake posts an intake through the handler and returns the result.
func createIntake(t *testing.T, total, paid float64, pairs int) services.ServiceRequestResult {
	t.Helper()

	router := setupTestRouter()
	router.POST("/service-request", CreateServiceRequest)

	w := performJSON(router, http.MethodPost, "/service-request", intakeBody(total, paid, pairs))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result services.ServiceRequestResult
	decodeEnvelope(t, w, &result)
	return result
}
