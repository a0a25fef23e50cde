package acceptance

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/solecare/solecare-api/controllers"
	"github.com/solecare/solecare-api/models"
	"github.com/solecare/solecare-api/services"
	"github.com/solecare/solecare-api/tests/testutil"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// AvailabilityAcceptanceTestSuite walks a branch closing for a day: the
// window is recorded, booked customers are cancelled and told, and the
// booking lists reflect it.
type AvailabilityAcceptanceTestSuite struct {
	suite.Suite
	server   *httptest.Server
	db       *gorm.DB
	notifier *services.MockNotifier
}

// SetupSuite runs once before all tests
func (suite *AvailabilityAcceptanceTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	testutil.MustSetTestEnvironment(suite.T())

	router := gin.New()
	router.Use(gin.Recovery())
	v1 := router.Group("/api/v1")
	{
		v1.GET("/appointments/approved", controllers.ListApprovedAppointments)
		v1.GET("/appointments/pending", controllers.ListPendingAppointments)
		v1.POST("/appointments/cancel-affected", controllers.CancelAffectedAppointments)
		v1.PUT("/appointments/:appointment_id/status", controllers.UpdateAppointmentStatus)

		v1.POST("/unavailability", controllers.CreateUnavailability)
		v1.GET("/unavailability", controllers.ListUnavailability)
		v1.GET("/unavailability/:id", controllers.GetUnavailability)
		v1.DELETE("/unavailability/:id", controllers.DeleteUnavailability)
	}
	suite.server = httptest.NewServer(router)
}

// TearDownSuite runs once after all tests
func (suite *AvailabilityAcceptanceTestSuite) TearDownSuite() {
	suite.server.Close()
}

// SetupTest seeds a customer with bookings on two days
func (suite *AvailabilityAcceptanceTestSuite) SetupTest() {
	t := suite.T()
	suite.db = testutil.NewTestDB(t)
	testutil.SeedBranch(t, suite.db)
	testutil.SeedCustomer(t, suite.db, "CUST-2-1", "Mara Cruz", testutil.StrPtr("+639170001111"))

	testutil.SeedAppointment(t, suite.db, "APPT-1", "CUST-2-1", "2025-04-14", "09:00", "10:00", models.AppointmentApproved)
	testutil.SeedAppointment(t, suite.db, "APPT-2", "CUST-2-1", "2025-04-14", "13:00", "14:00", models.AppointmentApproved)
	testutil.SeedAppointment(t, suite.db, "APPT-3", "CUST-2-1", "2025-04-15", "09:00", "10:00", models.AppointmentApproved)
	testutil.SeedAppointment(t, suite.db, "APPT-4", "CUST-2-1", "2025-04-14", "11:00", "12:00", models.AppointmentPending)

	suite.notifier = services.NewMockNotifier()
	suite.notifier.SetAsMockForTesting()
}

// TearDownTest runs after each test
func (suite *AvailabilityAcceptanceTestSuite) TearDownTest() {
	services.SetNotifier(services.NoopNotifier{})
}

func (suite *AvailabilityAcceptanceTestSuite) url(path string) string {
	return suite.server.URL + "/api/v1" + path
}

func (suite *AvailabilityAcceptanceTestSuite) appointmentStatus(id string) string {
	var appt models.Appointment
	suite.Require().NoError(suite.db.First(&appt, "appointment_id = ?", id).Error)
	return appt.Status
}

func (suite *AvailabilityAcceptanceTestSuite) TestPartialDayClosureWorkflow() {
	t := suite.T()

	status, env := doJSON(t, http.MethodPost, suite.url("/unavailability"), "", map[string]interface{}{
		"branch_id":        testutil.BranchID,
		"date_unavailable": "2025-04-14",
		"type":             models.UnavailabilityPartialDay,
		"time_start":       "08:30",
		"time_end":         "12:00",
		"note":             "Water interruption",
	})
	suite.Require().Equal(http.StatusCreated, status)
	var window models.Unavailability
	suite.Require().NoError(json.Unmarshal(env.Data, &window))
	suite.Equal("UNAV-1", window.UnavailabilityID)

	// Only the approved booking inside the window is cancelled.
	suite.Equal(models.AppointmentCancelled, suite.appointmentStatus("APPT-1"))
	suite.Equal(models.AppointmentApproved, suite.appointmentStatus("APPT-2"))
	suite.Equal(models.AppointmentApproved, suite.appointmentStatus("APPT-3"))
	suite.Equal(models.AppointmentPending, suite.appointmentStatus("APPT-4"))

	sent := suite.notifier.Sent()
	suite.Require().Len(sent, 1)
	suite.Equal("CUST-2-1", sent[0].CustomerID)
	suite.Equal("Appointment Cancelled", sent[0].Title)
	suite.Equal("APPT-1", sent[0].Data["appointmentId"])

	status, env = doJSON(t, http.MethodGet, suite.url("/appointments/approved?branch_id="+testutil.BranchID), "", nil)
	suite.Require().Equal(http.StatusOK, status)
	var approved []models.Appointment
	suite.Require().NoError(json.Unmarshal(env.Data, &approved))
	suite.Require().Len(approved, 2)
	suite.Equal("APPT-2", approved[0].AppointmentID)
	suite.Equal("APPT-3", approved[1].AppointmentID)

	status, env = doJSON(t, http.MethodGet, suite.url("/unavailability?branch_id="+testutil.BranchID), "", nil)
	suite.Require().Equal(http.StatusOK, status)
	var windows []models.Unavailability
	suite.Require().NoError(json.Unmarshal(env.Data, &windows))
	suite.Len(windows, 1)

	status, _ = doJSON(t, http.MethodDelete, suite.url("/unavailability/"+window.UnavailabilityID), "", nil)
	suite.Require().Equal(http.StatusOK, status)
	status, env = doJSON(t, http.MethodGet, suite.url("/unavailability/"+window.UnavailabilityID), "", nil)
	suite.Equal(http.StatusNotFound, status)
	suite.Equal("NOT_FOUND", env.Error.Code)

	// Removing the window does not restore cancelled bookings.
	suite.Equal(models.AppointmentCancelled, suite.appointmentStatus("APPT-1"))
}

func (suite *AvailabilityAcceptanceTestSuite) TestApprovePendingThenFullDayClosure() {
	t := suite.T()

	status, env := doJSON(t, http.MethodGet, suite.url("/appointments/pending"), "", nil)
	suite.Require().Equal(http.StatusOK, status)
	var pending []models.Appointment
	suite.Require().NoError(json.Unmarshal(env.Data, &pending))
	suite.Require().Len(pending, 1)

	status, _ = doJSON(t, http.MethodPut, suite.url("/appointments/APPT-4/status"), "", map[string]string{"status": models.AppointmentApproved})
	suite.Require().Equal(http.StatusOK, status)
	suite.Require().Len(suite.notifier.Sent(), 1)
	suite.Equal("Appointment Acknowledged", suite.notifier.Sent()[0].Title)

	status, env = doJSON(t, http.MethodPost, suite.url("/appointments/cancel-affected"), "", map[string]interface{}{
		"branch_id":        testutil.BranchID,
		"date_unavailable": "2025-04-14",
		"type":             models.UnavailabilityFullDay,
	})
	suite.Require().Equal(http.StatusOK, status)
	var result struct {
		Cancelled int `json:"cancelled"`
	}
	suite.Require().NoError(json.Unmarshal(env.Data, &result))
	suite.Equal(3, result.Cancelled)
	suite.Equal(models.AppointmentApproved, suite.appointmentStatus("APPT-3"))
	suite.Len(suite.notifier.Sent(), 4)

	// Nothing approved is left on that date, so repeating is a no-op.
	status, env = doJSON(t, http.MethodPost, suite.url("/appointments/cancel-affected"), "", map[string]interface{}{
		"branch_id":        testutil.BranchID,
		"date_unavailable": "2025-04-14",
		"type":             models.UnavailabilityFullDay,
	})
	suite.Require().Equal(http.StatusOK, status)
	suite.Require().NoError(json.Unmarshal(env.Data, &result))
	suite.Zero(result.Cancelled)
}

func (suite *AvailabilityAcceptanceTestSuite) TestNotificationFailureDoesNotFailRequest() {
	suite.notifier.FailWith(errors.New("twilio down"))

	status, env := doJSON(suite.T(), http.MethodPut, suite.url("/appointments/APPT-4/status"), "", map[string]string{"status": models.AppointmentCancelled})
	suite.Require().Equal(http.StatusOK, status)

	var appt models.Appointment
	suite.Require().NoError(json.Unmarshal(env.Data, &appt))
	suite.Equal(models.AppointmentCancelled, appt.Status)
}

func (suite *AvailabilityAcceptanceTestSuite) TestValidation() {
	t := suite.T()

	status, env := doJSON(t, http.MethodPost, suite.url("/unavailability"), "", map[string]interface{}{
		"branch_id":        testutil.BranchID,
		"date_unavailable": "2025-04-14",
		"type":             models.UnavailabilityPartialDay,
		"time_start":       "12:00",
		"time_end":         "09:00",
	})
	suite.Equal(http.StatusBadRequest, status)
	suite.Equal("VALIDATION_ERROR", env.Error.Code)

	status, env = doJSON(t, http.MethodPut, suite.url("/appointments/APPT-1/status"), "", map[string]string{"status": "Maybe"})
	suite.Equal(http.StatusBadRequest, status)
	suite.Equal("VALIDATION_ERROR", env.Error.Code)

	status, env = doJSON(t, http.MethodPut, suite.url("/appointments/APPT-404/status"), "", map[string]string{"status": models.AppointmentApproved})
	suite.Equal(http.StatusNotFound, status)
	suite.Equal("NOT_FOUND", env.Error.Code)

	status, _ = doJSON(t, http.MethodGet, suite.url("/unavailability"), "", nil)
	suite.Equal(http.StatusBadRequest, status)
}

func TestAvailabilityAcceptanceTestSuite(t *testing.T) {
	suite.Run(t, new(AvailabilityAcceptanceTestSuite))
}
