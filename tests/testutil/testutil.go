package testutil

import (
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/solecare/solecare-api/config"
	"github.com/solecare/solecare-api/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Fixture keys shared across package tests.
const (
	BranchID     = "NCR-VAL-B"
	BranchCode   = "VAL-B-NCR"
	BranchNumber = 2
	ServiceID    = "SERVICE-1"
)

// MustSetTestEnvironment switches GO_ENV to test so config.Load picks up
// .env.test, and refuses to continue from a production shell.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()

	if os.Getenv("GO_ENV") == "production" {
		t.Fatal("tests must not run with GO_ENV=production")
	}
	require.NoError(t, os.Setenv("GO_ENV", "test"))
}

// NewTestDB opens a private in-memory SQLite database with every model migrated.
// The database is shared-cache and limited to one connection so code that opens
// a transaction and a background poller see the same data. It is also installed
// as the package-level config.DB and closed when the test ends.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, config.Migrate(db))

	previous := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(previous)
		sqlDB.Close()
	})
	return db
}

// SeedBranch inserts the default test branch (NCR-VAL-B / VAL-B-NCR / 2).
func SeedBranch(t *testing.T, db *gorm.DB) models.Branch {
	t.Helper()

	branch := models.Branch{
		BranchID:     BranchID,
		BranchName:   "Valenzuela Branch",
		BranchCode:   BranchCode,
		BranchNumber: BranchNumber,
		Location:     "Valenzuela City",
	}
	require.NoError(t, db.Create(&branch).Error)
	return branch
}

// SeedService inserts a catalog entry with the given id and base price.
func SeedService(t *testing.T, db *gorm.DB, serviceID string, price int64) models.Service {
	t.Helper()

	service := models.Service{
		ServiceID:        serviceID,
		ServiceName:      "Basic Cleaning " + serviceID,
		ServiceBasePrice: decimal.NewFromInt(price),
		ServiceDuration:  3,
		ServiceType:      "Service",
	}
	require.NoError(t, db.Create(&service).Error)
	return service
}

// SeedCustomer inserts a customer with zeroed lifetime counters.
func SeedCustomer(t *testing.T, db *gorm.DB, custID, name string, contact *string) models.Customer {
	t.Helper()

	customer := models.Customer{
		CustID:           custID,
		CustName:         name,
		CustContact:      contact,
		TotalExpenditure: decimal.Zero,
	}
	require.NoError(t, db.Create(&customer).Error)
	return customer
}

// SeedAppointment inserts an appointment at the test branch.
func SeedAppointment(t *testing.T, db *gorm.DB, id, custID, date, start, end, status string) models.Appointment {
	t.Helper()

	appointment := models.Appointment{
		AppointmentID:  id,
		CustID:         custID,
		BranchID:       BranchID,
		DateForInquiry: date,
		TimeStart:      start,
		TimeEnd:        end,
		Status:         status,
	}
	require.NoError(t, db.Create(&appointment).Error)
	return appointment
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string {
	return &s
}
