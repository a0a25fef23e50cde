package services

import (
	"bytes"
	"mime/multipart"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/solecare/solecare-api/tests/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func dec(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func qty(v float64) *float64 { return &v }

// setupServiceDB returns a migrated database with the default branch and SERVICE-1.
func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.NewTestDB(t)
	testutil.SeedBranch(t, db)
	testutil.SeedService(t, db, testutil.ServiceID, 350)
	return db
}

func validServiceRequest() *ServiceRequestInput {
	return &ServiceRequestInput{
		CustName:       "Jane Doe",
		BranchID:       testutil.BranchID,
		ReceivedBy:     "Staff A",
		TotalAmount:    dec(500),
		DiscountAmount: dec(0),
		AmountPaid:     dec(0),
		PaymentStatus:  "NP",
		PaymentMode:    "Cash",
		LineItems: []LineItemInput{
			{
				Priority: "Rush",
				Shoes:    "white sneakers",
				Services: []ServiceInput{{ServiceID: testutil.ServiceID, Quantity: qty(1)}},
			},
		},
	}
}

// imageFileHeader builds a parsed multipart file header around content.
func imageFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	require.Len(t, form.File["image"], 1)
	return form.File["image"][0]
}
