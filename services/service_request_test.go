package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/solecare/solecare-api/models"
	"github.com/solecare/solecare-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestServiceRequest_Validate(t *testing.T) {
	svc := NewServiceRequestService(nil, NewIDGenerator(fixedClock), nil)

	tests := []struct {
		name   string
		mutate func(in *ServiceRequestInput)
		want   []string
	}{
		{
			name:   "valid input",
			mutate: func(in *ServiceRequestInput) {},
			want:   nil,
		},
		{
			name: "missing top level fields are all reported",
			mutate: func(in *ServiceRequestInput) {
				in.CustName = ""
				in.BranchID = ""
				in.ReceivedBy = ""
				in.TotalAmount = nil
				in.DiscountAmount = nil
				in.AmountPaid = nil
			},
			want: []string{
				"cust_name is required",
				"branch_id is required",
				"received_by is required",
				"total_amount is required",
				"discount_amount is required",
				"amount_paid is required",
			},
		},
		{
			name: "enums",
			mutate: func(in *ServiceRequestInput) {
				in.PaymentStatus = "DONE"
				in.PaymentMode = "Crypto"
			},
			want: []string{
				"payment_status must be one of NP, PARTIAL, PAID",
				"payment_mode must be one of Cash, Bank, GCash, Other",
			},
		},
		{
			name:   "no line items",
			mutate: func(in *ServiceRequestInput) { in.LineItems = nil },
			want:   []string{"lineItems is required and cannot be empty"},
		},
		{
			name: "line item problems are indexed",
			mutate: func(in *ServiceRequestInput) {
				in.LineItems = append(in.LineItems, LineItemInput{
					Priority:        "Urgent",
					Shoes:           "",
					CurrentLocation: "Warehouse",
					Services: []ServiceInput{
						{ServiceID: "", Quantity: qty(0)},
						{ServiceID: "SERVICE-2", Quantity: nil},
						{ServiceID: "SERVICE-3", Quantity: qty(1.5)},
					},
				}, LineItemInput{Priority: "Normal", Shoes: "boots"})
			},
			want: []string{
				"lineItems[1].priority must be one of Rush, Normal",
				"lineItems[1].shoes is required",
				"lineItems[1].services[0].service_id is required",
				"lineItems[1].services[0].quantity must be >= 1",
				"lineItems[1].services[1].quantity is required",
				"lineItems[1].services[2].quantity must be an integer",
				"lineItems[1].current_location must be one of Hub, Branch",
				"lineItems[2].services is required and cannot be empty",
			},
		},
		{
			name: "amount constraints",
			mutate: func(in *ServiceRequestInput) {
				in.DiscountAmount = dec(-1)
				in.AmountPaid = dec(600)
			},
			want: []string{
				"discount_amount must be >= 0",
				"amount_paid cannot exceed total_amount",
			},
		},
		{
			name: "received_by length",
			mutate: func(in *ServiceRequestInput) {
				in.ReceivedBy = "abcdefghijabcdefghijabcdefghijabcdefghijabcdefghijX"
			},
			want: []string{"received_by must be at most 50 characters"},
		},
		{
			name: "dates",
			mutate: func(in *ServiceRequestInput) {
				in.CustBdate = testutil.StrPtr("01/02/1990")
				in.DateIn = testutil.StrPtr("yesterday")
				in.LineItems[0].DueDate = testutil.StrPtr("soon")
			},
			want: []string{
				"cust_bdate must be a date in YYYY-MM-DD format",
				"date_in must be a valid date",
				"lineItems[0].due_date must be a valid date",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validServiceRequest()
			tt.mutate(in)

			err := svc.Validate(in)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.ElementsMatch(t, tt.want, verr.Messages)
		})
	}
}

func TestServiceRequest_StrictPolicyRejectsMismatchedStatus(t *testing.T) {
	svc := NewServiceRequestService(nil, NewIDGenerator(fixedClock), StrictPaymentStatusPolicy{})

	in := validServiceRequest()
	in.AmountPaid = dec(500)
	in.PaymentStatus = "PARTIAL"

	var verr *ValidationError
	require.ErrorAs(t, svc.Validate(in), &verr)
	assert.Contains(t, verr.Messages[0], "expected PAID")

	in.PaymentStatus = "PAID"
	assert.NoError(t, svc.Validate(in))
}

func TestServiceRequest_CreateFirstOfMonth(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewServiceRequestService(db, NewIDGenerator(fixedClock), nil)

	result, err := svc.Create(context.Background(), validServiceRequest())
	require.NoError(t, err)

	assert.Equal(t, "CUST-2-1", result.Customer.CustID)
	assert.Equal(t, 0, result.Customer.TotalServices)
	assert.True(t, result.Customer.TotalExpenditure.IsZero())

	assert.Equal(t, "2025-01-00001-VAL-B-NCR", result.Transaction.TransactionID)
	require.Len(t, result.LineItems, 1)
	li := result.LineItems[0]
	assert.Equal(t, "2025-01-00001-001-VAL-B-NCR", li.LineItemID)
	assert.Equal(t, models.LineItemStatusQueued, li.CurrentStatus)
	assert.Equal(t, models.LocationBranch, li.CurrentLocation)
	assert.Equal(t, "Rush", li.Priority)
	assert.Equal(t, testNow, li.LatestUpdate)
	assert.Equal(t, []models.LineItemService{{ServiceID: testutil.ServiceID, Quantity: 1}}, []models.LineItemService(li.Services))

	assert.Equal(t, 1, result.Transaction.NoPairs)
	assert.Equal(t, 0, result.Transaction.NoReleased)
	assert.Equal(t, []string{li.LineItemID}, []string(result.Transaction.LineItemIDs))
	assert.Empty(t, result.Transaction.Payments)
	assert.Nil(t, result.Transaction.DateOut)

	var count int64
	db.Model(&models.Payment{}).Count(&count)
	assert.Equal(t, int64(0), count, "no payment record without an initial amount")
}

func TestServiceRequest_CreateWithInitialPayment(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewServiceRequestService(db, NewIDGenerator(fixedClock), nil)

	in := validServiceRequest()
	in.AmountPaid = dec(500)
	in.PaymentStatus = "PARTIAL" // trusted as asserted

	result, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "PARTIAL", result.Transaction.PaymentStatus)
	require.Equal(t, []string{"PAY-1-VAL-B-NCR"}, []string(result.Transaction.Payments))

	var payments []models.Payment
	require.NoError(t, db.Find(&payments).Error)
	require.Len(t, payments, 1)
	assert.True(t, decimal.NewFromInt(500).Equal(payments[0].PaymentAmount))
	assert.Equal(t, result.Transaction.TransactionID, payments[0].TransactionID)
	assert.Equal(t, "Cash", payments[0].PaymentMode)
}

func TestServiceRequest_MultipleLineItemsShareTransactionPrefix(t *testing.T) {
	db := setupServiceDB(t)
	testutil.SeedService(t, db, "SERVICE-2", 150)
	svc := NewServiceRequestService(db, NewIDGenerator(fixedClock), nil)

	in := validServiceRequest()
	in.LineItems = append(in.LineItems,
		LineItemInput{Priority: "Normal", Shoes: "leather boots", CurrentLocation: "Hub",
			Services: []ServiceInput{{ServiceID: "SERVICE-2", Quantity: qty(2)}}},
		LineItemInput{Priority: "Normal", Shoes: "loafers", DueDate: testutil.StrPtr("2025-01-20"),
			Services: []ServiceInput{{ServiceID: testutil.ServiceID, Quantity: qty(1)}, {ServiceID: "SERVICE-2", Quantity: qty(1)}}},
	)

	result, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, result.LineItems, 3)
	assert.Equal(t, 3, result.Transaction.NoPairs)
	assert.Equal(t, []string{
		"2025-01-00001-001-VAL-B-NCR",
		"2025-01-00001-002-VAL-B-NCR",
		"2025-01-00001-003-VAL-B-NCR",
	}, []string(result.Transaction.LineItemIDs))
	assert.Equal(t, "Hub", result.LineItems[1].CurrentLocation)
	require.NotNil(t, result.LineItems[2].DueDate)
	assert.Equal(t, "2025-01-20", result.LineItems[2].DueDate.Format("2006-01-02"))
}

func TestServiceRequest_ReusesCustomerByNameAndBirthdate(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewServiceRequestService(db, NewIDGenerator(fixedClock), nil)

	in := validServiceRequest()
	in.CustBdate = testutil.StrPtr("1990-05-01")
	first, err := svc.Create(context.Background(), in)
	require.NoError(t, err)

	second, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first.Customer.CustID, second.Customer.CustID)
	assert.Equal(t, "2025-01-00002-VAL-B-NCR", second.Transaction.TransactionID)

	// Same name without a birthdate is a different person.
	other := validServiceRequest()
	third, err := svc.Create(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, "CUST-2-2", third.Customer.CustID)
}

func TestServiceRequest_BranchNotFound(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewServiceRequestService(db, NewIDGenerator(fixedClock), nil)

	in := validServiceRequest()
	in.BranchID = "NOPE"

	_, err := svc.Create(context.Background(), in)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Branch", nf.Entity)
	assertNothingWritten(t, db)
}

func TestServiceRequest_InvalidServicesListsEveryMissingID(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewServiceRequestService(db, NewIDGenerator(fixedClock), nil)

	in := validServiceRequest()
	in.LineItems[0].Services = append(in.LineItems[0].Services,
		ServiceInput{ServiceID: "GHOST-1", Quantity: qty(1)},
		ServiceInput{ServiceID: "GHOST-2", Quantity: qty(1)},
		ServiceInput{ServiceID: "GHOST-1", Quantity: qty(2)},
	)

	_, err := svc.Create(context.Background(), in)
	var ref *ReferenceError
	require.ErrorAs(t, err, &ref)
	assert.Equal(t, []string{"GHOST-1", "GHOST-2"}, ref.IDs)
	assert.Equal(t, "Invalid service_id(s): GHOST-1, GHOST-2", ref.Error())
	assertNothingWritten(t, db)
}

func TestServiceRequest_EmitsLineItemChangeRecords(t *testing.T) {
	db := setupServiceDB(t)
	svc := NewServiceRequestService(db, NewIDGenerator(fixedClock), nil)

	_, err := svc.Create(context.Background(), validServiceRequest())
	require.NoError(t, err)

	var records []models.ChangeRecord
	require.NoError(t, db.Where("collection = ?", models.CollectionLineItems).Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, models.OperationInsert, records[0].OperationType)
	assert.Equal(t, "2025-01-00001-001-VAL-B-NCR", records[0].DocumentKey)
	assert.Equal(t, testutil.BranchID, records[0].BranchID)
	assert.Contains(t, string(records[0].FullDocument), `"shoes":"white sneakers"`)
}

// assertNothingWritten checks that a failed intake left no partial rows behind.
func assertNothingWritten(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, model := range []interface{}{&models.Customer{}, &models.Transaction{}, &models.LineItem{}, &models.Payment{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T rows should not exist", model)
	}
}
