package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/solecare/solecare-api/metrics"
	"github.com/solecare/solecare-api/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ServiceRequestInput is the intake form submitted by a branch terminal.
type ServiceRequestInput struct {
	CustName       string           `json:"cust_name" binding:"required"`
	CustBdate      *string          `json:"cust_bdate" binding:"omitempty,ymd"`
	CustAddress    *string          `json:"cust_address"`
	CustEmail      *string          `json:"cust_email"`
	CustContact    *string          `json:"cust_contact"`
	BranchID       string           `json:"branch_id"`
	ReceivedBy     string           `json:"received_by" binding:"required,max=50"`
	TotalAmount    *decimal.Decimal `json:"total_amount" binding:"required"`
	DiscountAmount *decimal.Decimal `json:"discount_amount" binding:"required"`
	AmountPaid     *decimal.Decimal `json:"amount_paid" binding:"required"`
	PaymentStatus  string           `json:"payment_status" binding:"required,oneof=NP PARTIAL PAID"`
	PaymentMode    string           `json:"payment_mode" binding:"required,oneof=Cash Bank GCash Other"`
	DateIn         *string          `json:"date_in" binding:"omitempty,anydate"`
	LineItems      []LineItemInput  `json:"lineItems" binding:"required,min=1,dive"`
}

// LineItemInput describes one pair of shoes in an intake.
type LineItemInput struct {
	Priority        string           `json:"priority" binding:"required,oneof=Rush Normal"`
	Shoes           string           `json:"shoes" binding:"required"`
	Services        []ServiceInput   `json:"services" binding:"required,min=1,dive"`
	CurrentLocation string           `json:"current_location" binding:"omitempty,oneof=Hub Branch"`
	StorageFee      *decimal.Decimal `json:"storage_fee"`
	DueDate         *string          `json:"due_date" binding:"omitempty,anydate"`
	BeforeImg       *string          `json:"before_img"`
	AfterImg        *string          `json:"after_img"`
}

// ServiceInput requests quantity units of a catalog service.
type ServiceInput struct {
	ServiceID string   `json:"service_id" binding:"required"`
	Quantity  *float64 `json:"quantity" binding:"required,gte=1"`
}

// ServiceRequestResult is everything persisted by one intake.
type ServiceRequestResult struct {
	Customer    models.Customer    `json:"customer"`
	LineItems   []models.LineItem  `json:"lineItems"`
	Transaction models.Transaction `json:"transaction"`
}

// ServiceRequestService turns an intake form into a customer, its line items,
// the transaction and an optional initial payment, all in one database transaction.
type ServiceRequestService struct {
	db     *gorm.DB
	ids    *IDGenerator
	policy PaymentStatusPolicy
	now    func() time.Time
}

func NewServiceRequestService(db *gorm.DB, ids *IDGenerator, policy PaymentStatusPolicy) *ServiceRequestService {
	if ids == nil {
		ids = NewIDGenerator(nil)
	}
	if policy == nil {
		policy = TrustCallerPolicy{}
	}
	return &ServiceRequestService{db: db, ids: ids, policy: policy, now: ids.now}
}

// Validate reports every problem with the input at once. Field rules live in
// the binding tags; amounts and cross-field rules are checked here.
func (s *ServiceRequestService) Validate(in *ServiceRequestInput) error {
	var errs validationErrors
	errs.checkTags(in)

	// branch_id comes from the terminal token after binding
	if in.BranchID == "" {
		errs.add("branch_id is required")
	}

	amounts := []struct {
		name  string
		value *decimal.Decimal
	}{
		{"total_amount", in.TotalAmount},
		{"discount_amount", in.DiscountAmount},
		{"amount_paid", in.AmountPaid},
	}
	for _, a := range amounts {
		if a.value != nil && a.value.IsNegative() {
			errs.add("%s must be >= 0", a.name)
		}
	}
	if in.TotalAmount != nil && in.AmountPaid != nil {
		if in.AmountPaid.GreaterThan(*in.TotalAmount) {
			errs.add("amount_paid cannot exceed total_amount")
		}
		if slices.Contains(models.PaymentStatuses, in.PaymentStatus) {
			if err := s.policy.Check(in.PaymentStatus, *in.AmountPaid, *in.TotalAmount); err != nil {
				errs.add("%s", err.Error())
			}
		}
	}

	for i, item := range in.LineItems {
		for j, svc := range item.Services {
			if svc.Quantity != nil && *svc.Quantity != math.Trunc(*svc.Quantity) {
				errs.add("lineItems[%d].services[%d].quantity must be an integer", i, j)
			}
		}
		if item.StorageFee != nil && item.StorageFee.IsNegative() {
			errs.add("lineItems[%d].storage_fee must be >= 0", i)
		}
	}

	return errs.err()
}

// Create validates the input and persists the whole intake atomically.
func (s *ServiceRequestService) Create(ctx context.Context, in *ServiceRequestInput) (*ServiceRequestResult, error) {
	if err := s.Validate(in); err != nil {
		return nil, err
	}

	var result ServiceRequestResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var branch models.Branch
		if err := tx.Where("branch_id = ?", in.BranchID).First(&branch).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "Branch", Key: in.BranchID}
			}
			return fmt.Errorf("failed to load branch: %w", err)
		}

		if err := checkServicesExist(tx, in.LineItems); err != nil {
			return err
		}

		customer, err := s.findOrCreateCustomer(tx, in, branch.BranchNumber)
		if err != nil {
			return err
		}

		transactionID, err := s.ids.TransactionID(tx, branch.BranchCode)
		if err != nil {
			return err
		}

		now := s.now()
		lineItems := make([]models.LineItem, 0, len(in.LineItems))
		lineItemIDs := make([]string, 0, len(in.LineItems))
		for i, item := range in.LineItems {
			lineItemID, err := LineItemID(transactionID, i+1)
			if err != nil {
				return err
			}
			lineItem := buildLineItem(item, lineItemID, transactionID, customer.CustID, in.BranchID, now)
			if err := tx.Create(&lineItem).Error; err != nil {
				return fmt.Errorf("failed to create line item %s: %w", lineItemID, err)
			}
			lineItems = append(lineItems, lineItem)
			lineItemIDs = append(lineItemIDs, lineItemID)
		}

		dateIn := now
		if in.DateIn != nil && *in.DateIn != "" {
			dateIn, _ = parseDate(*in.DateIn)
		}

		transaction := models.Transaction{
			TransactionID:  transactionID,
			LineItemIDs:    datatypes.JSONSlice[string](lineItemIDs),
			BranchID:       in.BranchID,
			DateIn:         dateIn,
			ReceivedBy:     in.ReceivedBy,
			CustID:         customer.CustID,
			NoPairs:        len(lineItems),
			NoReleased:     0,
			TotalAmount:    *in.TotalAmount,
			DiscountAmount: *in.DiscountAmount,
			AmountPaid:     *in.AmountPaid,
			PaymentStatus:  in.PaymentStatus,
			PaymentMode:    in.PaymentMode,
			Payments:       datatypes.JSONSlice[string]{},
		}

		if in.AmountPaid.IsPositive() {
			paymentID, err := s.ids.PaymentID(tx, branch.BranchCode)
			if err != nil {
				return err
			}
			payment := models.Payment{
				PaymentID:     paymentID,
				TransactionID: transactionID,
				PaymentAmount: *in.AmountPaid,
				PaymentMode:   in.PaymentMode,
				PaymentDate:   now,
			}
			if err := tx.Create(&payment).Error; err != nil {
				return fmt.Errorf("failed to create payment: %w", err)
			}
			transaction.AttachPayment(paymentID)
		}

		if err := tx.Create(&transaction).Error; err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}

		result = ServiceRequestResult{Customer: customer, LineItems: lineItems, Transaction: transaction}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncServiceRequestCreated()
	log.Printf("[service-request] created transaction %s with %d line item(s) for %s",
		result.Transaction.TransactionID, len(result.LineItems), result.Customer.CustID)
	return &result, nil
}

// checkServicesExist verifies every distinct requested service id in one query.
func checkServicesExist(tx *gorm.DB, items []LineItemInput) error {
	var requested []string
	seen := make(map[string]bool)
	for _, item := range items {
		for _, svc := range item.Services {
			if !seen[svc.ServiceID] {
				seen[svc.ServiceID] = true
				requested = append(requested, svc.ServiceID)
			}
		}
	}

	var found []string
	if err := tx.Model(&models.Service{}).Where("service_id IN ?", requested).Pluck("service_id", &found).Error; err != nil {
		return fmt.Errorf("failed to load services: %w", err)
	}
	exists := make(map[string]bool, len(found))
	for _, id := range found {
		exists[id] = true
	}

	var invalid []string
	for _, id := range requested {
		if !exists[id] {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return &ReferenceError{Entity: "service_id", IDs: invalid}
	}
	return nil
}

// findOrCreateCustomer matches on the exact (name, birthdate) pair.
func (s *ServiceRequestService) findOrCreateCustomer(tx *gorm.DB, in *ServiceRequestInput, branchNumber int) (models.Customer, error) {
	bdate := emptyToNil(in.CustBdate)

	query := tx.Where("cust_name = ?", in.CustName)
	if bdate == nil {
		query = query.Where("cust_bdate IS NULL")
	} else {
		query = query.Where("cust_bdate = ?", *bdate)
	}

	var customer models.Customer
	err := query.First(&customer).Error
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return customer, fmt.Errorf("failed to look up customer: %w", err)
	}

	custID, err := s.ids.CustomerID(tx, branchNumber)
	if err != nil {
		return customer, err
	}
	customer = models.Customer{
		CustID:           custID,
		CustName:         in.CustName,
		CustBdate:        bdate,
		CustAddress:      emptyToNil(in.CustAddress),
		CustEmail:        emptyToNil(in.CustEmail),
		CustContact:      emptyToNil(in.CustContact),
		TotalServices:    0,
		TotalExpenditure: decimal.Zero,
	}
	if err := tx.Create(&customer).Error; err != nil {
		return customer, fmt.Errorf("failed to create customer: %w", err)
	}
	return customer, nil
}

func buildLineItem(item LineItemInput, lineItemID, transactionID, custID, branchID string, now time.Time) models.LineItem {
	services := make(datatypes.JSONSlice[models.LineItemService], 0, len(item.Services))
	for _, svc := range item.Services {
		services = append(services, models.LineItemService{ServiceID: svc.ServiceID, Quantity: int(*svc.Quantity)})
	}

	location := item.CurrentLocation
	if location == "" {
		location = models.LocationBranch
	}

	storageFee := decimal.Zero
	if item.StorageFee != nil {
		storageFee = *item.StorageFee
	}

	var dueDate *time.Time
	if item.DueDate != nil && *item.DueDate != "" {
		if parsed, err := parseDate(*item.DueDate); err == nil {
			dueDate = &parsed
		}
	}

	return models.LineItem{
		LineItemID:      lineItemID,
		TransactionID:   transactionID,
		Priority:        item.Priority,
		CustID:          custID,
		Services:        services,
		StorageFee:      storageFee,
		BranchID:        branchID,
		Shoes:           item.Shoes,
		CurrentLocation: location,
		CurrentStatus:   models.LineItemStatusQueued,
		DueDate:         dueDate,
		LatestUpdate:    now,
		BeforeImg:       emptyToNil(item.BeforeImg),
		AfterImg:        emptyToNil(item.AfterImg),
	}
}
