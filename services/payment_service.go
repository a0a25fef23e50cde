package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/solecare/solecare-api/metrics"
	"github.com/solecare/solecare-api/models"
	"gorm.io/gorm"
)

// ApplyPaymentInput is the body of POST /transactions/:id/apply-payment.
type ApplyPaymentInput struct {
	TransactionID     string           `json:"-"`
	DueNow            *decimal.Decimal `json:"dueNow" binding:"required"`
	CustomerPaid      *decimal.Decimal `json:"customerPaid" binding:"required"`
	ModeOfPayment     string           `json:"modeOfPayment" binding:"omitempty,oneof=Cash Bank GCash Other"`
	LineItemID        string           `json:"lineItemId"`
	MarkPickedUp      bool             `json:"markPickedUp"`
	PaymentStatus     *string          `json:"payment_status" binding:"omitempty,oneof=NP PARTIAL PAID"`
	ProvidedPaymentID string           `json:"provided_payment_id"`
}

// AttachmentOutcome reports what happened to a caller-provided payment id. A
// failed attachment never fails the payment application itself.
type AttachmentOutcome struct {
	Requested bool
	Attached  bool
	Err       error
}

// ApplyPaymentResult is the state after a committed payment application.
type ApplyPaymentResult struct {
	Transaction models.Transaction `json:"transaction"`
	LineItem    *models.LineItem   `json:"lineItem,omitempty"`
	PaymentID   string             `json:"payment_id,omitempty"`
	Released    bool               `json:"released"`
	Attachment  AttachmentOutcome  `json:"-"`
}

// CreatePaymentInput is the body of POST /payments.
type CreatePaymentInput struct {
	TransactionID string           `json:"transaction_id" binding:"required"`
	PaymentAmount *decimal.Decimal `json:"payment_amount" binding:"required"`
	PaymentMode   string           `json:"payment_mode" binding:"omitempty,oneof=Cash Bank GCash Other"`
	BranchID      string           `json:"branch_id"`
}

// PaymentService applies money and pickups to transactions.
type PaymentService struct {
	db     *gorm.DB
	ids    *IDGenerator
	policy PaymentStatusPolicy
	cache  TransactionCache
	now    func() time.Time
}

func NewPaymentService(db *gorm.DB, ids *IDGenerator, policy PaymentStatusPolicy, cache TransactionCache) *PaymentService {
	if ids == nil {
		ids = NewIDGenerator(nil)
	}
	if policy == nil {
		policy = TrustCallerPolicy{}
	}
	if cache == nil {
		cache = NoopTransactionCache{}
	}
	return &PaymentService{db: db, ids: ids, policy: policy, cache: cache, now: ids.now}
}

func validateApplyPayment(in *ApplyPaymentInput) error {
	var errs validationErrors
	errs.checkTags(in)

	if in.DueNow != nil && in.DueNow.IsNegative() {
		errs.add("dueNow must be >= 0")
	}
	if in.CustomerPaid != nil && in.CustomerPaid.IsNegative() {
		errs.add("customerPaid must be >= 0")
	}
	return errs.err()
}

// ApplyPayment adds dueNow to the transaction (clamped to its total), optionally
// releases a line item and closes the transaction, records payment evidence and
// updates the customer's lifetime totals. All writes commit together.
func (s *PaymentService) ApplyPayment(ctx context.Context, in *ApplyPaymentInput) (*ApplyPaymentResult, error) {
	if err := validateApplyPayment(in); err != nil {
		return nil, err
	}

	result := &ApplyPaymentResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var trx models.Transaction
		if err := forUpdate(tx).Where("transaction_id = ?", in.TransactionID).First(&trx).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "Transaction", Key: in.TransactionID}
			}
			return fmt.Errorf("failed to load transaction: %w", err)
		}

		now := s.now()

		var lineItem *models.LineItem
		release := false
		if in.MarkPickedUp {
			release = true
			if in.LineItemID != "" {
				var li models.LineItem
				if err := forUpdate(tx).Where("line_item_id = ?", in.LineItemID).First(&li).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return &NotFoundError{Entity: "LineItem", Key: in.LineItemID}
					}
					return fmt.Errorf("failed to load line item: %w", err)
				}
				if li.TransactionID != trx.TransactionID {
					return &ValidationError{Messages: []string{
						fmt.Sprintf("line item %s does not belong to transaction %s", li.LineItemID, trx.TransactionID),
					}}
				}
				lineItem = &li
				// Releasing the same pair twice would double count no_released and the customer totals.
				release = !li.IsPickedUp()
			}
			if release && trx.NoReleased < trx.NoPairs {
				trx.NoReleased++
			}
		}

		trx.AmountPaid = decimal.Min(trx.TotalAmount, trx.AmountPaid.Add(*in.DueNow))

		if in.PaymentStatus != nil {
			if err := s.policy.Check(*in.PaymentStatus, trx.AmountPaid, trx.TotalAmount); err != nil {
				return &ValidationError{Messages: []string{err.Error()}}
			}
			trx.PaymentStatus = *in.PaymentStatus
		}

		if in.ModeOfPayment != "" {
			trx.PaymentMode = appendPaymentMode(trx.PaymentMode, in.ModeOfPayment)
		}

		if in.ProvidedPaymentID != "" {
			result.Attachment = attachProvidedPayment(tx, &trx, in.ProvidedPaymentID)
		} else if in.DueNow.IsPositive() {
			paymentID, err := s.recordPayment(tx, &trx, *in.DueNow, in.ModeOfPayment, now)
			if err != nil {
				return err
			}
			result.PaymentID = paymentID
		}

		if in.MarkPickedUp && trx.Remaining() <= 0 && trx.DateOut == nil {
			trx.DateOut = &now
		}

		if err := tx.Save(&trx).Error; err != nil {
			return fmt.Errorf("failed to save transaction: %w", err)
		}

		if lineItem != nil && release {
			lineItem.CurrentStatus = models.LineItemStatusPickedUp
			lineItem.LatestUpdate = now
			if err := tx.Save(lineItem).Error; err != nil {
				return fmt.Errorf("failed to save line item: %w", err)
			}

			if err := creditCustomer(tx, trx.CustID, trx.TotalAmount); err != nil {
				return err
			}
		}

		result.Transaction = trx
		result.LineItem = lineItem
		result.Released = in.MarkPickedUp && release
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, in.TransactionID); err != nil {
		log.Printf("[payments] WARN failed to invalidate cache for %s: %v", in.TransactionID, err)
	}
	if a := result.Attachment; a.Requested && !a.Attached {
		log.Printf("[payments] WARN provided payment %s not attached to %s: %v", in.ProvidedPaymentID, in.TransactionID, a.Err)
	}
	metrics.IncPaymentApplied(result.Released)
	log.Printf("[payments] applied %s to %s (amount_paid=%s, released=%d/%d)",
		in.DueNow.StringFixed(2), in.TransactionID, result.Transaction.AmountPaid.StringFixed(2),
		result.Transaction.NoReleased, result.Transaction.NoPairs)

	return result, nil
}

// recordPayment mints a payment scoped to the transaction's branch code,
// falling back to the raw branch id when the branch cannot be resolved.
func (s *PaymentService) recordPayment(tx *gorm.DB, trx *models.Transaction, amount decimal.Decimal, mode string, now time.Time) (string, error) {
	branchCode := trx.BranchID
	var branch models.Branch
	if err := tx.Where("branch_id = ?", trx.BranchID).First(&branch).Error; err == nil && branch.BranchCode != "" {
		branchCode = branch.BranchCode
	}

	paymentID, err := s.ids.PaymentID(tx, branchCode)
	if err != nil {
		return "", err
	}
	if mode == "" {
		mode = models.PaymentModeOther
	}

	payment := models.Payment{
		PaymentID:     paymentID,
		TransactionID: trx.TransactionID,
		PaymentAmount: amount,
		PaymentMode:   mode,
		PaymentDate:   now,
	}
	if err := tx.Create(&payment).Error; err != nil {
		return "", fmt.Errorf("failed to create payment: %w", err)
	}
	trx.AttachPayment(paymentID)
	return paymentID, nil
}

// attachProvidedPayment runs the lookup under a savepoint so a failing query
// cannot poison the surrounding transaction.
func attachProvidedPayment(tx *gorm.DB, trx *models.Transaction, paymentID string) AttachmentOutcome {
	outcome := AttachmentOutcome{Requested: true}
	err := tx.Transaction(func(sp *gorm.DB) error {
		var payment models.Payment
		if err := sp.Where("payment_id = ?", paymentID).First(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "Payment", Key: paymentID}
			}
			return err
		}
		return nil
	})
	if err != nil {
		outcome.Err = err
		return outcome
	}

	trx.AttachPayment(paymentID)
	outcome.Attached = true
	return outcome
}

func creditCustomer(tx *gorm.DB, custID string, amount decimal.Decimal) error {
	var customer models.Customer
	err := forUpdate(tx).Where("cust_id = ?", custID).First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load customer: %w", err)
	}

	customer.TotalServices++
	customer.TotalExpenditure = customer.TotalExpenditure.Add(amount)
	if err := tx.Save(&customer).Error; err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

// appendPaymentMode adds mode to the comma-separated set unless already present.
func appendPaymentMode(existing, mode string) string {
	if strings.TrimSpace(existing) == "" {
		return mode
	}
	for _, m := range strings.Split(existing, ",") {
		if strings.TrimSpace(m) == mode {
			return existing
		}
	}
	return existing + "," + mode
}

// CreatePayment records a payment ahead of apply-payment. The id is scoped to
// the branch code of branch_id when given, otherwise of the transaction's branch.
func (s *PaymentService) CreatePayment(ctx context.Context, in *CreatePaymentInput) (*models.Payment, error) {
	var errs validationErrors
	errs.checkTags(in)
	if in.PaymentAmount != nil && !in.PaymentAmount.IsPositive() {
		errs.add("payment_amount must be a positive number")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var trx models.Transaction
		if err := tx.Where("transaction_id = ?", in.TransactionID).First(&trx).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "Transaction", Key: in.TransactionID}
			}
			return fmt.Errorf("failed to load transaction: %w", err)
		}

		branchID := in.BranchID
		if branchID == "" {
			branchID = trx.BranchID
		}
		branchCode := branchID
		var branch models.Branch
		if err := tx.Where("branch_id = ?", branchID).First(&branch).Error; err == nil {
			branchCode = branch.BranchCode
		}

		paymentID, err := s.ids.PaymentID(tx, branchCode)
		if err != nil {
			return err
		}
		mode := in.PaymentMode
		if mode == "" {
			mode = models.PaymentModeOther
		}
		payment = models.Payment{
			PaymentID:     paymentID,
			TransactionID: in.TransactionID,
			PaymentAmount: *in.PaymentAmount,
			PaymentMode:   mode,
			PaymentDate:   s.now(),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPayment loads one payment by id.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "Payment", Key: paymentID}
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return &payment, nil
}

// LatestPaymentForTransaction returns the most recent payment by payment date.
func (s *PaymentService) LatestPaymentForTransaction(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("payment_date DESC").
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "Payment", Key: transactionID}
		}
		return nil, fmt.Errorf("failed to load latest payment: %w", err)
	}
	return &payment, nil
}
