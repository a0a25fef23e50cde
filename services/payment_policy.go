package services

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/solecare/solecare-api/models"
)

// PaymentStatusPolicy decides whether a caller-asserted payment status is
// acceptable for the amounts it will be stored next to. It returns a
// human-readable message when the status is rejected.
type PaymentStatusPolicy interface {
	Check(status string, amountPaid, totalAmount decimal.Decimal) error
}

// TrustCallerPolicy stores whatever status the terminal asserts.
type TrustCallerPolicy struct{}

func (TrustCallerPolicy) Check(string, decimal.Decimal, decimal.Decimal) error {
	return nil
}

// StrictPaymentStatusPolicy requires the status to agree with the amounts:
// NP when nothing is paid, PAID when the total is covered, PARTIAL otherwise.
type StrictPaymentStatusPolicy struct{}

func (StrictPaymentStatusPolicy) Check(status string, amountPaid, totalAmount decimal.Decimal) error {
	expected := ExpectedPaymentStatus(amountPaid, totalAmount)
	if status != expected {
		return fmt.Errorf("payment_status %s does not match amount_paid %s of total_amount %s (expected %s)",
			status, amountPaid.StringFixed(2), totalAmount.StringFixed(2), expected)
	}
	return nil
}

// ExpectedPaymentStatus derives the status implied by the amounts.
func ExpectedPaymentStatus(amountPaid, totalAmount decimal.Decimal) string {
	switch {
	case amountPaid.LessThanOrEqual(decimal.Zero) && totalAmount.GreaterThan(decimal.Zero):
		return models.PaymentStatusNotPaid
	case amountPaid.GreaterThanOrEqual(totalAmount):
		return models.PaymentStatusPaid
	default:
		return models.PaymentStatusPartial
	}
}

var paymentPolicyInstance PaymentStatusPolicy = TrustCallerPolicy{}

// PaymentStatusPolicyFor maps a configuration value to a policy.
func PaymentStatusPolicyFor(name string) (PaymentStatusPolicy, error) {
	switch name {
	case "", "trust":
		return TrustCallerPolicy{}, nil
	case "strict":
		return StrictPaymentStatusPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown payment status policy %q", name)
	}
}

// GetPaymentStatusPolicy returns the installed policy
func GetPaymentStatusPolicy() PaymentStatusPolicy {
	return paymentPolicyInstance
}

// SetPaymentStatusPolicy sets the policy instance
func SetPaymentStatusPolicy(p PaymentStatusPolicy) {
	paymentPolicyInstance = p
}
