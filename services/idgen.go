package services

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/solecare/solecare-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var transactionIDPattern = regexp.MustCompile(`^(\d{4}-\d{2})-(\d{5})-(.+)$`)

// IDGenerator mints the human-readable sequential ids. Every scope has a row in
// the sequences table which is incremented inside the caller's transaction, so
// two writers in the same scope serialize on that row instead of racing.
type IDGenerator struct {
	now func() time.Time
}

// NewIDGenerator creates a generator that stamps year-month scopes with now.
func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{now: now}
}

// CustomerID returns CUST-<branch_number>-<n>.
func (g *IDGenerator) CustomerID(tx *gorm.DB, branchNumber int) (string, error) {
	prefix := fmt.Sprintf("CUST-%d-", branchNumber)
	seq, err := nextSequence(tx, fmt.Sprintf("customer:%d", branchNumber), func(tx *gorm.DB) (int64, error) {
		return maxIssued(tx, &models.Customer{}, "cust_id", prefix+"%",
			regexp.MustCompile(`^`+regexp.QuoteMeta(prefix)+`(\d+)$`))
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", prefix, seq), nil
}

// TransactionID returns <YYYY-MM>-<5 digit n>-<branch_code>, numbered per month and branch.
func (g *IDGenerator) TransactionID(tx *gorm.DB, branchCode string) (string, error) {
	month := g.now().Format("2006-01")
	seq, err := nextSequence(tx, fmt.Sprintf("transaction:%s:%s", month, branchCode), func(tx *gorm.DB) (int64, error) {
		return maxIssued(tx, &models.Transaction{}, "transaction_id", month+"-%-"+branchCode,
			regexp.MustCompile(`^`+month+`-(\d{5})-`+regexp.QuoteMeta(branchCode)+`$`))
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%05d-%s", month, seq, branchCode), nil
}

// LineItemID derives <YYYY-MM>-<trx seq>-<3 digit index>-<branch_code> from its
// parent transaction id. index is 1-based.
func LineItemID(transactionID string, index int) (string, error) {
	if index < 1 {
		return "", fmt.Errorf("line item index must be >= 1, got %d", index)
	}
	parts := transactionIDPattern.FindStringSubmatch(transactionID)
	if parts == nil {
		return "", fmt.Errorf("malformed transaction id %q", transactionID)
	}
	return fmt.Sprintf("%s-%s-%03d-%s", parts[1], parts[2], index, parts[3]), nil
}

// PaymentID returns PAY-<n>-<branch_code>.
func (g *IDGenerator) PaymentID(tx *gorm.DB, branchCode string) (string, error) {
	suffix := "-" + branchCode
	seq, err := nextSequence(tx, "payment:"+branchCode, func(tx *gorm.DB) (int64, error) {
		return maxIssued(tx, &models.Payment{}, "payment_id", "PAY-%"+suffix,
			regexp.MustCompile(`^PAY-(\d+)`+regexp.QuoteMeta(suffix)+`$`))
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PAY-%d%s", seq, suffix), nil
}

// UnavailabilityID returns UNAV-<n>.
func (g *IDGenerator) UnavailabilityID(tx *gorm.DB) (string, error) {
	seq, err := nextSequence(tx, "unavailability", func(tx *gorm.DB) (int64, error) {
		return maxIssued(tx, &models.Unavailability{}, "unavailability_id", "UNAV-%",
			regexp.MustCompile(`^UNAV-(\d+)$`))
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("UNAV-%d", seq), nil
}

// nextSequence bumps the counter for scope and returns the new value. A scope
// seen for the first time is seeded from the ids already present, so data that
// predates the counter keeps its numbering.
func nextSequence(tx *gorm.DB, scope string, seed func(tx *gorm.DB) (int64, error)) (int64, error) {
	bumped, err := bumpSequence(tx, scope)
	if err != nil {
		return 0, err
	}

	if !bumped {
		start, err := seed(tx)
		if err != nil {
			return 0, fmt.Errorf("failed to seed sequence %s: %w", scope, err)
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Sequence{Scope: scope, Value: start}).Error; err != nil {
			return 0, fmt.Errorf("failed to create sequence %s: %w", scope, err)
		}
		if bumped, err = bumpSequence(tx, scope); err != nil {
			return 0, err
		}
		if !bumped {
			return 0, fmt.Errorf("sequence %s vanished while seeding", scope)
		}
	}

	var seq models.Sequence
	if err := tx.Where("scope = ?", scope).First(&seq).Error; err != nil {
		return 0, fmt.Errorf("failed to read sequence %s: %w", scope, err)
	}
	return seq.Value, nil
}

func bumpSequence(tx *gorm.DB, scope string) (bool, error) {
	result := tx.Model(&models.Sequence{}).
		Where("scope = ?", scope).
		UpdateColumn("value", gorm.Expr("value + ?", 1))
	if result.Error != nil {
		return false, fmt.Errorf("failed to increment sequence %s: %w", scope, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// maxIssued scans ids matching like and returns the highest number captured by re.
func maxIssued(tx *gorm.DB, model any, column, like string, re *regexp.Regexp) (int64, error) {
	var ids []string
	if err := tx.Model(model).Where(column+" LIKE ?", like).Pluck(column, &ids).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}

	var highest int64
	for _, id := range ids {
		m := re.FindStringSubmatch(id)
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil && n > highest {
			highest = n
		}
	}
	return highest, nil
}
