package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/solecare/solecare-api/models"
	"gorm.io/gorm"
)

// TransactionDetails is a transaction with its customer and line items.
type TransactionDetails struct {
	Transaction models.Transaction `json:"transaction"`
	Customer    *models.Customer   `json:"customer"`
	LineItems   []models.LineItem  `json:"lineItems"`
}

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	BranchID      string
	CustID        string
	PaymentStatus string
}

// TransactionService serves transaction reads, going through the cache first.
type TransactionService struct {
	db    *gorm.DB
	cache TransactionCache
}

func NewTransactionService(db *gorm.DB, cache TransactionCache) *TransactionService {
	if cache == nil {
		cache = NoopTransactionCache{}
	}
	return &TransactionService{db: db, cache: cache}
}

// GetDetails returns the transaction, its customer (nil if missing) and its
// line items in the order recorded on the transaction.
func (s *TransactionService) GetDetails(ctx context.Context, transactionID string) (*TransactionDetails, error) {
	if cached, ok, err := s.cache.Get(ctx, transactionID); err != nil {
		log.Printf("[transactions] WARN cache read failed for %s: %v", transactionID, err)
	} else if ok {
		return cached, nil
	}

	db := s.db.WithContext(ctx)

	var details TransactionDetails
	if err := db.Where("transaction_id = ?", transactionID).First(&details.Transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "Transaction", Key: transactionID}
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}

	var customer models.Customer
	err := db.Where("cust_id = ?", details.Transaction.CustID).First(&customer).Error
	switch {
	case err == nil:
		details.Customer = &customer
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	var items []models.LineItem
	if err := db.Where("transaction_id = ?", transactionID).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load line items: %w", err)
	}
	details.LineItems = orderLineItems(items, details.Transaction.LineItemIDs)

	if err := s.cache.Set(ctx, transactionID, &details); err != nil {
		log.Printf("[transactions] WARN cache write failed for %s: %v", transactionID, err)
	}
	return &details, nil
}

// List returns transactions newest first.
func (s *TransactionService) List(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	query := s.db.WithContext(ctx).Order("date_in DESC").Order("transaction_id DESC")
	if filter.BranchID != "" {
		query = query.Where("branch_id = ?", filter.BranchID)
	}
	if filter.CustID != "" {
		query = query.Where("cust_id = ?", filter.CustID)
	}
	if filter.PaymentStatus != "" {
		query = query.Where("payment_status = ?", filter.PaymentStatus)
	}

	transactions := []models.Transaction{}
	if err := query.Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

// orderLineItems sorts items by their position in ids; unknown items go last.
func orderLineItems(items []models.LineItem, ids []string) []models.LineItem {
	byID := make(map[string]models.LineItem, len(items))
	for _, item := range items {
		byID[item.LineItemID] = item
	}

	ordered := make([]models.LineItem, 0, len(items))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			ordered = append(ordered, item)
			delete(byID, id)
		}
	}
	for _, item := range items {
		if _, left := byID[item.LineItemID]; left {
			ordered = append(ordered, item)
		}
	}
	return ordered
}
