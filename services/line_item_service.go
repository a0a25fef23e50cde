package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/solecare/solecare-api/models"
	"gorm.io/gorm"
)

// Image slots on a line item.
const (
	ImageBefore = "before"
	ImageAfter  = "after"
)

// StatusUpdateInput is the body of PUT /line-items/status.
type StatusUpdateInput struct {
	LineItemIDs []string `json:"line_item_ids" binding:"required,min=1,dive,required"`
	NewStatus   string   `json:"new_status" binding:"required"`
}

// StatusUpdateResult counts what a bulk status update touched.
type StatusUpdateResult struct {
	Matched  int      `json:"matched"`
	Modified int      `json:"modified"`
	Skipped  []string `json:"skipped"`
}

// LineItemService mutates line items one row at a time so every change lands
// in the change log, and drops the parent transaction from the read cache.
type LineItemService struct {
	db     *gorm.DB
	cache  TransactionCache
	images ImageService
	now    func() time.Time
}

func NewLineItemService(db *gorm.DB, cache TransactionCache, images ImageService) *LineItemService {
	if cache == nil {
		cache = NoopTransactionCache{}
	}
	return &LineItemService{db: db, cache: cache, images: images, now: time.Now}
}

// ListActive returns every line item that has not been picked up.
func (s *LineItemService) ListActive(ctx context.Context, branchID string) ([]models.LineItem, error) {
	query := s.db.WithContext(ctx).
		Where("current_status <> ?", models.LineItemStatusPickedUp).
		Order("latest_update DESC")
	if branchID != "" {
		query = query.Where("branch_id = ?", branchID)
	}

	items := []models.LineItem{}
	if err := query.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	return items, nil
}

// ListByStatus returns the line items currently in status.
func (s *LineItemService) ListByStatus(ctx context.Context, status string) ([]models.LineItem, error) {
	items := []models.LineItem{}
	err := s.db.WithContext(ctx).
		Where("current_status = ?", status).
		Order("latest_update DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	return items, nil
}

// UpdateStatus moves every listed item to NewStatus and stamps the pickup
// notice when it becomes "Ready for Pickup". Items already picked up keep
// their terminal status and are reported as skipped. Pickup itself is only
// reachable through apply-payment, which releases the pair and credits the
// customer in the same transaction.
func (s *LineItemService) UpdateStatus(ctx context.Context, in *StatusUpdateInput) (*StatusUpdateResult, error) {
	var errs validationErrors
	errs.checkTags(in)
	if in.NewStatus == models.LineItemStatusPickedUp {
		errs.add("new_status cannot be %q; use apply-payment with markPickedUp", models.LineItemStatusPickedUp)
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	result := &StatusUpdateResult{Skipped: []string{}}
	var touched []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []models.LineItem
		if err := forUpdate(tx).Where("line_item_id IN ?", in.LineItemIDs).Find(&items).Error; err != nil {
			return fmt.Errorf("failed to load line items: %w", err)
		}
		if len(items) == 0 {
			return &NotFoundError{Entity: "LineItem", Key: strings.Join(in.LineItemIDs, ", ")}
		}
		result.Matched = len(items)

		now := s.now()
		for i := range items {
			item := &items[i]
			if item.IsPickedUp() {
				result.Skipped = append(result.Skipped, item.LineItemID)
				continue
			}
			item.CurrentStatus = in.NewStatus
			item.LatestUpdate = now
			if in.NewStatus == models.LineItemStatusReadyForPickup {
				item.PickUpNotice = &now
			}
			if err := tx.Save(item).Error; err != nil {
				return fmt.Errorf("failed to update line item %s: %w", item.LineItemID, err)
			}
			result.Modified++
			touched = append(touched, item.TransactionID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, touched...)
	return result, nil
}

// SetImage records an externally hosted before/after image URL.
func (s *LineItemService) SetImage(ctx context.Context, lineItemID, kind, url string) (*models.LineItem, error) {
	if (kind != ImageBefore && kind != ImageAfter) || url == "" {
		return nil, &ValidationError{Messages: []string{"type ('before' or 'after') and url are required"}}
	}

	return s.mutate(ctx, lineItemID, func(item *models.LineItem) {
		if kind == ImageBefore {
			item.BeforeImg = &url
		} else {
			item.AfterImg = &url
		}
	})
}

// UploadImage sends the file to the image sink and stores the returned URL.
func (s *LineItemService) UploadImage(ctx context.Context, lineItemID, kind string, fileHeader *multipart.FileHeader) (*models.LineItem, error) {
	if kind != ImageBefore && kind != ImageAfter {
		return nil, &ValidationError{Messages: []string{"type must be 'before' or 'after'"}}
	}
	if s.images == nil {
		return nil, errors.New("image upload is not configured")
	}
	if err := s.db.WithContext(ctx).Where("line_item_id = ?", lineItemID).First(&models.LineItem{}).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "LineItem", Key: lineItemID}
		}
		return nil, fmt.Errorf("failed to load line item: %w", err)
	}

	url, err := s.images.UploadImage(ctx, fileHeader, lineItemID+"_"+kind)
	if err != nil {
		return nil, err
	}
	return s.SetImage(ctx, lineItemID, kind, url)
}

// AddStorageFee increments the storage fee; it is never decremented.
func (s *LineItemService) AddStorageFee(ctx context.Context, lineItemID string, fee *decimal.Decimal) (*models.LineItem, error) {
	if fee == nil || fee.IsNegative() {
		return nil, &ValidationError{Messages: []string{"storage_fee must be a non-negative number"}}
	}

	return s.mutate(ctx, lineItemID, func(item *models.LineItem) {
		item.StorageFee = item.StorageFee.Add(*fee)
	})
}

// mutate loads one line item under lock, applies change, bumps latest_update and saves.
func (s *LineItemService) mutate(ctx context.Context, lineItemID string, change func(*models.LineItem)) (*models.LineItem, error) {
	var item models.LineItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("line_item_id = ?", lineItemID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Entity: "LineItem", Key: lineItemID}
			}
			return fmt.Errorf("failed to load line item: %w", err)
		}
		change(&item)
		item.LatestUpdate = s.now()
		if err := tx.Save(&item).Error; err != nil {
			return fmt.Errorf("failed to update line item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, item.TransactionID)
	return &item, nil
}

func (s *LineItemService) invalidate(ctx context.Context, transactionIDs ...string) {
	seen := make(map[string]bool)
	for _, id := range transactionIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := s.cache.Invalidate(ctx, id); err != nil {
			log.Printf("[line-items] WARN failed to invalidate cache for %s: %v", id, err)
		}
	}
}
