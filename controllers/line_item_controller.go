package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/solecare/solecare-api/config"
	"github.com/solecare/solecare-api/services"
)

// UpdateImageRequest is the body of PUT /line-items/:line_item_id/image
type UpdateImageRequest struct {
	Type string `json:"type" binding:"required,oneof=before after"`
	URL  string `json:"url" binding:"required"`
}

// StorageFeeRequest is the body of PUT /line-items/:line_item_id/storage-fee
type StorageFeeRequest struct {
	StorageFee *decimal.Decimal `json:"storage_fee" binding:"required"`
}

func newLineItemService() *services.LineItemService {
	return services.NewLineItemService(config.GetDB(), services.GetTransactionCache(), services.GetImageService())
}

// ListLineItems handles GET /api/v1/line-items - everything not yet picked up
func ListLineItems(c *gin.Context) {
	items, err := newLineItemService().ListActive(c.Request.Context(), c.Query("branch_id"))
	if err != nil {
		respondReadError(c, err)
		return
	}

	respondOK(c, http.StatusOK, items)
}

// ListLineItemsByStatus handles GET /api/v1/line-items/status/:status
func ListLineItemsByStatus(c *gin.Context) {
	items, err := newLineItemService().ListByStatus(c.Request.Context(), c.Param("status"))
	if err != nil {
		respondReadError(c, err)
		return
	}

	respondOK(c, http.StatusOK, items)
}

// UpdateLineItemStatus handles PUT /api/v1/line-items/status
func UpdateLineItemStatus(c *gin.Context) {
	var req services.StatusUpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := newLineItemService().UpdateStatus(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, result)
}

// UpdateLineItemImage handles PUT /api/v1/line-items/:line_item_id/image
func UpdateLineItemImage(c *gin.Context) {
	var req UpdateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	item, err := newLineItemService().SetImage(c.Request.Context(), c.Param("line_item_id"), req.Type, req.URL)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, item)
}

// UploadLineItemImage handles POST /api/v1/line-items/:line_item_id/image/:type (multipart field "image")
func UploadLineItemImage(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		respondFailure(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", "image file is required")
		return
	}

	item, err := newLineItemService().UploadImage(c.Request.Context(), c.Param("line_item_id"), c.Param("type"), fileHeader)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, item)
}

// AddStorageFee handles PUT /api/v1/line-items/:line_item_id/storage-fee
func AddStorageFee(c *gin.Context) {
	var req StorageFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	item, err := newLineItemService().AddStorageFee(c.Request.Context(), c.Param("line_item_id"), req.StorageFee)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, item)
}
