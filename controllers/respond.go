package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/solecare/solecare-api/services"
	"github.com/solecare/solecare-api/utils"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := services.RegisterValidations(v); err != nil {
			panic(err)
		}
	}
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondFailure(c *gin.Context, status int, code, message string, details interface{}) {
	body := gin.H{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

// respondBindError reports a body that could not be decoded or broke a
// binding rule. Every failed rule is listed in details.
func respondBindError(c *gin.Context, err error) {
	respondFailure(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", services.ValidationMessages(err))
}

// respondError maps service errors for write operations; anything unrecognised
// is a failed atomic group and carries the raw error for diagnostics.
func respondError(c *gin.Context, err error) {
	respondMapped(c, err, "TRANSACTION_FAILED", "Transaction failed")
}

// respondReadError maps service errors for read operations.
func respondReadError(c *gin.Context, err error) {
	respondMapped(c, err, "DATABASE_ERROR", "Failed to read from the database")
}

func respondMapped(c *gin.Context, err error, fallbackCode, fallbackMessage string) {
	var validation *services.ValidationError
	var notFound *services.NotFoundError
	var reference *services.ReferenceError
	var upload *utils.FileUploadError

	switch {
	case errors.As(err, &validation):
		respondFailure(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", validation.Messages)
	case errors.As(err, &notFound) && notFound.Entity == "Branch":
		respondFailure(c, http.StatusBadRequest, "BRANCH_NOT_FOUND", notFound.Error(), []string{notFound.Error()})
	case errors.As(err, &notFound):
		respondFailure(c, http.StatusNotFound, "NOT_FOUND", notFound.Error(), []string{notFound.Error()})
	case errors.As(err, &reference):
		respondFailure(c, http.StatusBadRequest, "INVALID_SERVICE_IDS", reference.Error(), reference.IDs)
	case errors.As(err, &upload):
		respondFailure(c, http.StatusBadRequest, upload.Code, upload.Message, nil)
	default:
		respondFailure(c, http.StatusInternalServerError, fallbackCode, fallbackMessage, err.Error())
	}
}
