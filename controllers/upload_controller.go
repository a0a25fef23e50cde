package controllers

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/solecare/solecare-api/utils"
)

const uploadCacheControl = "public, max-age=86400"

// GetUploadedImage handles GET /api/v1/uploads/:filename. Only photos written
// by the local image service live here; bucket-backed photos are linked directly.
func GetUploadedImage(c *gin.Context) {
	name := c.Param("filename")
	if name == "" {
		respondFailure(c, http.StatusBadRequest, "INVALID_REQUEST", "Filename is required", nil)
		return
	}
	if !utils.IsPlainFilename(name) {
		respondFailure(c, http.StatusBadRequest, "INVALID_FILENAME", "Invalid filename", nil)
		return
	}

	contentType, ok := utils.ImageContentType(name)
	if !ok {
		respondFailure(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "Only PNG, JPEG and WebP images are supported", nil)
		return
	}

	f, err := os.Open(filepath.Join(utils.UploadDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		respondFailure(c, http.StatusNotFound, "FILE_NOT_FOUND", "Image not found", nil)
		return
	}
	if err != nil {
		respondFailure(c, http.StatusInternalServerError, "FILE_READ_ERROR", "Failed to read image", err.Error())
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		respondFailure(c, http.StatusNotFound, "FILE_NOT_FOUND", "Image not found", nil)
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), contentType, f, map[string]string{
		"Cache-Control": uploadCacheControl,
	})
}
