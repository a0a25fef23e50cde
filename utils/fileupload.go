package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Line item photo limits and error codes shared by the S3 and local image services.
const (
	MaxFileSize = 10 << 20

	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodeInvalidFileFormat = "INVALID_FILE_FORMAT"
)

// UploadDir is where the local image service keeps photos. Tests point it at a temp dir.
var UploadDir = "./uploads"

var (
	imageContentTypes = map[string]string{
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".webp": "image/webp",
	}

	unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// FileUploadError is a rejected photo. Code is returned to the client as-is.
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ImageContentType returns the content type for an accepted photo filename.
func ImageContentType(filename string) (string, bool) {
	contentType, ok := imageContentTypes[strings.ToLower(filepath.Ext(filename))]
	return contentType, ok
}

// ValidateImageFile rejects photos over MaxFileSize and anything that is not PNG, JPEG or WebP.
func ValidateImageFile(fileHeader *multipart.FileHeader) error {
	if fileHeader.Size > MaxFileSize {
		return &FileUploadError{
			Code:    CodeFileTooLarge,
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize>>20),
		}
	}
	if _, ok := ImageContentType(fileHeader.Filename); !ok {
		return &FileUploadError{
			Code:    CodeInvalidFileFormat,
			Message: "Only PNG, JPEG and WebP images are allowed",
		}
	}
	return nil
}

// IsPlainFilename reports whether name is a single path element that cannot
// climb out of the upload directory.
func IsPlainFilename(name string) bool {
	return name != "" && !strings.Contains(name, "..") && !strings.ContainsAny(name, `/\`)
}

// ImageObjectName names a stored photo after its line item and kind, e.g.
// "2025-01-00001-001-VAL-B-NCR_before_1735689600000000000.jpg".
func ImageObjectName(prefix, originalName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("%s_%d%s", unsafeNameChars.ReplaceAllString(prefix, "_"), now.UnixNano(), ext)
}

// SaveUploadedFile copies the upload into dir as name and returns the stored
// name. The photo is written to a temporary file and renamed into place, so
// GET /uploads never serves half a file.
func SaveUploadedFile(fileHeader *multipart.FileHeader, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}
	name = filepath.Base(name)

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close destination file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	committed = true
	return name, nil
}

// GetImageURL is the public path of a locally stored photo.
func GetImageURL(filename string) string {
	if filename == "" {
		return ""
	}
	return "/api/v1/uploads/" + filename
}
