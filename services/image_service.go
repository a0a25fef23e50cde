package services

import (
	"context"
	"fmt"
	"log"
	"mime/multipart"
	"time"

	"github.com/solecare/solecare-api/utils"
)

// ImageService is the upload sink for line item before/after photos. It takes
// the uploaded file and returns a durable URL to store on the line item.
type ImageService interface {
	UploadImage(ctx context.Context, fileHeader *multipart.FileHeader, name string) (string, error)
}

// S3ImageService stores photos in a PhotoBucket
type S3ImageService struct {
	bucket PhotoBucket
	now       func() time.Time
}

// LocalImageService writes images under utils.UploadDir and serves them from
// GET /api/v1/uploads/:filename. Used when no bucket is configured.
type LocalImageService struct {
	dir string
	now func() time.Time
}

var imageServiceInstance ImageService

// InitImageService installs an S3ImageService writing to bucket
func InitImageService(bucket PhotoBucket) ImageService {
	imageServiceInstance = &S3ImageService{bucket: bucket, now: time.Now}
	return imageServiceInstance
}

// InitLocalImageService initializes the image service with local disk storage
func InitLocalImageService(dir string) ImageService {
	imageServiceInstance = NewLocalImageService(dir)
	return imageServiceInstance
}

func NewLocalImageService(dir string) *LocalImageService {
	return &LocalImageService{dir: dir, now: time.Now}
}

// GetImageService returns the initialized image service instance
func GetImageService() ImageService {
	return imageServiceInstance
}

// SetImageService sets the image service instance (primarily for testing)
func SetImageService(service ImageService) {
	imageServiceInstance = service
}

// UploadImage validates and uploads an image file to S3
func (s *S3ImageService) UploadImage(ctx context.Context, fileHeader *multipart.FileHeader, name string) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}
	contentType, _ := utils.ImageContentType(fileHeader.Filename)

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("warning: failed to close file: %v", closeErr)
		}
	}()

	key := "line-items/" + utils.ImageObjectName(name, fileHeader.Filename, s.now())
	url, err := s.bucket.Put(ctx, key, file, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return url, nil
}

// UploadImage validates and saves an image file to local disk
func (s *LocalImageService) UploadImage(_ context.Context, fileHeader *multipart.FileHeader, name string) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}

	saved, err := utils.SaveUploadedFile(fileHeader, s.dir, utils.ImageObjectName(name, fileHeader.Filename, s.now()))
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return utils.GetImageURL(saved), nil
}
