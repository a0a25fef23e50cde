package services

import (
	"context"
	"mime/multipart"
	"sync"

	"github.com/solecare/solecare-api/utils"
)

// MockImageService records which photo names were uploaded and hands back a
// fake bucket URL.
type MockImageService struct {
	mu    sync.Mutex
	names map[string]string
}

func NewMockImageService() *MockImageService {
	return &MockImageService{names: map[string]string{}}
}

// SetAsMockForTesting installs m as the image service.
func (m *MockImageService) SetAsMockForTesting() {
	SetImageService(m)
}

func (m *MockImageService) UploadImage(_ context.Context, fileHeader *multipart.FileHeader, name string) (string, error) {
	if err := utils.ValidateImageFile(fileHeader); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.names[name] = fileHeader.Filename
	m.mu.Unlock()
	return photoObjectURL("test-bucket", "us-east-1", "line-items/"+name), nil
}

// Uploaded returns the original filename stored under name.
func (m *MockImageService) Uploaded(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	filename, ok := m.names[name]
	return filename, ok
}
