package services

import (
	"bytes"
	"context"
	"io"
	"sync"
)

type storedPhoto struct {
	body        []byte
	contentType string
}

// MockPhotoBucket keeps photos in memory under a fake "test-bucket".
type MockPhotoBucket struct {
	mu      sync.RWMutex
	objects map[string]storedPhoto
	err     error
}

func NewMockPhotoBucket() *MockPhotoBucket {
	return &MockPhotoBucket{objects: make(map[string]storedPhoto)}
}

// FailWith makes every later Put return err.
func (m *MockPhotoBucket) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MockPhotoBucket) Put(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.objects[key] = storedPhoto{body: buf.Bytes(), contentType: contentType}
	return photoObjectURL("test-bucket", "us-east-1", key), nil
}

// Keys lists the stored object keys.
func (m *MockPhotoBucket) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}

// Object returns the stored body and content type for key.
func (m *MockPhotoBucket) Object(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj.body, obj.contentType, ok
}
