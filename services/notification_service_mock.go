package services

import (
	"context"
	"sync"
)

// MockNotifier is a mock implementation of PushNotifier for testing
type MockNotifier struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// SetAsMockForTesting sets this mock as the global notifier for testing
func (m *MockNotifier) SetAsMockForTesting() {
	SetNotifier(m)
}

// FailWith makes every following Notify report err
func (m *MockNotifier) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Notify records the notification
func (m *MockNotifier) Notify(_ context.Context, n Notification) NotificationResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, n)
	if m.err != nil {
		return NotificationResult{Err: m.err}
	}
	return NotificationResult{Delivered: true}
}

// Sent returns a copy of every notification received so far
func (m *MockNotifier) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Notification, len(m.sent))
	copy(out, m.sent)
	return out
}
