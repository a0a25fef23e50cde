package services

import (
	"context"
	"sync"
)

// MockTransactionCache is an in-memory TransactionCache for testing
type MockTransactionCache struct {
	mu          sync.Mutex
	entries     map[string]TransactionDetails
	invalidated []string
}

// NewMockTransactionCache creates a new mock cache
func NewMockTransactionCache() *MockTransactionCache {
	return &MockTransactionCache{entries: make(map[string]TransactionDetails)}
}

func (m *MockTransactionCache) Get(_ context.Context, transactionID string) (*TransactionDetails, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	details, ok := m.entries[transactionID]
	if !ok {
		return nil, false, nil
	}
	return &details, true, nil
}

func (m *MockTransactionCache) Set(_ context.Context, transactionID string, value *TransactionDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if value != nil {
		m.entries[transactionID] = *value
	}
	return nil
}

func (m *MockTransactionCache) Invalidate(_ context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, transactionID)
	m.invalidated = append(m.invalidated, transactionID)
	return nil
}

// Invalidated returns every id passed to Invalidate, in call order
func (m *MockTransactionCache) Invalidated() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.invalidated))
	copy(out, m.invalidated)
	return out
}

// Cached reports whether an entry is currently held for transactionID
func (m *MockTransactionCache) Cached(transactionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.entries[transactionID]
	return ok
}

// SetAsMockForTesting sets this mock as the global transaction cache for testing
func (m *MockTransactionCache) SetAsMockForTesting() {
	SetTransactionCache(m)
}
