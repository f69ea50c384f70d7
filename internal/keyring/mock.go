package keyring

import "sync"

// MockStore is an in-memory Store for tests.
type MockStore struct {
	mu      sync.RWMutex
	data    map[string]string
	failing bool
}

// NewMockStore returns an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string]string)}
}

// SetFailing makes every operation return ErrKeyringUnavailable.
func (m *MockStore) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

// IsAvailable implements Store.
func (m *MockStore) IsAvailable() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failing {
		return ErrKeyringUnavailable
	}
	return nil
}

// Set implements Store.
func (m *MockStore) Set(key, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.failing:
		return ErrKeyringUnavailable
	case key == "":
		return ErrEmptyKey
	case secret == "":
		return ErrEmptySecret
	}
	m.data[key] = secret
	return nil
}

// Get implements Store.
func (m *MockStore) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failing {
		return "", ErrKeyringUnavailable
	}
	secret, ok := m.data[key]
	if !ok {
		return "", ErrSecretNotFound
	}
	return secret, nil
}

// Delete implements Store.
func (m *MockStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return ErrKeyringUnavailable
	}
	delete(m.data, key)
	return nil
}

// Keys returns the stored keys in no particular order.
func (m *MockStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}
