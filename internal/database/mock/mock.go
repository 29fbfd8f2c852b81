// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// MockEnrollmentStore is an in-memory database.EnrollmentStore.
// Keys are returned in insertion order; overwriting a key keeps its position.
type MockEnrollmentStore struct {
	mu     sync.RWMutex
	keys   []string
	images map[string][]byte

	// Error injection
	KeysError   error
	GetError    error
	PutError    error
	DeleteError error

	// Per-key read failures, used to simulate corrupt entries
	GetErrors map[string]error

	// Call counters
	PutCalls    int
	DeleteCalls int
}

// NewMockEnrollmentStore creates a new mock enrollment store
func NewMockEnrollmentStore() *MockEnrollmentStore {
	return &MockEnrollmentStore{
		images:    make(map[string][]byte),
		GetErrors: make(map[string]error),
	}
}

// Keys returns stored keys in insertion order
func (m *MockEnrollmentStore) Keys(ctx context.Context) ([]string, error) {
	if m.KeysError != nil {
		return nil, m.KeysError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.keys), nil
}

// Get returns the image stored under key
func (m *MockEnrollmentStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.GetErrors[key]; ok {
		return nil, err
	}
	img, ok := m.images[key]
	if !ok {
		return nil, fmt.Errorf("enrollment %q: %w", key, database.ErrNotFound)
	}
	return slices.Clone(img), nil
}

// Put stores an image under key
func (m *MockEnrollmentStore) Put(ctx context.Context, key string, image []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	if m.PutError != nil {
		return m.PutError
	}
	if _, ok := m.images[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.images[key] = slices.Clone(image)
	return nil
}

// Delete removes the image stored under key
func (m *MockEnrollmentStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.DeleteError != nil {
		return m.DeleteError
	}
	if _, ok := m.images[key]; !ok {
		return fmt.Errorf("enrollment %q: %w", key, database.ErrNotFound)
	}
	delete(m.images, key)
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == key })
	return nil
}

// Len returns the number of stored images
func (m *MockEnrollmentStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// MockAttendanceStore is an in-memory database.AttendanceStore
type MockAttendanceStore struct {
	mu      sync.RWMutex
	records []database.AttendanceRecord

	// Error injection
	ContainsError error
	AppendError   error
	ListError     error

	// Call counters
	ContainsCalls int
	AppendCalls   int
}

// NewMockAttendanceStore creates a new mock attendance store
func NewMockAttendanceStore() *MockAttendanceStore {
	return &MockAttendanceStore{}
}

// Contains scans the records for (name, date)
func (m *MockAttendanceStore) Contains(ctx context.Context, name, date string) (bool, error) {
	m.mu.Lock()
	m.ContainsCalls++
	m.mu.Unlock()
	if m.ContainsError != nil {
		return false, m.ContainsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.Name == name && r.Date == date {
			return true, nil
		}
	}
	return false, nil
}

// List returns all records in append order
func (m *MockAttendanceStore) List(ctx context.Context) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records), nil
}

// Append adds a record without deduplication
func (m *MockAttendanceStore) Append(ctx context.Context, rec database.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls++
	if m.AppendError != nil {
		return m.AppendError
	}
	m.records = append(m.records, rec)
	return nil
}

// MockDetectionCache is an in-memory database.DetectionCache
type MockDetectionCache struct {
	mu      sync.RWMutex
	entries map[string][]database.StoredDetection

	// Error injection
	GetError  error
	SaveError error
}

// NewMockDetectionCache creates a new mock detection cache
func NewMockDetectionCache() *MockDetectionCache {
	return &MockDetectionCache{
		entries: make(map[string][]database.StoredDetection),
	}
}

// GetDetections returns cached detections for digest
func (m *MockDetectionCache) GetDetections(ctx context.Context, digest string) ([]database.StoredDetection, bool, error) {
	if m.GetError != nil {
		return nil, false, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.entries[digest]
	return slices.Clone(d), ok, nil
}

// SaveDetections stores detections for digest
func (m *MockDetectionCache) SaveDetections(ctx context.Context, digest, model string, detections []database.StoredDetection) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]database.StoredDetection, len(detections))
	for i, d := range detections {
		d.Model = model
		stored[i] = d
	}
	m.entries[digest] = stored
	return nil
}

// Len returns the number of cached images
func (m *MockDetectionCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var (
	_ database.EnrollmentStore = (*MockEnrollmentStore)(nil)
	_ database.AttendanceStore = (*MockAttendanceStore)(nil)
	_ database.DetectionCache  = (*MockDetectionCache)(nil)
)
