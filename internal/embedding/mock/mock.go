// Package mock provides a scripted embedding.Provider for tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// MockProvider returns preset detections per image. Images are matched by content.
// Unknown images yield no faces.
type MockProvider struct {
	mu     sync.RWMutex
	images map[string][]embedding.Face
	errors map[string]error

	// DetectError fails every call when set
	DetectError error

	// DetectCalls counts Detect invocations
	DetectCalls int
}

// NewMockProvider creates a provider with no scripted images
func NewMockProvider() *MockProvider {
	return &MockProvider{
		images: make(map[string][]embedding.Face),
		errors: make(map[string]error),
	}
}

// SetFaces scripts the embeddings returned for image, one face per embedding
func (m *MockProvider) SetFaces(image []byte, embeddings ...[]float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	faces := make([]embedding.Face, len(embeddings))
	for i, e := range embeddings {
		x := float64(i * 100)
		faces[i] = embedding.Face{
			Index:     i,
			Region:    embedding.Region{X1: x, Y1: 0, X2: x + 80, Y2: 80},
			Embedding: e,
			Score:     0.99,
		}
	}
	m.images[string(image)] = faces
}

// SetError scripts a failure for image
func (m *MockProvider) SetError(image []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[string(image)] = err
}

// Detect returns the scripted faces for image
func (m *MockProvider) Detect(ctx context.Context, image []byte) ([]embedding.Face, error) {
	m.mu.Lock()
	m.DetectCalls++
	m.mu.Unlock()

	if m.DetectError != nil {
		return nil, m.DetectError
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.errors[string(image)]; ok {
		return nil, err
	}
	return m.images[string(image)], nil
}

// Distance uses Euclidean distance
func (m *MockProvider) Distance(a, b []float32) float64 {
	return facematch.EuclideanDistance(a, b)
}

var _ embedding.Provider = (*MockProvider)(nil)
