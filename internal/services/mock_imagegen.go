package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/jwebster45206/scene-engine/internal/config"
)

// MockImageGenerator is a mock implementation of ImageGenerator for testing
// and for running the API without provider credentials.
type MockImageGenerator struct {
	GenerateImageFunc func(ctx context.Context, prompt string) (string, error)

	mu    sync.Mutex
	calls []string
}

// NewMockImageGenerator creates a mock whose default images are derived from the prompt.
func NewMockImageGenerator() *MockImageGenerator {
	return &MockImageGenerator{
		calls: make([]string, 0),
	}
}

// GenerateImage records the call and returns the configured result.
func (m *MockImageGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, prompt)
	fn := m.GenerateImageFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}

	if strings.TrimSpace(prompt) == "" {
		return "", generationError(config.ProviderMock, ErrEmptyPrompt)
	}

	// Default behavior - a stable reference per prompt
	sum := sha256.Sum256([]byte(prompt))
	return "img://mock-" + hex.EncodeToString(sum[:6]), nil
}

// SetResponse makes every call return ref.
func (m *MockImageGenerator) SetResponse(ref string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateImageFunc = func(ctx context.Context, prompt string) (string, error) {
		return ref, nil
	}
}

// SetError makes every call fail with err.
func (m *MockImageGenerator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateImageFunc = func(ctx context.Context, prompt string) (string, error) {
		return "", err
	}
}

// Calls returns the prompts seen so far.
func (m *MockImageGenerator) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times GenerateImage was called.
func (m *MockImageGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears all call tracking
func (m *MockImageGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make([]string, 0)
	m.GenerateImageFunc = nil
}

// Ensure MockImageGenerator implements ImageGenerator interface
var _ ImageGenerator = (*MockImageGenerator)(nil)
