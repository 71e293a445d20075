package services

import "context"

// HealthChecker defines basic health check capabilities
type HealthChecker interface {
	// Ping tests the service connection
	Ping(ctx context.Context) error
}

// Closer defines cleanup capabilities
type Closer interface {
	// Close closes the service connection
	Close() error
}

// MockHealthChecker is a mock implementation of HealthChecker for testing
type MockHealthChecker struct {
	PingFunc  func(ctx context.Context) error
	PingCalls int
}

// Ping mocks a health check
func (m *MockHealthChecker) Ping(ctx context.Context) error {
	m.PingCalls++
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// SetPingError sets up the mock to return an error on Ping
func (m *MockHealthChecker) SetPingError(err error) {
	m.PingFunc = func(ctx context.Context) error {
		return err
	}
}
