package mock

import (
	"context"
	"sync"

	"github.com/poiesic/skillscan/ai"
)

// MockBackend is a test double for ai.Backend.
// It allows custom behavior injection via function fields.
type MockBackend struct {
	// CompleteFunc is called by Complete if set.
	// If nil, a canned completion echoing the prompt length is returned.
	CompleteFunc func(ctx context.Context, prompt string) (*ai.Completion, error)

	mu        sync.Mutex
	callCount int
	prompts   []string
}

// NewMockBackend creates a mock backend with default behavior.
func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

// Complete records the prompt and delegates to CompleteFunc when set.
func (m *MockBackend) Complete(ctx context.Context, prompt string) (*ai.Completion, error) {
	m.mu.Lock()
	m.callCount++
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return &ai.Completion{Content: "mock completion"}, nil
}

// CallCount returns how many times Complete was called.
func (m *MockBackend) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Prompts returns a copy of every prompt seen so far.
func (m *MockBackend) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}
