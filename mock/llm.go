package mock

import (
	"context"
	"sync"

	"github.com/imwonpark/RAG-based-SE/services"
)

// Call records the arguments of one Complete call.
type Call struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// MockLLM is a test double for services.LLMClient.
type MockLLM struct {
	// CompleteFunc replaces the default behavior when set.
	CompleteFunc func(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)

	response string
	mu       sync.Mutex
	calls    []Call
}

var _ services.LLMClient = (*MockLLM)(nil)

// NewMockLLM creates a client that always answers response.
func NewMockLLM(response string) *MockLLM {
	return &MockLLM{response: response}
}

func (m *MockLLM) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{SystemPrompt: systemPrompt, UserPrompt: userPrompt, Temperature: temperature, MaxTokens: maxTokens})
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, systemPrompt, userPrompt, temperature, maxTokens)
	}
	return m.response, nil
}

// CallCount returns the number of Complete calls.
func (m *MockLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns the recorded calls in order.
func (m *MockLLM) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}
