package llm

import (
	"context"
	"sync"
)

// MockClient permite tests sin llamar a un LLM real.
type MockClient struct {
	Response string
	Err      error

	mu    sync.Mutex
	Calls [][]Turn
}

func (m *MockClient) Complete(_ context.Context, turns []Turn) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, append([]Turn(nil), turns...))
	m.mu.Unlock()
	return m.Response, m.Err
}

// CallCount devuelve cuantas veces se invoco Complete.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
