package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Mock is an offline Completer for environments without an API key.
// It recognizes the prompts the handler and summarizer build and
// returns plausible canned responses, so the full cycle can run end
// to end without network access.
type Mock struct {
	mu    sync.Mutex
	calls int
	// Responses, when set, are returned in order before falling back
	// to the canned behavior.
	Responses []string
}

// NewMock creates an offline mock completer.
func NewMock() *Mock {
	return &Mock{}
}

// Complete returns a canned response matching the prompt's intent.
func (m *Mock) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	call := m.calls
	m.calls++
	var scripted string
	if call < len(m.Responses) {
		scripted = m.Responses[call]
	}
	m.mu.Unlock()

	if scripted != "" {
		return scripted, nil
	}

	lower := strings.ToLower(userPrompt)
	switch {
	case strings.Contains(lower, "summarize"):
		return "Mock summary of earlier progress.", nil
	case strings.Contains(lower, "decide"):
		// Without a scripted decision the mock finishes immediately
		// rather than looping forever.
		return `{"done": true, "rationale": "mock run complete"}`, nil
	default:
		return fmt.Sprintf("Mock response (offline mode, call %d).", call+1), nil
	}
}

// Calls returns how many completions were requested.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
