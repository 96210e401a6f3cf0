package orchestrator

import (
	"context"
	"sync"

	"github.com/Veraticus/fincoach/internal/llm"
	"github.com/Veraticus/fincoach/internal/observe"
)

// mockGenerator returns scripted generations in order, repeating the last.
type mockGenerator struct {
	block   chan struct{}
	replies []mockReply
	prompts []llm.Prompt
	mu      sync.Mutex
}

type mockReply struct {
	err  error
	text string
}

func (m *mockGenerator) Generate(ctx context.Context, prompt llm.Prompt) (llm.Generation, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	i := len(m.prompts) - 1
	m.mu.Unlock()

	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return llm.Generation{}, ctx.Err()
		}
	}
	if len(m.replies) == 0 {
		return llm.Generation{}, nil
	}
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	r := m.replies[i]
	if r.err != nil {
		return llm.Generation{}, r.err
	}
	return llm.Generation{Text: r.text, Tokens: 25}, nil
}

func (m *mockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *mockGenerator) prompt(i int) llm.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts[i]
}

// recordingSink keeps every event.
type recordingSink struct {
	events []observe.Event
	mu     sync.Mutex
}

func (s *recordingSink) Emit(_ context.Context, e observe.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) last() observe.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
