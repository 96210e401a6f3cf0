package tui

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fincoach/internal/fallback"
	"github.com/Veraticus/fincoach/internal/orchestrator"
	"github.com/Veraticus/fincoach/internal/router"
)

type fakeAsker struct {
	resp  orchestrator.Response
	err   error
	asked []string
	mu    sync.Mutex
}

func (f *fakeAsker) Ask(_ context.Context, utterance string) (orchestrator.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, utterance)
	return f.resp, f.err
}

func newTestModel(t *testing.T, asker Asker) Model {
	t.Helper()
	cfg := defaultConfig()
	cfg.Width, cfg.Height = 100, 40
	return newModel(context.Background(), asker, cfg)
}

func typeAndSend(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestSubmitStartsTurn(t *testing.T) {
	asker := &fakeAsker{resp: orchestrator.Response{Text: "You have $180.00 left."}}
	m := newTestModel(t, asker)

	m, cmd := typeAndSend(t, m, "  How's my grocery budget?  ")
	require.NotNil(t, cmd)
	require.Len(t, m.turns, 1)
	assert.Equal(t, "How's my grocery budget?", m.turns[0].utterance)
	assert.True(t, m.waiting)
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.viewport.View(), "thinking")
}

func TestAnswerFillsTurn(t *testing.T) {
	resp := orchestrator.Response{
		Text:    "You have $180.00 left of your $500.00 Groceries budget.",
		Source:  orchestrator.SourceTemplate,
		Route:   router.Decision{Kind: router.KindCapability, CapabilityID: "budget_status"},
		Actions: []fallback.Action{{ID: "spending", Label: "See spending"}},
	}
	asker := &fakeAsker{resp: resp}
	m := newTestModel(t, asker)
	m, _ = typeAndSend(t, m, "How's my grocery budget?")

	msg := m.ask(0, "How's my grocery budget?")()
	next, _ := m.Update(msg)
	m = next.(Model)

	assert.False(t, m.waiting)
	require.NotNil(t, m.turns[0].resp)
	assert.Equal(t, []string{"How's my grocery budget?"}, asker.asked)
	view := m.View()
	assert.Contains(t, view, "$180.00 left")
	assert.Contains(t, view, "See spending")
	assert.NotContains(t, view, "budget_status")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = next.(Model)
	assert.True(t, m.verbose)
	assert.Contains(t, m.View(), "budget_status")
}

func TestAskErrorShown(t *testing.T) {
	m := newTestModel(t, &fakeAsker{err: errors.New("snapshot unavailable")})
	m, _ = typeAndSend(t, m, "what's my balance")

	next, _ := m.Update(m.ask(0, "what's my balance")())
	m = next.(Model)
	assert.Contains(t, m.View(), "snapshot unavailable")
	assert.Nil(t, m.turns[0].resp)
}

func TestFallbackSuggestionsShown(t *testing.T) {
	m := newTestModel(t, &fakeAsker{})
	m.turns = []turn{{utterance: "credit score?", resp: &orchestrator.Response{
		Text:     "I can't see credit scores.",
		Source:   orchestrator.SourceFallback,
		Fallback: &fallback.Response{Suggestions: []string{"What are my account balances?"}},
	}}}
	m.refresh()
	assert.Contains(t, m.View(), "What are my account balances?")
}

func TestEmptyAndBusySubmitsIgnored(t *testing.T) {
	m := newTestModel(t, &fakeAsker{})

	m, cmd := typeAndSend(t, m, "   ")
	assert.Nil(t, cmd)
	assert.Empty(t, m.turns)

	m, _ = typeAndSend(t, m, "first")
	m, cmd = typeAndSend(t, m, "second")
	assert.Nil(t, cmd)
	assert.Len(t, m.turns, 1)
}

func TestSlashCommands(t *testing.T) {
	m := newTestModel(t, &fakeAsker{})
	m.turns = []turn{{utterance: "hi"}}

	m, _ = typeAndSend(t, m, "/details")
	assert.True(t, m.verbose)

	m, _ = typeAndSend(t, m, "/clear")
	assert.Empty(t, m.turns)

	m, cmd := typeAndSend(t, m, "/quit")
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestQuitKey(t *testing.T) {
	m := newTestModel(t, &fakeAsker{})
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, next.(Model).quitting)
	require.NotNil(t, cmd)
}

func TestResize(t *testing.T) {
	m := newTestModel(t, &fakeAsker{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	m = next.(Model)
	assert.Equal(t, 60, m.viewport.Width)
	assert.Equal(t, 14, m.viewport.Height)
}

func TestRunRequiresAsker(t *testing.T) {
	require.Error(t, Run(context.Background(), nil))
}

func TestOptions(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []Option{WithSize(120, 30), WithTitle("fincoach  test"), WithVerbose(true), WithAltScreen(false)} {
		opt(&cfg)
	}
	m := newModel(context.Background(), &fakeAsker{}, cfg)

	assert.Equal(t, 120, m.width)
	assert.True(t, m.verbose)
	assert.False(t, m.config.AltScreen)
	assert.Contains(t, m.View(), "fincoach  test")
}
