// Package tui is an interactive chat view over the assistant pipeline.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/orchestrator"
)

// turn is one question and, once it arrives, its answer.
type turn struct {
	err       error
	resp      *orchestrator.Response
	utterance string
}

// Model holds the chat state.
type Model struct {
	ctx      context.Context
	asker    Asker
	config   Config
	keymap   KeyMap
	help     help.Model
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	turns    []turn
	width    int
	height   int
	verbose  bool
	waiting  bool
	quitting bool
}

func newModel(ctx context.Context, asker Asker, cfg Config) Model {
	input := textinput.New()
	input.Placeholder = "Ask about your budgets, spending, goals..."
	input.Prompt = "› "
	input.PromptStyle = cfg.Theme.Prompt
	input.CharLimit = 500
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = cfg.Theme.Subtitle

	m := Model{
		ctx:      ctx,
		asker:    asker,
		config:   cfg,
		keymap:   DefaultKeyMap(),
		help:     help.New(),
		input:    input,
		viewport: viewport.New(cfg.Width, 1),
		spinner:  sp,
		verbose:  cfg.Verbose,
	}
	m.resize(cfg.Width, cfg.Height)
	m.refresh()
	return m
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keymap.ToggleTrail):
			m.verbose = !m.verbose
			m.refresh()
			return m, nil
		case key.Matches(msg, m.keymap.ClearScreen):
			m.turns = nil
			m.refresh()
			return m, tea.ClearScreen
		case key.Matches(msg, m.keymap.PageUp), key.Matches(msg, m.keymap.PageDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case key.Matches(msg, m.keymap.Send):
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refresh()

	case answerMsg:
		if msg.index < len(m.turns) {
			m.turns[msg.index].err = msg.err
			if msg.err == nil {
				resp := msg.resp
				m.turns[msg.index].resp = &resp
			}
		}
		m.waiting = false
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		m.refresh()
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit sends the typed utterance. Slash commands are handled locally.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.waiting {
		return m, nil
	}
	m.input.Reset()

	switch strings.ToLower(text) {
	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit
	case "/details", "/verbose":
		m.verbose = !m.verbose
		m.refresh()
		return m, nil
	case "/clear":
		m.turns = nil
		m.refresh()
		return m, nil
	}

	m.turns = append(m.turns, turn{utterance: text})
	m.waiting = true
	m.refresh()
	return m, tea.Batch(m.ask(len(m.turns)-1, text), m.spinner.Tick)
}

func (m Model) ask(index int, utterance string) tea.Cmd {
	ctx, asker, logger := m.ctx, m.asker, common.LoggerOrDefault(m.config.Logger)
	return func() tea.Msg {
		resp, err := asker.Ask(ctx, utterance)
		if err != nil {
			logger.Warn("chat request failed", "error", err)
		}
		return answerMsg{index: index, resp: resp, err: err}
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = max(width-4, 10)
	m.help.Width = width

	// header, input, help and spacing
	chrome := 6
	m.viewport.Width = width
	m.viewport.Height = max(height-chrome, 3)
}

// refresh re-renders the transcript into the viewport and scrolls to the end.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}
