package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/fincoach/internal/cli"
	"github.com/Veraticus/fincoach/internal/orchestrator"
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	header := m.config.Theme.Title.Render(m.config.Title)
	if m.verbose {
		header += m.config.Theme.Subtitle.Render("  details on")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		m.input.View(),
		m.config.Theme.Help.Render(m.help.View(m.keymap)),
	)
}

func (m Model) renderTranscript() string {
	theme := m.config.Theme
	if len(m.turns) == 0 {
		return theme.Subtitle.Render("Try \"How's my grocery budget?\" or \"What did I spend on dining last month?\"")
	}

	width := max(m.width-2, 20)
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(theme.User.Render("You: "+t.utterance) + "\n")

		switch {
		case t.err != nil:
			b.WriteString(theme.Error.Render(cli.ErrorIcon+" "+t.err.Error()) + "\n")
		case t.resp == nil:
			b.WriteString(m.spinner.View() + theme.Subtitle.Render(" thinking") + "\n")
		default:
			b.WriteString(m.renderAnswer(*t.resp, width))
		}
	}
	return b.String()
}

func (m Model) renderAnswer(r orchestrator.Response, width int) string {
	theme := m.config.Theme
	style := theme.Assistant
	prefix := cli.CoachIcon + " "
	switch {
	case r.Safety.Handoff:
		style = theme.Handoff
		prefix = cli.HandoffIcon + " "
	case r.Source == orchestrator.SourceFallback:
		style = theme.Fallback
		prefix = cli.QuestionIcon + " "
	}

	var b strings.Builder
	b.WriteString(style.Width(width).Render(prefix+r.Text) + "\n")
	if r.Fallback != nil && len(r.Fallback.Suggestions) > 0 {
		for _, s := range r.Fallback.Suggestions {
			b.WriteString(theme.Subtitle.Render("  • "+s) + "\n")
		}
	}
	if len(r.Actions) > 0 {
		labels := make([]string, 0, len(r.Actions))
		for _, a := range r.Actions {
			labels = append(labels, a.Label)
		}
		b.WriteString(theme.Subtitle.Render("  next: "+strings.Join(labels, " | ")) + "\n")
	}
	if m.verbose {
		b.WriteString(theme.Trail.Render(indent(cli.RenderTrail(r), "  ")) + "\n")
	}
	return b.String()
}

func indent(s, pad string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = pad + l
	}
	return strings.Join(lines, "\n")
}
