// Package themes holds color palettes for the chat interface.
package themes

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual style for the chat view.
type Theme struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	User        lipgloss.Style
	Assistant   lipgloss.Style
	Fallback    lipgloss.Style
	Handoff     lipgloss.Style
	Trail       lipgloss.Style
	Error       lipgloss.Style
	StatusBar   lipgloss.Style
	Help        lipgloss.Style
	Prompt      lipgloss.Style
	BorderedBox lipgloss.Style
	Primary     lipgloss.Color
	Muted       lipgloss.Color
	Border      lipgloss.Color
}

func build(primary, secondary, fg, muted, border, warn, errc, info lipgloss.Color) Theme {
	return Theme{
		Primary: primary,
		Muted:   muted,
		Border:  border,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(primary),
		Subtitle: lipgloss.NewStyle().
			Foreground(muted),
		User: lipgloss.NewStyle().
			Bold(true).
			Foreground(secondary),
		Assistant: lipgloss.NewStyle().
			Foreground(fg),
		Fallback: lipgloss.NewStyle().
			Foreground(info),
		Handoff: lipgloss.NewStyle().
			Foreground(warn).
			Bold(true),
		Trail: lipgloss.NewStyle().
			Foreground(muted).
			Italic(true),
		Error: lipgloss.NewStyle().
			Foreground(errc).
			Bold(true),
		StatusBar: lipgloss.NewStyle().
			Foreground(muted),
		Help: lipgloss.NewStyle().
			Foreground(muted),
		Prompt: lipgloss.NewStyle().
			Foreground(primary).
			Bold(true),
		BorderedBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
	}
}

// Default is the default theme.
var Default = build(
	lipgloss.Color("#5B8DEF"),
	lipgloss.Color("#a78bfa"),
	lipgloss.Color("#fafafa"),
	lipgloss.Color("#737373"),
	lipgloss.Color("#404040"),
	lipgloss.Color("#f59e0b"),
	lipgloss.Color("#ef4444"),
	lipgloss.Color("#3b82f6"),
)

// CatppuccinMocha is the Catppuccin Mocha theme.
var CatppuccinMocha = build(
	lipgloss.Color("#cba6f7"),
	lipgloss.Color("#f5c2e7"),
	lipgloss.Color("#cdd6f4"),
	lipgloss.Color("#6c7086"),
	lipgloss.Color("#45475a"),
	lipgloss.Color("#f9e2af"),
	lipgloss.Color("#f38ba8"),
	lipgloss.Color("#89dceb"),
)

// ByName returns the named theme, falling back to Default.
func ByName(name string) Theme {
	switch name {
	case "catppuccin", "catppuccin-mocha", "mocha":
		return CatppuccinMocha
	default:
		return Default
	}
}
