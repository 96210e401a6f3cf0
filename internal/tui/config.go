package tui

import (
	"context"
	"log/slog"

	"github.com/Veraticus/fincoach/internal/orchestrator"
	"github.com/Veraticus/fincoach/internal/tui/themes"
)

// Asker answers one utterance. The chat view holds no snapshot of its own.
type Asker interface {
	Ask(ctx context.Context, utterance string) (orchestrator.Response, error)
}

// Config holds TUI configuration.
type Config struct {
	Logger    *slog.Logger
	Theme     themes.Theme
	Title     string
	Width     int
	Height    int
	Verbose   bool
	AltScreen bool
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		Theme:     themes.Default,
		Title:     "fincoach",
		Width:     80,
		Height:    24,
		AltScreen: true,
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithVerbose starts with the routing trail shown under each answer.
func WithVerbose(verbose bool) Option {
	return func(c *Config) {
		c.Verbose = verbose
	}
}

// WithTitle sets the header text.
func WithTitle(title string) Option {
	return func(c *Config) {
		c.Title = title
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithAltScreen controls whether the program takes over the full terminal.
func WithAltScreen(enabled bool) Option {
	return func(c *Config) {
		c.AltScreen = enabled
	}
}
