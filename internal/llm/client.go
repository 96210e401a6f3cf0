package llm

import (
	"context"
	"strings"
	"time"
)

// Client is a single text generation provider.
type Client interface {
	Generate(ctx context.Context, prompt Prompt) (Generation, error)
}

// Prompt is one generation request. MaxTokens of zero uses the client default.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

// Generation is the text a provider returned plus the tokens it billed.
type Generation struct {
	Text   string
	Model  string
	Tokens int
}

// Config holds provider settings for one client.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// cleanMarkdownWrapper strips a ```json fence some models wrap around JSON output.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
