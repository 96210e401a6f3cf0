package llm

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/fincoach/internal/common"
)

const defaultHTTPTimeout = 30 * time.Second

// NewClient creates a generation client for the configured provider.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	case "":
		return nil, fmt.Errorf("%w: llm provider", common.ErrMissingConfig)
	default:
		return nil, fmt.Errorf("%w: unsupported llm provider %q", common.ErrInvalidConfig, cfg.Provider)
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// classifyStatus maps a non-200 provider response to an error the retry
// loop understands.
func classifyStatus(provider string, status int, body []byte) error {
	err := fmt.Errorf("%s API error (status %d): %s", provider, status, string(body))
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
	case status >= 500:
		return &common.RetryableError{Err: fmt.Errorf("%w: %w", common.ErrGenerationFailed, err), Retryable: true}
	default:
		return &common.RetryableError{Err: fmt.Errorf("%w: %w", common.ErrGenerationFailed, err), Retryable: false}
	}
}
