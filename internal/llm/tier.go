package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/fincoach/internal/common"
)

// Tier names.
const (
	TierStandard  = "standard"
	TierEscalated = "escalated"
)

const defaultTierTimeout = 10 * time.Second

// Tier wraps a Client with a timeout, an output ceiling and one immediate
// retry. Calls run detached from the caller: when the caller gives up the
// call finishes in the background and its result is dropped.
type Tier struct {
	client    Client
	logger    *slog.Logger
	name      string
	timeout   time.Duration
	maxTokens int
}

// NewTier creates a generation tier. maxTokens is a hard ceiling applied to
// every prompt; zero leaves the prompt's own limit alone.
func NewTier(name string, client Client, timeout time.Duration, maxTokens int, logger *slog.Logger) *Tier {
	if timeout <= 0 {
		timeout = defaultTierTimeout
	}
	return &Tier{
		client:    client,
		logger:    common.LoggerOrDefault(logger),
		name:      name,
		timeout:   timeout,
		maxTokens: maxTokens,
	}
}

// Name returns the tier name.
func (t *Tier) Name() string { return t.name }

// MaxTokens returns the tier's output ceiling.
func (t *Tier) MaxTokens() int { return t.maxTokens }

type generationResult struct {
	err error
	gen Generation
}

// Generate runs the prompt against the tier's client.
func (t *Tier) Generate(ctx context.Context, prompt Prompt) (Generation, error) {
	if t.maxTokens > 0 && (prompt.MaxTokens <= 0 || prompt.MaxTokens > t.maxTokens) {
		prompt.MaxTokens = t.maxTokens
	}

	done := make(chan generationResult, 1)
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)

	go func() {
		defer cancel()

		var gen Generation
		err := common.WithRetry(callCtx, func() error {
			g, err := t.client.Generate(callCtx, prompt)
			if err != nil {
				return err
			}
			gen = g
			return nil
		}, common.RetryOptions{MaxAttempts: 2})

		if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s tier after %s: %w", common.ErrGenerationTimeout, t.name, t.timeout, err)
		}
		done <- generationResult{gen: gen, err: err}
	}()

	select {
	case <-ctx.Done():
		t.logger.Debug("caller abandoned generation, result will be discarded", "tier", t.name)
		return Generation{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return Generation{}, res.err
		}
		return res.gen, nil
	}
}
