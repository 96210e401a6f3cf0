package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/router"
)

// DefaultIntentRatePerMinute bounds generative routing calls when no rate is configured.
const DefaultIntentRatePerMinute = 30

const intentSystemPrompt = "You route personal finance questions. Respond with ONLY a JSON object " +
	`of the form {"capability": "<id>", "confidence": <0..1>}. ` +
	`Use "none" when no capability fits. Do not add commentary or markdown.`

// IntentClassifier asks a generation tier to pick a capability. It carries its
// own limiter so the generative pass is throttled apart from everything else.
type IntentClassifier struct {
	gen     Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewIntentClassifier creates a classifier allowing perMinute calls.
func NewIntentClassifier(gen Client, perMinute int, logger *slog.Logger) *IntentClassifier {
	if perMinute <= 0 {
		perMinute = DefaultIntentRatePerMinute
	}
	burst := perMinute
	if burst > 5 {
		burst = 5
	}
	return &IntentClassifier{
		gen:     gen,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		logger:  common.LoggerOrDefault(logger),
	}
}

// ClassifyIntent implements router.IntentClassifier.
func (c *IntentClassifier) ClassifyIntent(ctx context.Context, utterance string, options []router.IntentOption) (router.IntentGuess, error) {
	if !c.limiter.Allow() {
		return router.IntentGuess{}, common.ErrRateLimit
	}

	gen, err := c.gen.Generate(ctx, Prompt{
		System:    intentSystemPrompt,
		User:      buildIntentPrompt(utterance, options),
		MaxTokens: 60,
	})
	if err != nil {
		return router.IntentGuess{}, err
	}

	guess, err := parseIntentGuess(gen.Text)
	if err != nil {
		return router.IntentGuess{}, err
	}
	c.logger.Debug("generative intent",
		"capability", guess.CapabilityID,
		"confidence", guess.Confidence,
		"tokens", gen.Tokens)
	return guess, nil
}

func buildIntentPrompt(utterance string, options []router.IntentOption) string {
	var sb strings.Builder
	sb.WriteString("Capabilities:\n")
	for _, opt := range options {
		fmt.Fprintf(&sb, "- %s: %s\n", opt.ID, opt.Description)
	}
	fmt.Fprintf(&sb, "\nQuestion: %q\n", utterance)
	return sb.String()
}

func parseIntentGuess(content string) (router.IntentGuess, error) {
	var guess router.IntentGuess
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(content)), &guess); err != nil {
		return router.IntentGuess{}, fmt.Errorf("%w: failed to parse intent JSON: %w", common.ErrGenerationFailed, err)
	}
	if strings.EqualFold(guess.CapabilityID, "none") {
		guess.CapabilityID = ""
	}
	return guess, nil
}
