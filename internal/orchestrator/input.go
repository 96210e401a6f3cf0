package orchestrator

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Veraticus/fincoach/internal/common"
)

// MaxUtteranceRunes bounds accepted input length.
const MaxUtteranceRunes = 1000

// RephrasePrompt is shown when input is rejected before any stage runs.
const RephrasePrompt = "I didn't catch a question there. Try asking about a budget, a goal, or your recent spending."

// ValidateUtterance rejects empty, letterless or oversized input with a
// user-facing rephrase prompt.
func ValidateUtterance(utterance string) error {
	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		return common.NewUserError(RephrasePrompt, common.ErrEmptyUtterance)
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxUtteranceRunes {
		return common.NewUserError(
			fmt.Sprintf("That's a lot to take in. Please keep questions under %d characters.", MaxUtteranceRunes),
			fmt.Errorf("%w: %d characters", common.ErrInvalidUtterance, n))
	}
	if !strings.ContainsFunc(trimmed, unicode.IsLetter) {
		return common.NewUserError(RephrasePrompt, fmt.Errorf("%w: no letters", common.ErrInvalidUtterance))
	}
	return nil
}

// normalizeUtterance folds case and whitespace for response-cache keys.
func normalizeUtterance(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
