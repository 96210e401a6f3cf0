package router

import (
	"context"
	"errors"

	"github.com/Veraticus/fincoach/internal/common"
)

// IntentOption is one capability offered to the generative classifier.
type IntentOption struct {
	ID          string
	Description string
}

// IntentGuess is the generative classifier's answer.
type IntentGuess struct {
	CapabilityID string  `json:"capability"`
	Confidence   float64 `json:"confidence"`
}

// IntentClassifier is the external generative pass. Implementations own their
// timeout, retry and rate limit; the router treats any error as no candidate.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, utterance string, options []IntentOption) (IntentGuess, error)
}

func (r *Router) generativePass(ctx context.Context, utterance string, pattern, semantic []Candidate) []Candidate {
	options := make([]IntentOption, 0, r.catalog.Len())
	for _, capability := range r.catalog.Capabilities() {
		options = append(options, IntentOption{ID: capability.ID, Description: capability.Description})
	}

	guess, err := r.classifier.ClassifyIntent(ctx, utterance, options)
	if err != nil {
		if errors.Is(err, common.ErrRateLimit) {
			r.logger.Debug("generative pass skipped", "reason", "rate limited")
		} else {
			r.logger.Warn("generative pass failed",
				"error", err,
				"pattern_top", top(pattern).CapabilityID,
				"semantic_top", top(semantic).CapabilityID)
		}
		return nil
	}
	if !r.catalog.Has(guess.CapabilityID) {
		r.logger.Debug("generative pass returned unknown capability", "capability", guess.CapabilityID)
		return nil
	}

	confidence := guess.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return []Candidate{{
		CapabilityID: guess.CapabilityID,
		Confidence:   confidence,
		Reason:       ReasonGenerativePick,
		Pass:         PassGenerative,
	}}
}
