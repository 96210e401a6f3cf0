// Package router maps an utterance to a catalog capability using three
// escalating passes: pattern rules, keyword overlap and an external
// generative classifier.
package router

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Veraticus/fincoach/internal/catalog"
	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/slots"
)

// Thresholds and pass weights.
const (
	AcceptThreshold = 0.6
	ConfidenceFloor = 0.3

	WeightPattern    = 0.4
	WeightSemantic   = 0.4
	WeightGenerative = 0.2

	// generative pass triggers
	disagreementGap = 0.3
	weakConfidence  = 0.5
)

// Kind is the outcome of routing.
type Kind string

// Route kinds.
const (
	KindCapability      Kind = "capability"
	KindGuidedFallback  Kind = "guided_fallback"
	KindUnknownFallback Kind = "unknown_fallback"
)

// Pass names a routing pass.
type Pass string

// Routing passes.
const (
	PassPattern    Pass = "pattern"
	PassSemantic   Pass = "semantic"
	PassGenerative Pass = "generative"
)

func (p Pass) weight() float64 {
	switch p {
	case PassPattern:
		return WeightPattern
	case PassSemantic:
		return WeightSemantic
	default:
		return WeightGenerative
	}
}

// Reason codes.
const (
	ReasonPatternMatch   = "pattern_match"
	ReasonWeightedMerge  = "weighted_merge"
	ReasonBelowFloor     = "below_confidence_floor"
	ReasonNoCandidates   = "no_candidates"
	ReasonSemanticMatch  = "semantic_overlap"
	ReasonGenerativePick = "generative_choice"
)

// Candidate is one pass's vote for a capability.
type Candidate struct {
	CapabilityID string  `json:"capability_id"`
	Reason       string  `json:"reason"`
	Pass         Pass    `json:"pass"`
	Confidence   float64 `json:"confidence"`
}

// Decision is the router's terminal output for one request.
type Decision struct {
	Kind         Kind        `json:"kind"`
	CapabilityID string      `json:"capability_id,omitempty"`
	Reason       string      `json:"reason"`
	Alternatives []Candidate `json:"alternatives,omitempty"`
	Passes       []Pass      `json:"passes"`
	Confidence   float64     `json:"confidence"`
}

// Router is safe for concurrent use; it holds only the immutable catalog and
// an optional classifier.
type Router struct {
	catalog    *catalog.Catalog
	classifier IntentClassifier
	logger     *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithClassifier enables the generative pass.
func WithClassifier(c IntentClassifier) Option {
	return func(r *Router) { r.classifier = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a router over cat.
func New(cat *catalog.Catalog, opts ...Option) *Router {
	r := &Router{catalog: cat}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = common.LoggerOrDefault(r.logger)
	return r
}

// Route classifies utterance. Resolved slots gate rules that need them.
func (r *Router) Route(ctx context.Context, utterance string, resolved slots.Set) Decision {
	patternCands, accepted := r.patternPass(utterance, resolved)
	if accepted != nil {
		return Decision{
			Kind:         KindCapability,
			CapabilityID: accepted.CapabilityID,
			Confidence:   accepted.Confidence,
			Reason:       accepted.Reason,
			Alternatives: others(patternCands, accepted.CapabilityID),
			Passes:       []Pass{PassPattern},
		}
	}

	semanticCands := r.semanticPass(utterance)
	passes := []Pass{PassPattern, PassSemantic}
	byPass := map[Pass][]Candidate{
		PassPattern:  patternCands,
		PassSemantic: semanticCands,
	}

	if r.classifier != nil && needsGenerative(patternCands, semanticCands) {
		passes = append(passes, PassGenerative)
		if cands := r.generativePass(ctx, utterance, patternCands, semanticCands); len(cands) > 0 {
			byPass[PassGenerative] = cands
		}
	}

	merged := merge(byPass, r.catalog)
	if len(merged) == 0 {
		r.logger.Debug("no routing candidates", "passes", passes)
		return Decision{Kind: KindUnknownFallback, Reason: ReasonNoCandidates, Passes: passes}
	}

	best := merged[0]
	if best.Confidence < ConfidenceFloor {
		return Decision{
			Kind:         KindGuidedFallback,
			Confidence:   best.Confidence,
			Reason:       ReasonBelowFloor,
			Alternatives: merged,
			Passes:       passes,
		}
	}
	return Decision{
		Kind:         KindCapability,
		CapabilityID: best.CapabilityID,
		Confidence:   best.Confidence,
		Reason:       ReasonWeightedMerge,
		Alternatives: others(merged, best.CapabilityID),
		Passes:       passes,
	}
}

// patternPass returns every capability's first matching rule, and the first
// one to clear the accept threshold, if any.
func (r *Router) patternPass(utterance string, resolved slots.Set) ([]Candidate, *Candidate) {
	var out []Candidate
	seen := make(map[string]bool)

	for _, rule := range r.catalog.Rules() {
		if seen[rule.Capability] {
			continue
		}
		if rule.RequiresSlot != "" && !resolved.Has(rule.RequiresSlot) {
			continue
		}
		if _, ok := rule.Match(utterance); !ok {
			continue
		}
		seen[rule.Capability] = true
		c := Candidate{
			CapabilityID: rule.Capability,
			Confidence:   rule.Confidence,
			Reason:       ReasonPatternMatch,
			Pass:         PassPattern,
		}
		out = append(out, c)
		if c.Confidence >= AcceptThreshold {
			return out, &c
		}
	}
	return out, nil
}

// needsGenerative reports whether the cheap passes are both weak or, when
// both produced candidates, disagree sharply. A pass with no candidates
// counts as zero confidence for the weakness check only.
func needsGenerative(pattern, semantic []Candidate) bool {
	p, s := top(pattern), top(semantic)
	if p.Confidence < weakConfidence && s.Confidence < weakConfidence {
		return true
	}
	if len(pattern) > 0 && len(semantic) > 0 && p.CapabilityID != s.CapabilityID {
		gap := p.Confidence - s.Confidence
		if gap < 0 {
			gap = -gap
		}
		return gap > disagreementGap
	}
	return false
}

func top(cands []Candidate) Candidate {
	var best Candidate
	for _, c := range cands {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	return best
}

// merge computes each capability's weighted confidence across the passes that
// produced candidates. A capability missing from such a pass scores zero
// there. Results are sorted best first; unknown ids are dropped.
func merge(byPass map[Pass][]Candidate, cat *catalog.Catalog) []Candidate {
	var totalWeight float64
	scores := make(map[string]float64)
	for _, pass := range []Pass{PassPattern, PassSemantic, PassGenerative} {
		cands := byPass[pass]
		if len(cands) == 0 {
			continue
		}
		totalWeight += pass.weight()
		for _, c := range cands {
			if !cat.Has(c.CapabilityID) {
				continue
			}
			scores[c.CapabilityID] += pass.weight() * c.Confidence
		}
	}
	if totalWeight == 0 {
		return nil
	}

	out := make([]Candidate, 0, len(scores))
	for id, score := range scores {
		out = append(out, Candidate{
			CapabilityID: id,
			Confidence:   score / totalWeight,
			Reason:       ReasonWeightedMerge,
		})
	}
	sortCandidates(out, cat)
	return out
}

// sortCandidates orders by confidence, then catalog priority, then id.
func sortCandidates(cands []Candidate, cat *catalog.Catalog) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		pa, pb := priority(cat, a.CapabilityID), priority(cat, b.CapabilityID)
		if pa != pb {
			return pa > pb
		}
		return a.CapabilityID < b.CapabilityID
	})
}

func priority(cat *catalog.Catalog, id string) int {
	c, ok := cat.Get(id)
	if !ok {
		return 0
	}
	return c.Priority
}

func others(cands []Candidate, exclude string) []Candidate {
	var out []Candidate
	for _, c := range cands {
		if c.CapabilityID != exclude {
			out = append(out, c)
		}
	}
	return out
}
