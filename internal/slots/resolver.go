package slots

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/fincoach/internal/common"
)

// candidateFunc returns every match one resolver finds in text.
type candidateFunc func(text string, rc Context) []ResolvedSlot

// Resolver runs one candidate function per slot type and keeps the best match
// for each. It holds no per-request state and is safe for concurrent use.
type Resolver struct {
	logger     *slog.Logger
	resolvers  map[Type]candidateFunc
	categories *Lexicon
}

// NewResolver builds a resolver using the default category lexicon.
func NewResolver(logger *slog.Logger) *Resolver {
	return NewResolverWithLexicon(DefaultLexicon(), logger)
}

// NewResolverWithLexicon builds a resolver with a custom category lexicon.
func NewResolverWithLexicon(lexicon *Lexicon, logger *slog.Logger) *Resolver {
	r := &Resolver{
		logger:     common.LoggerOrDefault(logger),
		categories: lexicon,
	}
	r.resolvers = map[Type]candidateFunc{
		TypeTimePeriod: timeCandidates,
		TypeAmount:     amountCandidates,
		TypeCategory:   r.categoryCandidates,
		TypeMerchant:   merchantCandidates,
		TypeAccount:    accountCandidates,
		TypeGoal:       goalCandidates,
	}
	return r
}

// Resolve extracts every slot type from text. The time period is always
// present; other types are omitted when nothing matched.
func (r *Resolver) Resolve(text string, rc Context) Set {
	if rc.Now.IsZero() {
		rc.Now = time.Now()
	}
	out := make(Set, len(r.resolvers))
	for _, t := range AllTypes() {
		if slot, ok := r.ResolveType(t, text, rc); ok {
			out[t] = slot
		}
	}
	return out
}

// ResolveType runs the resolver for a single slot type.
func (r *Resolver) ResolveType(t Type, text string, rc Context) (ResolvedSlot, bool) {
	if rc.Now.IsZero() {
		rc.Now = time.Now()
	}
	fn, ok := r.resolvers[t]
	if !ok {
		return ResolvedSlot{}, false
	}

	candidates := r.safeRun(t, fn, text, rc)
	if best, found := pickBest(candidates); found {
		return best, true
	}
	if t == TypeTimePeriod {
		return defaultPeriod(rc.Now), true
	}
	return ResolvedSlot{}, false
}

// safeRun treats a panicking resolver as having found nothing.
func (r *Resolver) safeRun(t Type, fn candidateFunc, text string, rc Context) (candidates []ResolvedSlot) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("slot resolver panicked",
				"slot_type", t,
				"panic", fmt.Sprint(rec))
			candidates = nil
		}
	}()
	return fn(text, rc)
}

// pickBest orders by provenance tier, then longest matched span, then
// confidence.
func pickBest(candidates []ResolvedSlot) (ResolvedSlot, bool) {
	if len(candidates) == 0 {
		return ResolvedSlot{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Provenance.rank() != b.Provenance.rank() {
			return a.Provenance.rank() < b.Provenance.rank()
		}
		if len(a.MatchedText) != len(b.MatchedText) {
			return len(a.MatchedText) > len(b.MatchedText)
		}
		return a.Confidence > b.Confidence
	})
	return candidates[0], true
}

// normalize lowercases and collapses whitespace.
func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// containsWord reports whether needle appears in haystack on word boundaries.
// Both inputs must already be normalized.
func containsWord(haystack, needle string) (int, bool) {
	if needle == "" {
		return -1, false
	}
	from := 0
	for {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return -1, false
		}
		start := from + idx
		end := start + len(needle)
		if isBoundary(haystack, start-1) && isBoundary(haystack, end) {
			return start, true
		}
		from = start + 1
	}
}

func isBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '\'' || c == '&')
}
