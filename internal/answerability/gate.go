// Package answerability decides whether the user's data can support a
// capability before any answer is generated.
package answerability

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/fincoach/internal/cache"
	"github.com/Veraticus/fincoach/internal/catalog"
	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/model"
)

// Default cache settings.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 1024
)

// MissingData is one unmet category requirement.
type MissingData struct {
	Category model.DataCategory `json:"category"`
	Required int                `json:"required"`
	Have     int                `json:"have"`
}

// String implements fmt.Stringer.
func (m MissingData) String() string {
	return fmt.Sprintf("%s (have %d, need %d)", m.Category, m.Have, m.Required)
}

// Result is the gate's verdict for one capability.
type Result struct {
	FallbackAction string        `json:"fallback_action,omitempty"`
	MissingData    []MissingData `json:"missing_data,omitempty"`
	Suggestions    []string      `json:"suggestions,omitempty"`
	Confidence     float64       `json:"confidence"`
	CanAnswer      bool          `json:"can_answer"`
}

func (r Result) clone() Result {
	r.MissingData = append([]MissingData(nil), r.MissingData...)
	r.Suggestions = append([]string(nil), r.Suggestions...)
	return r
}

type cacheKey struct {
	capability string
	shape      string
}

// Gate evaluates data sufficiency. Results depend only on the capability and
// the snapshot's per-category counts, so they are cached by shape.
type Gate struct {
	catalog *catalog.Catalog
	results *cache.Cache[cacheKey, Result]
	logger  *slog.Logger
}

// NewGate creates a gate. A zero ttl or maxEntries uses the defaults.
func NewGate(cat *catalog.Catalog, ttl time.Duration, maxEntries int, logger *slog.Logger) *Gate {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	if maxEntries == 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Gate{
		catalog: cat,
		results: cache.New[cacheKey, Result](ttl, maxEntries),
		logger:  common.LoggerOrDefault(logger),
	}
}

// Check evaluates capabilityID against snap.
func (g *Gate) Check(capabilityID string, snap *model.Snapshot) (Result, error) {
	capability, ok := g.catalog.Get(capabilityID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", common.ErrUnknownCapability, capabilityID)
	}
	if snap == nil {
		snap = model.EmptySnapshot()
	}

	key := cacheKey{capability: capabilityID, shape: snap.ShapeFingerprint()}
	if cached, hit := g.results.Get(key); hit {
		return cached.clone(), nil
	}

	result := evaluate(capability, snap)
	g.results.Set(key, result)
	if !result.CanAnswer {
		g.logger.Debug("capability not answerable",
			"capability", capabilityID,
			"missing", len(result.MissingData))
	}
	return result.clone(), nil
}

// Approved returns the capabilities the snapshot can support, highest
// fallback priority first.
func (g *Gate) Approved(snap *model.Snapshot) []catalog.Capability {
	var out []catalog.Capability
	for _, capability := range g.catalog.ByPriority() {
		result, err := g.Check(capability.ID, snap)
		if err == nil && result.CanAnswer {
			out = append(out, capability)
		}
	}
	return out
}

func evaluate(capability catalog.Capability, snap *model.Snapshot) Result {
	if len(capability.Requires) == 0 {
		return Result{CanAnswer: true, Confidence: 1.0}
	}

	var (
		satisfied int
		missing   []MissingData
	)
	for _, req := range capability.Requires {
		have := snap.Count(req.Category)
		if have >= req.Min {
			satisfied++
			continue
		}
		missing = append(missing, MissingData{Category: req.Category, Required: req.Min, Have: have})
	}

	result := Result{
		CanAnswer:  len(missing) == 0,
		Confidence: float64(satisfied) / float64(len(capability.Requires)),
	}
	if result.CanAnswer {
		return result
	}

	result.MissingData = missing
	result.Suggestions = suggestionsFor(missing)
	result.FallbackAction = actionFor(missing[0].Category)
	return result
}
