package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/Veraticus/fincoach/internal/common"
)

// Unknown-log defaults.
const (
	SimilarityThreshold   = 0.8
	DefaultMaxUnknowns    = 500
	DefaultRetention      = 30 * 24 * time.Hour
	DefaultRetentionFloor = 5
)

// UnknownRecord is one utterance nobody could answer, with how often it (or
// something close to it) has been asked.
type UnknownRecord struct {
	FirstSeen             time.Time `json:"first_seen"`
	LastSeen              time.Time `json:"last_seen"`
	ID                    string    `json:"id"`
	Utterance             string    `json:"utterance"`
	Feedback              string    `json:"feedback,omitempty"`
	SuggestedCapabilities []string  `json:"suggested_capabilities,omitempty"`
	Frequency             int       `json:"frequency"`
	Resolved              bool      `json:"resolved"`
}

func (r UnknownRecord) clone() UnknownRecord {
	r.SuggestedCapabilities = append([]string(nil), r.SuggestedCapabilities...)
	return r
}

// UnknownPersister stores records outside the log. It is never called while
// the log's lock is held, and calls are never concurrent with each other.
type UnknownPersister interface {
	SaveUnknown(ctx context.Context, record UnknownRecord) error
	DeleteUnknown(ctx context.Context, id string) error
}

// UnknownLogConfig configures an UnknownLog. Zero values use the defaults.
type UnknownLogConfig struct {
	Persister      UnknownPersister
	Logger         *slog.Logger
	Now            func() time.Time
	Retention      time.Duration
	MaxEntries     int
	RetentionFloor int
}

// UnknownLog is a bounded, time-boxed collection of unanswered utterances.
// Writers serialize on a mutex and publish a new immutable slice; readers
// load the current slice without locking. Eviction happens synchronously on
// insert. Persistence runs after mu is released, serialized on persistMu,
// and always writes the record as it stands at that moment so a slow save
// cannot overwrite a newer one.
type UnknownLog struct {
	records   atomic.Pointer[[]UnknownRecord]
	persister UnknownPersister
	logger    *slog.Logger
	now       func() time.Time
	cfg       UnknownLogConfig
	mu        sync.Mutex
	persistMu sync.Mutex
}

// NewUnknownLog creates an empty log.
func NewUnknownLog(cfg UnknownLogConfig) *UnknownLog {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxUnknowns
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.RetentionFloor <= 0 {
		cfg.RetentionFloor = DefaultRetentionFloor
	}
	l := &UnknownLog{
		persister: cfg.Persister,
		logger:    common.LoggerOrDefault(cfg.Logger),
		now:       cfg.Now,
		cfg:       cfg,
	}
	if l.now == nil {
		l.now = time.Now
	}
	empty := []UnknownRecord{}
	l.records.Store(&empty)
	return l
}

// Load replaces the log's contents, for hydrating from storage at startup.
// Retention and size limits are applied immediately.
func (l *UnknownLog) Load(records []UnknownRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]UnknownRecord, 0, len(records))
	for _, r := range records {
		next = append(next, r.clone())
	}
	next, _ = l.evict(next, l.now(), 0)
	l.records.Store(&next)
}

// Record logs utterance, merging it into an unresolved record whose token
// overlap is at least SimilarityThreshold. It returns the stored record and
// whether it was merged into an existing one.
func (l *UnknownLog) Record(ctx context.Context, utterance string, suggested []string) (UnknownRecord, bool) {
	now := l.now()
	tokens := tokenSet(utterance)

	l.mu.Lock()
	current := *l.records.Load()
	next := make([]UnknownRecord, len(current), len(current)+1)
	copy(next, current)

	bestIdx, bestScore := -1, 0.0
	for i, r := range next {
		if r.Resolved {
			continue
		}
		if score := similarity(tokens, tokenSet(r.Utterance)); score >= SimilarityThreshold && score > bestScore {
			bestIdx, bestScore = i, score
		}
	}

	var (
		stored  UnknownRecord
		merged  = bestIdx >= 0
		evicted []string
	)
	if merged {
		r := next[bestIdx].clone()
		r.Frequency++
		r.LastSeen = now
		r.SuggestedCapabilities = mergeSuggestions(r.SuggestedCapabilities, suggested)
		next[bestIdx] = r
		stored = r
	} else {
		stored = UnknownRecord{
			ID:                    uuid.NewString(),
			Utterance:             strings.TrimSpace(utterance),
			Frequency:             1,
			FirstSeen:             now,
			LastSeen:              now,
			SuggestedCapabilities: append([]string(nil), suggested...),
		}
		next, evicted = l.evict(next, now, 1)
		next = append(next, stored)
	}
	l.records.Store(&next)
	l.mu.Unlock()

	l.logger.Debug("unknown query recorded",
		"id", stored.ID,
		"frequency", stored.Frequency,
		"merged", merged,
		"evicted", len(evicted))
	l.persist(ctx, stored.ID, evicted)
	return stored.clone(), merged
}

// evict drops expired records (older than the retention window and not above
// the frequency floor), then the least recently seen ones until room records
// fit. Callers hold l.mu.
func (l *UnknownLog) evict(records []UnknownRecord, now time.Time, room int) ([]UnknownRecord, []string) {
	var evicted []string
	kept := records[:0:0]
	for _, r := range records {
		if now.Sub(r.LastSeen) > l.cfg.Retention && r.Frequency <= l.cfg.RetentionFloor {
			evicted = append(evicted, r.ID)
			continue
		}
		kept = append(kept, r)
	}

	if over := len(kept) + room - l.cfg.MaxEntries; over > 0 {
		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].LastSeen.Before(kept[j].LastSeen)
		})
		for _, r := range kept[:over] {
			evicted = append(evicted, r.ID)
		}
		kept = kept[over:]
	}
	return kept, evicted
}

// persist deletes evicted ids and saves the latest state of id, if it is
// still in the log. An empty id only deletes.
func (l *UnknownLog) persist(ctx context.Context, id string, evicted []string) {
	if l.persister == nil {
		return
	}
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	for _, gone := range evicted {
		if err := l.persister.DeleteUnknown(ctx, gone); err != nil {
			l.logger.Warn("failed to delete evicted unknown query", "id", gone, "error", err)
		}
	}
	if id == "" {
		return
	}
	latest, ok := l.Get(id)
	if !ok {
		return
	}
	if err := l.persister.SaveUnknown(ctx, latest); err != nil {
		l.logger.Warn("failed to persist unknown query", "id", id, "error", err)
	}
}

// List returns every record, most frequent first.
func (l *UnknownLog) List() []UnknownRecord {
	current := *l.records.Load()
	out := make([]UnknownRecord, len(current))
	for i, r := range current {
		out[i] = r.clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}

// Len returns the number of records.
func (l *UnknownLog) Len() int {
	return len(*l.records.Load())
}

// Get returns the record with id.
func (l *UnknownLog) Get(id string) (UnknownRecord, bool) {
	for _, r := range *l.records.Load() {
		if r.ID == id {
			return r.clone(), true
		}
	}
	return UnknownRecord{}, false
}

// MarkResolved flags a record as handled.
func (l *UnknownLog) MarkResolved(ctx context.Context, id string) error {
	return l.update(ctx, id, func(r *UnknownRecord) { r.Resolved = true })
}

// AttachFeedback stores reviewer or user feedback on a record.
func (l *UnknownLog) AttachFeedback(ctx context.Context, id, feedback string) error {
	return l.update(ctx, id, func(r *UnknownRecord) { r.Feedback = strings.TrimSpace(feedback) })
}

func (l *UnknownLog) update(ctx context.Context, id string, mutate func(*UnknownRecord)) error {
	l.mu.Lock()
	current := *l.records.Load()
	idx := -1
	for i, r := range current {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return fmt.Errorf("unknown query %s: %w", id, common.ErrNotFound)
	}
	next := make([]UnknownRecord, len(current))
	copy(next, current)
	r := next[idx].clone()
	mutate(&r)
	next[idx] = r
	l.records.Store(&next)
	l.mu.Unlock()

	l.persist(ctx, id, nil)
	return nil
}

// Prune applies the retention window now and returns how many records were
// dropped.
func (l *UnknownLog) Prune(ctx context.Context) int {
	l.mu.Lock()
	current := *l.records.Load()
	next := make([]UnknownRecord, len(current))
	copy(next, current)
	next, evicted := l.evict(next, l.now(), 0)
	l.records.Store(&next)
	l.mu.Unlock()

	l.persist(ctx, "", evicted)
	return len(evicted)
}

func mergeSuggestions(existing, added []string) []string {
	out := append([]string(nil), existing...)
	for _, s := range added {
		found := false
		for _, e := range out {
			if e == s {
				found = true
				break
			}
		}
		if !found {
			out = append(out, s)
		}
	}
	return out
}

func tokenSet(text string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	}) {
		out[t] = true
	}
	return out
}

// similarity is the shared-token count over the larger token set.
func similarity(a, b map[string]bool) float64 {
	larger := len(a)
	if len(b) > larger {
		larger = len(b)
	}
	if larger == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if b[t] {
			shared++
		}
	}
	return float64(shared) / float64(larger)
}
