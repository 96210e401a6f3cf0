package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/fallback"
	"github.com/Veraticus/fincoach/internal/observe"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMigrate(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("version = %d, want %d", version, ExpectedSchemaVersion)
	}

	// Running again is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestNewSQLiteStorageRejectsEmptyPath(t *testing.T) {
	if _, err := NewSQLiteStorage("", nil); !errors.Is(err, ErrEmptyString) {
		t.Errorf("error = %v, want ErrEmptyString", err)
	}
}

func TestUnknownRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	first := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	record := fallback.UnknownRecord{
		ID:                    "u-1",
		Utterance:             "can you file my taxes",
		SuggestedCapabilities: []string{"monthly_summary"},
		Frequency:             1,
		FirstSeen:             first,
		LastSeen:              first,
	}
	if err := store.SaveUnknown(ctx, record); err != nil {
		t.Fatalf("SaveUnknown() error = %v", err)
	}

	record.Frequency = 3
	record.LastSeen = first.Add(48 * time.Hour)
	record.Feedback = "wants tax filing"
	record.Resolved = true
	if err := store.SaveUnknown(ctx, record); err != nil {
		t.Fatalf("SaveUnknown() update error = %v", err)
	}

	got, err := store.GetUnknown(ctx, "u-1")
	if err != nil {
		t.Fatalf("GetUnknown() error = %v", err)
	}
	if got.Frequency != 3 || !got.Resolved || got.Feedback != "wants tax filing" {
		t.Errorf("got %+v", got)
	}
	if !got.FirstSeen.Equal(first) || !got.LastSeen.Equal(record.LastSeen) {
		t.Errorf("times = %v / %v", got.FirstSeen, got.LastSeen)
	}
	if len(got.SuggestedCapabilities) != 1 || got.SuggestedCapabilities[0] != "monthly_summary" {
		t.Errorf("suggestions = %v", got.SuggestedCapabilities)
	}
}

func TestSaveUnknownIgnoresStaleFrequency(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	seen := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		frequency int
		feedback  string
		want      int
	}{
		{name: "newer", frequency: 3, feedback: "current", want: 3},
		{name: "stale", frequency: 2, feedback: "stale", want: 3},
		{name: "same frequency", frequency: 3, feedback: "edited", want: 3},
	}

	for _, tt := range tests {
		record := fallback.UnknownRecord{
			ID:        "u-race",
			Utterance: "how much do llamas cost",
			Frequency: tt.frequency,
			FirstSeen: seen,
			LastSeen:  seen,
			Feedback:  tt.feedback,
		}
		if err := store.SaveUnknown(ctx, record); err != nil {
			t.Fatalf("%s: SaveUnknown() error = %v", tt.name, err)
		}
		got, err := store.GetUnknown(ctx, "u-race")
		if err != nil {
			t.Fatalf("%s: GetUnknown() error = %v", tt.name, err)
		}
		if got.Frequency != tt.want {
			t.Errorf("%s: frequency = %d, want %d", tt.name, got.Frequency, tt.want)
		}
		if tt.name == "stale" && got.Feedback != "current" {
			t.Errorf("stale write replaced feedback with %q", got.Feedback)
		}
	}
}

func TestListAndDeleteUnknowns(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	for i, freq := range []int{1, 5, 2} {
		rec := fallback.UnknownRecord{
			ID:        []string{"a", "b", "c"}[i],
			Utterance: "question",
			Frequency: freq,
			FirstSeen: now,
			LastSeen:  now,
		}
		if err := store.SaveUnknown(ctx, rec); err != nil {
			t.Fatalf("SaveUnknown(%s) error = %v", rec.ID, err)
		}
	}

	list, err := store.ListUnknowns(ctx)
	if err != nil {
		t.Fatalf("ListUnknowns() error = %v", err)
	}
	if len(list) != 3 || list[0].ID != "b" || list[2].ID != "a" {
		t.Fatalf("order = %+v", list)
	}
	if list[0].SuggestedCapabilities != nil {
		t.Errorf("nil suggestions should round-trip as nil, got %v", list[0].SuggestedCapabilities)
	}

	if err := store.DeleteUnknown(ctx, "b"); err != nil {
		t.Fatalf("DeleteUnknown() error = %v", err)
	}
	if err := store.DeleteUnknown(ctx, "missing"); err != nil {
		t.Fatalf("DeleteUnknown(missing) error = %v", err)
	}
	if _, err := store.GetUnknown(ctx, "b"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("GetUnknown(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestUnknownLogPersistsThroughStorage(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	log := fallback.NewUnknownLog(fallback.UnknownLogConfig{
		Persister: store,
		Now:       func() time.Time { return now },
	})
	log.Record(ctx, "what is my credit score", nil)
	log.Record(ctx, "What is my credit score?", nil)

	list, err := store.ListUnknowns(ctx)
	if err != nil {
		t.Fatalf("ListUnknowns() error = %v", err)
	}
	if len(list) != 1 || list[0].Frequency != 2 {
		t.Fatalf("stored = %+v", list)
	}
}

func TestEventStats(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	events := []observe.Event{
		{ID: "e1", Timestamp: base, RouteKind: "matched", CapabilityID: "budget_status", AnswerSource: "template",
			SafetyVerdict: "allow", Latency: 100 * time.Millisecond, Tokens: 0},
		{ID: "e2", Timestamp: base.Add(time.Minute), RouteKind: "matched", CapabilityID: "budget_status", AnswerSource: "escalated",
			SafetyVerdict: "allow", EscalationReason: "guard_failed", Escalated: true, Latency: 300 * time.Millisecond, Tokens: 80,
			GuardFailures: []string{"numeric_mismatch"}},
		{ID: "e3", Timestamp: base.Add(2 * time.Minute), RouteKind: "unknown", FallbackKind: "collect",
			SafetyVerdict: "allow", CacheHit: true, Latency: 200 * time.Millisecond},
		{ID: "old", Timestamp: base.Add(-48 * time.Hour), RouteKind: "matched", SafetyVerdict: "block"},
	}
	for _, e := range events {
		if err := store.SaveEvent(ctx, e); err != nil {
			t.Fatalf("SaveEvent(%s) error = %v", e.ID, err)
		}
	}

	stats, err := store.EventStats(ctx, base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("EventStats() error = %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.Escalated != 1 || stats.CacheHits != 1 {
		t.Errorf("Escalated = %d, CacheHits = %d", stats.Escalated, stats.CacheHits)
	}
	if stats.MeanLatency != 200*time.Millisecond {
		t.Errorf("MeanLatency = %v", stats.MeanLatency)
	}
	if len(stats.RouteKinds) != 2 || stats.RouteKinds[0] != (Count{Label: "matched", N: 2}) {
		t.Errorf("RouteKinds = %+v", stats.RouteKinds)
	}
	if len(stats.SafetyVerdicts) != 1 || stats.SafetyVerdicts[0].N != 3 {
		t.Errorf("SafetyVerdicts = %+v", stats.SafetyVerdicts)
	}
	if len(stats.EscalationReasons) != 1 || stats.EscalationReasons[0].Label != "guard_failed" {
		t.Errorf("EscalationReasons = %+v", stats.EscalationReasons)
	}
	if len(stats.FallbackKinds) != 1 || stats.FallbackKinds[0].Label != "collect" {
		t.Errorf("FallbackKinds = %+v", stats.FallbackKinds)
	}
}

func TestEmitLogsInsteadOfFailing(t *testing.T) {
	store := newTestStorage(t)
	// Missing ID is rejected by SaveEvent; Emit must swallow it.
	store.Emit(context.Background(), observe.Event{Timestamp: time.Now()})

	stats, err := store.EventStats(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("EventStats() error = %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("Total = %d, want 0", stats.Total)
	}
}
