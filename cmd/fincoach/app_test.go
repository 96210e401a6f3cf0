package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fincoach/internal/fallback"
	"github.com/Veraticus/fincoach/internal/orchestrator"
)

const testSnapshot = `{
  "as_of": "2024-06-15T12:00:00Z",
  "budgets": [
    {"id": "b1", "name": "Groceries", "category": "Groceries", "amount": 500, "spent": 320}
  ]
}`

// withTempConfig points storage and the snapshot at a scratch directory.
func withTempConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	snapPath := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(snapPath, []byte(testSnapshot), 0o600))

	viper.Set("storage.path", filepath.Join(dir, "fincoach.db"))
	viper.Set("snapshot.path", snapPath)
	viper.Set("llm.provider", "")
	t.Cleanup(func() {
		viper.Set("storage.path", "")
		viper.Set("snapshot.path", "")
	})
}

func TestAppAnswersFromTemplates(t *testing.T) {
	withTempConfig(t)
	ctx := context.Background()

	a, err := newApp(ctx, true)
	require.NoError(t, err)

	snap, err := a.loadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Budgets, 1)

	resp, err := session{orch: a.orch, snap: snap}.Ask(ctx, "How's my grocery budget doing?")
	require.NoError(t, err)
	assert.Equal(t, "budget_status", resp.Route.CapabilityID)
	assert.Equal(t, orchestrator.SourceTemplate, resp.Source)
	assert.Contains(t, resp.Text, "$180.00 remaining of $500.00")

	_, err = session{orch: a.orch, snap: snap}.Ask(ctx, "   ")
	require.Error(t, err)
	assert.Equal(t, orchestrator.RephrasePrompt, err.Error())

	a.close()

	// Events were flushed on close and the store reopens cleanly.
	b, err := newApp(ctx, false)
	require.NoError(t, err)
	defer b.close()
	stats, err := b.store.EventStats(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
}

func TestAppHydratesUnknowns(t *testing.T) {
	withTempConfig(t)
	ctx := context.Background()

	a, err := newApp(ctx, false)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, a.store.SaveUnknown(ctx, fallback.UnknownRecord{
		ID: "abc123", Utterance: "what is my credit score", Frequency: 2, FirstSeen: now, LastSeen: now,
	}))
	a.close()

	b, err := newApp(ctx, false)
	require.NoError(t, err)
	defer b.close()
	require.Equal(t, 1, b.unknowns.Len())

	require.NoError(t, b.unknowns.MarkResolved(ctx, "abc123"))
	stored, err := b.store.GetUnknown(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, stored.Resolved)
}

func TestAppRejectsProviderWithoutKey(t *testing.T) {
	withTempConfig(t)
	t.Setenv("OPENAI_API_KEY", "")
	viper.Set("llm.provider", "openai")
	t.Cleanup(func() { viper.Set("llm.provider", "") })

	_, err := newApp(context.Background(), true)
	require.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	cat, err := loadCatalog("")
	require.NoError(t, err)
	assert.Positive(t, cat.Len())

	_, err = loadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("version: \"\"\ncapabilities: []\n"), 0o600))
	_, err = loadCatalog(bad)
	require.Error(t, err)
}
