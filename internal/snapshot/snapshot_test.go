package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	err  error
	name string
	snap model.Snapshot
}

func (p staticProvider) Name() string { return p.name }

func (p staticProvider) Load(context.Context) (model.Snapshot, error) {
	return p.snap, p.err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestFileProvider(t *testing.T) {
	path := writeFile(t, `{
		"as_of": "2024-06-15T00:00:00Z",
		"budgets": [{"id": "b1", "name": "Groceries", "amount": 500, "spent": 320}],
		"goals": [{"id": "g1", "name": "Vacation", "target": 3000, "saved": 1200}]
	}`)

	snap, err := NewFileProvider(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Budgets, 1)
	assert.Equal(t, "Groceries", snap.Budgets[0].Name)
	assert.InDelta(t, 1200, snap.Goals[0].Saved, 0.001)
	assert.Equal(t, 2024, snap.AsOf.Year())
}

func TestFileProviderErrors(t *testing.T) {
	_, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.json")).Load(context.Background())
	require.Error(t, err)

	_, err = NewFileProvider(writeFile(t, "{not json")).Load(context.Background())
	assert.ErrorIs(t, err, common.ErrInvalidSnapshot)
}

func TestMerge(t *testing.T) {
	day := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	coffee := model.Transaction{ID: "t1", Date: day, Merchant: "Blue Bottle", Amount: 6.5, AccountID: "chk"}
	sameCoffee := coffee
	sameCoffee.ID = "ofx-99"

	plan := model.Snapshot{
		AsOf:    day,
		Budgets: []model.Budget{{ID: "b1", Name: "Coffee", Amount: 60, Spent: 6.5}},
	}
	bank := model.Snapshot{
		AsOf:         day.Add(24 * time.Hour),
		Transactions: []model.Transaction{coffee, sameCoffee},
		Accounts:     []model.Account{{ID: "chk", Name: "Checking", Type: model.AccountChecking, Balance: 900}},
	}
	again := model.Snapshot{
		Budgets:  []model.Budget{{ID: "b1", Name: "Coffee (copy)", Amount: 99}},
		Accounts: []model.Account{{ID: "chk", Name: "Checking", Type: model.AccountChecking, Balance: 1}},
	}

	snap, err := Merge(plan, bank, again)
	require.NoError(t, err)
	assert.Len(t, snap.Budgets, 1)
	assert.Equal(t, "Coffee", snap.Budgets[0].Name)
	assert.Len(t, snap.Transactions, 1, "same purchase from two sources counts once")
	assert.NotEmpty(t, snap.Transactions[0].Hash)
	require.Len(t, snap.Accounts, 1)
	assert.InDelta(t, 900, snap.Accounts[0].Balance, 0.001)
	assert.Equal(t, bank.AsOf, snap.AsOf)
	assert.Empty(t, snap.Debts)
}

func TestMergeRejectsInvalidData(t *testing.T) {
	_, err := Merge(model.Snapshot{Budgets: []model.Budget{{Name: "Rent", Amount: -1}}})
	assert.ErrorIs(t, err, common.ErrInvalidSnapshot)
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	budgets := staticProvider{name: "budgets", snap: model.Snapshot{
		Budgets: []model.Budget{{ID: "b1", Name: "Dining", Amount: 200, Spent: 50}},
	}}
	goals := staticProvider{name: "goals", snap: model.Snapshot{
		Goals: []model.Goal{{ID: "g1", Name: "Emergency fund", Target: 5000, Saved: 500}},
	}}

	snap, err := Build(ctx, nil, budgets, goals)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Count(model.DataBudgets))
	assert.Equal(t, 1, snap.Count(model.DataGoals))

	boom := errors.New("connection refused")
	_, err = Build(ctx, nil, budgets, staticProvider{name: "plaid", err: boom})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "plaid")
}

func TestBuildWithNoProviders(t *testing.T) {
	snap, err := Build(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
}
