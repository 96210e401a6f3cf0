package answerability

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fincoach/internal/catalog"
	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/model"
)

func newGate(t *testing.T) *Gate {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return NewGate(cat, 0, 0, nil)
}

func TestCheckBudgetStatus(t *testing.T) {
	g := newGate(t)
	snap, err := model.NewSnapshot(model.Snapshot{
		Budgets: []model.Budget{{Name: "Groceries", Amount: 500, Spent: 320}},
	})
	require.NoError(t, err)

	result, err := g.Check("budget_status", snap)
	require.NoError(t, err)
	assert.True(t, result.CanAnswer)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
	assert.Empty(t, result.MissingData)
}

func TestCheckEmptySnapshot(t *testing.T) {
	g := newGate(t)

	result, err := g.Check("financial_health", model.EmptySnapshot())
	require.NoError(t, err)

	assert.False(t, result.CanAnswer)
	assert.Zero(t, result.Confidence)
	var categories []model.DataCategory
	for _, m := range result.MissingData {
		categories = append(categories, m.Category)
	}
	assert.ElementsMatch(t, []model.DataCategory{model.DataBudgets, model.DataGoals, model.DataTransactions}, categories)
	assert.Contains(t, result.Suggestions, "Connect an account to import transactions")
	assert.Contains(t, result.Suggestions, "Add a manual transaction")
	assert.NotEmpty(t, result.FallbackAction)
}

func TestCheckPartialConfidence(t *testing.T) {
	g := newGate(t)
	snap, err := model.NewSnapshot(model.Snapshot{
		Goals:        []model.Goal{{Name: "Trip", Target: 1000}},
		Transactions: []model.Transaction{
			{ID: "t1", Date: time.Now(), Amount: 10},
			{ID: "t2", Date: time.Now(), Amount: 20},
			{ID: "t3", Date: time.Now(), Amount: 30},
		},
	})
	require.NoError(t, err)

	result, err := g.Check("goal_projection", snap)
	require.NoError(t, err)
	assert.False(t, result.CanAnswer)
	assert.InDelta(t, 0.5, result.Confidence, 1e-9)
	require.Len(t, result.MissingData, 1)
	assert.Equal(t, MissingData{Category: model.DataTransactions, Required: 10, Have: 3}, result.MissingData[0])
	assert.Equal(t, "Add 7 more transactions (you have 3)", result.Suggestions[0])
}

func TestCheckNoRequirementsAlwaysAnswers(t *testing.T) {
	g := newGate(t)
	result, err := g.Check("explain_concept", nil)
	require.NoError(t, err)
	assert.True(t, result.CanAnswer)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)
}

func TestCheckUnknownCapability(t *testing.T) {
	g := newGate(t)
	_, err := g.Check("buy_crypto", nil)
	assert.ErrorIs(t, err, common.ErrUnknownCapability)
}

func TestCheckEveryCapabilityBelowThreshold(t *testing.T) {
	g := newGate(t)
	cat, err := catalog.Default()
	require.NoError(t, err)

	for _, capability := range cat.Capabilities() {
		if len(capability.Requires) == 0 {
			continue
		}
		t.Run(capability.ID, func(t *testing.T) {
			result, err := g.Check(capability.ID, model.EmptySnapshot())
			require.NoError(t, err)
			assert.False(t, result.CanAnswer)
			assert.NotEmpty(t, result.MissingData)
			assert.NotEmpty(t, result.Suggestions)
		})
	}
}

func TestCachedResultsAreIsolated(t *testing.T) {
	g := newGate(t)

	first, err := g.Check("financial_health", model.EmptySnapshot())
	require.NoError(t, err)
	first.Suggestions[0] = "mutated"
	first.MissingData = nil

	second, err := g.Check("financial_health", model.EmptySnapshot())
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second.Suggestions[0])
	assert.Len(t, second.MissingData, 3)
	assert.Equal(t, 1, countKeys(g))
}

func TestApproved(t *testing.T) {
	g := newGate(t)
	snap, err := model.NewSnapshot(model.Snapshot{
		Budgets: []model.Budget{{Name: "Groceries", Amount: 500, Spent: 320}},
	})
	require.NoError(t, err)

	approved := g.Approved(snap)
	var ids []string
	for _, c := range approved {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"budget_status", "budget_overview", "affordability_check", "explain_concept"}, ids)
}

func countKeys(g *Gate) int {
	return g.results.Len()
}

func ExampleMissingData_String() {
	fmt.Println(MissingData{Category: model.DataTransactions, Required: 10, Have: 3})
	// Output: transactions (have 3, need 10)
}
