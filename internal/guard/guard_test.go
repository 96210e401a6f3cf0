package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fincoach/internal/model"
)

func groceries(t *testing.T) *model.Snapshot {
	t.Helper()
	snap, err := model.NewSnapshot(model.Snapshot{
		Budgets: []model.Budget{{Name: "Groceries", Amount: 500, Spent: 320}},
	})
	require.NoError(t, err)
	return snap
}

func twoBudgets(t *testing.T) *model.Snapshot {
	t.Helper()
	snap, err := model.NewSnapshot(model.Snapshot{
		Budgets: []model.Budget{
			{Name: "Groceries", Amount: 500, Spent: 320},
			{Name: "Dining", Amount: 200, Spent: 150},
		},
	})
	require.NoError(t, err)
	return snap
}

func sameLimits(t *testing.T) *model.Snapshot {
	t.Helper()
	snap, err := model.NewSnapshot(model.Snapshot{
		Budgets: []model.Budget{
			{Name: "Groceries", Amount: 500, Spent: 320},
			{Name: "Fun", Amount: 500, Spent: 100},
		},
	})
	require.NoError(t, err)
	return snap
}

func june() model.Period {
	return model.MonthOf(time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC))
}

func TestNumericGuardScenarios(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		focus  string
		snap   func(*testing.T) *model.Snapshot
		codes  []Code
	}{
		{"correct remaining of total", "You have $180 remaining of $500 for groceries.", "", groceries, nil},
		{"wrong remaining", "You have $220 remaining.", "", groceries, []Code{CodeNumericMismatch}},
		{"remaining matched by limit", "Dining has $50 left of $200.", "", twoBudgets, nil},
		{"remaining uses focus", "You have $50 left.", "Dining", twoBudgets, nil},
		{"shared limit prefers focus", "Fun: $400 remaining of $500.", "Fun", sameLimits, nil},
		{"shared limit without focus", "Fun: $400 remaining of $500.", "", sameLimits, nil},
		{"shared limit matches either budget", "You have $180 remaining of $500.", "", sameLimits, nil},
		{"shared limit matches neither", "You have $100 remaining of $500.", "", sameLimits, []Code{CodeNumericMismatch}},
		{"shared limit with other focus", "You have $400 remaining of $500.", "Groceries", sameLimits, []Code{CodeNumericMismatch}},
		{"remaining falls back to total", "You have $230 left.", "", twoBudgets, nil},
		{"remaining before figure", "Remaining: $180", "", groceries, nil},
		{"correct total budget", "Your total budget is $700.", "", twoBudgets, nil},
		{"wrong total budget", "Your total budget is $750.", "", twoBudgets, []Code{CodeNumericMismatch}},
		{"wrong total spent", "Total spent: $400", "", twoBudgets, []Code{CodeNumericMismatch}},
		{"negative figure", "You are at -$40 this month.", "", groceries, []Code{CodeNegativeAmount}},
		{"subtraction is not negative", "$500 - $320 leaves $180 remaining.", "", groceries, nil},
		{"spend within remaining", "You can spend up to $150 more.", "", groceries, nil},
		{"spend beyond remaining", "You can spend up to $250 more.", "", groceries, []Code{CodeExceedsRemaining}},
		{"no budgets skips comparisons", "You have $999 remaining.", "", func(*testing.T) *model.Snapshot { return model.EmptySnapshot() }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := NumericGuard{}.Check(Input{Answer: tt.answer, Snapshot: tt.snap(t), Focus: tt.focus})
			assert.Equal(t, len(tt.codes) == 0, report.Passed)
			var codes []Code
			for _, f := range report.Failures {
				codes = append(codes, f.Code)
			}
			assert.Equal(t, tt.codes, codes)
		})
	}
}

func TestWindowGuard(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		passed bool
	}{
		{"no dates", "You spent $40 on coffee.", true},
		{"iso inside", "Your last charge was on 2024-06-03.", true},
		{"iso outside", "Your last charge was on 2024-05-31.", false},
		{"slash inside", "Paid 6/30/2024.", true},
		{"month day inside", "Rent cleared on June 1st.", true},
		{"month day outside", "Rent cleared on July 1.", false},
		{"month day with year outside", "Rent cleared on Jun 1, 2023.", false},
		{"month and year only is ignored", "Compared with May 2024 you spent less.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := WindowGuard{}.Check(Input{Answer: tt.answer, Window: june()})
			assert.Equal(t, tt.passed, report.Passed, report.Failures)
			if !tt.passed {
				assert.Equal(t, CodeDateOutOfRange, report.Failures[0].Code)
			}
		})
	}

	t.Run("zero window passes", func(t *testing.T) {
		assert.True(t, WindowGuard{}.Check(Input{Answer: "on 1999-01-01"}).Passed)
	})
}

func TestClaimGuard(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		strategy bool
		codes    []Code
	}{
		{"plain answer", "You have $180 left.", false, nil},
		{"guarantee", "This fund is guaranteed to grow.", false, []Code{CodeUnsafePhrase}},
		{"cannot lose", "You can't lose with index funds.", false, []Code{CodeUnsafePhrase}},
		{"leverage", "Consider leverage to boost returns.", false, []Code{CodeUnsafePhrase}},
		{"strategy with disclaimer", "Pay the highest APR first. " + Disclaimer, true, nil},
		{"strategy without disclaimer", "Pay the highest APR first.", true, []Code{CodeMissingDisclaimer}},
		{"both", "A risk-free plan.", true, []Code{CodeMissingDisclaimer, CodeUnsafePhrase}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := ClaimGuard{}.Check(Input{Answer: tt.answer, Strategy: tt.strategy})
			var codes []Code
			for _, f := range report.Failures {
				codes = append(codes, f.Code)
			}
			assert.Equal(t, tt.codes, codes)
		})
	}
}

func TestBatteryIsIdempotent(t *testing.T) {
	b := DefaultBattery()
	in := Input{
		Answer:   "You have $220 remaining as of 2024-07-02. This is guaranteed.",
		Snapshot: groceries(t),
		Window:   june(),
		Strategy: true,
	}

	first := b.Run(in)
	second := b.Run(in)
	assert.Equal(t, first, second)
	assert.False(t, first.Passed)
	assert.Equal(t, []Code{CodeNumericMismatch, CodeDateOutOfRange, CodeMissingDisclaimer, CodeUnsafePhrase}, first.Codes())
	assert.Equal(t, "You have $220 remaining as of 2024-07-02. This is guaranteed.", in.Answer)
}

func TestBatteryScenario(t *testing.T) {
	b := DefaultBattery()
	snap := groceries(t)

	ok := b.Run(Input{Answer: "You have $180 remaining of $500.", Snapshot: snap, Window: june()})
	assert.True(t, ok.Passed)
	assert.Len(t, ok.Reports, 3)

	bad := b.Run(Input{Answer: "You have $220 remaining.", Snapshot: snap, Window: june()})
	assert.False(t, bad.Passed)
	assert.Equal(t, []Code{CodeNumericMismatch}, bad.Codes())
}

func TestBatteryNilSnapshot(t *testing.T) {
	report := DefaultBattery().Run(Input{Answer: "hello"})
	assert.True(t, report.Passed)
}
