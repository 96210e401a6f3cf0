package skills

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/guard"
	"github.com/Veraticus/fincoach/internal/model"
	"github.com/Veraticus/fincoach/internal/slots"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func testSnapshot(t *testing.T) *model.Snapshot {
	t.Helper()
	deadline := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	snap, err := model.NewSnapshot(model.Snapshot{
		AsOf: testNow,
		Budgets: []model.Budget{
			{ID: "b1", Name: "Groceries", Category: "Groceries", Amount: 500, Spent: 320},
			{ID: "b2", Name: "Dining", Category: "Dining", Amount: 300, Spent: 350},
			{ID: "b3", Name: "Fun", Category: "Entertainment", Amount: 500, Spent: 100},
		},
		Goals: []model.Goal{
			{ID: "g1", Name: "Emergency Fund", Target: 10000, Saved: 3000, Deadline: &deadline},
			{ID: "g2", Name: "Vacation", Target: 2000, Saved: 2000},
		},
		Transactions: []model.Transaction{
			{ID: "t1", Date: day(3), Merchant: "Costco", Category: "Groceries", Amount: 150, Direction: model.DirectionExpense},
			{ID: "t2", Date: day(10), Merchant: "Costco", Category: "Groceries", Amount: 170, Direction: model.DirectionExpense},
			{ID: "t3", Date: day(12), Merchant: "Nopa", Category: "Dining", Amount: 350},
			{ID: "t4", Date: day(1), Merchant: "Acme Corp", Category: "Income", Amount: 4000, Direction: model.DirectionIncome},
			{ID: "t5", Date: time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), Merchant: "Costco", Category: "Groceries", Amount: 90},
		},
		Recurring: []model.RecurringExpense{
			{ID: "r1", Name: "Netflix", Amount: 15.49, Frequency: "monthly"},
			{ID: "r2", Name: "Car insurance", Amount: 600, Frequency: "yearly"},
		},
		Debts: []model.Debt{
			{ID: "d1", Name: "Visa", Balance: 2000, APR: 24.9, MinimumPayment: 60},
			{ID: "d2", Name: "Student loan", Balance: 8000, APR: 5.5, MinimumPayment: 120},
		},
		Accounts: []model.Account{
			{ID: "a1", Name: "Checking", Type: model.AccountChecking, Balance: 2500},
			{ID: "a2", Name: "Savings", Type: model.AccountSavings, Balance: 3000},
			{ID: "a3", Name: "Visa", Type: model.AccountCredit, Balance: -2000},
		},
	})
	require.NoError(t, err)
	return snap
}

func textSlot(typ slots.Type, value string) slots.ResolvedSlot {
	return slots.ResolvedSlot{Type: typ, Value: value, Provenance: slots.ProvenanceExplicit, Confidence: 0.9}
}

func TestExecuteUnsupported(t *testing.T) {
	executor := NewLocal(nil)

	_, err := executor.Execute(context.Background(), Request{CapabilityID: "retirement_readiness", Snapshot: testSnapshot(t)})
	require.ErrorIs(t, err, common.ErrUnsupportedCapability)
	assert.False(t, executor.Supports("retirement_readiness"))
	assert.True(t, executor.Supports("budget_status"))
	assert.Contains(t, executor.Supported(), "net_worth")
}

func TestExecuteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocal(nil).Execute(ctx, Request{CapabilityID: "budget_status", Snapshot: testSnapshot(t)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBudgetStatus(t *testing.T) {
	executor := NewLocal(nil)
	snap := testSnapshot(t)

	tests := []struct {
		slots     slots.Set
		name      string
		focus     string
		wantParts []string
	}{
		{
			name:      "remaining",
			slots:     slots.Set{slots.TypeCategory: textSlot(slots.TypeCategory, "Groceries")},
			focus:     "Groceries",
			wantParts: []string{"$180.00 remaining of $500.00", "64% used"},
		},
		{
			name:      "overspent",
			slots:     slots.Set{slots.TypeCategory: textSlot(slots.TypeCategory, "dining")},
			focus:     "Dining",
			wantParts: []string{"$50.00 over the $300.00 budget", "over budget"},
		},
		{
			name:      "unknown budget",
			slots:     slots.Set{slots.TypeCategory: textSlot(slots.TypeCategory, "Travel")},
			wantParts: []string{"don't have a budget for Travel", "Groceries, Dining, Fun"},
		},
		{
			name:      "no category falls back to overview",
			slots:     slots.Set{},
			wantParts: []string{"Total budget: $1,300.00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := executor.Execute(context.Background(), Request{
				CapabilityID: "budget_status",
				Snapshot:     snap,
				Slots:        tt.slots,
				Now:          testNow,
			})
			require.NoError(t, err)
			assert.Equal(t, "budget_status", result.CapabilityID)
			assert.Equal(t, tt.focus, result.Focus)
			for _, part := range tt.wantParts {
				assert.Contains(t, result.Summary, part)
			}
		})
	}
}

func TestAffordability(t *testing.T) {
	executor := NewLocal(nil)
	snap := testSnapshot(t)

	amount := func(v float64) slots.ResolvedSlot {
		return slots.ResolvedSlot{Type: slots.TypeAmount, Value: v, Provenance: slots.ProvenanceExplicit, Confidence: 0.95}
	}

	tests := []struct {
		slots slots.Set
		name  string
		want  string
	}{
		{name: "fits", slots: slots.Set{slots.TypeAmount: amount(100), slots.TypeCategory: textSlot(slots.TypeCategory, "Groceries")}, want: "Yes, $100.00 fits"},
		{name: "too much", slots: slots.Set{slots.TypeAmount: amount(250), slots.TypeCategory: textSlot(slots.TypeCategory, "Groceries")}, want: "Not comfortably"},
		{name: "already over", slots: slots.Set{slots.TypeAmount: amount(20), slots.TypeCategory: textSlot(slots.TypeCategory, "Dining")}, want: "Not right now"},
		{name: "no amount", slots: slots.Set{}, want: "Tell me the amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := executor.Execute(context.Background(), Request{CapabilityID: "affordability_check", Snapshot: snap, Slots: tt.slots, Now: testNow})
			require.NoError(t, err)
			assert.Contains(t, result.Summary, tt.want)
		})
	}
}

func TestSpendingCapabilities(t *testing.T) {
	executor := NewLocal(nil)
	snap := testSnapshot(t)

	tests := []struct {
		slots      slots.Set
		capability string
		want       []string
	}{
		{capability: "spending_by_category", slots: slots.Set{}, want: []string{"You spent $670.00 across 2 categories in June 2024", "Dining $350.00", "Groceries $320.00"}},
		{capability: "spending_by_category", slots: slots.Set{slots.TypeCategory: textSlot(slots.TypeCategory, "Groceries")}, want: []string{"Groceries spending in June 2024: $320.00 over 2 transactions"}},
		{capability: "top_merchants", slots: slots.Set{}, want: []string{"Nopa: $350.00 over 1 visits", "Costco: $320.00 over 2 visits"}},
		{capability: "merchant_spending", slots: slots.Set{slots.TypeMerchant: textSlot(slots.TypeMerchant, "Costco")}, want: []string{"You spent $320.00 at Costco over 2 transactions"}},
		{capability: "recent_transactions", slots: slots.Set{}, want: []string{"2024-06-12 Nopa spent $350.00", "Acme Corp received $4,000.00"}},
		{capability: "income_summary", slots: slots.Set{}, want: []string{"Income in June 2024: $4,000.00 from 1 deposits"}},
		{capability: "cash_flow", slots: slots.Set{}, want: []string{"brought in $4,000.00 and spent $670.00, a surplus of $3,330.00"}},
		{capability: "savings_rate", slots: slots.Set{}, want: []string{"Savings rate for June 2024: 83%"}},
		{capability: "monthly_summary", slots: slots.Set{}, want: []string{"June 2024 recap", "Top category: Dining ($350.00)", "2 of 3 budgets within their limits"}},
	}

	for _, tt := range tests {
		t.Run(tt.capability, func(t *testing.T) {
			result, err := executor.Execute(context.Background(), Request{CapabilityID: tt.capability, Snapshot: snap, Slots: tt.slots, Now: testNow})
			require.NoError(t, err)
			for _, part := range tt.want {
				assert.Contains(t, result.Summary, part)
			}
		})
	}
}

func TestHoldingCapabilities(t *testing.T) {
	executor := NewLocal(nil)
	snap := testSnapshot(t)

	tests := []struct {
		slots      slots.Set
		capability string
		want       []string
	}{
		{capability: "goal_progress", slots: slots.Set{}, want: []string{"Across 2 goals you've saved $5,000.00 of $12,000.00 (42%)", "Vacation: fully funded"}},
		{capability: "goal_progress", slots: slots.Set{slots.TypeGoal: textSlot(slots.TypeGoal, "g1")}, want: []string{"Emergency Fund: $3,000.00 of $10,000.00 saved (30%), $7,000.00 to go"}},
		{capability: "account_balances", slots: slots.Set{}, want: []string{"You hold $5,500.00 across 3 accounts and owe $2,000.00 on credit", "Visa (credit): $2,000.00 owed"}},
		{capability: "account_balances", slots: slots.Set{slots.TypeAccount: textSlot(slots.TypeAccount, "Checking")}, want: []string{"Checking (checking): $2,500.00"}},
		{capability: "net_worth", slots: slots.Set{}, want: []string{"You owe $4,500.00 more than you hold", "liabilities $10,000.00"}},
		{capability: "debt_overview", slots: slots.Set{}, want: []string{"You owe $10,000.00 across 2 debts", "$180.00 in minimum payments", "Visa carries the highest rate"}},
		{capability: "recurring_expenses", slots: slots.Set{}, want: []string{"about $65.49 a month", "The largest is Car insurance"}},
		{capability: "financial_health", slots: slots.Set{}, want: []string{"2 of 3 budgets within", "1 of 3 budgets are over", "65% funded on average"}},
	}

	for _, tt := range tests {
		t.Run(tt.capability, func(t *testing.T) {
			result, err := executor.Execute(context.Background(), Request{CapabilityID: tt.capability, Snapshot: snap, Slots: tt.slots, Now: testNow})
			require.NoError(t, err)
			joined := result.Summary + " | " + join(result.Facts)
			for _, part := range tt.want {
				assert.Contains(t, joined, part)
			}
		})
	}
}

// Every deterministic summary must be releasable as-is.
func TestSummariesPassGuards(t *testing.T) {
	executor := NewLocal(nil)
	snap := testSnapshot(t)
	battery := guard.DefaultBattery()
	window := model.MonthOf(testNow)

	slotSets := []slots.Set{
		{},
		{slots.TypeCategory: textSlot(slots.TypeCategory, "Groceries")},
		{slots.TypeCategory: textSlot(slots.TypeCategory, "Fun")},
		{slots.TypeCategory: textSlot(slots.TypeCategory, "Dining"), slots.TypeAmount: {Type: slots.TypeAmount, Value: 40.0}},
		{slots.TypeCategory: textSlot(slots.TypeCategory, "Fun"), slots.TypeAmount: {Type: slots.TypeAmount, Value: 40.0}},
		{slots.TypeAmount: {Type: slots.TypeAmount, Value: 40.0}},
	}

	for _, id := range executor.Supported() {
		for _, set := range slotSets {
			set[slots.TypeTimePeriod] = slots.ResolvedSlot{Type: slots.TypeTimePeriod, Value: window, Provenance: slots.ProvenanceDefault}
			result, err := executor.Execute(context.Background(), Request{CapabilityID: id, Snapshot: snap, Slots: set, Now: testNow})
			require.NoError(t, err)

			report := battery.Run(guard.Input{Window: window, Snapshot: snap, Answer: result.Summary, Focus: result.Focus})
			assert.True(t, report.Passed, "%s %v: %q failed %v", id, set, result.Summary, report.Failures)
		}
	}
}

func TestOverviewFacts(t *testing.T) {
	facts := OverviewFacts(testSnapshot(t))
	assert.Contains(t, facts, "Total budget: $1,300.00, total spent: $770.00 across 3 budgets")
	assert.Contains(t, facts, "Debts: $10,000.00 owed across 2 accounts")
	assert.Nil(t, OverviewFacts(nil))
	assert.Empty(t, OverviewFacts(model.EmptySnapshot()))
}

func join(facts []string) string {
	out := ""
	for _, f := range facts {
		out += f + " | "
	}
	return out
}
