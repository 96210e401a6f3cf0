package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/fincoach/internal/model"
)

// DefaultAsOf is the snapshot time fixtures use unless told otherwise.
var DefaultAsOf = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// SnapshotBuilder assembles a validated snapshot. IDs are assigned in
// insertion order when left empty.
//
// Example:
//
//	snap := testutil.NewSnapshotBuilder(t).
//		WithBudget("Groceries", 500, 320).
//		WithExpense("Whole Foods", "Groceries", 82.50, 2).
//		Build()
type SnapshotBuilder struct {
	t    *testing.T
	snap model.Snapshot
}

// NewSnapshotBuilder starts an empty snapshot as of DefaultAsOf.
func NewSnapshotBuilder(t *testing.T) *SnapshotBuilder {
	t.Helper()
	return &SnapshotBuilder{t: t, snap: model.Snapshot{AsOf: DefaultAsOf}}
}

// AsOf overrides the snapshot time.
func (b *SnapshotBuilder) AsOf(at time.Time) *SnapshotBuilder {
	b.snap.AsOf = at
	return b
}

// WithBudget adds a budget whose category matches its name.
func (b *SnapshotBuilder) WithBudget(name string, amount, spent float64) *SnapshotBuilder {
	b.snap.Budgets = append(b.snap.Budgets, model.Budget{
		ID:       fmt.Sprintf("b%d", len(b.snap.Budgets)+1),
		Name:     name,
		Category: name,
		Amount:   amount,
		Spent:    spent,
	})
	return b
}

// WithGoal adds a savings goal.
func (b *SnapshotBuilder) WithGoal(name string, target, saved float64) *SnapshotBuilder {
	b.snap.Goals = append(b.snap.Goals, model.Goal{
		ID:     fmt.Sprintf("g%d", len(b.snap.Goals)+1),
		Name:   name,
		Target: target,
		Saved:  saved,
	})
	return b
}

// WithExpense adds a spending transaction daysAgo days before the snapshot.
func (b *SnapshotBuilder) WithExpense(merchant, category string, amount float64, daysAgo int) *SnapshotBuilder {
	return b.withTransaction(merchant, category, amount, daysAgo, model.DirectionExpense)
}

// WithIncome adds an income transaction daysAgo days before the snapshot.
func (b *SnapshotBuilder) WithIncome(source string, amount float64, daysAgo int) *SnapshotBuilder {
	return b.withTransaction(source, "Income", amount, daysAgo, model.DirectionIncome)
}

func (b *SnapshotBuilder) withTransaction(merchant, category string, amount float64, daysAgo int, dir model.Direction) *SnapshotBuilder {
	tx := model.Transaction{
		ID:        fmt.Sprintf("t%d", len(b.snap.Transactions)+1),
		Date:      b.snap.AsOf.AddDate(0, 0, -daysAgo),
		Merchant:  merchant,
		Category:  category,
		Direction: dir,
		Amount:    amount,
	}
	tx.Hash = tx.GenerateHash()
	b.snap.Transactions = append(b.snap.Transactions, tx)
	return b
}

// WithAccount adds an account.
func (b *SnapshotBuilder) WithAccount(name string, kind model.AccountType, balance float64) *SnapshotBuilder {
	b.snap.Accounts = append(b.snap.Accounts, model.Account{
		ID:      fmt.Sprintf("a%d", len(b.snap.Accounts)+1),
		Name:    name,
		Type:    kind,
		Balance: balance,
	})
	return b
}

// WithDebt adds a liability.
func (b *SnapshotBuilder) WithDebt(name, kind string, balance, apr float64) *SnapshotBuilder {
	b.snap.Debts = append(b.snap.Debts, model.Debt{
		ID:      fmt.Sprintf("d%d", len(b.snap.Debts)+1),
		Name:    name,
		Kind:    kind,
		Balance: balance,
		APR:     apr,
	})
	return b
}

// WithRecurring adds a monthly recurring expense.
func (b *SnapshotBuilder) WithRecurring(name string, amount float64) *SnapshotBuilder {
	b.snap.Recurring = append(b.snap.Recurring, model.RecurringExpense{
		ID:        fmt.Sprintf("r%d", len(b.snap.Recurring)+1),
		Name:      name,
		Frequency: "monthly",
		Amount:    amount,
	})
	return b
}

// WithBasicBudgets adds a grocery, dining and transport budget.
func (b *SnapshotBuilder) WithBasicBudgets() *SnapshotBuilder {
	return b.
		WithBudget("Groceries", 500, 320).
		WithBudget("Dining", 200, 150).
		WithBudget("Transportation", 150, 60)
}

// Build validates the snapshot or fails the test.
func (b *SnapshotBuilder) Build() *model.Snapshot {
	b.t.Helper()
	snap, err := model.NewSnapshot(b.snap)
	if err != nil {
		b.t.Fatalf("invalid test snapshot: %v", err)
	}
	return snap
}
