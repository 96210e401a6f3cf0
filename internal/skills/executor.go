// Package skills is the local capability executor. Each supported capability
// reads the snapshot and returns facts plus a deterministic summary that can
// be shown as-is when no generator is available.
package skills

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/model"
	"github.com/Veraticus/fincoach/internal/slots"
)

// Request is one capability invocation.
type Request struct {
	Now          time.Time
	Snapshot     *model.Snapshot
	Slots        slots.Set
	CapabilityID string
}

// Result is what a capability produced. Focus names the budget or category
// the result is about, when there is exactly one.
type Result struct {
	CapabilityID string   `json:"capability"`
	Summary      string   `json:"summary"`
	Focus        string   `json:"focus,omitempty"`
	Facts        []string `json:"facts"`
}

// Executor runs a capability against the snapshot.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

type handlerFunc func(req Request, window model.Period) Result

// Local executes capabilities in-process.
type Local struct {
	handlers map[string]handlerFunc
	logger   *slog.Logger
}

// NewLocal creates the local executor.
func NewLocal(logger *slog.Logger) *Local {
	return &Local{
		logger: common.LoggerOrDefault(logger),
		handlers: map[string]handlerFunc{
			"budget_status":        budgetStatus,
			"budget_overview":      budgetOverview,
			"affordability_check":  affordability,
			"spending_by_category": spendingByCategory,
			"top_merchants":        topMerchants,
			"merchant_spending":    merchantSpending,
			"recent_transactions":  recentTransactions,
			"income_summary":       incomeSummary,
			"cash_flow":            cashFlow,
			"savings_rate":         savingsRate,
			"monthly_summary":      monthlySummary,
			"goal_progress":        goalProgress,
			"account_balances":     accountBalances,
			"net_worth":            netWorth,
			"debt_overview":        debtOverview,
			"recurring_expenses":   recurringExpenses,
			"financial_health":     financialHealth,
		},
	}
}

// Supports reports whether the capability has a local implementation.
func (l *Local) Supports(capabilityID string) bool {
	_, ok := l.handlers[capabilityID]
	return ok
}

// Supported lists the capabilities with a local implementation, sorted.
func (l *Local) Supported() []string {
	ids := make([]string, 0, len(l.handlers))
	for id := range l.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Execute implements Executor.
func (l *Local) Execute(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	handler, ok := l.handlers[req.CapabilityID]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", common.ErrUnsupportedCapability, req.CapabilityID)
	}
	if req.Snapshot == nil {
		req.Snapshot = model.EmptySnapshot()
	}
	if req.Now.IsZero() {
		req.Now = req.Snapshot.AsOf
	}

	window := req.Slots.Period()
	if window.IsZero() {
		window = model.MonthOf(req.Now)
	}

	result := handler(req, window)
	result.CapabilityID = req.CapabilityID
	l.logger.Debug("capability executed",
		"capability", req.CapabilityID,
		"facts", len(result.Facts),
		"focus", result.Focus)
	return result, nil
}

// OverviewFacts summarizes the snapshot for capabilities without a local
// implementation, so a generator still has grounded numbers to work from.
func OverviewFacts(snap *model.Snapshot) []string {
	if snap == nil {
		return nil
	}
	var facts []string
	if len(snap.Budgets) > 0 {
		facts = append(facts, fmt.Sprintf("Total budget: %s, total spent: %s across %d budgets",
			formatMoney(snap.TotalBudget()), formatMoney(snap.TotalSpent()), len(snap.Budgets)))
	}
	for _, g := range snap.Goals {
		facts = append(facts, fmt.Sprintf("Goal %s: %s of %s saved", g.Name, formatMoney(g.Saved), formatMoney(g.Target)))
	}
	if len(snap.Debts) > 0 {
		total := 0.0
		for _, d := range snap.Debts {
			total += d.Balance
		}
		facts = append(facts, fmt.Sprintf("Debts: %s owed across %d accounts", formatMoney(total), len(snap.Debts)))
	}
	if len(snap.Accounts) > 0 {
		assets, liabilities := accountTotals(snap.Accounts)
		facts = append(facts, fmt.Sprintf("Accounts hold %s with %s owed on credit", formatMoney(assets), formatMoney(liabilities)))
	}
	if n := len(snap.Transactions); n > 0 {
		facts = append(facts, fmt.Sprintf("%d transactions on record", n))
	}
	return facts
}

var printer = message.NewPrinter(language.English)

// formatMoney renders a non-negative dollar figure with thousands separators.
func formatMoney(v float64) string {
	if v < 0 {
		v = -v
	}
	return printer.Sprintf("$%.2f", v)
}

func percent(part, whole float64) int {
	if whole <= 0 {
		return 0
	}
	return int(part/whole*100 + 0.5)
}
