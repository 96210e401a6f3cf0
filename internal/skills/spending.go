package skills

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/fincoach/internal/model"
	"github.com/Veraticus/fincoach/internal/slots"
)

const topN = 5

type total struct {
	name   string
	amount float64
	count  int
}

func inWindow(snap *model.Snapshot, window model.Period, keep func(model.Transaction) bool) []model.Transaction {
	var out []model.Transaction
	for _, t := range snap.Transactions {
		if window.Contains(t.Date) && keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func expenses(t model.Transaction) bool { return t.IsExpense() }

func income(t model.Transaction) bool { return t.Direction == model.DirectionIncome }

func sum(txns []model.Transaction) float64 {
	s := 0.0
	for _, t := range txns {
		s += t.Amount
	}
	return s
}

// groupBy totals transactions by key and returns the groups largest first.
func groupBy(txns []model.Transaction, key func(model.Transaction) string) []total {
	byKey := make(map[string]*total)
	for _, t := range txns {
		k := strings.TrimSpace(key(t))
		if k == "" {
			k = "Uncategorized"
		}
		lk := strings.ToLower(k)
		g, ok := byKey[lk]
		if !ok {
			g = &total{name: k}
			byKey[lk] = g
		}
		g.amount += t.Amount
		g.count++
	}
	out := make([]total, 0, len(byKey))
	for _, g := range byKey {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].amount != out[j].amount {
			return out[i].amount > out[j].amount
		}
		return out[i].name < out[j].name
	})
	return out
}

func windowLabel(window model.Period) string {
	if window.Label != "" {
		return window.Label
	}
	return fmt.Sprintf("%s to %s", window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"))
}

func spendingByCategory(req Request, window model.Period) Result {
	txns := inWindow(req.Snapshot, window, expenses)
	label := windowLabel(window)

	if category := req.Slots.Text(slots.TypeCategory); category != "" {
		var matched []model.Transaction
		for _, t := range txns {
			if strings.EqualFold(t.Category, category) {
				matched = append(matched, t)
			}
		}
		line := fmt.Sprintf("%s spending in %s: %s over %d transactions", category, label, formatMoney(sum(matched)), len(matched))
		return Result{Summary: line + ".", Facts: []string{line}, Focus: category}
	}

	groups := groupBy(txns, func(t model.Transaction) string { return t.Category })
	if len(groups) == 0 {
		return Result{Summary: fmt.Sprintf("No spending recorded for %s.", label)}
	}

	facts := make([]string, 0, topN)
	parts := make([]string, 0, topN)
	for i, g := range groups {
		if i == topN {
			break
		}
		facts = append(facts, fmt.Sprintf("%s: %s", g.name, formatMoney(g.amount)))
		parts = append(parts, fmt.Sprintf("%s %s", g.name, formatMoney(g.amount)))
	}
	summary := fmt.Sprintf("You spent %s across %d categories in %s. Biggest: %s.",
		formatMoney(sum(txns)), len(groups), label, strings.Join(parts, ", "))
	return Result{Summary: summary, Facts: facts}
}

func topMerchants(req Request, window model.Period) Result {
	txns := inWindow(req.Snapshot, window, expenses)
	groups := groupBy(txns, func(t model.Transaction) string { return t.Merchant })
	label := windowLabel(window)
	if len(groups) == 0 {
		return Result{Summary: fmt.Sprintf("No spending recorded for %s.", label)}
	}

	facts := make([]string, 0, topN)
	for i, g := range groups {
		if i == topN {
			break
		}
		facts = append(facts, fmt.Sprintf("%s: %s over %d visits", g.name, formatMoney(g.amount), g.count))
	}
	return Result{
		Summary: fmt.Sprintf("Your top merchants for %s: %s.", label, strings.Join(facts, "; ")),
		Facts:   facts,
	}
}

func merchantSpending(req Request, window model.Period) Result {
	merchant := req.Slots.Text(slots.TypeMerchant)
	label := windowLabel(window)
	if merchant == "" {
		return topMerchants(req, window)
	}
	matched := inWindow(req.Snapshot, window, func(t model.Transaction) bool {
		return t.IsExpense() && strings.EqualFold(t.Merchant, merchant)
	})
	line := fmt.Sprintf("You spent %s at %s over %d transactions in %s", formatMoney(sum(matched)), merchant, len(matched), label)
	return Result{Summary: line + ".", Facts: []string{line}}
}

func recentTransactions(req Request, window model.Period) Result {
	txns := inWindow(req.Snapshot, window, func(model.Transaction) bool { return true })
	sort.SliceStable(txns, func(i, j int) bool { return txns[i].Date.After(txns[j].Date) })
	if len(txns) == 0 {
		return Result{Summary: fmt.Sprintf("No transactions for %s.", windowLabel(window))}
	}

	facts := make([]string, 0, topN)
	for i, t := range txns {
		if i == topN {
			break
		}
		name := t.Merchant
		if name == "" {
			name = t.Description
		}
		verb := "spent"
		if t.Direction == model.DirectionIncome {
			verb = "received"
		}
		facts = append(facts, fmt.Sprintf("%s %s %s %s", t.Date.Format("2006-01-02"), name, verb, formatMoney(t.Amount)))
	}
	return Result{
		Summary: fmt.Sprintf("Your latest transactions: %s.", strings.Join(facts, "; ")),
		Facts:   facts,
	}
}

func incomeSummary(req Request, window model.Period) Result {
	txns := inWindow(req.Snapshot, window, income)
	label := windowLabel(window)
	line := fmt.Sprintf("Income in %s: %s from %d deposits", label, formatMoney(sum(txns)), len(txns))
	facts := []string{line}
	if groups := groupBy(txns, func(t model.Transaction) string { return t.Merchant }); len(groups) > 0 {
		facts = append(facts, fmt.Sprintf("Largest source: %s (%s)", groups[0].name, formatMoney(groups[0].amount)))
	}
	return Result{Summary: line + ".", Facts: facts}
}

func flows(req Request, window model.Period) (in, out float64) {
	return sum(inWindow(req.Snapshot, window, income)), sum(inWindow(req.Snapshot, window, expenses))
}

func netLine(in, out float64) string {
	if in >= out {
		return fmt.Sprintf("a surplus of %s", formatMoney(in-out))
	}
	return fmt.Sprintf("a shortfall of %s", formatMoney(out-in))
}

func cashFlow(req Request, window model.Period) Result {
	in, out := flows(req, window)
	label := windowLabel(window)
	summary := fmt.Sprintf("In %s you brought in %s and spent %s, %s.", label, formatMoney(in), formatMoney(out), netLine(in, out))
	return Result{
		Summary: summary,
		Facts: []string{
			fmt.Sprintf("Income: %s", formatMoney(in)),
			fmt.Sprintf("Spending: %s", formatMoney(out)),
			"Net: " + netLine(in, out),
		},
	}
}

func savingsRate(req Request, window model.Period) Result {
	in, out := flows(req, window)
	label := windowLabel(window)
	if in <= 0 {
		return Result{Summary: fmt.Sprintf("No income recorded for %s, so there is no savings rate to report.", label)}
	}
	if out >= in {
		line := fmt.Sprintf("Savings rate for %s: 0%% (spending %s exceeded income %s)", label, formatMoney(out), formatMoney(in))
		return Result{Summary: line + ".", Facts: []string{line}}
	}
	line := fmt.Sprintf("Savings rate for %s: %d%% (kept %s of %s earned)", label, percent(in-out, in), formatMoney(in-out), formatMoney(in))
	return Result{Summary: line + ".", Facts: []string{line}}
}

func monthlySummary(req Request, window model.Period) Result {
	if window.Label == "" || window.Start.Day() != 1 {
		window = model.MonthOf(window.End)
	}
	in, out := flows(req, window)
	label := windowLabel(window)

	facts := []string{
		fmt.Sprintf("Spending: %s", formatMoney(out)),
		fmt.Sprintf("Income: %s", formatMoney(in)),
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s recap: you spent %s and brought in %s, %s.", label, formatMoney(out), formatMoney(in), netLine(in, out))

	if groups := groupBy(inWindow(req.Snapshot, window, expenses), func(t model.Transaction) string { return t.Category }); len(groups) > 0 {
		top := fmt.Sprintf("Top category: %s (%s)", groups[0].name, formatMoney(groups[0].amount))
		facts = append(facts, top)
		sb.WriteString(" " + top + ".")
	}

	var over []string
	for _, b := range req.Snapshot.Budgets {
		if b.Remaining() < 0 {
			over = append(over, b.Name)
		}
	}
	if len(req.Snapshot.Budgets) > 0 {
		onTrack := fmt.Sprintf("%d of %d budgets within their limits", len(req.Snapshot.Budgets)-len(over), len(req.Snapshot.Budgets))
		facts = append(facts, onTrack)
		sb.WriteString(" " + onTrack + ".")
	}
	return Result{Summary: sb.String(), Facts: facts}
}
