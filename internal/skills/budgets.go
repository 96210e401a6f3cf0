package skills

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/fincoach/internal/model"
	"github.com/Veraticus/fincoach/internal/slots"
)

func budgetLine(b model.Budget) string {
	if b.Remaining() < 0 {
		return fmt.Sprintf("%s: %s over the %s budget (%s spent)",
			b.Name, formatMoney(-b.Remaining()), formatMoney(b.Amount), formatMoney(b.Spent))
	}
	return fmt.Sprintf("%s: %s remaining of %s (%s spent, %d%% used)",
		b.Name, formatMoney(b.Remaining()), formatMoney(b.Amount), formatMoney(b.Spent), percent(b.Spent, b.Amount))
}

// focusBudget picks the budget named by the category slot, or the only budget.
func focusBudget(req Request) (model.Budget, bool) {
	if name := req.Slots.Text(slots.TypeCategory); name != "" {
		return req.Snapshot.FindBudget(name)
	}
	if len(req.Snapshot.Budgets) == 1 {
		return req.Snapshot.Budgets[0], true
	}
	return model.Budget{}, false
}

func budgetNames(snap *model.Snapshot) string {
	names := make([]string, 0, len(snap.Budgets))
	for _, b := range snap.Budgets {
		names = append(names, b.Name)
	}
	return strings.Join(names, ", ")
}

func budgetStatus(req Request, window model.Period) Result {
	b, ok := focusBudget(req)
	if !ok {
		if name := req.Slots.Text(slots.TypeCategory); name != "" {
			return Result{
				Summary: fmt.Sprintf("You don't have a budget for %s. Your budgets are %s.", name, budgetNames(req.Snapshot)),
				Facts:   []string{"Budgets: " + budgetNames(req.Snapshot)},
			}
		}
		return budgetOverview(req, window)
	}

	line := budgetLine(b)
	summary := line + "."
	switch used := percent(b.Spent, b.Amount); {
	case b.Remaining() < 0:
		summary += " You're over budget."
	case used >= 90:
		summary += " You're close to the limit."
	case used <= 50:
		summary += " You're on track."
	}
	return Result{Summary: summary, Facts: []string{line}, Focus: b.Name}
}

func budgetOverview(req Request, _ model.Period) Result {
	snap := req.Snapshot
	budgets := make([]model.Budget, len(snap.Budgets))
	copy(budgets, snap.Budgets)
	sort.SliceStable(budgets, func(i, j int) bool {
		return budgets[i].Spent/nonZero(budgets[i].Amount) > budgets[j].Spent/nonZero(budgets[j].Amount)
	})

	facts := []string{fmt.Sprintf("Total budget: %s, total spent: %s", formatMoney(snap.TotalBudget()), formatMoney(snap.TotalSpent()))}
	var over []string
	for _, b := range budgets {
		facts = append(facts, fmt.Sprintf("%s: %s of %s spent", b.Name, formatMoney(b.Spent), formatMoney(b.Amount)))
		if b.Remaining() < 0 {
			over = append(over, b.Name)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total budget: %s, total spent: %s", formatMoney(snap.TotalBudget()), formatMoney(snap.TotalSpent()))
	if remaining := snap.TotalRemaining(); remaining >= 0 {
		fmt.Fprintf(&sb, ", with %s remaining overall.", formatMoney(remaining))
	} else {
		fmt.Fprintf(&sb, ", which is %s over overall.", formatMoney(-remaining))
	}
	switch len(over) {
	case 0:
		sb.WriteString(" Every budget is within its limit.")
	case 1:
		fmt.Fprintf(&sb, " %s is over its limit.", over[0])
	default:
		fmt.Fprintf(&sb, " Over their limits: %s.", strings.Join(over, ", "))
	}
	return Result{Summary: sb.String(), Facts: facts}
}

func affordability(req Request, _ model.Period) Result {
	amount, ok := req.Slots.Amount()
	if !ok {
		return Result{Summary: "Tell me the amount you have in mind and I can check it against your budgets."}
	}

	remaining := req.Snapshot.TotalRemaining()
	label := "your budgets"
	focus := ""
	if b, ok := focusBudget(req); ok {
		remaining = b.Remaining()
		label = b.Name
		focus = b.Name
	}

	var remainingFact string
	if remaining >= 0 {
		remainingFact = fmt.Sprintf("%s has %s remaining", label, formatMoney(remaining))
	} else {
		remainingFact = fmt.Sprintf("%s is already %s over", label, formatMoney(-remaining))
	}
	if focus == "" && remaining >= 0 {
		remainingFact = fmt.Sprintf("Across all budgets there is %s remaining", formatMoney(remaining))
	}

	var summary string
	switch {
	case remaining <= 0:
		summary = fmt.Sprintf("Not right now. %s.", remainingFact)
	case amount <= remaining:
		summary = fmt.Sprintf("Yes, %s fits. %s, so you can spend up to %s.", formatMoney(amount), remainingFact, formatMoney(remaining))
	default:
		summary = fmt.Sprintf("Not comfortably. %s would exceed what's left: %s.", formatMoney(amount), remainingFact)
	}
	return Result{
		Summary: summary,
		Facts:   []string{remainingFact, fmt.Sprintf("Purchase under consideration: %s", formatMoney(amount))},
		Focus:   focus,
	}
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
