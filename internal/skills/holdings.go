package skills

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/fincoach/internal/model"
	"github.com/Veraticus/fincoach/internal/slots"
)

func goalLine(g model.Goal) string {
	if g.Saved >= g.Target {
		return fmt.Sprintf("%s: fully funded at %s", g.Name, formatMoney(g.Saved))
	}
	return fmt.Sprintf("%s: %s of %s saved (%d%%), %s to go",
		g.Name, formatMoney(g.Saved), formatMoney(g.Target), percent(g.Saved, g.Target), formatMoney(g.Target-g.Saved))
}

func goalProgress(req Request, _ model.Period) Result {
	snap := req.Snapshot
	if ref := req.Slots.Text(slots.TypeGoal); ref != "" {
		if g, ok := snap.FindGoal(ref); ok {
			line := goalLine(g)
			return Result{Summary: line + ".", Facts: []string{line}, Focus: g.Name}
		}
	}

	facts := make([]string, 0, len(snap.Goals))
	saved, target := 0.0, 0.0
	for _, g := range snap.Goals {
		facts = append(facts, goalLine(g))
		saved += g.Saved
		target += g.Target
	}
	if len(facts) == 1 {
		return Result{Summary: facts[0] + ".", Facts: facts, Focus: snap.Goals[0].Name}
	}
	summary := fmt.Sprintf("Across %d goals you've saved %s of %s (%d%%). %s.",
		len(snap.Goals), formatMoney(saved), formatMoney(target), percent(saved, target), strings.Join(facts, "; "))
	return Result{Summary: summary, Facts: facts}
}

func accountTotals(accounts []model.Account) (assets, liabilities float64) {
	for _, a := range accounts {
		switch {
		case a.IsLiability():
			if a.Balance < 0 {
				liabilities -= a.Balance
			} else {
				liabilities += a.Balance
			}
		case a.Balance >= 0:
			assets += a.Balance
		default:
			liabilities -= a.Balance
		}
	}
	return assets, liabilities
}

func accountLine(a model.Account) string {
	if a.IsLiability() || a.Balance < 0 {
		owed := a.Balance
		if owed < 0 {
			owed = -owed
		}
		return fmt.Sprintf("%s (%s): %s owed", a.Name, a.Type, formatMoney(owed))
	}
	return fmt.Sprintf("%s (%s): %s", a.Name, a.Type, formatMoney(a.Balance))
}

func accountBalances(req Request, _ model.Period) Result {
	snap := req.Snapshot
	if name := req.Slots.Text(slots.TypeAccount); name != "" {
		for _, a := range snap.Accounts {
			if strings.EqualFold(a.Name, name) {
				line := accountLine(a)
				return Result{Summary: line + ".", Facts: []string{line}}
			}
		}
	}

	facts := make([]string, 0, len(snap.Accounts))
	for _, a := range snap.Accounts {
		facts = append(facts, accountLine(a))
	}
	assets, liabilities := accountTotals(snap.Accounts)
	summary := fmt.Sprintf("You hold %s across %d accounts", formatMoney(assets), len(snap.Accounts))
	if liabilities > 0 {
		summary += fmt.Sprintf(" and owe %s on credit", formatMoney(liabilities))
	}
	return Result{Summary: summary + ". " + strings.Join(facts, "; ") + ".", Facts: facts}
}

// debtTotal counts debts that are not already represented by a liability
// account of the same name.
func debtTotal(snap *model.Snapshot) float64 {
	accounts := make(map[string]bool)
	for _, a := range snap.Accounts {
		if a.IsLiability() {
			accounts[strings.ToLower(a.Name)] = true
		}
	}
	total := 0.0
	for _, d := range snap.Debts {
		if !accounts[strings.ToLower(d.Name)] {
			total += d.Balance
		}
	}
	return total
}

func netWorth(req Request, _ model.Period) Result {
	snap := req.Snapshot
	assets, liabilities := accountTotals(snap.Accounts)
	liabilities += debtTotal(snap)
	net := assets - liabilities

	facts := []string{
		fmt.Sprintf("Assets: %s", formatMoney(assets)),
		fmt.Sprintf("Liabilities: %s", formatMoney(liabilities)),
	}
	var summary string
	if net >= 0 {
		summary = fmt.Sprintf("Your net worth is %s (assets %s, liabilities %s).", formatMoney(net), formatMoney(assets), formatMoney(liabilities))
	} else {
		summary = fmt.Sprintf("You owe %s more than you hold (assets %s, liabilities %s).", formatMoney(-net), formatMoney(assets), formatMoney(liabilities))
	}
	return Result{Summary: summary, Facts: facts}
}

func debtOverview(req Request, _ model.Period) Result {
	debts := make([]model.Debt, len(req.Snapshot.Debts))
	copy(debts, req.Snapshot.Debts)
	sort.SliceStable(debts, func(i, j int) bool { return debts[i].APR > debts[j].APR })

	total, minimums, weighted := 0.0, 0.0, 0.0
	facts := make([]string, 0, len(debts))
	for _, d := range debts {
		total += d.Balance
		minimums += d.MinimumPayment
		weighted += d.Balance * d.APR
		facts = append(facts, fmt.Sprintf("%s: %s at %.1f%% APR", d.Name, formatMoney(d.Balance), d.APR))
	}
	if total == 0 {
		return Result{Summary: "You have no outstanding debt balances.", Facts: facts}
	}

	summary := fmt.Sprintf("You owe %s across %d debts, averaging %.1f%% APR with %s in minimum payments each month.",
		formatMoney(total), len(debts), weighted/total, formatMoney(minimums))
	if len(debts) > 1 {
		summary += fmt.Sprintf(" %s carries the highest rate.", debts[0].Name)
	}
	return Result{Summary: summary, Facts: facts}
}

func recurringExpenses(req Request, _ model.Period) Result {
	items := make([]model.RecurringExpense, len(req.Snapshot.Recurring))
	copy(items, req.Snapshot.Recurring)
	sort.SliceStable(items, func(i, j int) bool { return items[i].MonthlyAmount() > items[j].MonthlyAmount() })

	monthly := 0.0
	facts := make([]string, 0, len(items))
	for _, r := range items {
		monthly += r.MonthlyAmount()
		freq := r.Frequency
		if freq == "" {
			freq = "monthly"
		}
		facts = append(facts, fmt.Sprintf("%s: %s %s", r.Name, formatMoney(r.Amount), freq))
	}
	summary := fmt.Sprintf("Your %d recurring expenses come to about %s a month.", len(items), formatMoney(monthly))
	if len(items) > 0 {
		summary += fmt.Sprintf(" The largest is %s.", items[0].Name)
	}
	return Result{Summary: summary, Facts: facts}
}

func financialHealth(req Request, window model.Period) Result {
	snap := req.Snapshot
	var facts []string
	var notes []string

	if n := len(snap.Budgets); n > 0 {
		within := 0
		for _, b := range snap.Budgets {
			if b.Remaining() >= 0 {
				within++
			}
		}
		facts = append(facts, fmt.Sprintf("%d of %d budgets within their limits", within, n))
		if within == n {
			notes = append(notes, "every budget is on track")
		} else {
			notes = append(notes, fmt.Sprintf("%d of %d budgets are over", n-within, n))
		}
	}

	if n := len(snap.Goals); n > 0 {
		progress := 0.0
		for _, g := range snap.Goals {
			progress += g.Progress()
		}
		avg := int(progress/float64(n)*100 + 0.5)
		facts = append(facts, fmt.Sprintf("Goals are %d%% funded on average", avg))
		notes = append(notes, fmt.Sprintf("goals are %d%% funded on average", avg))
	}

	if len(snap.Transactions) > 0 {
		in, out := flows(req, window)
		facts = append(facts, fmt.Sprintf("%s cash flow: %s", windowLabel(window), netLine(in, out)))
		notes = append(notes, fmt.Sprintf("%s shows %s", windowLabel(window), netLine(in, out)))
	}

	if d := debtTotal(snap); d > 0 {
		facts = append(facts, fmt.Sprintf("Outstanding debt: %s", formatMoney(d)))
	}

	if len(notes) == 0 {
		return Result{Summary: "There isn't enough data yet for an overall picture.", Facts: facts}
	}
	summary := "Overall: " + strings.Join(notes, "; ") + "."
	return Result{Summary: summary, Facts: facts}
}
