package guard

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const money = `\$\s?(\d[\d,]*(?:\.\d+)?)`

var (
	negativeFigure = regexp.MustCompile(`(?:^|[\s(:])(?:-|−)\$\d|\$\s?-\s?\d|\bnegative\s+\$\s?\d`)

	totalBudgetClaim = regexp.MustCompile(`(?i)\btotal (?:monthly )?budget(?:s)?(?: is| of| comes to| totals)?:?\s+` + money)
	totalSpentClaim  = regexp.MustCompile(`(?i)\btotal (?:spending|spent)(?: is| of| so far)?:?\s+` + money)

	remainingAfter  = regexp.MustCompile(`(?i)` + money + `\s+(?:remaining|left)(?:\s+(?:of|out of|from)\s+(?:your\s+|the\s+)?` + money + `)?`)
	remainingBefore = regexp.MustCompile(`(?i)\b(?:remaining|left)(?: budget)?(?: is|:)\s+` + money)

	spendProposal = regexp.MustCompile(`(?i)\b(?:can|could) (?:safely |still )?spend (?:up to |about |around |another |an additional )?` + money)
)

// NumericGuard checks currency figures: none negative, claimed totals and
// remaining amounts match the snapshot, and proposed spending stays within
// what remains.
type NumericGuard struct{}

// Name implements Guard.
func (NumericGuard) Name() string { return "numeric" }

// Check implements Guard.
func (NumericGuard) Check(in Input) Report {
	var failures []Failure
	snap := in.Snapshot
	text := in.Answer

	if loc := negativeFigure.FindString(text); loc != "" {
		failures = append(failures, Failure{
			Code:   CodeNegativeAmount,
			Detail: fmt.Sprintf("negative currency figure %q", strings.TrimSpace(loc)),
		})
	}

	if len(snap.Budgets) > 0 {
		for _, m := range totalBudgetClaim.FindAllStringSubmatch(text, -1) {
			claimed := parseMoney(m[1])
			if !near(claimed, snap.TotalBudget()) {
				failures = append(failures, Failure{
					Code:   CodeNumericMismatch,
					Detail: fmt.Sprintf("total budget stated as $%.2f, actual $%.2f", claimed, snap.TotalBudget()),
				})
			}
		}
		for _, m := range totalSpentClaim.FindAllStringSubmatch(text, -1) {
			claimed := parseMoney(m[1])
			if !near(claimed, snap.TotalSpent()) {
				failures = append(failures, Failure{
					Code:   CodeNumericMismatch,
					Detail: fmt.Sprintf("total spent stated as $%.2f, actual $%.2f", claimed, snap.TotalSpent()),
				})
			}
		}

		checkRemaining := func(claimed float64, of string) {
			candidates := remainingCandidates(in, of)
			for _, c := range candidates {
				if near(claimed, c.amount) {
					return
				}
			}
			failures = append(failures, Failure{
				Code:   CodeNumericMismatch,
				Detail: fmt.Sprintf("remaining stated as $%.2f, %s", claimed, describe(candidates)),
			})
		}
		for _, m := range remainingAfter.FindAllStringSubmatch(text, -1) {
			checkRemaining(parseMoney(m[1]), m[2])
		}
		for _, m := range remainingBefore.FindAllStringSubmatch(text, -1) {
			checkRemaining(parseMoney(m[1]), "")
		}

		for _, m := range spendProposal.FindAllStringSubmatch(text, -1) {
			proposed := parseMoney(m[1])
			r := remainingCandidates(in, "")[0]
			if proposed > r.amount+Epsilon {
				failures = append(failures, Failure{
					Code:   CodeExceedsRemaining,
					Detail: fmt.Sprintf("proposed $%.2f exceeds $%.2f remaining in %s", proposed, r.amount, r.label),
				})
			}
		}
	}

	return newReport(NumericGuard{}.Name(), failures)
}

type remaining struct {
	label  string
	amount float64
}

// remainingCandidates returns what a remaining-amount claim may refer to.
// With "of $Y", the focus budget wins if its limit is $Y; otherwise every
// budget with that limit is a candidate, since the text alone cannot tell
// them apart. Without a matching limit it is the focus budget, the only
// budget, or the overall total. The result is never empty.
func remainingCandidates(in Input, of string) []remaining {
	snap := in.Snapshot
	focus, hasFocus := snap.FindBudget(in.Focus)
	if of != "" {
		limit := parseMoney(of)
		if hasFocus && near(focus.Amount, limit) {
			return []remaining{{label: focus.Name, amount: focus.Remaining()}}
		}
		var matched []remaining
		for _, b := range snap.Budgets {
			if near(b.Amount, limit) {
				matched = append(matched, remaining{label: b.Name, amount: b.Remaining()})
			}
		}
		if len(matched) > 0 {
			return matched
		}
	}
	if hasFocus {
		return []remaining{{label: focus.Name, amount: focus.Remaining()}}
	}
	if len(snap.Budgets) == 1 {
		return []remaining{{label: snap.Budgets[0].Name, amount: snap.Budgets[0].Remaining()}}
	}
	return []remaining{{label: "all budgets", amount: snap.TotalRemaining()}}
}

func describe(candidates []remaining) string {
	parts := make([]string, len(candidates))
	for i, c := range candidates {
		parts[i] = fmt.Sprintf("%s has $%.2f", c.label, c.amount)
	}
	return strings.Join(parts, ", ")
}

func parseMoney(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}
