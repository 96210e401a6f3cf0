package answerability

import (
	"fmt"

	"github.com/Veraticus/fincoach/internal/model"
)

var categorySuggestions = map[model.DataCategory][]string{
	model.DataBudgets: {
		"Create a budget for a category you spend on regularly",
		"Import budgets from a spreadsheet",
	},
	model.DataGoals: {
		"Set a savings goal with a target amount",
	},
	model.DataTransactions: {
		"Connect an account to import transactions",
		"Add a manual transaction",
	},
	model.DataRecurring: {
		"Mark a bill or subscription as recurring",
		"Connect an account so recurring charges can be detected",
	},
	model.DataDebts: {
		"Add a debt such as a credit card or loan balance",
	},
	model.DataAccounts: {
		"Connect a bank account",
		"Add an account and its balance manually",
	},
}

var categoryActions = map[model.DataCategory]string{
	model.DataBudgets:      "create_budget",
	model.DataGoals:        "create_goal",
	model.DataTransactions: "connect_account",
	model.DataRecurring:    "add_recurring",
	model.DataDebts:        "add_debt",
	model.DataAccounts:     "connect_account",
}

// SuggestionsFor returns the setup suggestions for one data category.
func SuggestionsFor(c model.DataCategory) []string {
	return append([]string(nil), categorySuggestions[c]...)
}

// ActionFor returns the setup action id for one data category.
func ActionFor(c model.DataCategory) string {
	return actionFor(c)
}

func actionFor(c model.DataCategory) string {
	if a, ok := categoryActions[c]; ok {
		return a
	}
	return "add_data"
}

func suggestionsFor(missing []MissingData) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range missing {
		list := categorySuggestions[m.Category]
		if len(list) == 0 {
			list = []string{fmt.Sprintf("Add more %s", m.Category)}
		}
		// Partial data gets a count-specific nudge first.
		if m.Have > 0 {
			list = append([]string{fmt.Sprintf("Add %d more %s (you have %d)", m.Required-m.Have, m.Category, m.Have)}, list...)
		}
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
