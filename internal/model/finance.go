package model

import "time"

// Budget is a spending limit for one category over a period.
type Budget struct {
	PeriodStart time.Time `json:"period_start,omitempty"`
	PeriodEnd   time.Time `json:"period_end,omitempty"`
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category,omitempty"`
	Amount      float64   `json:"amount"`
	Spent       float64   `json:"spent"`
}

// Remaining returns how much of the budget is left. It is negative when overspent.
func (b Budget) Remaining() float64 {
	return b.Amount - b.Spent
}

// Goal is a savings target.
type Goal struct {
	Deadline *time.Time `json:"deadline,omitempty"`
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Target   float64    `json:"target"`
	Saved    float64    `json:"saved"`
}

// Progress returns the fraction of the target already saved, clamped to [0,1].
func (g Goal) Progress() float64 {
	if g.Target <= 0 {
		return 0
	}
	p := g.Saved / g.Target
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

// RecurringExpense is a bill or subscription that repeats on a schedule.
type RecurringExpense struct {
	NextDue   time.Time `json:"next_due,omitempty"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Merchant  string    `json:"merchant,omitempty"`
	Category  string    `json:"category,omitempty"`
	Frequency string    `json:"frequency,omitempty"` // weekly, monthly, yearly
	Amount    float64   `json:"amount"`
}

// MonthlyAmount normalizes the expense to a per-month figure.
func (r RecurringExpense) MonthlyAmount() float64 {
	switch r.Frequency {
	case "weekly":
		return r.Amount * 52 / 12
	case "biweekly":
		return r.Amount * 26 / 12
	case "quarterly":
		return r.Amount / 3
	case "yearly", "annual", "annually":
		return r.Amount / 12
	default:
		return r.Amount
	}
}

// Debt is an outstanding liability.
type Debt struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Kind           string  `json:"kind,omitempty"` // credit_card, student_loan, mortgage, auto, personal
	Balance        float64 `json:"balance"`
	APR            float64 `json:"apr,omitempty"`
	MinimumPayment float64 `json:"minimum_payment,omitempty"`
}

// AccountType classifies an account.
type AccountType string

// Account types understood by the assistant.
const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCredit     AccountType = "credit"
	AccountInvestment AccountType = "investment"
	AccountLoan       AccountType = "loan"
	AccountOther      AccountType = "other"
)

// Account is a connected or manually tracked account.
type Account struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Institution string      `json:"institution,omitempty"`
	Type        AccountType `json:"type"`
	Balance     float64     `json:"balance"`
}

// IsLiability reports whether the account balance is owed rather than held.
func (a Account) IsLiability() bool {
	return a.Type == AccountCredit || a.Type == AccountLoan
}
