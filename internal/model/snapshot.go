// Package model defines the read-only view of a user's financial data that
// flows through the assistant pipeline.
package model

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/fincoach/internal/common"
)

// DataCategory names one kind of user data a capability may depend on.
type DataCategory string

// Data categories carried by a Snapshot.
const (
	DataBudgets      DataCategory = "budgets"
	DataGoals        DataCategory = "goals"
	DataTransactions DataCategory = "transactions"
	DataRecurring    DataCategory = "recurring"
	DataDebts        DataCategory = "debts"
	DataAccounts     DataCategory = "accounts"
)

// AllDataCategories returns every data category in a stable order.
func AllDataCategories() []DataCategory {
	return []DataCategory{DataBudgets, DataGoals, DataTransactions, DataRecurring, DataDebts, DataAccounts}
}

// ParseDataCategory validates a data category name.
func ParseDataCategory(s string) (DataCategory, error) {
	c := DataCategory(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllDataCategories() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown data category %q", s)
}

// Snapshot is the read-only view of a user's current financial data for one
// request. Construct it with NewSnapshot; the pipeline never mutates it.
type Snapshot struct {
	AsOf         time.Time          `json:"as_of"`
	Budgets      []Budget           `json:"budgets"`
	Goals        []Goal             `json:"goals"`
	Transactions []Transaction      `json:"transactions"`
	Recurring    []RecurringExpense `json:"recurring"`
	Debts        []Debt             `json:"debts"`
	Accounts     []Account          `json:"accounts"`
}

// NewSnapshot normalizes and validates data into a Snapshot. Nil slices become
// empty, a zero AsOf becomes now, and invalid values are rejected.
func NewSnapshot(data Snapshot) (*Snapshot, error) {
	s := data
	if s.AsOf.IsZero() {
		s.AsOf = time.Now()
	}
	if s.Budgets == nil {
		s.Budgets = []Budget{}
	}
	if s.Goals == nil {
		s.Goals = []Goal{}
	}
	if s.Transactions == nil {
		s.Transactions = []Transaction{}
	}
	if s.Recurring == nil {
		s.Recurring = []RecurringExpense{}
	}
	if s.Debts == nil {
		s.Debts = []Debt{}
	}
	if s.Accounts == nil {
		s.Accounts = []Account{}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// EmptySnapshot returns a snapshot with no data, as of now.
func EmptySnapshot() *Snapshot {
	s, _ := NewSnapshot(Snapshot{})
	return s
}

// Validate checks every entry for required fields and sane values.
func (s *Snapshot) Validate() error {
	for i, b := range s.Budgets {
		if strings.TrimSpace(b.Name) == "" {
			return fmt.Errorf("%w: budget %d has no name", common.ErrInvalidSnapshot, i)
		}
		if !finiteNonNegative(b.Amount) || !finiteNonNegative(b.Spent) {
			return fmt.Errorf("%w: budget %q has a negative or non-finite amount", common.ErrInvalidSnapshot, b.Name)
		}
	}
	for i, g := range s.Goals {
		if strings.TrimSpace(g.Name) == "" {
			return fmt.Errorf("%w: goal %d has no name", common.ErrInvalidSnapshot, i)
		}
		if !finiteNonNegative(g.Target) || !finiteNonNegative(g.Saved) {
			return fmt.Errorf("%w: goal %q has a negative or non-finite amount", common.ErrInvalidSnapshot, g.Name)
		}
	}
	for i, t := range s.Transactions {
		if t.Date.IsZero() {
			return fmt.Errorf("%w: transaction %d has no date", common.ErrInvalidSnapshot, i)
		}
		if !finiteNonNegative(t.Amount) {
			return fmt.Errorf("%w: transaction %d has a negative or non-finite amount", common.ErrInvalidSnapshot, i)
		}
	}
	for i, r := range s.Recurring {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("%w: recurring expense %d has no name", common.ErrInvalidSnapshot, i)
		}
		if !finiteNonNegative(r.Amount) {
			return fmt.Errorf("%w: recurring expense %q has a negative amount", common.ErrInvalidSnapshot, r.Name)
		}
	}
	for i, d := range s.Debts {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("%w: debt %d has no name", common.ErrInvalidSnapshot, i)
		}
		if !finiteNonNegative(d.Balance) || !finiteNonNegative(d.APR) {
			return fmt.Errorf("%w: debt %q has a negative balance or APR", common.ErrInvalidSnapshot, d.Name)
		}
	}
	for i, a := range s.Accounts {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("%w: account %d has no name", common.ErrInvalidSnapshot, i)
		}
		if math.IsNaN(a.Balance) || math.IsInf(a.Balance, 0) {
			return fmt.Errorf("%w: account %q has a non-finite balance", common.ErrInvalidSnapshot, a.Name)
		}
	}
	return nil
}

func finiteNonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Count returns how many entries the snapshot holds for a data category.
func (s *Snapshot) Count(c DataCategory) int {
	switch c {
	case DataBudgets:
		return len(s.Budgets)
	case DataGoals:
		return len(s.Goals)
	case DataTransactions:
		return len(s.Transactions)
	case DataRecurring:
		return len(s.Recurring)
	case DataDebts:
		return len(s.Debts)
	case DataAccounts:
		return len(s.Accounts)
	default:
		return 0
	}
}

// Counts returns the entry count of every data category.
func (s *Snapshot) Counts() map[DataCategory]int {
	counts := make(map[DataCategory]int, 6)
	for _, c := range AllDataCategories() {
		counts[c] = s.Count(c)
	}
	return counts
}

// IsEmpty reports whether the snapshot holds no data at all.
func (s *Snapshot) IsEmpty() bool {
	for _, c := range AllDataCategories() {
		if s.Count(c) > 0 {
			return false
		}
	}
	return true
}

// ShapeFingerprint identifies the data shape (per-category counts only).
// Two snapshots with the same counts share a fingerprint regardless of values.
func (s *Snapshot) ShapeFingerprint() string {
	var b strings.Builder
	for i, c := range AllDataCategories() {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%s=%d", c, s.Count(c))
	}
	return b.String()
}

// ValueFingerprint hashes the full snapshot content, excluding AsOf.
func (s *Snapshot) ValueFingerprint() string {
	clone := *s
	clone.AsOf = time.Time{}
	data, err := json.Marshal(clone)
	if err != nil {
		return s.ShapeFingerprint()
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:12])
}

// TotalBudget sums every budget amount.
func (s *Snapshot) TotalBudget() float64 {
	total := 0.0
	for _, b := range s.Budgets {
		total += b.Amount
	}
	return total
}

// TotalSpent sums spending recorded against every budget.
func (s *Snapshot) TotalSpent() float64 {
	total := 0.0
	for _, b := range s.Budgets {
		total += b.Spent
	}
	return total
}

// TotalRemaining is TotalBudget minus TotalSpent.
func (s *Snapshot) TotalRemaining() float64 {
	return s.TotalBudget() - s.TotalSpent()
}

// FindBudget looks a budget up by name or category, case-insensitively.
func (s *Snapshot) FindBudget(name string) (Budget, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Budget{}, false
	}
	for _, b := range s.Budgets {
		if strings.ToLower(b.Name) == needle || strings.ToLower(b.Category) == needle {
			return b, true
		}
	}
	return Budget{}, false
}

// FindGoal looks a goal up by ID or name, case-insensitively.
func (s *Snapshot) FindGoal(ref string) (Goal, bool) {
	needle := strings.ToLower(strings.TrimSpace(ref))
	for _, g := range s.Goals {
		if strings.ToLower(g.ID) == needle || strings.ToLower(g.Name) == needle {
			return g, true
		}
	}
	return Goal{}, false
}

// Merchants returns the distinct merchant names seen in transactions and
// recurring expenses, sorted.
func (s *Snapshot) Merchants() []string {
	seen := make(map[string]string)
	add := func(m string) {
		m = strings.TrimSpace(m)
		if m == "" {
			return
		}
		key := strings.ToLower(m)
		if _, ok := seen[key]; !ok {
			seen[key] = m
		}
	}
	for _, t := range s.Transactions {
		add(t.Merchant)
	}
	for _, r := range s.Recurring {
		add(r.Merchant)
	}
	return sortedValues(seen)
}

// Categories returns the distinct spending categories named by budgets and
// transactions, sorted.
func (s *Snapshot) Categories() []string {
	seen := make(map[string]string)
	add := func(c string) {
		c = strings.TrimSpace(c)
		if c == "" {
			return
		}
		key := strings.ToLower(c)
		if _, ok := seen[key]; !ok {
			seen[key] = c
		}
	}
	for _, b := range s.Budgets {
		add(b.Name)
		add(b.Category)
	}
	for _, t := range s.Transactions {
		add(t.Category)
	}
	return sortedValues(seen)
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
