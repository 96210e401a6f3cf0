package snapshot

import (
	"github.com/Veraticus/fincoach/internal/model"
)

// Merge combines partial snapshots into one validated snapshot. Entries with
// an ID already seen keep the first occurrence; transactions are also
// deduplicated by content hash so the same purchase from two sources counts
// once. AsOf is the latest of the parts.
func Merge(parts ...model.Snapshot) (*model.Snapshot, error) {
	var out model.Snapshot
	seen := map[string]bool{}
	keep := func(kind, id string) bool {
		if id == "" {
			return true
		}
		key := kind + ":" + id
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	}

	for _, part := range parts {
		if part.AsOf.After(out.AsOf) {
			out.AsOf = part.AsOf
		}
		for _, b := range part.Budgets {
			if keep("budget", b.ID) {
				out.Budgets = append(out.Budgets, b)
			}
		}
		for _, g := range part.Goals {
			if keep("goal", g.ID) {
				out.Goals = append(out.Goals, g)
			}
		}
		for _, r := range part.Recurring {
			if keep("recurring", r.ID) {
				out.Recurring = append(out.Recurring, r)
			}
		}
		for _, d := range part.Debts {
			if keep("debt", d.ID) {
				out.Debts = append(out.Debts, d)
			}
		}
		for _, a := range part.Accounts {
			if keep("account", a.ID) {
				out.Accounts = append(out.Accounts, a)
			}
		}
		for _, t := range part.Transactions {
			if t.Hash == "" {
				t.Hash = t.GenerateHash()
			}
			if !keep("transaction", t.ID) || !keep("hash", t.Hash) {
				continue
			}
			out.Transactions = append(out.Transactions, t)
		}
	}
	return model.NewSnapshot(out)
}
