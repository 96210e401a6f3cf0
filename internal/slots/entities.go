package slots

import (
	"regexp"
	"strings"

	"github.com/Veraticus/fincoach/internal/model"
)

var (
	unknownMerchant = regexp.MustCompile(`\b(?:at|from)\s+((?:[A-Z][\w'&.-]*)(?:\s+[A-Z][\w'&.-]*){0,2})`)
	explicitGoalID  = regexp.MustCompile(`(?i)\bgoal\s*(?:id)?\s*[#:]\s*([a-z0-9_-]+)`)
	goalWord        = regexp.MustCompile(`(?i)\bgoals?\b`)
)

func merchantCandidates(text string, rc Context) []ResolvedSlot {
	var out []ResolvedSlot
	norm := normalize(text)

	if rc.Snapshot != nil {
		for _, merchant := range rc.Snapshot.Merchants() {
			key := normalize(merchant)
			idx, ok := containsWord(norm, key)
			if !ok {
				continue
			}
			slot := ResolvedSlot{
				Type:        TypeMerchant,
				Value:       merchant,
				Confidence:  0.8,
				Provenance:  ProvenanceContext,
				MatchedText: key,
			}
			prefix := strings.TrimSpace(norm[:idx])
			if strings.HasSuffix(prefix, " at") || strings.HasSuffix(prefix, " from") || prefix == "at" || prefix == "from" {
				slot.Confidence = 0.9
				slot.Provenance = ProvenanceExplicit
			}
			out = append(out, slot)
		}
	}

	if len(out) == 0 {
		if m := unknownMerchant.FindStringSubmatch(text); m != nil {
			name := strings.TrimRight(m[1], ".")
			out = append(out, ResolvedSlot{
				Type:        TypeMerchant,
				Value:       name,
				Confidence:  0.6,
				Provenance:  ProvenanceInferred,
				MatchedText: name,
			})
		}
	}
	return out
}

var accountTypeTerms = []struct {
	term string
	kind model.AccountType
}{
	{"checking account", model.AccountChecking},
	{"checking", model.AccountChecking},
	{"savings account", model.AccountSavings},
	{"savings balance", model.AccountSavings},
	{"credit card", model.AccountCredit},
	{"brokerage", model.AccountInvestment},
	{"investment account", model.AccountInvestment},
	{"401k", model.AccountInvestment},
	{"ira", model.AccountInvestment},
	{"loan account", model.AccountLoan},
}

func accountCandidates(text string, rc Context) []ResolvedSlot {
	var out []ResolvedSlot
	norm := normalize(text)

	for _, at := range accountTypeTerms {
		if _, ok := containsWord(norm, at.term); !ok {
			continue
		}
		value := string(at.kind)
		if rc.Snapshot != nil {
			for _, a := range rc.Snapshot.Accounts {
				if a.Type == at.kind {
					value = a.Name
					break
				}
			}
		}
		out = append(out, ResolvedSlot{
			Type:        TypeAccount,
			Value:       value,
			Confidence:  0.9,
			Provenance:  ProvenanceExplicit,
			MatchedText: at.term,
		})
	}

	if rc.Snapshot != nil {
		for _, a := range rc.Snapshot.Accounts {
			key := normalize(a.Name)
			if _, ok := containsWord(norm, key); ok {
				out = append(out, ResolvedSlot{
					Type:        TypeAccount,
					Value:       a.Name,
					Confidence:  0.8,
					Provenance:  ProvenanceContext,
					MatchedText: key,
				})
			}
		}
	}
	return out
}

func goalCandidates(text string, rc Context) []ResolvedSlot {
	if rc.Snapshot == nil || len(rc.Snapshot.Goals) == 0 {
		return nil
	}
	var out []ResolvedSlot
	norm := normalize(text)

	if m := explicitGoalID.FindStringSubmatch(text); m != nil {
		if g, ok := rc.Snapshot.FindGoal(m[1]); ok {
			out = append(out, ResolvedSlot{
				Type:        TypeGoal,
				Value:       goalRef(g),
				Confidence:  0.95,
				Provenance:  ProvenanceExplicit,
				MatchedText: m[0],
			})
		}
	}

	for _, g := range rc.Snapshot.Goals {
		for _, key := range goalKeys(g.Name) {
			if _, ok := containsWord(norm, key); ok {
				out = append(out, ResolvedSlot{
					Type:        TypeGoal,
					Value:       goalRef(g),
					Confidence:  0.8,
					Provenance:  ProvenanceContext,
					MatchedText: key,
				})
				break
			}
		}
	}

	if len(out) == 0 && len(rc.Snapshot.Goals) == 1 {
		if m := goalWord.FindString(text); m != "" {
			out = append(out, ResolvedSlot{
				Type:        TypeGoal,
				Value:       goalRef(rc.Snapshot.Goals[0]),
				Confidence:  0.6,
				Provenance:  ProvenanceInferred,
				MatchedText: m,
			})
		}
	}
	return out
}

// goalKeys returns the full goal name plus the name without a trailing
// "fund", "goal" or "savings", so "Vacation Fund" also matches "vacation".
func goalKeys(name string) []string {
	full := normalize(name)
	keys := []string{full}
	for _, suffix := range []string{" fund", " goal", " savings"} {
		if trimmed := strings.TrimSuffix(full, suffix); trimmed != full && trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}

func goalRef(g model.Goal) string {
	if g.ID != "" {
		return g.ID
	}
	return g.Name
}
