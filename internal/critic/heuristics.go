package critic

import (
	"regexp"
	"strings"

	"github.com/Veraticus/fincoach/internal/model"
)

var hedges = regexp.MustCompile(`(?i)\b(?:i think|i believe|i'm not sure|not sure|maybe|possibly|perhaps|it seems|probably|might be|hard to say|it depends|i guess|roughly speaking)\b`)

// DetectAmbiguity reports the first hedging phrase in answer.
func DetectAmbiguity(answer string) (string, bool) {
	m := hedges.FindString(answer)
	return m, m != ""
}

type claimRule struct {
	re        *regexp.Regexp
	supported func(*model.Snapshot) bool
	note      string
}

func never(*model.Snapshot) bool { return false }

// Phrases that assert knowledge the snapshot may not hold.
var claimRules = []claimRule{
	{regexp.MustCompile(`(?i)\byour credit score\b`), never, "credit score is not available"},
	{regexp.MustCompile(`(?i)\byour (?:tax(?:es)?|tax refund|tax bracket)\b`), never, "tax data is not available"},
	{regexp.MustCompile(`(?i)\byour (?:salary|income|paycheck)s? (?:is|are|was|of)\b`), func(s *model.Snapshot) bool {
		for _, t := range s.Transactions {
			if t.Direction == model.DirectionIncome {
				return true
			}
		}
		return false
	}, "no income transactions"},
	{regexp.MustCompile(`(?i)\byour (?:investments?|portfolio|401\(?k\)?|ira|brokerage)\b`), func(s *model.Snapshot) bool {
		for _, a := range s.Accounts {
			if a.Type == model.AccountInvestment {
				return true
			}
		}
		return false
	}, "no investment accounts"},
	{regexp.MustCompile(`(?i)\byour (?:debts?|loans?|credit card balances?)\b`), func(s *model.Snapshot) bool {
		if len(s.Debts) > 0 {
			return true
		}
		for _, a := range s.Accounts {
			if a.IsLiability() {
				return true
			}
		}
		return false
	}, "no debts on record"},
	{regexp.MustCompile(`(?i)\byour (?:savings )?goals?\b`), func(s *model.Snapshot) bool { return len(s.Goals) > 0 }, "no goals on record"},
	{regexp.MustCompile(`(?i)\byour (?:subscriptions?|recurring (?:bills|charges|expenses))\b`), func(s *model.Snapshot) bool { return len(s.Recurring) > 0 }, "no recurring expenses on record"},
	{regexp.MustCompile(`(?i)\byour (?:checking|savings) (?:account|balance)\b`), func(s *model.Snapshot) bool { return len(s.Accounts) > 0 }, "no accounts on record"},
}

// DetectUnsupportedClaim reports the first phrase that implies data the
// snapshot does not contain.
func DetectUnsupportedClaim(answer string, snap *model.Snapshot) (string, bool) {
	for _, rule := range claimRules {
		m := rule.re.FindString(answer)
		if m == "" || rule.supported(snap) {
			continue
		}
		return rule.note + " (" + strings.ToLower(m) + ")", true
	}
	return "", false
}

// Stakes is the outcome of scanning a request for high-stakes content.
type Stakes struct {
	Note            string
	HighStakes      bool
	StrategyRequest bool
}

var stakeTopics = map[string][]string{
	"retirement":     {"retire", "retirement", "401k", "ira", "pension", "social security", "nest egg"},
	"debt payoff":    {"pay off", "payoff", "debt", "debts", "snowball", "avalanche", "consolidate", "refinance", "bankruptcy"},
	"estate":         {"estate", "a will", "my will", "living will", "trust fund", "inheritance", "beneficiary", "probate"},
	"savings":        {"savings", "emergency fund", "6-month", "six month", "rainy day"},
	"investing":      {"invest", "investing", "stocks", "portfolio", "index fund"},
	"major purchase": {"mortgage", "down payment", "buy a house", "buy a car"},
}

var topicOrder = []string{"retirement", "debt payoff", "estate", "savings", "investing", "major purchase"}

// Topics that are high stakes on their own once two of their terms appear.
var standaloneTopics = map[string]bool{"retirement": true, "debt payoff": true, "estate": true}

var strategyVerbs = regexp.MustCompile(`(?i)\b(?:plan|planning|strategy|strategies|optimi[sz]e|rebuild|restructure|overhaul)\b`)

// DetectStakes flags requests that touch retirement, debt payoff or estate
// planning (two or more terms from one topic), or that ask for a plan or
// strategy about money. A strategy verb with no financial topic is only an
// explicit strategy request.
func DetectStakes(utterance string) Stakes {
	norm := " " + strings.Join(strings.FieldsFunc(strings.ToLower(utterance), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '\'')
	}), " ") + " "

	verb := strategyVerbs.FindString(utterance)
	for _, topic := range topicOrder {
		hits := 0
		for _, term := range stakeTopics[topic] {
			if strings.Contains(norm, " "+term+" ") {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		if standaloneTopics[topic] && hits >= 2 {
			return Stakes{HighStakes: true, Note: topic + " topic"}
		}
		if verb != "" {
			return Stakes{HighStakes: true, Note: strings.ToLower(verb) + " request about " + topic}
		}
	}
	if verb != "" {
		return Stakes{StrategyRequest: true, Note: strings.ToLower(verb) + " requested"}
	}
	return Stakes{}
}
