package slots

import (
	"regexp"
	"strconv"
	"strings"
)

// Amounts at or above this are treated as typos or non-monetary numbers.
const maxAmount = 10_000_000

var (
	dollarSignAmount = regexp.MustCompile(`(?i)\$\s?(\d[\d,]*(?:\.\d+)?)(?:\s*(k|m|mm|million|thousand|grand)\b)?`)
	suffixedAmount   = regexp.MustCompile(`(?i)\b(\d[\d,]*(?:\.\d+)?)\s*(k|million|thousand|grand)\b`)
	wordAmount       = regexp.MustCompile(`(?i)\b(\d[\d,]*(?:\.\d+)?)\s*(dollars|bucks|usd)\b`)
)

var multipliers = map[string]float64{
	"":         1,
	"k":        1_000,
	"thousand": 1_000,
	"grand":    1_000,
	"m":        1_000_000,
	"mm":       1_000_000,
	"million":  1_000_000,
}

// ParseAmount normalizes a number with an optional shorthand suffix, such
// as "2k" or "1.5 million". It returns false for out-of-range values.
func ParseAmount(number, suffix string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	mult, ok := multipliers[strings.ToLower(suffix)]
	if !ok {
		return 0, false
	}
	v *= mult
	if v <= 0 || v >= maxAmount {
		return 0, false
	}
	return v, true
}

func amountCandidates(text string, _ Context) []ResolvedSlot {
	var out []ResolvedSlot
	add := func(re *regexp.Regexp, confidence float64) {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			// 401k is an account type, not an amount.
			if strings.EqualFold(m[0], "401k") || strings.EqualFold(m[0], "403k") {
				continue
			}
			v, ok := ParseAmount(m[1], m[2])
			if !ok {
				continue
			}
			out = append(out, ResolvedSlot{
				Type:        TypeAmount,
				Value:       v,
				Confidence:  confidence,
				Provenance:  ProvenanceExplicit,
				MatchedText: strings.TrimSpace(m[0]),
			})
		}
	}
	add(dollarSignAmount, 0.95)
	add(suffixedAmount, 0.9)
	add(wordAmount, 0.9)
	return out
}
