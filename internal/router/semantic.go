package router

import (
	"strings"
	"unicode"
)

const (
	semanticCap      = 0.95
	semanticTopN     = 3
	hitsForFullScore = 3.0
	phraseHitWeight  = 1.5
)

// semanticPass scores each capability by overlap between the utterance and
// its keyword set. Multi-word keywords count for more than single words.
func (r *Router) semanticPass(utterance string) []Candidate {
	norm := " " + strings.Join(Tokenize(utterance), " ") + " "
	tokens := make(map[string]bool)
	for _, t := range Tokenize(utterance) {
		tokens[t] = true
		tokens[strings.TrimSuffix(t, "s")] = true
	}

	var out []Candidate
	for _, capability := range r.catalog.Capabilities() {
		var hits float64
		for _, kw := range capability.Keywords {
			words := Tokenize(kw)
			switch {
			case len(words) == 0:
				continue
			case len(words) == 1:
				if tokens[words[0]] || tokens[strings.TrimSuffix(words[0], "s")] {
					hits++
				}
			default:
				if strings.Contains(norm, " "+strings.Join(words, " ")+" ") {
					hits += phraseHitWeight
				}
			}
		}
		if hits == 0 {
			continue
		}
		score := hits / hitsForFullScore
		if score > semanticCap {
			score = semanticCap
		}
		out = append(out, Candidate{
			CapabilityID: capability.ID,
			Confidence:   score,
			Reason:       ReasonSemanticMatch,
			Pass:         PassSemantic,
		})
	}

	sortCandidates(out, r.catalog)
	if len(out) > semanticTopN {
		out = out[:semanticTopN]
	}
	return out
}

// Tokenize lowercases text and splits it into word tokens. Apostrophes and
// digits stay inside words.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
