package slots

import (
	"sort"
	"strings"
)

// Lexicon maps spending-category synonyms to a canonical category name.
type Lexicon struct {
	terms map[string]string // normalized term -> canonical
	order []string          // terms, longest first
}

// NewLexicon builds a lexicon from canonical name to synonyms. The canonical
// name is always a term for itself.
func NewLexicon(entries map[string][]string) *Lexicon {
	l := &Lexicon{terms: make(map[string]string)}
	for canonical, synonyms := range entries {
		l.terms[normalize(canonical)] = canonical
		for _, s := range synonyms {
			l.terms[normalize(s)] = canonical
		}
	}
	for term := range l.terms {
		l.order = append(l.order, term)
	}
	sort.Slice(l.order, func(i, j int) bool {
		if len(l.order[i]) != len(l.order[j]) {
			return len(l.order[i]) > len(l.order[j])
		}
		return l.order[i] < l.order[j]
	})
	return l
}

// DefaultLexicon returns the built-in category vocabulary.
func DefaultLexicon() *Lexicon {
	return NewLexicon(map[string][]string{
		"Groceries":      {"grocery", "supermarket", "food shopping"},
		"Dining":         {"dining out", "eating out", "restaurant", "restaurants", "takeout", "food delivery"},
		"Coffee":         {"coffee", "cafe", "coffee shops"},
		"Transportation": {"gas", "fuel", "transit", "parking", "rideshare", "car"},
		"Housing":        {"rent", "mortgage", "home"},
		"Utilities":      {"utility", "electric", "electricity", "internet", "phone bill", "water bill"},
		"Entertainment":  {"fun", "movies", "concerts", "games", "going out"},
		"Shopping":       {"clothes", "clothing", "shoes"},
		"Health":         {"healthcare", "medical", "doctor", "pharmacy", "fitness", "gym"},
		"Travel":         {"vacation", "flights", "hotels", "trips"},
		"Subscriptions":  {"streaming"},
		"Personal Care":  {"haircut", "beauty", "salon"},
		"Education":      {"tuition", "books", "courses"},
		"Insurance":      {"premiums"},
		"Gifts":          {"gift", "donations", "charity"},
		"Kids":           {"childcare", "daycare", "children"},
		"Pets":           {"pet", "vet", "dog", "cat"},
	})
}

type lexMatch struct {
	canonical string
	term      string
}

// Match returns every term found in text, longest terms first.
func (l *Lexicon) Match(text string) []lexMatch {
	norm := normalize(text)
	var out []lexMatch
	for _, term := range l.order {
		if _, ok := containsWord(norm, term); ok {
			out = append(out, lexMatch{canonical: l.terms[term], term: term})
		}
	}
	return out
}

func (r *Resolver) categoryCandidates(text string, rc Context) []ResolvedSlot {
	var known []string
	if rc.Snapshot != nil {
		known = rc.Snapshot.Categories()
	}
	// Prefer the user's spelling of a category when the snapshot has it.
	spell := func(canonical string) string {
		for _, k := range known {
			if strings.EqualFold(k, canonical) {
				return k
			}
		}
		return canonical
	}

	var out []ResolvedSlot
	if r.categories != nil {
		for _, m := range r.categories.Match(text) {
			out = append(out, ResolvedSlot{
				Type:        TypeCategory,
				Value:       spell(m.canonical),
				Confidence:  0.9,
				Provenance:  ProvenanceExplicit,
				MatchedText: m.term,
			})
		}
	}

	// A category the user named verbatim is as explicit as a lexicon hit;
	// the longer span decides between them.
	norm := normalize(text)
	for _, k := range known {
		if _, ok := containsWord(norm, normalize(k)); ok {
			out = append(out, ResolvedSlot{
				Type:        TypeCategory,
				Value:       k,
				Confidence:  0.9,
				Provenance:  ProvenanceExplicit,
				MatchedText: normalize(k),
			})
		}
	}
	return out
}
