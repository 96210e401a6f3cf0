package guard

import (
	"fmt"
	"regexp"
)

type deniedPhrase struct {
	re    *regexp.Regexp
	label string
}

// Phrasing an answer must never use.
var deniedPhrases = []deniedPhrase{
	{regexp.MustCompile(`(?i)\bguarantee(?:s|d)?\b`), "guarantee"},
	{regexp.MustCompile(`(?i)\b(?:can'?t|cannot|won'?t) (?:possibly )?lose\b`), "cannot lose"},
	{regexp.MustCompile(`(?i)\brisk[- ]free\b`), "risk-free"},
	{regexp.MustCompile(`(?i)\bsure thing\b`), "sure thing"},
	{regexp.MustCompile(`(?i)\bget rich quick\b`), "get rich quick"},
	{regexp.MustCompile(`(?i)\b(?:100|one hundred) ?(?:%|percent) (?:safe|certain|sure)\b`), "certainty claim"},
	{regexp.MustCompile(`(?i)\b(?:use|take on|try|consider) (?:some )?(?:margin|leverage)\b`), "leverage suggestion"},
	{regexp.MustCompile(`(?i)\bleveraged (?:etfs?|investments?|funds?|positions?)\b`), "leveraged investment"},
	{regexp.MustCompile(`(?i)\bborrow (?:money )?to invest\b`), "borrow to invest"},
	{regexp.MustCompile(`(?i)\b(?:double|triple) your money\b`), "return promise"},
}

// ClaimGuard rejects unsafe phrasing and requires the disclaimer on strategy
// content.
type ClaimGuard struct{}

// Name implements Guard.
func (ClaimGuard) Name() string { return "claim" }

// Check implements Guard.
func (ClaimGuard) Check(in Input) Report {
	var failures []Failure
	for _, p := range deniedPhrases {
		if m := p.re.FindString(in.Answer); m != "" {
			failures = append(failures, Failure{
				Code:   CodeUnsafePhrase,
				Detail: fmt.Sprintf("%s: %q", p.label, m),
			})
		}
	}
	if in.Strategy && !containsFold(in.Answer, Disclaimer) {
		failures = append(failures, Failure{
			Code:   CodeMissingDisclaimer,
			Detail: "strategy content without disclaimer",
		})
	}
	return newReport(ClaimGuard{}.Name(), failures)
}
