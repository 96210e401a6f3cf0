// Package observe classifies outgoing text for safety, checks per-request
// performance budgets and emits one structured event per request.
package observe

import (
	"regexp"
	"strings"
)

// Verdict is the safety classifier's decision, ordered by severity.
type Verdict string

// Safety verdicts, most severe first.
const (
	VerdictBlock    Verdict = "block"
	VerdictEscalate Verdict = "escalate"
	VerdictModify   Verdict = "modify"
	VerdictAllow    Verdict = "allow"
)

func (v Verdict) severity() int {
	switch v {
	case VerdictBlock:
		return 3
	case VerdictEscalate:
		return 2
	case VerdictModify:
		return 1
	default:
		return 0
	}
}

// Messages substituted or appended by the classifier.
const (
	BlockedMessage  = "I can't recommend specific investments or trades. A licensed financial advisor can help you decide what fits your situation."
	CrisisMessage   = "If you're facing an urgent financial emergency, a nonprofit credit counselor can help you right away."
	HandoffActionID = "human_handoff"
)

// safetyRule matches response text; rules with scanUtterance also match the
// user's text.
type safetyRule struct {
	re            *regexp.Regexp
	verdict       Verdict
	category      string
	disclaimer    string
	scanUtterance bool
}

var safetyRules = []safetyRule{
	{re: regexp.MustCompile(`(?i)\byou should (?:buy|sell|short)\b|\b(?:buy|sell) (?:shares of|stock in)\b|\binvest (?:all|everything|your savings) in\b|\b(?:put|move) (?:all (?:of )?)?(?:your )?(?:money|savings) (?:in|into) (?:crypto|bitcoin|stocks?|options)\b|\bthis stock will\b`),
		verdict: VerdictBlock, category: "investment_advice"},
	{re: regexp.MustCompile(`(?i)\b(?:can'?t|cannot) (?:afford|pay) (?:my )?(?:rent|food|groceries|mortgage|utilities)\b|\bevict(?:ed|ion)\b|\bforeclos(?:e|ed|ure)\b|\bbankrupt(?:cy)?\b|\bdebt collectors?\b|\bmake ends meet\b|\bshut[- ]?off notice\b|\bpayday loans?\b`),
		verdict: VerdictEscalate, category: "financial_crisis", scanUtterance: true},
	{re: regexp.MustCompile(`(?i)\btax(?:es|able)?\b|\birs\b|\bdeductib`),
		verdict: VerdictModify, category: "tax", disclaimer: "This isn't tax advice; a tax professional can confirm what applies to you."},
	{re: regexp.MustCompile(`(?i)\blegal(?:ly)?\b|\blawsuit\b|\battorney\b|\blawyer\b`),
		verdict: VerdictModify, category: "legal", disclaimer: "This isn't legal advice; consider consulting an attorney."},
	{re: regexp.MustCompile(`(?i)\bmedical\b|\bhealth insurance\b|\bdiagnos\w*\b|\bprescription\b`),
		verdict: VerdictModify, category: "medical", disclaimer: "This isn't medical advice; check with a healthcare provider about your care."},
}

// SafetyResult is the classifier's output. Text is the response to release,
// already modified or replaced as the verdict requires.
type SafetyResult struct {
	Verdict    Verdict  `json:"verdict"`
	Text       string   `json:"text"`
	Categories []string `json:"categories,omitempty"`
	Handoff    bool     `json:"handoff"`
}

// SafetyClassifier is stateless.
type SafetyClassifier struct{}

// NewSafetyClassifier creates a classifier.
func NewSafetyClassifier() *SafetyClassifier {
	return &SafetyClassifier{}
}

// Classify scans response (and, for crisis language, utterance) against the
// severity-ranked rules and returns the most severe verdict.
func (c *SafetyClassifier) Classify(utterance, response string) SafetyResult {
	result := SafetyResult{Verdict: VerdictAllow, Text: response}
	var disclaimers []string

	for _, rule := range safetyRules {
		hit := rule.re.MatchString(response)
		if !hit && rule.scanUtterance {
			hit = rule.re.MatchString(utterance)
		}
		if !hit {
			continue
		}
		result.Categories = append(result.Categories, rule.category)
		if rule.verdict.severity() > result.Verdict.severity() {
			result.Verdict = rule.verdict
		}
		if rule.disclaimer != "" {
			disclaimers = append(disclaimers, rule.disclaimer)
		}
	}

	switch result.Verdict {
	case VerdictBlock:
		result.Text = BlockedMessage
	case VerdictEscalate:
		result.Handoff = true
		result.Text = appendSentence(result.Text, CrisisMessage)
	case VerdictModify:
		for _, d := range disclaimers {
			result.Text = appendSentence(result.Text, d)
		}
	}
	return result
}

func appendSentence(text, sentence string) string {
	if strings.Contains(text, sentence) {
		return text
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return sentence
	}
	return text + "\n\n" + sentence
}
