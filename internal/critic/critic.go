// Package critic turns guard results and answer-level heuristics into a
// single accept-or-escalate verdict.
package critic

import (
	"github.com/Veraticus/fincoach/internal/guard"
	"github.com/Veraticus/fincoach/internal/model"
)

// IssueKind classifies a critic finding.
type IssueKind string

// Issue kinds, in escalation precedence order.
const (
	IssueGuardFailure     IssueKind = "guard_failure"
	IssueAmbiguity        IssueKind = "ambiguity"
	IssueUnsupportedClaim IssueKind = "unsupported_claim"
	IssueHighStakes       IssueKind = "high_stakes"
	IssueStrategyRequest  IssueKind = "strategy_request"
)

// RiskLevel grades how risky releasing the answer would be.
type RiskLevel string

// Risk levels.
const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Escalation reasons for the heuristic checks. Guard failures use the
// failing guard code.
const (
	ReasonAmbiguity        = "ambiguous answer"
	ReasonUnsupportedClaim = "unsupported claim"
	ReasonHighStakes       = "high-stakes task detected"
	ReasonStrategyRequest  = "explicit strategy request"
)

// Issue is one finding.
type Issue struct {
	Kind IssueKind `json:"kind"`
	Note string    `json:"note"`
}

// Report is the critic's verdict. EscalationReason is set whenever Escalate
// is true.
type Report struct {
	RiskLevel        RiskLevel `json:"risk_level"`
	EscalationReason string    `json:"escalation_reason,omitempty"`
	Issues           []Issue   `json:"issues,omitempty"`
	Passed           bool      `json:"passed"`
	Escalate         bool      `json:"escalate"`
}

// Input is what the critic reviews.
type Input struct {
	Snapshot  *model.Snapshot
	Utterance string
	Answer    string
	Guards    guard.BatteryReport
}

// Critic is stateless and safe for concurrent use.
type Critic struct{}

// New creates a critic.
func New() *Critic {
	return &Critic{}
}

// Review checks in and decides whether to escalate. The first matching rule
// sets the reason: guard failure, ambiguity, unsupported claim, high stakes,
// explicit strategy request.
func (c *Critic) Review(in Input) Report {
	snap := in.Snapshot
	if snap == nil {
		snap = model.EmptySnapshot()
	}

	var issues []Issue
	for _, f := range in.Guards.Failures {
		issues = append(issues, Issue{Kind: IssueGuardFailure, Note: string(f.Code) + ": " + f.Detail})
	}
	if phrase, ok := DetectAmbiguity(in.Answer); ok {
		issues = append(issues, Issue{Kind: IssueAmbiguity, Note: "hedging language: " + phrase})
	}
	if note, ok := DetectUnsupportedClaim(in.Answer, snap); ok {
		issues = append(issues, Issue{Kind: IssueUnsupportedClaim, Note: note})
	}
	stakes := DetectStakes(in.Utterance)
	if stakes.HighStakes {
		issues = append(issues, Issue{Kind: IssueHighStakes, Note: stakes.Note})
	} else if stakes.StrategyRequest {
		issues = append(issues, Issue{Kind: IssueStrategyRequest, Note: stakes.Note})
	}

	report := Report{Issues: issues, Passed: len(issues) == 0, RiskLevel: riskFor(issues, in.Guards)}

	switch {
	case !in.Guards.Passed && len(in.Guards.Failures) > 0:
		report.Escalate = true
		report.EscalationReason = string(in.Guards.Failures[0].Code)
	case hasKind(issues, IssueAmbiguity):
		report.Escalate = true
		report.EscalationReason = ReasonAmbiguity
	case hasKind(issues, IssueUnsupportedClaim):
		report.Escalate = true
		report.EscalationReason = ReasonUnsupportedClaim
	case hasKind(issues, IssueHighStakes):
		report.Escalate = true
		report.EscalationReason = ReasonHighStakes
	case hasKind(issues, IssueStrategyRequest):
		report.Escalate = true
		report.EscalationReason = ReasonStrategyRequest
	}
	return report
}

func hasKind(issues []Issue, kind IssueKind) bool {
	for _, i := range issues {
		if i.Kind == kind {
			return true
		}
	}
	return false
}

func riskFor(issues []Issue, guards guard.BatteryReport) RiskLevel {
	for _, f := range guards.Failures {
		if f.Code == guard.CodeUnsafePhrase {
			return RiskHigh
		}
	}
	if hasKind(issues, IssueHighStakes) {
		return RiskHigh
	}
	if len(issues) > 0 {
		return RiskMedium
	}
	return RiskLow
}
