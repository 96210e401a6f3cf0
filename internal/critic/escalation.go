package critic

// Escalation limits.
const (
	MaxFacts               = 3
	DefaultMaxOutputTokens = 400
)

// EscalationPlan bounds a request sent to the escalated generation tier.
type EscalationPlan struct {
	Reason          string   `json:"reason"`
	Facts           []string `json:"facts"`
	MaxOutputTokens int      `json:"max_output_tokens"`
}

// PlanEscalation builds the plan for an escalating report, keeping at most
// MaxFacts supporting facts. It returns false when the report does not
// escalate.
func PlanEscalation(report Report, facts []string, maxOutputTokens int) (EscalationPlan, bool) {
	if !report.Escalate {
		return EscalationPlan{}, false
	}
	if maxOutputTokens <= 0 {
		maxOutputTokens = DefaultMaxOutputTokens
	}
	kept := facts
	if len(kept) > MaxFacts {
		kept = kept[:MaxFacts]
	}
	return EscalationPlan{
		Reason:          report.EscalationReason,
		Facts:           append([]string(nil), kept...),
		MaxOutputTokens: maxOutputTokens,
	}, true
}
