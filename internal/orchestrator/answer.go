package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/fincoach/internal/catalog"
	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/critic"
	"github.com/Veraticus/fincoach/internal/fallback"
	"github.com/Veraticus/fincoach/internal/guard"
	"github.com/Veraticus/fincoach/internal/llm"
	"github.com/Veraticus/fincoach/internal/model"
	"github.com/Veraticus/fincoach/internal/skills"
	"github.com/Veraticus/fincoach/internal/slots"
)

const standardSystemPrompt = "You are a careful personal finance assistant. Answer in two or three " +
	"sentences using ONLY the facts provided. Quote dollar figures exactly as given. Never " +
	"recommend specific investments and never promise outcomes."

const escalatedSystemPrompt = "You are a senior personal finance assistant reviewing an answer that " +
	"failed an automated check. Answer again using ONLY the facts provided, quoting dollar " +
	"figures exactly. Be direct, avoid hedging, and never recommend specific investments."

// draft is an answer that has not yet been released.
type draft struct {
	text   string
	source Source
	guards guard.BatteryReport
}

func (o *Orchestrator) answer(ctx context.Context, t *turn, now time.Time, candidates []string) {
	capability, _ := o.catalog.Get(t.resp.Route.CapabilityID)

	if missing := missingSlots(capability, t.resp.Slots); len(missing) > 0 {
		o.logger.Debug("required slots missing", "capability", capability.ID, "missing", missing)
		o.fallBackWith(ctx, t, fallback.Request{
			Reason:       fallback.ReasonMissingParameter,
			CapabilityID: capability.ID,
			Candidates:   candidates,
			MissingSlots: missing,
		})
		return
	}

	result, err := o.executor.Execute(ctx, skills.Request{
		CapabilityID: capability.ID,
		Snapshot:     t.snap,
		Slots:        t.resp.Slots,
		Now:          now,
	})
	facts := result.Facts
	switch {
	case err == nil:
	case errors.Is(err, common.ErrUnsupportedCapability) && o.standard != nil:
		facts = skills.OverviewFacts(t.snap)
	case errors.Is(err, common.ErrUnsupportedCapability):
		o.logger.Debug("capability has no executor and no standard tier", "capability", capability.ID)
		o.fallBackWith(ctx, t, fallback.Request{
			Reason:       fallback.ReasonUnsupported,
			CapabilityID: capability.ID,
			Candidates:   candidates,
		})
		return
	default:
		o.noteExternal(t, "executor", err)
		o.fallBack(ctx, t, fallback.ReasonExecutionFailed, candidates)
		return
	}

	window := t.resp.Slots.Period()
	if window.IsZero() {
		window = model.MonthOf(now)
	}
	check := func(text string) guard.BatteryReport {
		return o.battery.Run(guard.Input{
			Window:   window,
			Snapshot: t.snap,
			Answer:   text,
			Focus:    result.Focus,
			Strategy: capability.Strategy,
		})
	}

	first, ok := o.firstDraft(ctx, t, capability, result, facts)
	if !ok {
		o.fallBack(ctx, t, fallback.ReasonExecutionFailed, candidates)
		return
	}
	first.text = withDisclaimer(first.text, capability.Strategy)
	first.guards = check(first.text)

	review := o.critic.Review(critic.Input{
		Snapshot:  t.snap,
		Utterance: t.utterance,
		Answer:    first.text,
		Guards:    first.guards,
	})
	t.resp.Review = &review

	final := first
	if plan, escalate := critic.PlanEscalation(review, facts, o.escalatedMaxTokens); escalate {
		o.logger.Debug("escalating", "capability", capability.ID, "reason", plan.Reason, "risk", review.RiskLevel)
		second, ok := o.escalate(ctx, t, capability, plan, first.text)
		if ok {
			second.text = withDisclaimer(second.text, capability.Strategy)
			second.guards = check(second.text)
		}
		switch {
		case ok && second.guards.Passed:
			final = second
			t.resp.Escalated = true
		case first.guards.Passed:
			t.event.EscalationFailed = true
			t.resp.LowConfidence = true
		default:
			t.event.EscalationFailed = true
			t.event.GuardFailures = failureCodes(first.guards)
			o.fallBack(ctx, t, fallback.ReasonValidationFailed, candidates)
			return
		}
	}

	t.event.GuardFailures = failureCodes(first.guards)
	t.resp.Text = final.text
	t.resp.Source = final.source
	o.applySafety(t)
}

// firstDraft produces the standard-tier answer, or the executor's summary
// when there is no standard tier or it fails.
func (o *Orchestrator) firstDraft(ctx context.Context, t *turn, capability catalog.Capability, result skills.Result, facts []string) (draft, bool) {
	if o.standard != nil {
		gen, err := o.standard.Generate(ctx, llm.Prompt{
			System: standardSystemPrompt,
			User:   buildPrompt(t.utterance, capability, facts, result.Summary),
		})
		t.resp.Tokens += gen.Tokens
		if err == nil {
			return draft{text: gen.Text, source: SourceStandard}, true
		}
		o.noteExternal(t, llm.TierStandard, err)
	}
	if result.Summary == "" {
		return draft{}, false
	}
	return draft{text: result.Summary, source: SourceTemplate}, true
}

func (o *Orchestrator) escalate(ctx context.Context, t *turn, capability catalog.Capability, plan critic.EscalationPlan, previous string) (draft, bool) {
	if o.escalated == nil {
		o.logger.Debug("no escalated tier configured", "capability", capability.ID, "reason", plan.Reason)
		return draft{}, false
	}

	var sb strings.Builder
	sb.WriteString(buildPrompt(t.utterance, capability, plan.Facts, ""))
	fmt.Fprintf(&sb, "\nA previous answer was rejected (%s):\n%s\n", plan.Reason, previous)
	if capability.Strategy {
		fmt.Fprintf(&sb, "\nEnd with this sentence: %s\n", guard.Disclaimer)
	}

	gen, err := o.escalated.Generate(ctx, llm.Prompt{
		System:    escalatedSystemPrompt,
		User:      sb.String(),
		MaxTokens: plan.MaxOutputTokens,
	})
	t.resp.Tokens += gen.Tokens
	if err != nil {
		o.noteExternal(t, llm.TierEscalated, err)
		return draft{}, false
	}
	return draft{text: gen.Text, source: SourceEscalated}, true
}

// missingSlots returns the capability's required slots that set lacks.
func missingSlots(capability catalog.Capability, set slots.Set) []slots.Type {
	var missing []slots.Type
	for _, t := range capability.RequiredSlots() {
		if !set.Has(t) {
			missing = append(missing, t)
		}
	}
	return missing
}

// noteExternal records an external failure. Caller cancellation is not one.
func (o *Orchestrator) noteExternal(t *turn, stage string, err error) {
	if errors.Is(err, context.Canceled) {
		o.logger.Debug("request canceled", "stage", stage)
		return
	}
	o.logger.Warn("external call failed", "stage", stage, "error", err)
	t.event.ExternalErrors = append(t.event.ExternalErrors, fmt.Sprintf("%s: %v", stage, err))
}

func buildPrompt(utterance string, capability catalog.Capability, facts []string, summary string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %q\n", utterance)
	fmt.Fprintf(&sb, "Topic: %s (%s)\n", capability.Name, capability.Description)
	if len(facts) > 0 {
		sb.WriteString("Facts:\n")
		for _, f := range facts {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
	}
	if summary != "" {
		fmt.Fprintf(&sb, "Draft: %s\n", summary)
	}
	return sb.String()
}

func withDisclaimer(text string, strategy bool) string {
	if !strategy || strings.Contains(strings.ToLower(text), strings.ToLower(guard.Disclaimer)) {
		return text
	}
	return strings.TrimSpace(text) + "\n\n" + guard.Disclaimer
}

func failureCodes(r guard.BatteryReport) []string {
	codes := r.Codes()
	if len(codes) == 0 {
		return nil
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}
