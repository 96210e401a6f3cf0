package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/fincoach/internal/catalog"
	"github.com/Veraticus/fincoach/internal/fallback"
	"github.com/Veraticus/fincoach/internal/model"
	"github.com/Veraticus/fincoach/internal/orchestrator"
	"github.com/Veraticus/fincoach/internal/storage"
)

// RenderResponse formats one assistant turn. Verbose adds the routing and
// validation trail.
func RenderResponse(r orchestrator.Response, verbose bool) string {
	var b strings.Builder

	switch {
	case r.Safety.Handoff:
		b.WriteString(WarningStyle.Render(HandoffIcon+" "+r.Text) + "\n")
	case r.Source == orchestrator.SourceFallback:
		b.WriteString(InfoStyle.Render(QuestionIcon+" "+r.Text) + "\n")
	default:
		b.WriteString(r.Text + "\n")
	}

	if r.LowConfidence {
		b.WriteString(SubtleStyle.Render("(I'm not fully sure about this one; double-check the figures.)") + "\n")
	}
	if r.Fallback != nil && len(r.Fallback.Suggestions) > 0 {
		b.WriteString("\n" + BoldStyle.Render("You could ask:") + "\n")
		for _, s := range r.Fallback.Suggestions {
			b.WriteString("  • " + s + "\n")
		}
	}
	if len(r.Actions) > 0 {
		labels := make([]string, 0, len(r.Actions))
		for _, a := range r.Actions {
			labels = append(labels, a.Label)
		}
		b.WriteString(SubtleStyle.Render("Next: "+strings.Join(labels, " | ")) + "\n")
	}

	if verbose {
		b.WriteString("\n" + SubtleStyle.Render(RenderTrail(r)) + "\n")
	}
	return b.String()
}

// RenderTrail lists how the pipeline reached a response, one field per line.
func RenderTrail(r orchestrator.Response) string {
	lines := []string{
		fmt.Sprintf("request   %s", r.RequestID),
		fmt.Sprintf("route     %s %s (%.2f, %s)", r.Route.Kind, r.Route.CapabilityID, r.Route.Confidence, r.Route.Reason),
		fmt.Sprintf("source    %s", r.Source),
		fmt.Sprintf("safety    %s", r.Safety.Verdict),
		fmt.Sprintf("tokens    %d", r.Tokens),
	}
	if len(r.Slots) > 0 {
		parts := make([]string, 0, len(r.Slots))
		for _, s := range r.Slots {
			parts = append(parts, s.String())
		}
		sort.Strings(parts)
		lines = append(lines, "slots     "+strings.Join(parts, ", "))
	}
	if r.Answerability != nil && !r.Answerability.CanAnswer {
		var missing []string
		for _, m := range r.Answerability.MissingData {
			missing = append(missing, m.String())
		}
		lines = append(lines, "missing   "+strings.Join(missing, "; "))
	}
	if r.Review != nil && len(r.Review.Issues) > 0 {
		kinds := make([]string, 0, len(r.Review.Issues))
		for _, i := range r.Review.Issues {
			kinds = append(kinds, string(i.Kind))
		}
		lines = append(lines, fmt.Sprintf("review    %s [%s]", r.Review.RiskLevel, strings.Join(kinds, ", ")))
	}
	if r.Escalated {
		lines = append(lines, "escalated yes")
	}
	if r.CacheHit {
		lines = append(lines, "cache     hit")
	}
	return strings.Join(lines, "\n")
}

// RenderUnknowns formats the unknown-query log as a table.
func RenderUnknowns(records []fallback.UnknownRecord) string {
	if len(records) == 0 {
		return FormatInfo("No unanswered questions recorded.") + "\n"
	}
	var b strings.Builder
	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-8s %5s  %-10s  %-8s  %s", "ID", "COUNT", "LAST SEEN", "STATUS", "QUESTION")) + "\n")
	for _, r := range records {
		status := "open"
		if r.Resolved {
			status = "resolved"
		}
		fmt.Fprintf(&b, "%-8s %5d  %-10s  %-8s  %s\n",
			shortID(r.ID), r.Frequency, r.LastSeen.Format("2006-01-02"), status, truncate(r.Utterance, 60))
		if len(r.SuggestedCapabilities) > 0 {
			b.WriteString(SubtleStyle.Render("         suggested: "+strings.Join(r.SuggestedCapabilities, ", ")) + "\n")
		}
		if r.Feedback != "" {
			b.WriteString(SubtleStyle.Render("         feedback: "+r.Feedback) + "\n")
		}
	}
	return b.String()
}

// RenderEventStats formats aggregated request events.
func RenderEventStats(stats storage.EventStats, since time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Requests since %s: %d\n", since.Format("2006-01-02 15:04"), stats.Total)
	if stats.Total == 0 {
		return b.String()
	}
	fmt.Fprintf(&b, "Mean latency: %s   Mean tokens: %.0f\n", stats.MeanLatency.Round(time.Millisecond), stats.MeanTokens)
	fmt.Fprintf(&b, "Escalated: %d (failed %d)   Low confidence: %d   Cache hits: %d\n",
		stats.Escalated, stats.EscalationFailures, stats.LowConfidence, stats.CacheHits)

	sections := []struct {
		title  string
		counts []storage.Count
	}{
		{"Route kinds", stats.RouteKinds},
		{"Capabilities", stats.Capabilities},
		{"Escalation reasons", stats.EscalationReasons},
		{"Fallback kinds", stats.FallbackKinds},
		{"Safety verdicts", stats.SafetyVerdicts},
	}
	for _, s := range sections {
		if len(s.counts) == 0 {
			continue
		}
		b.WriteString("\n" + BoldStyle.Render(s.title) + "\n")
		for _, c := range s.counts {
			fmt.Fprintf(&b, "  %-28s %6d  %5.1f%%\n", c.Label, c.N, 100*float64(c.N)/float64(stats.Total))
		}
	}
	return b.String()
}

// RenderCatalog lists capabilities in fallback priority order.
func RenderCatalog(cat *catalog.Catalog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Capability catalog %s (%d capabilities)\n\n", cat.Version(), cat.Len())
	for _, c := range cat.ByPriority() {
		marker := " "
		if c.Strategy {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %-24s %s\n", marker, c.ID, c.Description)
		if c.Example != "" {
			b.WriteString(SubtleStyle.Render(fmt.Sprintf("  %-24s e.g. %q", "", c.Example)) + "\n")
		}
	}
	b.WriteString("\n" + SubtleStyle.Render("* strategy capability; answers carry a disclaimer") + "\n")
	return b.String()
}

// RenderSnapshot summarizes what data is available.
func RenderSnapshot(snap *model.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Snapshot as of %s\n", snap.AsOf.Format("2006-01-02 15:04"))
	counts := snap.Counts()
	for _, c := range model.AllDataCategories() {
		fmt.Fprintf(&b, "  %-14s %d\n", c, counts[c])
	}
	if len(snap.Budgets) > 0 {
		fmt.Fprintf(&b, "Budgeted $%.2f, spent $%.2f\n", snap.TotalBudget(), snap.TotalSpent())
	}
	fmt.Fprintf(&b, "Fingerprint %s\n", snap.ValueFingerprint())
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
