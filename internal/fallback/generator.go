// Package fallback produces non-answer responses (setup guidance,
// educational content, guided suggestions or an unknown-query entry) when
// routing or validation cannot produce an answer.
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/fincoach/internal/answerability"
	"github.com/Veraticus/fincoach/internal/catalog"
	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/model"
	"github.com/Veraticus/fincoach/internal/slots"
)

// Kind is the type of fallback response.
type Kind string

// Fallback kinds.
const (
	KindGuided           Kind = "guided"
	KindEducational      Kind = "educational"
	KindSetup            Kind = "setup"
	KindUnknownCollector Kind = "unknown_collector"
)

// Reason says why the pipeline fell back.
type Reason string

// Fallback reasons.
const (
	ReasonNoMatch          Reason = "no_match"
	ReasonUnclearIntent    Reason = "unclear_intent"
	ReasonNotAnswerable    Reason = "not_answerable"
	ReasonValidationFailed Reason = "validation_failed"
	ReasonExecutionFailed  Reason = "execution_failed"
	// ReasonUnsupported means the routed capability has no implementation
	// and no generative tier can stand in for it.
	ReasonUnsupported Reason = "unsupported"
	// ReasonMissingParameter means the routed capability needs a slot the
	// utterance did not supply.
	ReasonMissingParameter Reason = "missing_parameter"
)

// Action is a concrete next step offered to the user.
type Action struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ActionRephrase is the action every fallback can offer.
var ActionRephrase = Action{ID: "rephrase", Label: "Try asking a different way"}

// Response is a non-answer. It always carries at least one action.
type Response struct {
	Kind        Kind     `json:"kind"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
	Actions     []Action `json:"actions"`
}

// Request describes the failed turn.
type Request struct {
	Snapshot      *model.Snapshot
	Answerability *answerability.Result
	Utterance     string
	Reason        Reason
	// CapabilityID is the capability the router chose, if any.
	CapabilityID string
	// Candidates are capability ids the router considered.
	Candidates []string
	// MissingSlots are the required slots absent for CapabilityID.
	MissingSlots []slots.Type
}

// guidedLimit caps how many capabilities a guided response suggests.
const guidedLimit = 4

// Generator picks and builds fallback responses.
type Generator struct {
	gate     *answerability.Gate
	catalog  *catalog.Catalog
	unknowns *UnknownLog
	logger   *slog.Logger
}

// NewGenerator creates a generator. unknowns may be nil, in which case
// unknown queries are not recorded.
func NewGenerator(cat *catalog.Catalog, gate *answerability.Gate, unknowns *UnknownLog, logger *slog.Logger) *Generator {
	return &Generator{
		gate:     gate,
		catalog:  cat,
		unknowns: unknowns,
		logger:   common.LoggerOrDefault(logger),
	}
}

// Generate selects a fallback kind: setup when data is missing, a guided
// prompt for a missing parameter, educational for explanation-seeking text,
// guided when intent is unclear or the routed capability cannot run, and the
// unknown collector otherwise.
func (g *Generator) Generate(ctx context.Context, req Request) Response {
	snap := req.Snapshot
	if snap == nil {
		snap = model.EmptySnapshot()
	}

	var resp Response
	switch {
	case snap.IsEmpty() || req.Reason == ReasonNotAnswerable:
		resp = g.setup(snap, req.Answerability)
	case req.Reason == ReasonMissingParameter:
		resp = g.missingParameter(req)
	case IsExplanationSeeking(req.Utterance):
		resp = g.educational(req.Utterance)
	case req.Reason == ReasonUnclearIntent || req.Reason == ReasonValidationFailed:
		resp = g.guided(snap, req.Candidates, "")
	case req.Reason == ReasonUnsupported:
		resp = g.guided(snap, req.Candidates, req.CapabilityID)
	default:
		resp = g.collect(ctx, snap, req)
	}

	if len(resp.Actions) == 0 {
		resp.Actions = []Action{ActionRephrase}
	}
	g.logger.Debug("fallback generated", "kind", resp.Kind, "reason", req.Reason)
	return resp
}

func (g *Generator) setup(snap *model.Snapshot, result *answerability.Result) Response {
	resp := Response{Kind: KindSetup}

	var missing []model.DataCategory
	if result != nil && len(result.MissingData) > 0 {
		for _, m := range result.MissingData {
			missing = append(missing, m.Category)
		}
		resp.Suggestions = append(resp.Suggestions, result.Suggestions...)
	} else {
		for _, c := range model.AllDataCategories() {
			if snap.Count(c) == 0 {
				missing = append(missing, c)
			}
		}
	}

	if snap.IsEmpty() {
		resp.Message = "I don't have any of your financial data yet. Once you add some, I can answer questions like this one."
	} else {
		resp.Message = "I need a bit more data before I can answer that."
	}

	seen := make(map[string]bool)
	for _, c := range missing {
		id := answerability.ActionFor(c)
		if !seen[id] {
			seen[id] = true
			resp.Actions = append(resp.Actions, Action{ID: id, Label: setupLabel(id)})
		}
		if result == nil {
			resp.Suggestions = append(resp.Suggestions, answerability.SuggestionsFor(c)...)
		}
	}
	return resp
}

func setupLabel(id string) string {
	switch id {
	case "connect_account":
		return "Connect an account"
	case "create_budget":
		return "Create a budget"
	case "create_goal":
		return "Set a savings goal"
	case "add_recurring":
		return "Add a recurring bill"
	case "add_debt":
		return "Add a debt"
	default:
		return "Add data"
	}
}

func (g *Generator) educational(utterance string) Response {
	if concept, ok := FindConcept(utterance); ok {
		return Response{
			Kind:    KindEducational,
			Message: concept.Explanation,
			Actions: []Action{
				{ID: "ask_followup", Label: fmt.Sprintf("Ask how %s applies to you", concept.Name)},
			},
		}
	}
	return Response{
		Kind:        KindEducational,
		Message:     "I can explain common personal-finance terms. Here are a few I know well.",
		Suggestions: ConceptNames(),
		Actions:     []Action{{ID: "pick_topic", Label: "Pick a topic to learn about"}},
	}
}

// guided suggests approved capabilities other than exclude.
func (g *Generator) guided(snap *model.Snapshot, candidates []string, exclude string) Response {
	resp := Response{
		Kind:    KindGuided,
		Message: "I'm not sure what you're asking. Here are some things I can help with right now.",
	}
	if exclude != "" {
		resp.Message = "I can't work that one out yet. Here are some things I can help with right now."
	}
	for _, capability := range g.approved(snap, candidates, exclude) {
		resp.Suggestions = append(resp.Suggestions, capability.Example)
		resp.Actions = append(resp.Actions, Action{ID: "ask:" + capability.ID, Label: capability.Name})
	}
	resp.Actions = append(resp.Actions, ActionRephrase)
	return resp
}

// approved returns up to guidedLimit capabilities the gate currently allows:
// the router's candidates first, then the fixed priority order.
func (g *Generator) approved(snap *model.Snapshot, candidates []string, exclude string) []catalog.Capability {
	if g.gate == nil || g.catalog == nil {
		return nil
	}
	var out []catalog.Capability
	seen := map[string]bool{exclude: true}
	add := func(c catalog.Capability) {
		if len(out) < guidedLimit && !seen[c.ID] {
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	for _, id := range candidates {
		c, ok := g.catalog.Get(id)
		if !ok {
			continue
		}
		if result, err := g.gate.Check(id, snap); err == nil && result.CanAnswer {
			add(c)
		}
	}
	for _, c := range g.gate.Approved(snap) {
		add(c)
	}
	return out
}

func (g *Generator) collect(ctx context.Context, snap *model.Snapshot, req Request) Response {
	var suggested []string
	resp := Response{
		Kind:    KindUnknownCollector,
		Message: "I don't know how to answer that yet. I've noted the question so I can learn to handle it.",
		Actions: []Action{ActionRephrase, {ID: "send_feedback", Label: "Tell us what you expected"}},
	}
	for _, c := range g.approved(snap, req.Candidates, "") {
		suggested = append(suggested, c.ID)
		resp.Suggestions = append(resp.Suggestions, c.Example)
	}
	if g.unknowns != nil {
		g.unknowns.Record(ctx, req.Utterance, suggested)
	}
	return resp
}

// missingParameter asks for the slots the routed capability needs, with the
// capability's example as a model question.
func (g *Generator) missingParameter(req Request) Response {
	phrases := make([]string, 0, len(req.MissingSlots))
	for _, t := range req.MissingSlots {
		phrases = append(phrases, slotPhrase(t))
	}
	if len(phrases) == 0 {
		phrases = append(phrases, "a few more details")
	}

	resp := Response{
		Kind:    KindGuided,
		Message: fmt.Sprintf("I can check that once I know %s.", joinPhrases(phrases)),
		Actions: []Action{ActionRephrase},
	}
	if g.catalog != nil {
		if c, ok := g.catalog.Get(req.CapabilityID); ok && c.Example != "" {
			resp.Message += fmt.Sprintf(" For example: %q", c.Example)
			resp.Suggestions = []string{c.Example}
		}
	}
	return resp
}

func slotPhrase(t slots.Type) string {
	switch t {
	case slots.TypeAmount:
		return "the amount"
	case slots.TypeCategory:
		return "which category"
	case slots.TypeMerchant:
		return "which merchant"
	case slots.TypeTimePeriod:
		return "the time period"
	case slots.TypeAccount:
		return "which account"
	case slots.TypeGoal:
		return "which goal"
	default:
		return string(t)
	}
}

func joinPhrases(p []string) string {
	switch len(p) {
	case 1:
		return p[0]
	case 2:
		return p[0] + " and " + p[1]
	default:
		return strings.Join(p[:len(p)-1], ", ") + " and " + p[len(p)-1]
	}
}
