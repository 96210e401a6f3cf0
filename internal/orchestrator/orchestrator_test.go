package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/fincoach/internal/catalog"
	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/critic"
	"github.com/Veraticus/fincoach/internal/fallback"
	"github.com/Veraticus/fincoach/internal/guard"
	"github.com/Veraticus/fincoach/internal/llm"
	"github.com/Veraticus/fincoach/internal/model"
	"github.com/Veraticus/fincoach/internal/observe"
	"github.com/Veraticus/fincoach/internal/router"
	"github.com/Veraticus/fincoach/internal/skills"
	"github.com/Veraticus/fincoach/internal/slots"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func groceryOnly(t *testing.T) *model.Snapshot {
	t.Helper()
	snap, err := model.NewSnapshot(model.Snapshot{
		AsOf:    testNow,
		Budgets: []model.Budget{{ID: "b1", Name: "Groceries", Category: "Groceries", Amount: 500, Spent: 320}},
	})
	require.NoError(t, err)
	return snap
}

type fixture struct {
	orch      *Orchestrator
	sink      *recordingSink
	unknowns  *fallback.UnknownLog
	standard  *mockGenerator
	escalated *mockGenerator
}

func newFixture(t *testing.T, standard, escalated *mockGenerator) fixture {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	f := fixture{
		sink:      &recordingSink{},
		unknowns:  fallback.NewUnknownLog(fallback.UnknownLogConfig{Now: func() time.Time { return testNow }}),
		standard:  standard,
		escalated: escalated,
	}
	cfg := Config{
		Catalog:  cat,
		Sink:     f.sink,
		Unknowns: f.unknowns,
		Now:      func() time.Time { return testNow },
	}
	if standard != nil {
		cfg.Standard = standard
	}
	if escalated != nil {
		cfg.Escalated = escalated
	}
	f.orch, err = New(cfg)
	require.NoError(t, err)
	return f
}

func TestNewRequiresCatalog(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestGroceryBudgetTemplateAnswer(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp, err := f.orch.Handle(context.Background(), "How's my grocery budget doing?", groceryOnly(t))
	require.NoError(t, err)

	assert.Equal(t, router.KindCapability, resp.Route.Kind)
	assert.Equal(t, "budget_status", resp.Route.CapabilityID)
	assert.GreaterOrEqual(t, resp.Route.Confidence, 0.8)
	require.NotNil(t, resp.Answerability)
	assert.True(t, resp.Answerability.CanAnswer)
	assert.Equal(t, SourceTemplate, resp.Source)
	assert.Contains(t, resp.Text, "$180.00 remaining of $500.00")
	assert.False(t, resp.Escalated)
	assert.False(t, resp.LowConfidence)

	e := f.sink.last()
	assert.Equal(t, "capability", e.RouteKind)
	assert.Equal(t, "budget_status", e.CapabilityID)
	assert.Equal(t, "template", e.AnswerSource)
	assert.Equal(t, string(observe.VerdictAllow), e.SafetyVerdict)
	assert.Empty(t, e.GuardFailures)
}

func TestNumericMismatchEscalates(t *testing.T) {
	standard := &mockGenerator{replies: []mockReply{{text: "You have $220 remaining in groceries."}}}
	escalated := &mockGenerator{replies: []mockReply{{text: "You have $180 remaining of $500 for groceries."}}}
	f := newFixture(t, standard, escalated)

	resp, err := f.orch.Handle(context.Background(), "How's my grocery budget doing?", groceryOnly(t))
	require.NoError(t, err)

	require.NotNil(t, resp.Review)
	assert.True(t, resp.Review.Escalate)
	assert.Equal(t, string(guard.CodeNumericMismatch), resp.Review.EscalationReason)
	assert.True(t, resp.Escalated)
	assert.Equal(t, SourceEscalated, resp.Source)
	assert.Equal(t, "You have $180 remaining of $500 for groceries.", resp.Text)
	assert.Equal(t, 50, resp.Tokens)

	require.Equal(t, 1, escalated.calls())
	p := escalated.prompt(0)
	assert.Equal(t, critic.DefaultMaxOutputTokens, p.MaxTokens)
	assert.Contains(t, p.User, string(guard.CodeNumericMismatch))

	e := f.sink.last()
	assert.Equal(t, string(guard.CodeNumericMismatch), e.EscalationReason)
	assert.Equal(t, []string{string(guard.CodeNumericMismatch)}, e.GuardFailures)
	assert.True(t, e.Escalated)
}

func TestEscalationFailureWithFailedGuardsFallsBack(t *testing.T) {
	standard := &mockGenerator{replies: []mockReply{{text: "You have $220 remaining."}}}
	escalated := &mockGenerator{replies: []mockReply{{err: common.ErrGenerationTimeout}}}
	f := newFixture(t, standard, escalated)

	resp, err := f.orch.Handle(context.Background(), "How's my grocery budget doing?", groceryOnly(t))
	require.NoError(t, err)

	assert.Equal(t, SourceFallback, resp.Source)
	require.NotNil(t, resp.Fallback)
	assert.Equal(t, fallback.KindGuided, resp.Fallback.Kind)
	assert.NotEmpty(t, resp.Actions)
	assert.NotContains(t, resp.Text, "$220")

	e := f.sink.last()
	assert.True(t, e.EscalationFailed)
	assert.Equal(t, "guided", e.FallbackKind)
	require.Len(t, e.ExternalErrors, 1)
	assert.Contains(t, e.ExternalErrors[0], llm.TierEscalated)
}

func TestEscalationFailureKeepsPassingAnswer(t *testing.T) {
	standard := &mockGenerator{replies: []mockReply{{text: "I think you have $180 remaining of $500."}}}
	f := newFixture(t, standard, nil)
	snap := groceryOnly(t)

	resp, err := f.orch.Handle(context.Background(), "How's my grocery budget doing?", snap)
	require.NoError(t, err)

	assert.Equal(t, critic.ReasonAmbiguity, resp.Review.EscalationReason)
	assert.True(t, resp.LowConfidence)
	assert.False(t, resp.Escalated)
	assert.Equal(t, SourceStandard, resp.Source)
	assert.Equal(t, "I think you have $180 remaining of $500.", resp.Text)
	assert.True(t, f.sink.last().EscalationFailed)

	// Low-confidence answers are never cached.
	again, err := f.orch.Handle(context.Background(), "How's my grocery budget doing?", snap)
	require.NoError(t, err)
	assert.False(t, again.CacheHit)
	assert.Equal(t, 2, standard.calls())
}

func TestStandardFailureUsesTemplate(t *testing.T) {
	standard := &mockGenerator{replies: []mockReply{{err: errors.New("connection refused")}}}
	f := newFixture(t, standard, nil)

	resp, err := f.orch.Handle(context.Background(), "How's my grocery budget doing?", groceryOnly(t))
	require.NoError(t, err)

	assert.Equal(t, SourceTemplate, resp.Source)
	assert.Contains(t, resp.Text, "$180.00 remaining")
	require.Len(t, f.sink.last().ExternalErrors, 1)
	assert.Contains(t, f.sink.last().ExternalErrors[0], llm.TierStandard)
}

func TestEmptySnapshotGetsSetup(t *testing.T) {
	f := newFixture(t, nil, nil)
	empty, err := model.NewSnapshot(model.Snapshot{AsOf: testNow, Budgets: []model.Budget{}, Goals: []model.Goal{}, Transactions: []model.Transaction{}})
	require.NoError(t, err)

	resp, err := f.orch.Handle(context.Background(), "how am I doing?", empty)
	require.NoError(t, err)

	require.NotNil(t, resp.Answerability)
	assert.False(t, resp.Answerability.CanAnswer)
	var missing []model.DataCategory
	for _, m := range resp.Answerability.MissingData {
		missing = append(missing, m.Category)
	}
	assert.ElementsMatch(t, []model.DataCategory{model.DataBudgets, model.DataGoals, model.DataTransactions}, missing)

	require.NotNil(t, resp.Fallback)
	assert.Equal(t, fallback.KindSetup, resp.Fallback.Kind)
	assert.NotEmpty(t, resp.Actions)
	assert.Equal(t, SourceFallback, resp.Source)
	assert.False(t, f.sink.last().CanAnswer)
}

func TestNilSnapshotIsEmpty(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp, err := f.orch.Handle(context.Background(), "how's my grocery budget?", nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Fallback)
	assert.Equal(t, fallback.KindSetup, resp.Fallback.Kind)
}

func TestUnknownQueryIsCollected(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp, err := f.orch.Handle(context.Background(), "penguins juggle flamingos", groceryOnly(t))
	require.NoError(t, err)

	assert.Equal(t, router.KindUnknownFallback, resp.Route.Kind)
	require.NotNil(t, resp.Fallback)
	assert.Equal(t, fallback.KindUnknownCollector, resp.Fallback.Kind)
	assert.Equal(t, 1, f.unknowns.Len())
	assert.Equal(t, "penguins juggle flamingos", f.unknowns.List()[0].Utterance)
}

func TestInputValidation(t *testing.T) {
	tests := []struct {
		wantErr   error
		name      string
		utterance string
	}{
		{name: "empty", utterance: "", wantErr: common.ErrEmptyUtterance},
		{name: "whitespace", utterance: " \t\n ", wantErr: common.ErrEmptyUtterance},
		{name: "no letters", utterance: "?!? 123", wantErr: common.ErrInvalidUtterance},
		{name: "too long", utterance: strings.Repeat("a", MaxUtteranceRunes+1), wantErr: common.ErrInvalidUtterance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			standard := &mockGenerator{}
			f := newFixture(t, standard, nil)

			_, err := f.orch.Handle(context.Background(), tt.utterance, groceryOnly(t))
			require.ErrorIs(t, err, tt.wantErr)

			var userErr *common.UserError
			require.ErrorAs(t, err, &userErr)
			assert.NotEmpty(t, userErr.UserMessage)
			assert.Equal(t, 0, standard.calls())
			assert.Equal(t, "rejected", f.sink.last().RouteKind)
		})
	}

	assert.NoError(t, ValidateUtterance(strings.Repeat("é", MaxUtteranceRunes)))
}

func TestResponseCache(t *testing.T) {
	standard := &mockGenerator{replies: []mockReply{{text: "You have $180 remaining of $500."}}}
	f := newFixture(t, standard, nil)
	snap := groceryOnly(t)

	first, err := f.orch.Handle(context.Background(), "How's my grocery budget doing?", snap)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := f.orch.Handle(context.Background(), "  how's my GROCERY budget   doing? ", snap)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Text, second.Text)
	assert.NotEqual(t, first.RequestID, second.RequestID)
	assert.Equal(t, 1, standard.calls())
	assert.True(t, f.sink.last().CacheHit)

	changed, err := model.NewSnapshot(model.Snapshot{
		AsOf:    testNow,
		Budgets: []model.Budget{{ID: "b1", Name: "Groceries", Category: "Groceries", Amount: 500, Spent: 400}},
	})
	require.NoError(t, err)
	third, err := f.orch.Handle(context.Background(), "How's my grocery budget doing?", changed)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.Equal(t, 2, standard.calls())
}

func TestFallbacksAreNotCached(t *testing.T) {
	f := newFixture(t, nil, nil)
	snap := groceryOnly(t)

	_, err := f.orch.Handle(context.Background(), "penguins juggle flamingos", snap)
	require.NoError(t, err)
	again, err := f.orch.Handle(context.Background(), "penguins juggle flamingos", snap)
	require.NoError(t, err)
	assert.False(t, again.CacheHit)
}

func TestSafetyModifiesAnswer(t *testing.T) {
	standard := &mockGenerator{replies: []mockReply{{text: "You have $180 remaining of $500. Grocery spending is not tax deductible."}}}
	f := newFixture(t, standard, nil)

	resp, err := f.orch.Handle(context.Background(), "How's my grocery budget doing?", groceryOnly(t))
	require.NoError(t, err)

	assert.Equal(t, observe.VerdictModify, resp.Safety.Verdict)
	assert.Contains(t, resp.Text, "This isn't tax advice")
	assert.Equal(t, "modify", f.sink.last().SafetyVerdict)
}

func TestCrisisAddsHandoff(t *testing.T) {
	f := newFixture(t, nil, nil)

	resp, err := f.orch.Handle(context.Background(), "how's my grocery budget, I can't afford rent", groceryOnly(t))
	require.NoError(t, err)

	assert.Equal(t, observe.VerdictEscalate, resp.Safety.Verdict)
	assert.Contains(t, resp.Text, observe.CrisisMessage)
	var ids []string
	for _, a := range resp.Actions {
		ids = append(ids, a.ID)
	}
	assert.Contains(t, ids, observe.HandoffActionID)
}

func TestCallerCancelStillResponds(t *testing.T) {
	block := make(chan struct{})
	client := &mockGenerator{block: block, replies: []mockReply{{text: "late answer"}}}
	tier := llm.NewTier(llm.TierStandard, client, time.Second, 0, nil)

	cat, err := catalog.Default()
	require.NoError(t, err)
	sink := &recordingSink{}
	orch, err := New(Config{Catalog: cat, Standard: tier, Sink: sink, Now: func() time.Time { return testNow }})
	require.NoError(t, err)

	snap := groceryOnly(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Response, 1)
	go func() {
		resp, _ := orch.Handle(ctx, "How's my grocery budget doing?", snap)
		done <- resp
	}()

	require.Eventually(t, func() bool { return client.calls() == 1 }, time.Second, time.Millisecond)
	cancel()
	resp := <-done

	assert.Equal(t, SourceTemplate, resp.Source)
	assert.Empty(t, sink.last().ExternalErrors)

	// Let the detached call finish so no goroutine outlives the test.
	close(block)
}

func TestEventPerRequest(t *testing.T) {
	f := newFixture(t, nil, nil)
	snap := groceryOnly(t)

	for _, u := range []string{"How's my grocery budget doing?", "penguins juggle flamingos", ""} {
		_, _ = f.orch.Handle(context.Background(), u, snap)
	}
	assert.Equal(t, 3, f.sink.count())
}

func TestCachedResponseIsIsolatedFromCallers(t *testing.T) {
	f := newFixture(t, nil, nil)
	snap := groceryOnly(t)
	utterance := "How's my grocery budget doing?"

	first, err := f.orch.Handle(context.Background(), utterance, snap)
	require.NoError(t, err)
	require.False(t, first.CacheHit)
	require.NotEmpty(t, first.Route.Passes)
	wantPasses := append([]router.Pass(nil), first.Route.Passes...)

	tamper := func(r *Response) {
		r.Slots[slots.TypeAmount] = slots.ResolvedSlot{Type: slots.TypeAmount, Value: 9999.0}
		r.Actions = append(r.Actions, fallback.Action{ID: "tampered"})
		r.Route.Passes[0] = "tampered"
		r.Route.Alternatives = append(r.Route.Alternatives, router.Candidate{CapabilityID: "tampered"})
		for i := range r.Route.Alternatives {
			r.Route.Alternatives[i].CapabilityID = "tampered"
		}
		r.Answerability.CanAnswer = false
	}
	check := func(r Response) {
		t.Helper()
		assert.True(t, r.CacheHit)
		assert.False(t, r.Slots.Has(slots.TypeAmount))
		assert.Empty(t, r.Actions)
		assert.Equal(t, wantPasses, r.Route.Passes)
		for _, alt := range r.Route.Alternatives {
			assert.NotEqual(t, "tampered", alt.CapabilityID)
		}
		require.NotNil(t, r.Answerability)
		assert.True(t, r.Answerability.CanAnswer)
	}

	tamper(&first)
	second, err := f.orch.Handle(context.Background(), utterance, snap)
	require.NoError(t, err)
	check(second)

	tamper(&second)
	third, err := f.orch.Handle(context.Background(), utterance, snap)
	require.NoError(t, err)
	check(third)
}

// unsupportedExecutor implements no capability at all.
type unsupportedExecutor struct{}

func (unsupportedExecutor) Execute(_ context.Context, req skills.Request) (skills.Result, error) {
	return skills.Result{}, fmt.Errorf("%s: %w", req.CapabilityID, common.ErrUnsupportedCapability)
}

func TestUnsupportedCapabilityWithoutStandardTierIsGuided(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	sink := &recordingSink{}
	unknowns := fallback.NewUnknownLog(fallback.UnknownLogConfig{})
	orch, err := New(Config{
		Catalog:  cat,
		Executor: unsupportedExecutor{},
		Sink:     sink,
		Unknowns: unknowns,
		Now:      func() time.Time { return testNow },
	})
	require.NoError(t, err)

	resp, err := orch.Handle(context.Background(), "How's my grocery budget doing?", groceryOnly(t))
	require.NoError(t, err)

	assert.Equal(t, "budget_status", resp.Route.CapabilityID)
	require.NotNil(t, resp.Fallback)
	assert.Equal(t, fallback.KindGuided, resp.Fallback.Kind)
	for _, a := range resp.Actions {
		assert.NotEqual(t, "ask:budget_status", a.ID)
	}
	assert.Zero(t, unknowns.Len())
	assert.Empty(t, sink.last().ExternalErrors)
	assert.Equal(t, string(fallback.KindGuided), sink.last().FallbackKind)
}

func TestMissingRequiredSlotAsksForIt(t *testing.T) {
	tests := []struct {
		name      string
		utterance string
		wantCap   string
		wantText  string
	}{
		{name: "no amount", utterance: "can I afford it?", wantCap: "affordability_check", wantText: "once I know the amount"},
		{name: "amount given", utterance: "can I afford a $50 dinner?", wantCap: "affordability_check"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, nil)

			resp, err := f.orch.Handle(context.Background(), tt.utterance, groceryOnly(t))
			require.NoError(t, err)
			assert.Equal(t, tt.wantCap, resp.Route.CapabilityID)

			if tt.wantText == "" {
				assert.NotContains(t, resp.Text, "once I know")
				return
			}
			require.NotNil(t, resp.Fallback)
			assert.Equal(t, fallback.KindGuided, resp.Fallback.Kind)
			assert.Contains(t, resp.Text, tt.wantText)
			assert.Contains(t, resp.Actions, fallback.ActionRephrase)
			assert.Zero(t, f.unknowns.Len())
		})
	}
}
