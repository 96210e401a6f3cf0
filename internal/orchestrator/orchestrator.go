// Package orchestrator runs one request through the pipeline: slot
// resolution, routing, the data-sufficiency gate, capability execution,
// generation, validation with escalation, safety and observability. Every
// request gets a response; failures past input validation end in a fallback.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Veraticus/fincoach/internal/answerability"
	"github.com/Veraticus/fincoach/internal/cache"
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

const tracerName = "github.com/Veraticus/fincoach/internal/orchestrator"

// Response cache defaults.
const (
	DefaultResponseTTL       = 10 * time.Minute
	DefaultResponseCacheSize = 256
)

// Source says where the released text came from.
type Source string

// Answer sources.
const (
	SourceTemplate  Source = "template"
	SourceStandard  Source = "standard"
	SourceEscalated Source = "escalated"
	SourceFallback  Source = "fallback"
)

// Response is what the user sees plus the pipeline's reasoning.
type Response struct {
	Slots         slots.Set             `json:"slots,omitempty"`
	Answerability *answerability.Result `json:"answerability,omitempty"`
	Fallback      *fallback.Response    `json:"fallback,omitempty"`
	Review        *critic.Report        `json:"review,omitempty"`
	RequestID     string                `json:"request_id"`
	Text          string                `json:"text"`
	Source        Source                `json:"source"`
	Safety        observe.SafetyResult  `json:"safety"`
	Route         router.Decision       `json:"route"`
	Actions       []fallback.Action     `json:"actions,omitempty"`
	Tokens        int                   `json:"tokens"`
	Escalated     bool                  `json:"escalated"`
	LowConfidence bool                  `json:"low_confidence"`
	CacheHit      bool                  `json:"cache_hit"`
}

// Config wires the pipeline. Only Catalog is required; the rest default to
// instances built from it. Standard and Escalated may be nil, in which case
// answers come from the executor's deterministic summaries and escalation
// always fails over.
type Config struct {
	Catalog            *catalog.Catalog
	Resolver           *slots.Resolver
	Router             *router.Router
	Gate               *answerability.Gate
	Executor           skills.Executor
	Standard           llm.Client
	Escalated          llm.Client
	Fallback           *fallback.Generator
	Unknowns           *fallback.UnknownLog
	Battery            *guard.Battery
	Critic             *critic.Critic
	Safety             *observe.SafetyClassifier
	Perf               *observe.PerfMonitor
	Sink               observe.Sink
	Logger             *slog.Logger
	TracerProvider     trace.TracerProvider
	Now                func() time.Time
	ResponseTTL        time.Duration
	ResponseCacheSize  int
	EscalatedMaxTokens int
}

type responseKey struct {
	utterance   string
	fingerprint string
}

// Orchestrator is safe for concurrent use. Its only mutable state is the
// response cache and whatever the gate and unknown log hold.
type Orchestrator struct {
	catalog            *catalog.Catalog
	resolver           *slots.Resolver
	router             *router.Router
	gate               *answerability.Gate
	executor           skills.Executor
	standard           llm.Client
	escalated          llm.Client
	fallback           *fallback.Generator
	battery            *guard.Battery
	critic             *critic.Critic
	safety             *observe.SafetyClassifier
	perf               *observe.PerfMonitor
	sink               observe.Sink
	logger             *slog.Logger
	tracer             trace.Tracer
	now                func() time.Time
	responses          *cache.Cache[responseKey, Response]
	escalatedMaxTokens int
}

// New builds an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("orchestrator: capability catalog is required")
	}
	logger := common.LoggerOrDefault(cfg.Logger)

	o := &Orchestrator{
		catalog:            cfg.Catalog,
		resolver:           cfg.Resolver,
		router:             cfg.Router,
		gate:               cfg.Gate,
		executor:           cfg.Executor,
		standard:           cfg.Standard,
		escalated:          cfg.Escalated,
		fallback:           cfg.Fallback,
		battery:            cfg.Battery,
		critic:             cfg.Critic,
		safety:             cfg.Safety,
		perf:               cfg.Perf,
		sink:               cfg.Sink,
		logger:             logger,
		now:                cfg.Now,
		escalatedMaxTokens: cfg.EscalatedMaxTokens,
	}
	if o.resolver == nil {
		o.resolver = slots.NewResolver(logger)
	}
	if o.router == nil {
		o.router = router.New(cfg.Catalog, router.WithLogger(logger))
	}
	if o.gate == nil {
		o.gate = answerability.NewGate(cfg.Catalog, answerability.DefaultTTL, answerability.DefaultMaxEntries, logger)
	}
	if o.executor == nil {
		o.executor = skills.NewLocal(logger)
	}
	if o.fallback == nil {
		unknowns := cfg.Unknowns
		if unknowns == nil {
			unknowns = fallback.NewUnknownLog(fallback.UnknownLogConfig{Logger: logger})
		}
		o.fallback = fallback.NewGenerator(cfg.Catalog, o.gate, unknowns, logger)
	}
	if o.battery == nil {
		o.battery = guard.DefaultBattery()
	}
	if o.critic == nil {
		o.critic = critic.New()
	}
	if o.safety == nil {
		o.safety = observe.NewSafetyClassifier()
	}
	if o.perf == nil {
		o.perf = observe.NewPerfMonitor(observe.PerfThresholds{}, logger)
	}
	if o.sink == nil {
		o.sink = observe.NopSink{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	o.tracer = tp.Tracer(tracerName)
	if o.escalatedMaxTokens <= 0 {
		o.escalatedMaxTokens = critic.DefaultMaxOutputTokens
	}

	ttl := cfg.ResponseTTL
	if ttl <= 0 {
		ttl = DefaultResponseTTL
	}
	size := cfg.ResponseCacheSize
	if size <= 0 {
		size = DefaultResponseCacheSize
	}
	o.responses = cache.New[responseKey, Response](ttl, size, cache.WithClock[responseKey, Response](o.now))
	return o, nil
}

// turn carries one request's working state between stages.
type turn struct {
	start     time.Time
	event     observe.Event
	snap      *model.Snapshot
	utterance string
	resp      Response
}

// Handle answers one utterance against snap. The only error it returns is a
// *common.UserError for input that cannot be processed at all; everything
// else, including generation failures, resolves to a Response.
func (o *Orchestrator) Handle(ctx context.Context, utterance string, snap *model.Snapshot) (Response, error) {
	start := o.now()
	requestID := uuid.NewString()

	ctx, span := o.tracer.Start(ctx, "orchestrator.handle",
		trace.WithAttributes(attribute.String("request_id", requestID)))
	defer span.End()

	t := &turn{
		start:     start,
		utterance: utterance,
		snap:      snap,
		resp:      Response{RequestID: requestID},
		event:     observe.Event{ID: requestID, Timestamp: start, Utterance: utterance},
	}

	if err := ValidateUtterance(utterance); err != nil {
		t.event.RouteKind = "rejected"
		t.event.Latency = o.now().Sub(start)
		o.sink.Emit(ctx, t.event)
		span.SetAttributes(attribute.Bool("rejected", true))
		return Response{}, err
	}
	if t.snap == nil {
		t.snap = model.EmptySnapshot()
	}

	key := responseKey{utterance: normalizeUtterance(utterance), fingerprint: t.snap.ValueFingerprint()}
	if cached, ok := o.responses.Get(key); ok {
		t.resp = cloneResponse(cached)
		t.resp.RequestID = requestID
		t.resp.CacheHit = true
		span.SetAttributes(
			attribute.Bool("cache_hit", true),
			attribute.String("route.capability", t.resp.Route.CapabilityID),
			attribute.String("answer.source", string(t.resp.Source)),
		)
		o.finish(ctx, t)
		return t.resp, nil
	}

	o.run(ctx, t)
	span.SetAttributes(
		attribute.String("route.kind", string(t.resp.Route.Kind)),
		attribute.String("route.capability", t.resp.Route.CapabilityID),
		attribute.Float64("route.confidence", t.resp.Route.Confidence),
		attribute.String("answer.source", string(t.resp.Source)),
		attribute.Bool("escalated", t.resp.Escalated),
		attribute.String("safety.verdict", string(t.resp.Safety.Verdict)),
	)
	if t.resp.Fallback != nil {
		span.SetAttributes(attribute.String("fallback.kind", string(t.resp.Fallback.Kind)))
	}

	o.finish(ctx, t)
	if cacheable(t.resp) {
		o.responses.Set(key, cloneResponse(t.resp))
	}
	return t.resp, nil
}

func (o *Orchestrator) run(ctx context.Context, t *turn) {
	now := o.now()
	t.resp.Slots = o.resolver.Resolve(t.utterance, slots.Context{Now: now, Snapshot: t.snap})

	decision := o.router.Route(ctx, t.utterance, t.resp.Slots)
	t.resp.Route = decision
	candidates := candidateIDs(decision)

	switch decision.Kind {
	case router.KindGuidedFallback:
		o.fallBack(ctx, t, fallback.ReasonUnclearIntent, candidates)
		return
	case router.KindUnknownFallback:
		o.fallBack(ctx, t, fallback.ReasonNoMatch, candidates)
		return
	}

	result, err := o.gate.Check(decision.CapabilityID, t.snap)
	if err != nil {
		o.logger.Error("router chose a capability the gate does not know", "capability", decision.CapabilityID, "error", err)
		o.fallBack(ctx, t, fallback.ReasonNoMatch, candidates)
		return
	}
	t.resp.Answerability = &result
	if !result.CanAnswer {
		o.logger.Info("capability not answerable with current data",
			"capability", decision.CapabilityID,
			"missing", len(result.MissingData))
		o.fallBack(ctx, t, fallback.ReasonNotAnswerable, candidates)
		return
	}

	o.answer(ctx, t, now, candidates)
}

// fallBack releases a fallback response for reason.
func (o *Orchestrator) fallBack(ctx context.Context, t *turn, reason fallback.Reason, candidates []string) {
	o.fallBackWith(ctx, t, fallback.Request{Reason: reason, Candidates: candidates})
}

// fallBackWith releases a fallback for req, filling in the turn's snapshot,
// utterance and answerability.
func (o *Orchestrator) fallBackWith(ctx context.Context, t *turn, req fallback.Request) {
	req.Snapshot = t.snap
	req.Answerability = t.resp.Answerability
	req.Utterance = t.utterance
	fb := o.fallback.Generate(ctx, req)
	t.resp.Fallback = &fb
	t.resp.Source = SourceFallback
	t.resp.Text = fb.Message
	t.resp.Actions = fb.Actions
	o.applySafety(t)
}

func (o *Orchestrator) applySafety(t *turn) {
	t.resp.Safety = o.safety.Classify(t.utterance, t.resp.Text)
	t.resp.Text = t.resp.Safety.Text
	if t.resp.Safety.Handoff {
		t.resp.Actions = append(t.resp.Actions, fallback.Action{ID: observe.HandoffActionID, Label: "Talk to a person"})
	}
}

// finish measures the request and emits its event.
func (o *Orchestrator) finish(ctx context.Context, t *turn) {
	latency := o.now().Sub(t.start)
	perf := o.perf.Check(latency, t.resp.Tokens)

	e := &t.event
	e.Latency = latency
	e.Tokens = t.resp.Tokens
	e.PerfBreaches = perf.Breaches
	e.CacheHit = t.resp.CacheHit
	e.RouteKind = string(t.resp.Route.Kind)
	e.RouteReason = t.resp.Route.Reason
	e.CapabilityID = t.resp.Route.CapabilityID
	e.RouteConfidence = t.resp.Route.Confidence
	for _, p := range t.resp.Route.Passes {
		e.RoutePasses = append(e.RoutePasses, string(p))
	}
	if a := t.resp.Answerability; a != nil {
		e.CanAnswer = a.CanAnswer
		e.AnswerabilityConfidence = a.Confidence
	}
	if t.resp.Fallback != nil {
		e.FallbackKind = string(t.resp.Fallback.Kind)
	}
	if r := t.resp.Review; r != nil {
		e.EscalationReason = r.EscalationReason
	}
	e.Escalated = t.resp.Escalated
	e.LowConfidence = t.resp.LowConfidence
	e.SafetyVerdict = string(t.resp.Safety.Verdict)
	e.AnswerSource = string(t.resp.Source)

	o.sink.Emit(ctx, *e)
}

// cacheable reports whether a response may be replayed: accepted answers only.
func cacheable(r Response) bool {
	switch r.Source {
	case SourceTemplate, SourceStandard, SourceEscalated:
	default:
		return false
	}
	return !r.LowConfidence && r.Safety.Verdict != observe.VerdictEscalate && r.Safety.Verdict != observe.VerdictBlock
}

func candidateIDs(d router.Decision) []string {
	var ids []string
	if d.CapabilityID != "" {
		ids = append(ids, d.CapabilityID)
	}
	for _, c := range d.Alternatives {
		ids = append(ids, c.CapabilityID)
	}
	return ids
}
