package observe

import (
	"context"
	"log/slog"
	"time"
)

// Event is the single structured record emitted per request.
type Event struct {
	Timestamp               time.Time     `json:"timestamp"`
	ID                      string        `json:"id"`
	Utterance               string        `json:"utterance"`
	RouteKind               string        `json:"route_kind"`
	RouteReason             string        `json:"route_reason,omitempty"`
	CapabilityID            string        `json:"capability_id,omitempty"`
	EscalationReason        string        `json:"escalation_reason,omitempty"`
	FallbackKind            string        `json:"fallback_kind,omitempty"`
	SafetyVerdict           string        `json:"safety_verdict"`
	AnswerSource            string        `json:"answer_source,omitempty"`
	RoutePasses             []string      `json:"route_passes,omitempty"`
	GuardFailures           []string      `json:"guard_failures,omitempty"`
	PerfBreaches            []string      `json:"perf_breaches,omitempty"`
	ExternalErrors          []string      `json:"external_errors,omitempty"`
	RouteConfidence         float64       `json:"route_confidence"`
	AnswerabilityConfidence float64       `json:"answerability_confidence"`
	Latency                 time.Duration `json:"latency"`
	Tokens                  int           `json:"tokens"`
	CanAnswer               bool          `json:"can_answer"`
	Escalated               bool          `json:"escalated"`
	EscalationFailed        bool          `json:"escalation_failed"`
	LowConfidence           bool          `json:"low_confidence"`
	CacheHit                bool          `json:"cache_hit"`
}

// Sink receives events. Emit must not block the request path.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event)

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, e Event) { f(ctx, e) }

// NopSink discards events.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(context.Context, Event) {}

// LogSink writes each event as one structured debug log line.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit implements Sink.
func (s *LogSink) Emit(ctx context.Context, e Event) {
	s.logger.DebugContext(ctx, "request handled",
		"event_id", e.ID,
		"route_kind", e.RouteKind,
		"capability", e.CapabilityID,
		"route_confidence", e.RouteConfidence,
		"can_answer", e.CanAnswer,
		"guard_failures", e.GuardFailures,
		"escalated", e.Escalated,
		"escalation_reason", e.EscalationReason,
		"fallback_kind", e.FallbackKind,
		"safety_verdict", e.SafetyVerdict,
		"latency", e.Latency,
		"tokens", e.Tokens,
		"cache_hit", e.CacheHit)
}

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		s.Emit(ctx, e)
	}
}
