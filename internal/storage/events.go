package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Veraticus/fincoach/internal/observe"
)

// eventDetail holds the list-valued event fields, stored as JSON.
type eventDetail struct {
	RoutePasses    []string `json:"route_passes,omitempty"`
	GuardFailures  []string `json:"guard_failures,omitempty"`
	PerfBreaches   []string `json:"perf_breaches,omitempty"`
	ExternalErrors []string `json:"external_errors,omitempty"`
}

// SaveEvent stores one request event.
func (s *SQLiteStorage) SaveEvent(ctx context.Context, e observe.Event) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(e.ID, "id"); err != nil {
		return err
	}

	detail, err := json.Marshal(eventDetail{
		RoutePasses:    e.RoutePasses,
		GuardFailures:  e.GuardFailures,
		PerfBreaches:   e.PerfBreaches,
		ExternalErrors: e.ExternalErrors,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event detail: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO events (
			id, timestamp, route_kind, route_reason, capability_id, route_confidence,
			answer_source, fallback_kind, escalation_reason, safety_verdict,
			latency_ms, tokens, escalated, escalation_failed, low_confidence, cache_hit, detail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp.UTC(), e.RouteKind, e.RouteReason, e.CapabilityID, e.RouteConfidence,
		e.AnswerSource, e.FallbackKind, e.EscalationReason, e.SafetyVerdict,
		e.Latency.Milliseconds(), e.Tokens, e.Escalated, e.EscalationFailed, e.LowConfidence, e.CacheHit,
		string(detail))
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// Emit implements observe.Sink. Failures are logged, never returned.
func (s *SQLiteStorage) Emit(ctx context.Context, e observe.Event) {
	if err := s.SaveEvent(ctx, e); err != nil {
		s.logger.Warn("failed to store event", "id", e.ID, "error", err)
	}
}

// Count is a labelled tally.
type Count struct {
	Label string
	N     int
}

// EventStats aggregates stored events.
type EventStats struct {
	RouteKinds         []Count
	EscalationReasons  []Count
	SafetyVerdicts     []Count
	FallbackKinds      []Count
	Capabilities       []Count
	MeanLatency        time.Duration
	Total              int
	Escalated          int
	EscalationFailures int
	LowConfidence      int
	CacheHits          int
	MeanTokens         float64
}

// EventStats aggregates events recorded at or after since.
func (s *SQLiteStorage) EventStats(ctx context.Context, since time.Time) (EventStats, error) {
	if err := validateContext(ctx); err != nil {
		return EventStats{}, err
	}

	var stats EventStats
	var meanLatency, meanTokens *float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(latency_ms), AVG(tokens),
			COALESCE(SUM(escalated), 0), COALESCE(SUM(escalation_failed), 0),
			COALESCE(SUM(low_confidence), 0), COALESCE(SUM(cache_hit), 0)
		FROM events WHERE timestamp >= ?`, since.UTC()).
		Scan(&stats.Total, &meanLatency, &meanTokens,
			&stats.Escalated, &stats.EscalationFailures, &stats.LowConfidence, &stats.CacheHits)
	if err != nil {
		return EventStats{}, fmt.Errorf("failed to aggregate events: %w", err)
	}
	if meanLatency != nil {
		stats.MeanLatency = time.Duration(*meanLatency * float64(time.Millisecond))
	}
	if meanTokens != nil {
		stats.MeanTokens = *meanTokens
	}

	groups := []struct {
		dest   *[]Count
		column string
	}{
		{&stats.RouteKinds, "route_kind"},
		{&stats.EscalationReasons, "escalation_reason"},
		{&stats.SafetyVerdicts, "safety_verdict"},
		{&stats.FallbackKinds, "fallback_kind"},
		{&stats.Capabilities, "capability_id"},
	}
	for _, g := range groups {
		counts, err := s.countBy(ctx, g.column, since)
		if err != nil {
			return EventStats{}, err
		}
		*g.dest = counts
	}
	return stats, nil
}

// countBy tallies non-empty values of column. column is never user input.
func (s *SQLiteStorage) countBy(ctx context.Context, column string, since time.Time) ([]Count, error) {
	query := fmt.Sprintf(`SELECT %[1]s, COUNT(*) FROM events WHERE timestamp >= ? AND %[1]s != '' GROUP BY %[1]s`, column)
	rows, err := s.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to count events by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	var counts []Count
	for rows.Next() {
		var c Count
		if err := rows.Scan(&c.Label, &c.N); err != nil {
			return nil, fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].N != counts[j].N {
			return counts[i].N > counts[j].N
		}
		return counts[i].Label < counts[j].Label
	})
	return counts, nil
}
