package observe

import (
	"log/slog"
	"time"

	"github.com/Veraticus/fincoach/internal/common"
)

// Default performance budgets.
const (
	DefaultMaxLatency = 3 * time.Second
	DefaultMaxTokens  = 1200
)

// PerfThresholds are the per-request budgets.
type PerfThresholds struct {
	MaxLatency time.Duration
	MaxTokens  int
}

// PerfReport records a request's measurements and which budgets it broke.
type PerfReport struct {
	Breaches []string      `json:"breaches,omitempty"`
	Latency  time.Duration `json:"latency"`
	Tokens   int           `json:"tokens"`
}

// Breached reports whether any budget was exceeded.
func (r PerfReport) Breached() bool { return len(r.Breaches) > 0 }

// PerfMonitor flags slow or expensive requests. It never blocks them.
type PerfMonitor struct {
	logger     *slog.Logger
	thresholds PerfThresholds
}

// NewPerfMonitor creates a monitor. Zero thresholds use the defaults.
func NewPerfMonitor(t PerfThresholds, logger *slog.Logger) *PerfMonitor {
	if t.MaxLatency <= 0 {
		t.MaxLatency = DefaultMaxLatency
	}
	if t.MaxTokens <= 0 {
		t.MaxTokens = DefaultMaxTokens
	}
	return &PerfMonitor{thresholds: t, logger: common.LoggerOrDefault(logger)}
}

// Check compares one request against the budgets.
func (m *PerfMonitor) Check(latency time.Duration, tokens int) PerfReport {
	report := PerfReport{Latency: latency, Tokens: tokens}
	if latency > m.thresholds.MaxLatency {
		report.Breaches = append(report.Breaches, "latency")
	}
	if tokens > m.thresholds.MaxTokens {
		report.Breaches = append(report.Breaches, "tokens")
	}
	if report.Breached() {
		m.logger.Warn("performance budget exceeded",
			"latency", latency,
			"max_latency", m.thresholds.MaxLatency,
			"tokens", tokens,
			"max_tokens", m.thresholds.MaxTokens,
			"breaches", report.Breaches)
	}
	return report
}
