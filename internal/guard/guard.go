// Package guard validates generated answers against the user's data. Every
// guard is pure: it never mutates its input and never calls out.
package guard

import (
	"sort"
	"strings"

	"github.com/Veraticus/fincoach/internal/model"
)

// Code identifies a specific guard failure.
type Code string

// Failure codes.
const (
	CodeNegativeAmount    Code = "numeric_negative_amount"
	CodeNumericMismatch   Code = "numeric_mismatch"
	CodeExceedsRemaining  Code = "numeric_exceeds_remaining"
	CodeDateOutOfRange    Code = "window_date_out_of_range"
	CodeUnsafePhrase      Code = "claim_unsafe_phrase"
	CodeMissingDisclaimer Code = "claim_missing_disclaimer"
)

// Epsilon is the tolerance for comparing currency figures.
const Epsilon = 0.01

// Disclaimer must appear in any answer tagged as strategy content.
const Disclaimer = "This is general information, not personalized financial advice."

// Input is everything a guard may look at. Focus names the budget or
// category the question was about, if any.
type Input struct {
	Window   model.Period
	Snapshot *model.Snapshot
	Answer   string
	Focus    string
	Strategy bool
}

// Failure is one violated property.
type Failure struct {
	Code   Code   `json:"code"`
	Detail string `json:"detail"`
}

// Report is one guard's result.
type Report struct {
	Guard    string    `json:"guard"`
	Failures []Failure `json:"failures,omitempty"`
	Passed   bool      `json:"passed"`
}

// Guard checks one narrow property of an answer.
type Guard interface {
	Name() string
	Check(in Input) Report
}

// BatteryReport is the union of every guard's result.
type BatteryReport struct {
	Reports  []Report  `json:"reports"`
	Failures []Failure `json:"failures,omitempty"`
	Passed   bool      `json:"passed"`
}

// Codes returns the distinct failure codes in the order they were reported.
func (r BatteryReport) Codes() []Code {
	var out []Code
	seen := make(map[Code]bool)
	for _, f := range r.Failures {
		if !seen[f.Code] {
			seen[f.Code] = true
			out = append(out, f.Code)
		}
	}
	return out
}

// Battery runs a fixed set of guards.
type Battery struct {
	guards []Guard
}

// NewBattery creates a battery from guards.
func NewBattery(guards ...Guard) *Battery {
	return &Battery{guards: guards}
}

// DefaultBattery returns the numeric, window and claim guards.
func DefaultBattery() *Battery {
	return NewBattery(NumericGuard{}, WindowGuard{}, ClaimGuard{})
}

// Run applies every guard to in.
func (b *Battery) Run(in Input) BatteryReport {
	if in.Snapshot == nil {
		in.Snapshot = &model.Snapshot{}
	}
	out := BatteryReport{Passed: true, Reports: make([]Report, 0, len(b.guards))}
	for _, g := range b.guards {
		report := g.Check(in)
		out.Reports = append(out.Reports, report)
		if !report.Passed {
			out.Passed = false
			out.Failures = append(out.Failures, report.Failures...)
		}
	}
	return out
}

func newReport(name string, failures []Failure) Report {
	sort.SliceStable(failures, func(i, j int) bool {
		return failures[i].Code < failures[j].Code
	})
	return Report{Guard: name, Passed: len(failures) == 0, Failures: failures}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
