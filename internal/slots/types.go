// Package slots extracts typed parameters (time periods, amounts, categories,
// merchants, accounts and goals) from an utterance, using the snapshot for
// context.
package slots

import (
	"fmt"
	"time"

	"github.com/Veraticus/fincoach/internal/model"
)

// Type identifies a kind of slot.
type Type string

// Slot types.
const (
	TypeTimePeriod Type = "time_period"
	TypeAmount     Type = "amount"
	TypeCategory   Type = "category"
	TypeMerchant   Type = "merchant"
	TypeAccount    Type = "account"
	TypeGoal       Type = "goal"
)

// AllTypes returns every slot type in resolution order.
func AllTypes() []Type {
	return []Type{TypeTimePeriod, TypeAmount, TypeCategory, TypeMerchant, TypeAccount, TypeGoal}
}

// Valid reports whether t is a known slot type.
func (t Type) Valid() bool {
	for _, known := range AllTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Provenance records where a slot value came from.
type Provenance string

// Provenance tiers, strongest first.
const (
	ProvenanceExplicit Provenance = "explicit"
	ProvenanceContext  Provenance = "context"
	ProvenanceInferred Provenance = "inferred"
	ProvenanceDefault  Provenance = "default"
)

// rank orders provenance tiers; lower wins. Context and inferred share a tier.
func (p Provenance) rank() int {
	switch p {
	case ProvenanceExplicit:
		return 0
	case ProvenanceContext, ProvenanceInferred:
		return 1
	default:
		return 2
	}
}

// ResolvedSlot is one extracted parameter.
type ResolvedSlot struct {
	Value       any        `json:"value"`
	Type        Type       `json:"type"`
	Provenance  Provenance `json:"provenance"`
	MatchedText string     `json:"matched_text,omitempty"`
	Confidence  float64    `json:"confidence"`
}

// Period returns the slot value as a time period.
func (s ResolvedSlot) Period() (model.Period, bool) {
	p, ok := s.Value.(model.Period)
	return p, ok
}

// Amount returns the slot value as a dollar amount.
func (s ResolvedSlot) Amount() (float64, bool) {
	a, ok := s.Value.(float64)
	return a, ok
}

// Text returns the slot value as a string (category, merchant, account or goal).
func (s ResolvedSlot) Text() (string, bool) {
	str, ok := s.Value.(string)
	return str, ok
}

// String implements fmt.Stringer.
func (s ResolvedSlot) String() string {
	switch v := s.Value.(type) {
	case model.Period:
		return fmt.Sprintf("%s=%s", s.Type, v.Label)
	case float64:
		return fmt.Sprintf("%s=$%.2f", s.Type, v)
	default:
		return fmt.Sprintf("%s=%v", s.Type, v)
	}
}

// Set maps slot types to their winning value. Missing keys mean unresolved.
type Set map[Type]ResolvedSlot

// Has reports whether a slot of type t was resolved.
func (s Set) Has(t Type) bool {
	_, ok := s[t]
	return ok
}

// Text returns the string value of slot t, or "".
func (s Set) Text(t Type) string {
	slot, ok := s[t]
	if !ok {
		return ""
	}
	str, _ := slot.Text()
	return str
}

// Period returns the resolved time period or the zero period.
func (s Set) Period() model.Period {
	slot, ok := s[TypeTimePeriod]
	if !ok {
		return model.Period{}
	}
	p, _ := slot.Period()
	return p
}

// Amount returns the resolved amount and whether one was present.
func (s Set) Amount() (float64, bool) {
	slot, ok := s[TypeAmount]
	if !ok {
		return 0, false
	}
	return slot.Amount()
}

// Context is what resolvers may consult besides the utterance.
type Context struct {
	Now      time.Time
	Snapshot *model.Snapshot
}
