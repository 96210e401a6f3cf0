// Package catalog holds the versioned set of capabilities the assistant can
// answer, with their data requirements, parameters and routing rules.
package catalog

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/model"
	"github.com/Veraticus/fincoach/internal/slots"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Requirement is a minimum count of one data category.
type Requirement struct {
	Category model.DataCategory `yaml:"category"`
	Min      int                `yaml:"min"`
}

// Param describes one slot a capability accepts.
type Param struct {
	Name     string     `yaml:"name"`
	Type     slots.Type `yaml:"type"`
	Required bool       `yaml:"required"`
}

// Capability is one answerable intent.
type Capability struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Example     string        `yaml:"example"`
	Requires    []Requirement `yaml:"requires"`
	Optional    []Requirement `yaml:"optional"`
	Params      []Param       `yaml:"params"`
	Keywords    []string      `yaml:"keywords"`
	Priority    int           `yaml:"priority"`
	Strategy    bool          `yaml:"strategy"`
}

// RequiredSlots returns the slot types that must be present.
func (c Capability) RequiredSlots() []slots.Type {
	var out []slots.Type
	for _, p := range c.Params {
		if p.Required {
			out = append(out, p.Type)
		}
	}
	return out
}

// Rule is one entry in the pattern-rule table.
type Rule struct {
	compiled     *regexp.Regexp
	Capability   string     `yaml:"capability"`
	Pattern      string     `yaml:"pattern"`
	RequiresSlot slots.Type `yaml:"requires_slot"`
	Confidence   float64    `yaml:"confidence"`
	Priority     int        `yaml:"priority"`
}

// Match returns the matched text when the rule's pattern matches s.
func (r Rule) Match(s string) (string, bool) {
	if r.compiled == nil {
		return "", false
	}
	loc := r.compiled.FindStringIndex(s)
	if loc == nil {
		return "", false
	}
	return s[loc[0]:loc[1]], true
}

type document struct {
	Version      string       `yaml:"version"`
	Capabilities []Capability `yaml:"capabilities"`
	Rules        []Rule       `yaml:"rules"`
}

// Catalog is immutable after Load.
type Catalog struct {
	byID         map[string]int
	version      string
	capabilities []Capability
	rules        []Rule
}

// Default loads the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Load(defaultCatalog)
}

// Load parses and validates a catalog document. Any problem is returned as
// ErrInvalidCatalog; callers treat it as fatal at startup.
func Load(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidCatalog, err)
	}

	c := &Catalog{
		version:      doc.Version,
		capabilities: doc.Capabilities,
		byID:         make(map[string]int, len(doc.Capabilities)),
	}
	for i, capability := range doc.Capabilities {
		c.byID[capability.ID] = i
	}

	rules := make([]Rule, 0, len(doc.Rules))
	for i, r := range doc.Rules {
		pattern := r.Pattern
		if !strings.HasPrefix(pattern, "(?i)") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: rule %d (%s): %w", common.ErrInvalidCatalog, i, r.Capability, err)
		}
		r.compiled = re
		rules = append(rules, r)
	}
	// Highest priority first; equal priorities keep file order.
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	c.rules = rules

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks ids, requirements, params and rule references.
func (c *Catalog) Validate() error {
	var problems []string
	if c.version == "" {
		problems = append(problems, "missing version")
	}
	if len(c.capabilities) == 0 {
		problems = append(problems, "no capabilities")
	}

	seen := make(map[string]bool, len(c.capabilities))
	for _, capability := range c.capabilities {
		if capability.ID == "" {
			problems = append(problems, "capability with empty id")
			continue
		}
		if seen[capability.ID] {
			problems = append(problems, fmt.Sprintf("duplicate capability %q", capability.ID))
		}
		seen[capability.ID] = true

		for _, req := range append(append([]Requirement{}, capability.Requires...), capability.Optional...) {
			if _, err := model.ParseDataCategory(string(req.Category)); err != nil {
				problems = append(problems, fmt.Sprintf("%s: unknown data category %q", capability.ID, req.Category))
			}
			if req.Min < 1 {
				problems = append(problems, fmt.Sprintf("%s: requirement on %s must be at least 1", capability.ID, req.Category))
			}
		}
		for _, p := range capability.Params {
			if !p.Type.Valid() {
				problems = append(problems, fmt.Sprintf("%s: param %q has unknown slot type %q", capability.ID, p.Name, p.Type))
			}
		}
	}

	for _, r := range c.rules {
		if !seen[r.Capability] {
			problems = append(problems, fmt.Sprintf("rule references unknown capability %q", r.Capability))
		}
		if r.Confidence <= 0 || r.Confidence > 1 {
			problems = append(problems, fmt.Sprintf("rule for %s has confidence %.2f outside (0,1]", r.Capability, r.Confidence))
		}
		if r.RequiresSlot != "" && !r.RequiresSlot.Valid() {
			problems = append(problems, fmt.Sprintf("rule for %s requires unknown slot %q", r.Capability, r.RequiresSlot))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", common.ErrInvalidCatalog, strings.Join(problems, "; "))
	}
	return nil
}

// Version returns the catalog version string.
func (c *Catalog) Version() string { return c.version }

// Len returns the number of capabilities.
func (c *Catalog) Len() int { return len(c.capabilities) }

// Get looks up a capability by id.
func (c *Catalog) Get(id string) (Capability, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Capability{}, false
	}
	return c.capabilities[i], true
}

// Has reports whether id names a capability.
func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Capabilities returns a copy of every capability in file order.
func (c *Catalog) Capabilities() []Capability {
	out := make([]Capability, len(c.capabilities))
	copy(out, c.capabilities)
	return out
}

// IDs returns every capability id in file order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.capabilities))
	for i, capability := range c.capabilities {
		ids[i] = capability.ID
	}
	return ids
}

// Rules returns the pattern rules, highest priority first.
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// ByPriority returns capabilities ordered by fallback priority, highest first.
func (c *Catalog) ByPriority() []Capability {
	out := c.Capabilities()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}
