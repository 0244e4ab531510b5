package eligibility

import (
	"encoding/json"
	"sort"
	"strings"
)

// Rule type names as stored on part rule records.
const (
	TypeRequiredFor    = "required_for"
	TypeNotRequiredFor = "not_required_for"
	TypeNone           = "none"
)

// RuleSet is an immutable snapshot of part rules keyed by part name.
// Version identifies the stored data the snapshot was built from.
type RuleSet struct {
	version string
	rules   map[string]Rule
}

// NewRuleSet copies rules into a new snapshot.
func NewRuleSet(version string, rules map[string]Rule) RuleSet {
	rs := RuleSet{version: version, rules: make(map[string]Rule, len(rules))}
	for name, r := range rules {
		rs.rules[strings.TrimSpace(name)] = copyRule(r)
	}
	return rs
}

// FromRecord converts a stored rule type and brand list into a Rule.
// Unknown types and "none" yield an unrestricted rule.
func FromRecord(ruleType string, brands []string) Rule {
	switch ruleType {
	case TypeRequiredFor:
		return Rule{RequiredFor: append([]string(nil), brands...)}
	case TypeNotRequiredFor:
		return Rule{NotRequiredFor: append([]string(nil), brands...)}
	}
	return Rule{}
}

// Overlay returns defaults with every rule of stored replacing the default
// rule of the same part. Rules are replaced whole, never merged.
// The result carries the version of stored.
func Overlay(defaults, stored RuleSet) RuleSet {
	rs := RuleSet{version: stored.version, rules: make(map[string]Rule, len(defaults.rules)+len(stored.rules))}
	for name, r := range defaults.rules {
		rs.rules[name] = r
	}
	for name, r := range stored.rules {
		rs.rules[name] = r
	}
	return rs
}

// Version returns the snapshot version.
func (s RuleSet) Version() string { return s.version }

// Len returns the number of rules.
func (s RuleSet) Len() int { return len(s.rules) }

// Lookup returns the rule for part.
func (s RuleSet) Lookup(part string) (Rule, bool) {
	r, ok := s.rules[strings.TrimSpace(part)]
	return r, ok
}

// Parts returns the part names that have a rule, sorted.
func (s RuleSet) Parts() []string {
	names := make([]string, 0, len(s.rules))
	for name := range s.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type ruleSetJSON struct {
	Version string          `json:"version"`
	Rules   map[string]Rule `json:"rules"`
}

// MarshalJSON encodes the snapshot for shared caches.
func (s RuleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(ruleSetJSON{Version: s.version, Rules: s.rules})
}

// UnmarshalJSON decodes a snapshot written by MarshalJSON.
func (s *RuleSet) UnmarshalJSON(data []byte) error {
	var raw ruleSetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewRuleSet(raw.Version, raw.Rules)
	return nil
}

func copyRule(r Rule) Rule {
	return Rule{
		RequiredFor:    append([]string(nil), r.RequiredFor...),
		NotRequiredFor: append([]string(nil), r.NotRequiredFor...),
	}
}
