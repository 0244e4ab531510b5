// Package eligibility decides which parts are offered for a vehicle brand.
//
// Evaluation is a pure function of (part name, brand, rule set). Rules are
// looked up by trimmed part name; brands are compared after trimming and
// Unicode case folding, so "Volkswagen" matches " volkswagen".
package eligibility

import (
	"strings"

	"golang.org/x/text/cases"
)

// Rule restricts a part to, or excludes it from, a set of brands.
type Rule struct {
	RequiredFor    []string `yaml:"required_for,omitempty" json:"required_for,omitempty"`
	NotRequiredFor []string `yaml:"not_required_for,omitempty" json:"not_required_for,omitempty"`
}

// NormalizeBrand returns the comparison form of a brand name.
func NormalizeBrand(brand string) string {
	// A Caser keeps state and is not safe for concurrent use.
	return cases.Fold().String(strings.TrimSpace(brand))
}

func containsBrand(brands []string, brand string) bool {
	want := NormalizeBrand(brand)
	for _, b := range brands {
		if NormalizeBrand(b) == want {
			return true
		}
	}
	return false
}

// IsAvailable reports whether part should be offered for brand.
// The first matching step wins:
//  1. no rule for the part: available
//  2. brand listed in NotRequiredFor: not available
//  3. RequiredFor non-empty: available only for listed brands
//  4. otherwise available
func IsAvailable(part, brand string, rules RuleSet) bool {
	rule, ok := rules.Lookup(part)
	if !ok {
		return true
	}
	if containsBrand(rule.NotRequiredFor, brand) {
		return false
	}
	if len(rule.RequiredFor) > 0 {
		return containsBrand(rule.RequiredFor, brand)
	}
	return true
}

// FilterAvailable returns the parts offered for brand, in input order.
func FilterAvailable(parts []string, brand string, rules RuleSet) []string {
	return filter(parts, brand, rules, true)
}

// FilterUnavailable returns the parts not offered for brand, in input order.
func FilterUnavailable(parts []string, brand string, rules RuleSet) []string {
	return filter(parts, brand, rules, false)
}

func filter(parts []string, brand string, rules RuleSet, keep bool) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if IsAvailable(p, brand, rules) == keep {
			out = append(out, p)
		}
	}
	return out
}
