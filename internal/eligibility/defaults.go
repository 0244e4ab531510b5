package eligibility

import (
	_ "embed"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultsVersion is the version of the baked-in rule set.
const DefaultsVersion = "defaults"

// Defaults is the baked-in part catalog and its fallback rules.
type Defaults struct {
	Catalog []string
	Rules   RuleSet
}

type defaultsDoc struct {
	Catalog []string        `yaml:"catalog"`
	Rules   map[string]Rule `yaml:"rules"`
}

// LoadDefaults parses the embedded defaults document.
func LoadDefaults() (Defaults, error) {
	return ParseDefaults(defaultsYAML)
}

// ParseDefaults parses a defaults document. Catalog entries are trimmed,
// blank and duplicate entries dropped.
func ParseDefaults(data []byte) (Defaults, error) {
	var doc defaultsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Defaults{}, errors.Wrap(err, "parse eligibility defaults")
	}
	seen := make(map[string]bool, len(doc.Catalog))
	catalog := make([]string, 0, len(doc.Catalog))
	for _, p := range doc.Catalog {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		catalog = append(catalog, p)
	}
	return Defaults{Catalog: catalog, Rules: NewRuleSet(DefaultsVersion, doc.Rules)}, nil
}

// MustLoadDefaults is LoadDefaults that panics on a malformed embedded document.
func MustLoadDefaults() Defaults {
	d, err := LoadDefaults()
	if err != nil {
		panic(err)
	}
	return d
}
