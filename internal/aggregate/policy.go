package aggregate

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/internal/provider"
)

// Policy declares per-category merge precedence: the exact adapter order
// is configuration, not tie-breaking logic buried in code. Adapters not
// named by the policy sort after the named ones, in registration order.
type Policy struct {
	Categories map[model.Category][]string `yaml:"categories"`
}

// DefaultPolicy favors first-party and direct-API sources over inferred
// research for each category.
func DefaultPolicy() *Policy {
	return &Policy{
		Categories: map[model.Category][]string{
			model.CategoryOverview: {"homepage", "perplexity_overview"},
			model.CategoryMarket:   {"github", "perplexity_market", "community"},
			model.CategoryPeople:   {"jobs", "perplexity_people"},
		},
	}
}

// LoadPolicy reads a precedence policy from a YAML file. An empty path
// returns the default policy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "policy: read %s", path)
	}

	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, eris.Wrapf(err, "policy: parse %s", path)
	}
	if p.Categories == nil {
		p.Categories = map[model.Category][]string{}
	}

	// Categories absent from the file keep their defaults.
	def := DefaultPolicy()
	for cat, order := range def.Categories {
		if _, ok := p.Categories[cat]; !ok {
			p.Categories[cat] = order
		}
	}
	return &p, nil
}

// Order sorts adapters into the category's precedence order. The sort is
// stable for adapters the policy does not mention.
func (p *Policy) Order(cat model.Category, adapters []provider.Adapter) []provider.Adapter {
	rank := map[string]int{}
	for i, name := range p.Categories[cat] {
		rank[name] = i
	}

	ordered := make([]provider.Adapter, len(adapters))
	copy(ordered, adapters)
	sort.SliceStable(ordered, func(i, j int) bool {
		return rankOf(rank, ordered[i]) < rankOf(rank, ordered[j])
	})
	return ordered
}

func rankOf(rank map[string]int, a provider.Adapter) int {
	if r, ok := rank[a.Name()]; ok {
		return r
	}
	return len(rank) + 1
}
