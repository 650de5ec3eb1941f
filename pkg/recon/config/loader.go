package config

import (
	"fmt"

	"github.com/jangsa/recon/pkg/recon/aggregate"
	"github.com/jangsa/recon/pkg/recon/classify"
	"github.com/jangsa/recon/pkg/recon/distill"
	"github.com/jangsa/recon/pkg/recon/priceline"
)

// Loader loads the rule file and constructs the price stages.
type Loader struct {
	RulesPath string
	// Delimiter overrides the rule file's delimiter when non-zero.
	Delimiter rune
}

// Components holds the configured price stages.
type Components struct {
	Parser     *priceline.Parser
	Classifier *classify.Classifier
	Distiller  *distill.Distiller
	Aggregate  aggregate.Options
}

// Load reads the rule file, if any, and returns initialized components.
// Without a path every component uses its built-in defaults.
func (l *Loader) Load() (*Components, error) {
	rules := &Rules{}
	if l.RulesPath != "" {
		loaded, err := LoadRules(l.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		rules = loaded
	}
	return Build(rules, l.Delimiter)
}

// Build constructs components from already loaded rules.
func Build(rules *Rules, delim rune) (*Components, error) {
	if delim == 0 {
		delim = rules.DelimiterRune()
	}
	comp := &Components{Parser: priceline.NewParser(delim)}

	table := rules.Rules
	if len(table) == 0 {
		table = classify.DefaultRules()
	}
	c, err := classify.New(table, classify.Options{
		MaterialPrice: rules.MaterialPrice,
		Qualifiers:    rules.Qualifiers,
		FeeTerms:      rules.FeeTerms,
		GroupRules:    rules.GroupTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}
	comp.Classifier = c

	if len(rules.Residency) > 0 {
		comp.Distiller = distill.New(distill.Patterns(rules.Residency))
	} else {
		comp.Distiller = distill.Default()
	}

	comp.Aggregate = aggregate.Options{
		Unit:           rules.Aggregate.Unit,
		SizeCategories: rules.Aggregate.SizeCategories,
		UsageFeeTerms:  rules.Aggregate.UsageFeeTerms,
		ManageFeeTerms: rules.Aggregate.ManagementFeeTerms,
	}
	return comp, nil
}
