package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/jangsa/recon/pkg/recon/classify"
	"github.com/jangsa/recon/pkg/recon/internalerr"
	"github.com/jangsa/recon/pkg/recon/priceitem"
)

// Rules is the YAML rule file (configs/classifier.yaml). Every section is
// optional; an absent section keeps the built-in default.
type Rules struct {
	Delimiter     string               `yaml:"delimiter"`
	MaterialPrice int64                `yaml:"material_price"`
	Rules         []classify.Rule      `yaml:"rules"`
	Qualifiers    []classify.Qualifier `yaml:"qualifiers"`
	FeeTerms      []string             `yaml:"fee_terms"`
	GroupTypes    []classify.GroupRule `yaml:"group_types"`
	Residency     []string             `yaml:"residency"`
	Aggregate     AggregateRules       `yaml:"aggregate"`
}

// AggregateRules configures table output.
type AggregateRules struct {
	Unit               string               `yaml:"unit"`
	SizeCategories     []priceitem.Category `yaml:"size_categories"`
	UsageFeeTerms      []string             `yaml:"usage_fee_terms"`
	ManagementFeeTerms []string             `yaml:"management_fee_terms"`
}

// LoadRules loads the rule file at path. Unknown keys are rejected so that
// a misspelled section does not silently fall back to defaults.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var r Rules
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w: %v", path, internalerr.ErrInvalidConfig, err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &r, nil
}

// Validate checks values the YAML types cannot express.
func (r *Rules) Validate() error {
	if r.Delimiter != "" && utf8.RuneCountInString(r.Delimiter) != 1 {
		return fmt.Errorf("%w: delimiter %q must be a single character", internalerr.ErrInvalidConfig, r.Delimiter)
	}
	if r.MaterialPrice < 0 {
		return fmt.Errorf("%w: material_price must not be negative", internalerr.ErrInvalidConfig)
	}
	for i, rule := range r.Rules {
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("%w: rule %d (%s) has no keywords", internalerr.ErrInvalidConfig, i+1, rule.Name)
		}
	}
	for _, g := range r.GroupTypes {
		switch g.Group {
		case priceitem.GroupIndividual, priceitem.GroupCouple, priceitem.GroupFamily:
		default:
			return fmt.Errorf("%w: unknown group type %q", internalerr.ErrInvalidConfig, g.Group)
		}
	}
	return nil
}

// DelimiterRune returns the configured delimiter or ','.
func (r *Rules) DelimiterRune() rune {
	if r == nil || r.Delimiter == "" {
		return ','
	}
	d, _ := utf8.DecodeRuneInString(r.Delimiter)
	return d
}
