package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jangsa/recon/pkg/recon/anomaly"
	"github.com/jangsa/recon/pkg/recon/normalize"
	"github.com/jangsa/recon/pkg/recon/priceitem"
)

// DefaultMaterialPrice separates recurring fees from product prices.
const DefaultMaterialPrice int64 = 1_000_000

// Options tunes the price-aware pass and the group types. Zero values fall
// back to the defaults.
type Options struct {
	MaterialPrice int64
	Qualifiers    []Qualifier
	FeeTerms      []string
	GroupRules    []GroupRule
}

// Classifier assigns taxonomy categories to price items. It holds no
// mutable state and is safe for concurrent use.
type Classifier struct {
	rules         []Rule
	qualifiers    []Qualifier
	feeTerms      map[string]bool
	groups        []GroupRule
	materialPrice int64
}

// New builds a classifier from a rule table. Rules are evaluated in
// ascending priority; a rule with an invalid category or no keywords is a
// configuration error.
func New(rules []Rule, opts Options) (*Classifier, error) {
	prepared, err := prepare(rules)
	if err != nil {
		return nil, err
	}

	c := &Classifier{
		rules:         prepared,
		materialPrice: opts.MaterialPrice,
		feeTerms:      make(map[string]bool),
	}
	if c.materialPrice <= 0 {
		c.materialPrice = DefaultMaterialPrice
	}

	quals := opts.Qualifiers
	if len(quals) == 0 {
		quals = DefaultQualifiers()
	}
	for _, q := range quals {
		if !q.Category.Valid() {
			continue
		}
		c.qualifiers = append(c.qualifiers, Qualifier{Category: q.Category, Keywords: keys(q.Keywords)})
	}

	terms := opts.FeeTerms
	if len(terms) == 0 {
		terms = DefaultFeeTerms()
	}
	for _, k := range keys(terms) {
		c.feeTerms[k] = true
	}

	groups := opts.GroupRules
	if len(groups) == 0 {
		groups = DefaultGroupRules()
	}
	for _, g := range groups {
		c.groups = append(c.groups, GroupRule{Group: g.Group, Keywords: keys(g.Keywords)})
	}
	return c, nil
}

// Default returns a classifier with the built-in tables.
func Default() *Classifier {
	c, err := New(DefaultRules(), Options{})
	if err != nil {
		panic(err)
	}
	return c
}

// Rules returns the rule table in evaluation order.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// MaterialPrice is the threshold used by Reclassify.
func (c *Classifier) MaterialPrice() int64 {
	return c.materialPrice
}

// Match returns the first rule matching name.
func (c *Classifier) Match(name string) (Rule, bool) {
	key := normalize.Key(name)
	for _, r := range c.rules {
		if r.Matches(key) {
			return r, true
		}
	}
	return Rule{}, false
}

// Coarse is the name-only pass. The first matching rule decides; without
// one the source's category hint is used, and without a hint the item is
// OTHER and flagged low-confidence.
func (c *Classifier) Coarse(it priceitem.Item) priceitem.Item {
	it = it.Clone()
	if r, ok := c.Match(it.ItemName); ok {
		it.Category = r.Category
		return it
	}
	if hint, ok := priceitem.ParseCategory(it.CategoryHint); ok {
		it.Category = hint
		return it
	}
	it.Category = priceitem.Other
	detail := "no rule matched"
	if strings.TrimSpace(it.CategoryHint) != "" {
		detail = fmt.Sprintf("no rule matched, unknown hint %q", it.CategoryHint)
	}
	it.AddFlag(anomaly.LowConfidence, detail)
	return it
}

// Reclassify is the price-aware pass. A BASE_COST item naming a product and
// priced above the material threshold moves to that product's category; a
// product item whose name is only a fee and priced below the threshold
// moves back to BASE_COST.
func (c *Classifier) Reclassify(it priceitem.Item) priceitem.Item {
	it = it.Clone()
	key := normalize.Key(it.ItemName)
	from := it.Category

	switch {
	case it.Category == priceitem.BaseCost && it.Price > c.materialPrice:
		if to, ok := c.qualifier(key); ok {
			it.Category = to
		}
	case isProduct(it.Category) && it.Price < c.materialPrice:
		if c.feeTerms[reduceFeeName(key)] {
			it.Category = priceitem.BaseCost
		}
	}

	if it.Category != from {
		it.AddFlag(anomaly.Reclassified, fmt.Sprintf("%s -> %s", from, it.Category))
	}
	return it
}

// Classify runs both passes and derives the group type.
func (c *Classifier) Classify(it priceitem.Item) priceitem.Item {
	it = c.Reclassify(c.Coarse(it))
	if it.GroupType == "" {
		it.GroupType = c.GroupType(it.ItemName)
	}
	return it
}

// GroupType returns 개인, 부부 or 가족 when the name says so.
func (c *Classifier) GroupType(name string) string {
	key := normalize.Key(name)
	for _, g := range c.groups {
		for _, kw := range g.Keywords {
			if strings.Contains(key, kw) {
				return g.Group
			}
		}
	}
	return ""
}

func (c *Classifier) qualifier(key string) (priceitem.Category, bool) {
	for _, q := range c.qualifiers {
		for _, kw := range q.Keywords {
			if strings.Contains(key, kw) {
				return q.Category, true
			}
		}
	}
	return priceitem.Other, false
}

func isProduct(c priceitem.Category) bool {
	switch c {
	case priceitem.BurialPlot, priceitem.EnshrinementPlot, priceitem.EnshrinementHouse, priceitem.NaturalBurial:
		return true
	}
	return false
}

var (
	bracketed   = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	quantity    = regexp.MustCompile(`[0-9][0-9.,]*(평|㎡|m2|cm|년|개월|월|기|위|구|인|회|일)?`)
	periodWords = []string{"/년", "/월", "연간", "년간", "월간", "매년", "매월", "기당", "위당", "구당", "평당", "annual", "yearly", "monthly", "peryear", "per"}
	feePunct    = strings.NewReplacer("/", "", "·", "", "-", "", ":", "", "~", "", ",", "", ".", "")
)

// reduceFeeName strips unit, quantity and period qualifiers from a key so
// that "관리비(1년)" and "연간 관리비" both reduce to "관리비".
func reduceFeeName(key string) string {
	s := bracketed.ReplaceAllString(key, "")
	for _, w := range periodWords {
		s = strings.ReplaceAll(s, w, "")
	}
	s = quantity.ReplaceAllString(s, "")
	return feePunct.Replace(s)
}
