package classify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jangsa/recon/pkg/recon/internalerr"
	"github.com/jangsa/recon/pkg/recon/normalize"
	"github.com/jangsa/recon/pkg/recon/priceitem"
)

// Rule maps item names containing any keyword (and none of the excluded
// words) to a category. Lower priority values are evaluated first.
type Rule struct {
	Name     string             `yaml:"name"`
	Priority int                `yaml:"priority"`
	Category priceitem.Category `yaml:"category"`
	Keywords []string           `yaml:"keywords"`
	Exclude  []string           `yaml:"exclude"`
}

// Matches reports whether key (a normalize.Key) satisfies the rule.
func (r Rule) Matches(key string) bool {
	if key == "" {
		return false
	}
	for _, ex := range r.Exclude {
		if ex != "" && strings.Contains(key, ex) {
			return false
		}
	}
	for _, kw := range r.Keywords {
		if kw != "" && strings.Contains(key, kw) {
			return true
		}
	}
	return false
}

// Qualifier names a product inside an otherwise generic fee name.
type Qualifier struct {
	Category priceitem.Category `yaml:"category"`
	Keywords []string           `yaml:"keywords"`
}

// GroupRule derives a group type from keywords in the name.
type GroupRule struct {
	Group    string   `yaml:"group"`
	Keywords []string `yaml:"keywords"`
}

// prepare returns a copy of rules with keywords in key form, sorted by
// priority. Rules sharing a priority keep their given order.
func prepare(rules []Rule) ([]Rule, error) {
	out := make([]Rule, 0, len(rules))
	for i, r := range rules {
		if r.Name == "" {
			r.Name = fmt.Sprintf("rule-%d", i+1)
		}
		if !r.Category.Valid() {
			return nil, fmt.Errorf("rule %s: %w: category %d", r.Name, internalerr.ErrInvalidConfig, int(r.Category))
		}
		r.Keywords = keys(r.Keywords)
		r.Exclude = keys(r.Exclude)
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("rule %s: %w: no keywords", r.Name, internalerr.ErrInvalidConfig)
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out, nil
}

func keys(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if k := normalize.Key(w); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// DefaultRules is the built-in rule table. Its order is the tie-break:
// stonework, labor/installation, enshrinement house, enshrinement plot,
// natural burial, burial plot and finally base cost.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "stonework", Priority: 10, Category: priceitem.BurialPlot,
			Keywords: []string{"석물", "비석", "상석", "묘비", "둘레석", "망주석", "석축", "와비", "좌대", "향로석", "headstone", "tombstone", "gravestone", "granite"},
		},
		{
			Name: "labor", Priority: 20, Category: priceitem.BurialPlot,
			Keywords: []string{"작업비", "인건비", "설치비", "시공", "조성비", "개장", "이장", "굴토", "봉분", "떼입히기", "labor", "installation", "excavation"},
			Exclude:  []string{"봉안", "납골", "수목", "자연장"},
		},
		{
			Name: "enshrinement-house", Priority: 30, Category: priceitem.EnshrinementHouse,
			Keywords: []string{"봉안당", "납골당", "봉안시설", "봉안실", "안치단", "추모관", "실내", "옥내", "columbarium", "indoor"},
		},
		{
			Name: "enshrinement-plot", Priority: 40, Category: priceitem.EnshrinementPlot,
			Keywords: []string{"봉안묘", "납골묘", "봉안담", "야외봉안", "옥외", "outdoor"},
		},
		{
			Name: "enshrinement", Priority: 45, Category: priceitem.EnshrinementHouse,
			Keywords: []string{"봉안", "납골", "안치", "enshrine"},
		},
		{
			Name: "natural-burial", Priority: 50, Category: priceitem.NaturalBurial,
			Keywords: []string{"수목장", "수목", "자연장", "잔디장", "화초장", "정원장", "추모목", "tree", "natural"},
		},
		{
			Name: "burial-plot", Priority: 60, Category: priceitem.BurialPlot,
			Keywords: []string{"매장", "묘지", "분묘", "묘역", "묘소", "가족묘", "부부묘", "개인묘", "단장묘", "합장묘", "쌍분", "burial", "grave", "plot"},
		},
		{
			Name: "base-cost", Priority: 70, Category: priceitem.BaseCost,
			Keywords: []string{"사용료", "관리비", "관리료", "기본료", "기본비용", "usagefee", "managementfee", "maintenance"},
		},
	}
}

// DefaultQualifiers maps product words found in fee names to categories,
// most specific first.
func DefaultQualifiers() []Qualifier {
	return []Qualifier{
		{Category: priceitem.EnshrinementPlot, Keywords: []string{"봉안묘", "납골묘"}},
		{Category: priceitem.EnshrinementHouse, Keywords: []string{"봉안", "납골", "안치", "enshrine", "columbarium"}},
		{Category: priceitem.NaturalBurial, Keywords: []string{"수목", "자연장", "잔디장", "tree"}},
		{Category: priceitem.BurialPlot, Keywords: []string{"가족", "부부", "개인", "1인", "2인", "단장", "합장", "쌍분", "매장", "묘", "family", "couple", "individual", "plot", "burial"}},
	}
}

// DefaultFeeTerms are the names that mean a recurring fee once unit and
// period qualifiers are removed.
func DefaultFeeTerms() []string {
	return []string{"사용료", "관리비", "관리료", "usagefee", "managementfee", "maintenancefee"}
}

// DefaultGroupRules derive the group type, checked in order.
func DefaultGroupRules() []GroupRule {
	return []GroupRule{
		{Group: priceitem.GroupFamily, Keywords: []string{"가족", "family"}},
		{Group: priceitem.GroupCouple, Keywords: []string{"부부", "2인", "합장", "쌍분", "couple"}},
		{Group: priceitem.GroupIndividual, Keywords: []string{"개인", "1인", "단장", "individual", "single"}},
	}
}
