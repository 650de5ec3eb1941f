package priceitem

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jangsa/recon/pkg/recon/normalize"
)

// Category is one value of the closed price taxonomy.
type Category int

// The declaration order is the display rank.
const (
	BaseCost Category = iota
	BurialPlot
	EnshrinementPlot
	EnshrinementHouse
	NaturalBurial
	Other
)

// Categories lists the taxonomy in display order.
var Categories = []Category{BaseCost, BurialPlot, EnshrinementPlot, EnshrinementHouse, NaturalBurial, Other}

var codes = [...]string{"BASE_COST", "BURIAL_PLOT", "ENSHRINEMENT_PLOT", "ENSHRINEMENT_HOUSE", "NATURAL_BURIAL", "OTHER"}

var displayNames = [...]string{"기본비용", "매장묘", "봉안묘", "봉안당", "수목장", "기타"}

// aliases maps normalized labels seen in source data to a category.
var aliases = map[string]Category{
	"기본":   BaseCost,
	"기본비용": BaseCost,
	"기본료":  BaseCost,
	"사용료":  BaseCost,
	"매장":   BurialPlot,
	"매장묘":  BurialPlot,
	"묘지":   BurialPlot,
	"분묘":   BurialPlot,
	"봉안묘":  EnshrinementPlot,
	"납골묘":  EnshrinementPlot,
	"봉안당":  EnshrinementHouse,
	"납골당":  EnshrinementHouse,
	"봉안시설": EnshrinementHouse,
	"수목장":  NaturalBurial,
	"자연장":  NaturalBurial,
	"자연장지": NaturalBurial,
	"기타":   Other,
	"기타비용": Other,
}

// Valid reports whether c is a member of the taxonomy.
func (c Category) Valid() bool {
	return c >= BaseCost && c <= Other
}

// Rank is the display position; BASE_COST is 0 and OTHER is last.
func (c Category) Rank() int {
	return int(c)
}

// String returns the code, e.g. "BURIAL_PLOT".
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return codes[c]
}

// DisplayName returns the Korean label used as the price table key.
func (c Category) DisplayName() string {
	if !c.Valid() {
		return displayNames[Other]
	}
	return displayNames[c]
}

// ParseCategory resolves a code (any case), display name or known alias.
func ParseCategory(s string) (Category, bool) {
	k := normalize.Key(s)
	if k == "" {
		return Other, false
	}
	upper := strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
	for i, code := range codes {
		if upper == code {
			return Category(i), true
		}
	}
	for i, name := range displayNames {
		if k == name {
			return Category(i), true
		}
	}
	if c, ok := aliases[k]; ok {
		return c, true
	}
	return Other, false
}

// MarshalJSON encodes the code.
func (c Category) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", int(c))
	}
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts anything ParseCategory does.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParseCategory(s)
	if !ok {
		return fmt.Errorf("unknown category %q", s)
	}
	*c = parsed
	return nil
}

// UnmarshalText lets YAML rule files name categories by code or label.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, ok := ParseCategory(string(text))
	if !ok {
		return fmt.Errorf("unknown category %q", string(text))
	}
	*c = parsed
	return nil
}
