package classify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangsa/recon/pkg/recon/anomaly"
	"github.com/jangsa/recon/pkg/recon/internalerr"
	"github.com/jangsa/recon/pkg/recon/priceitem"
)

func TestCoarseRules(t *testing.T) {
	c := Default()
	tests := []struct {
		name string
		want priceitem.Category
	}{
		{"사용료", priceitem.BaseCost},
		{"관리비", priceitem.BaseCost},
		{"Usage Fee", priceitem.BaseCost},
		{"상석 (화강석)", priceitem.BurialPlot},
		{"봉분 조성 작업비", priceitem.BurialPlot},
		{"봉안당 개인단", priceitem.EnshrinementHouse},
		{"실내 납골", priceitem.EnshrinementHouse},
		{"봉안묘 8위", priceitem.EnshrinementPlot},
		{"봉안 안치", priceitem.EnshrinementHouse},
		{"수목장 공동목", priceitem.NaturalBurial},
		{"자연장 잔디형", priceitem.NaturalBurial},
		{"부부 묘지", priceitem.BurialPlot},
		{"Burial Plot", priceitem.BurialPlot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Coarse(priceitem.Item{ItemName: tt.name})
			assert.Equal(t, tt.want, got.Category)
			assert.Empty(t, got.Flags)
		})
	}
}

func TestCoarseTieBreak(t *testing.T) {
	c := Default()

	// Stonework outranks every product keyword.
	got := c.Coarse(priceitem.Item{ItemName: "봉안묘 비석"})
	assert.Equal(t, priceitem.BurialPlot, got.Category)

	// Labor inside an enshrinement product is excluded from the labor rule.
	got = c.Coarse(priceitem.Item{ItemName: "봉안당 설치비"})
	assert.Equal(t, priceitem.EnshrinementHouse, got.Category)

	r, ok := c.Match("수목장 관리비")
	require.True(t, ok)
	assert.Equal(t, "natural-burial", r.Name)
}

func TestCoarseFallsBackToHint(t *testing.T) {
	c := Default()

	got := c.Coarse(priceitem.Item{ItemName: "주차장", CategoryHint: "봉안당"})
	assert.Equal(t, priceitem.EnshrinementHouse, got.Category)
	assert.Empty(t, got.Flags)

	got = c.Coarse(priceitem.Item{ItemName: "주차장"})
	assert.Equal(t, priceitem.Other, got.Category)
	require.Len(t, got.Flags, 1)
	assert.Equal(t, anomaly.LowConfidence, got.Flags[0].Reason)

	got = c.Coarse(priceitem.Item{ItemName: "주차장", CategoryHint: "parking"})
	assert.Equal(t, priceitem.Other, got.Category)
	assert.True(t, got.HasFlag(anomaly.LowConfidence))
	assert.Contains(t, got.Flags[0].Detail, "parking")
}

func TestReclassifyProductFee(t *testing.T) {
	c := Default()
	it := priceitem.Item{
		ItemName: "Individual Burial Plot (2.5 pyeong) Usage Fee",
		Price:    3_500_000,
		Category: priceitem.BaseCost,
	}

	got := c.Reclassify(it)
	assert.Equal(t, priceitem.BurialPlot, got.Category)
	require.True(t, got.HasFlag(anomaly.Reclassified))
	assert.Equal(t, "BASE_COST -> BURIAL_PLOT", got.Flags[0].Detail)
	assert.Equal(t, priceitem.BaseCost, it.Category, "input is not modified")

	full := c.Classify(it)
	assert.Equal(t, priceitem.BurialPlot, full.Category)
	assert.Equal(t, priceitem.GroupIndividual, full.GroupType)
}

func TestReclassifyKeepsSmallFees(t *testing.T) {
	c := Default()
	got := c.Reclassify(priceitem.Item{ItemName: "가족 사용료", Price: 50_000, Category: priceitem.BaseCost})
	assert.Equal(t, priceitem.BaseCost, got.Category)
	assert.Empty(t, got.Flags)

	got = c.Reclassify(priceitem.Item{ItemName: "가족 사용료", Price: 5_000_000, Category: priceitem.BaseCost})
	assert.Equal(t, priceitem.BurialPlot, got.Category)

	got = c.Reclassify(priceitem.Item{ItemName: "부부 봉안단 사용료", Price: 5_000_000, Category: priceitem.BaseCost})
	assert.Equal(t, priceitem.EnshrinementHouse, got.Category)

	got = c.Reclassify(priceitem.Item{ItemName: "사용료", Price: 5_000_000, Category: priceitem.BaseCost})
	assert.Equal(t, priceitem.BaseCost, got.Category, "no product qualifier")
}

func TestReclassifyFeeBackToBaseCost(t *testing.T) {
	c := Default()
	for _, name := range []string{"관리비(1년)", "연간 관리비", "1기당 관리비", "관리비/년", "Management Fee"} {
		t.Run(name, func(t *testing.T) {
			got := c.Reclassify(priceitem.Item{ItemName: name, Price: 30_000, Category: priceitem.NaturalBurial})
			assert.Equal(t, priceitem.BaseCost, got.Category)
			assert.True(t, got.HasFlag(anomaly.Reclassified))
		})
	}

	got := c.Reclassify(priceitem.Item{ItemName: "수목장 관리비", Price: 30_000, Category: priceitem.NaturalBurial})
	assert.Equal(t, priceitem.NaturalBurial, got.Category, "product word remains")

	got = c.Reclassify(priceitem.Item{ItemName: "관리비", Price: 2_000_000, Category: priceitem.NaturalBurial})
	assert.Equal(t, priceitem.NaturalBurial, got.Category, "material price")
}

func TestGroupType(t *testing.T) {
	c := Default()
	assert.Equal(t, priceitem.GroupFamily, c.GroupType("가족묘 (부부 포함)"))
	assert.Equal(t, priceitem.GroupCouple, c.GroupType("부부 봉안묘"))
	assert.Equal(t, priceitem.GroupCouple, c.GroupType("2인 합장"))
	assert.Equal(t, priceitem.GroupIndividual, c.GroupType("개인단"))
	assert.Equal(t, "", c.GroupType("관리비"))
}

func TestCategoryClosure(t *testing.T) {
	c := Default()
	names := []string{"", "???", "봉안당", "석물", "관리비", "tree", "주차", "가족 사용료"}
	for _, n := range names {
		for _, price := range []int64{0, 10_000, 5_000_000} {
			got := c.Classify(priceitem.Item{ItemName: n, Price: price, CategoryHint: "nonsense"})
			assert.True(t, got.Category.Valid(), "name %q", n)
		}
	}
}

func TestNewRejectsBadRules(t *testing.T) {
	_, err := New([]Rule{{Name: "x", Category: priceitem.Category(99), Keywords: []string{"a"}}}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, internalerr.ErrInvalidConfig))

	_, err = New([]Rule{{Name: "x", Category: priceitem.Other, Keywords: []string{"  "}}}, Options{})
	assert.True(t, errors.Is(err, internalerr.ErrInvalidConfig))
}

func TestNewSortsByPriority(t *testing.T) {
	c, err := New([]Rule{
		{Name: "late", Priority: 20, Category: priceitem.BaseCost, Keywords: []string{"묘지"}},
		{Name: "early", Priority: 5, Category: priceitem.NaturalBurial, Keywords: []string{"묘지"}},
	}, Options{MaterialPrice: 10})
	require.NoError(t, err)

	rules := c.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "early", rules[0].Name)
	assert.Equal(t, int64(10), c.MaterialPrice())
	assert.Equal(t, priceitem.NaturalBurial, c.Coarse(priceitem.Item{ItemName: "묘지"}).Category)
}
