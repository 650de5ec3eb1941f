package priceitem

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jangsa/recon/pkg/recon/anomaly"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"BASE_COST", BaseCost, true},
		{"burial_plot", BurialPlot, true},
		{"natural-burial", NaturalBurial, true},
		{"봉안당", EnshrinementHouse, true},
		{" 납골당 ", EnshrinementHouse, true},
		{"자연장", NaturalBurial, true},
		{"봉안 묘", EnshrinementPlot, true},
		{"기타", Other, true},
		{"", Other, false},
		{"주차장", Other, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCategory(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategoryOrderAndNames(t *testing.T) {
	require.Len(t, Categories, 6)
	for i, c := range Categories {
		assert.Equal(t, i, c.Rank())
		assert.True(t, c.Valid())
	}
	assert.Equal(t, "기본비용", BaseCost.DisplayName())
	assert.Equal(t, "기타", Other.DisplayName())
	assert.Equal(t, "ENSHRINEMENT_PLOT", EnshrinementPlot.String())
	assert.False(t, Category(42).Valid())
	assert.Equal(t, "기타", Category(42).DisplayName())
}

func TestCategoryJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		C Category `json:"c"`
	}{BurialPlot})
	require.NoError(t, err)
	assert.JSONEq(t, `{"c":"BURIAL_PLOT"}`, string(data))

	var back struct {
		C Category `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"c":"수목장"}`), &back))
	assert.Equal(t, NaturalBurial, back.C)

	assert.Error(t, json.Unmarshal([]byte(`{"c":"nope"}`), &back))

	_, err = json.Marshal(Category(-1))
	assert.Error(t, err)
}

func TestCategoryYAML(t *testing.T) {
	var rule struct {
		Category Category `yaml:"category"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("category: ENSHRINEMENT_HOUSE\n"), &rule))
	assert.Equal(t, EnshrinementHouse, rule.Category)
	assert.Error(t, yaml.Unmarshal([]byte("category: parking\n"), &rule))
}

func TestItemFlags(t *testing.T) {
	it := Item{FacilityID: "park-0001", Line: 7}
	it.AddFlag(anomaly.PriceMissing, "")
	it.AddFlag(anomaly.LowConfidence, "no rule")

	assert.True(t, it.HasFlag(anomaly.PriceMissing))
	assert.False(t, it.HasFlag(anomaly.Reclassified))

	cp := it.Clone()
	cp.Flags[0].Detail = "changed"
	assert.Empty(t, it.Flags[0].Detail)

	got := it.Anomalies()
	require.Len(t, got, 2)
	assert.Equal(t, anomaly.Item{FacilityID: "park-0001", ItemRow: 7, Reason: anomaly.LowConfidence, Detail: "no rule"}, got[1])
}
