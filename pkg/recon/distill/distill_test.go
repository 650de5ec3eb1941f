package distill

import (
	"sort"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangsa/recon/pkg/recon/anomaly"
	"github.com/jangsa/recon/pkg/recon/priceitem"
)

func TestDistillDimension(t *testing.T) {
	got := Default().Distill(priceitem.Item{ItemName: "76cm x 51.5cm Headstone"})
	assert.Equal(t, "Headstone", got.ItemName)
	assert.Equal(t, "[규격: 76cm x 51.5cm]", got.Description)
	assert.Empty(t, got.Flags)
}

func TestDistillPatterns(t *testing.T) {
	tests := []struct {
		name     string
		item     string
		desc     string
		wantName string
		wantDesc string
	}{
		{"area in parentheses", "Individual Burial Plot (2.5 pyeong) Usage Fee", "", "Individual Burial Plot Usage Fee", "[규격: 2.5 pyeong]"},
		{"korean area", "개인묘 2.5평", "", "개인묘", "[규격: 2.5평]"},
		{"residency", "봉안당 사용료(관내)", "", "봉안당 사용료", "[자격: 관내]"},
		{"residency longest word", "관외거주자 수목장", "", "수목장", "[자격: 관외거주자]"},
		{"period", "관리비 15년", "", "관리비", "[기간: 15년]"},
		{"contract period", "봉안묘 30년 계약", "", "봉안묘", "[기간: 30년 계약]"},
		{"date", "사용료 2024.01.01 기준", "", "사용료 기준", "[기간: 2024.01.01]"},
		{"trailing price", "상석 3,000,000원", "", "상석", "[가격: 3,000,000원]"},
		{"price range", "수목장 300만~500만원", "", "수목장", "[가격: 300만~500만원]"},
		{"everything", "(관내) 부부묘 (5평) 30년 1,500,000원", "화강석", "부부묘", "화강석 [규격: 5평] [자격: 관내] [기간: 30년] [가격: 1,500,000원]"},
		{"already described", "Headstone 76cm x 51.5cm", "76cm x 51.5cm", "Headstone", "76cm x 51.5cm"},
		{"already tagged", "개인묘 (2.5평)", "[규격: 2.5 평]", "개인묘", "[규격: 2.5 평]"},
		{"nothing to do", "관리비", "연간", "관리비", "연간"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Default().Distill(priceitem.Item{ItemName: tt.item, Description: tt.desc})
			assert.Equal(t, tt.wantName, got.ItemName)
			assert.Equal(t, tt.wantDesc, got.Description)
		})
	}
}

func TestDistillDedupesDescription(t *testing.T) {
	d := Default()

	got := d.Distill(priceitem.Item{ItemName: "석물", Description: "[규격: 1m] [규격: 1m] 비고"})
	assert.Equal(t, "[규격: 1m] 비고", got.Description)

	got = d.Distill(priceitem.Item{ItemName: "석물", Description: "화강석 포함화강석 포함"})
	assert.Equal(t, "화강석 포함", got.Description)

	got = d.Distill(priceitem.Item{ItemName: "봉안당 개인단", Description: "봉안당 개인단"})
	assert.Empty(t, got.Description)
}

func TestDistillKeepsShortNames(t *testing.T) {
	got := Default().Distill(priceitem.Item{ItemName: "76cm x 51cm", Description: "비석"})
	assert.Equal(t, "76cm x 51cm", got.ItemName)
	assert.Equal(t, "비석", got.Description)
	require.Len(t, got.Flags, 1)
	assert.Equal(t, anomaly.NameTooShort, got.Flags[0].Reason)

	again := Default().Distill(got)
	assert.Equal(t, got, again)
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "봉안묘", cleanName(" - "+cut+" 봉안묘 ("+cut+") , "+cut))
	assert.Equal(t, "A, B", cleanName("A , "+cut+" , B"))
	assert.Equal(t, "석물 (화강석)", cleanName("석물 ( 화강석 ) ["+cut+"]"))

	// Separators away from a cut belong to the name.
	assert.Equal(t, "+추가 안치", cleanName("+추가 안치"))
	assert.Equal(t, "봉안당 A-", cleanName("봉안당 A-"))
	assert.Equal(t, "A , , B", cleanName("A , , B"))
	assert.Equal(t, "개인묘 ()", cleanName("개인묘 ()"))
}

func TestDistillKeepsUntouchedNames(t *testing.T) {
	d := Default()
	for _, name := range []string{"+추가 안치", "봉안당 A-", "- 관리비 -", "납골당 #3 (특실)"} {
		got, desc, ok := d.Text(name, "")
		require.True(t, ok, name)
		assert.Equal(t, name, got)
		assert.Empty(t, desc)
	}

	got, desc, ok := d.Text("개인묘 - 5평", "")
	require.True(t, ok)
	assert.Equal(t, "개인묘", got)
	assert.Equal(t, "[규격: 5평]", desc)
}

func TestDistillIdempotent(t *testing.T) {
	d := Default()
	items := []priceitem.Item{
		{ItemName: "76cm x 51.5cm Headstone"},
		{ItemName: "(관내) 부부묘 (5평) 30년 1,500,000원", Description: "화강석"},
		{ItemName: "봉안당 사용료(관내)", Description: "관내 관내"},
		{ItemName: "x", Description: "y"},
		{ItemName: "수목장 300만~500만원 2024-01-01"},
	}
	for _, it := range items {
		once := d.Distill(it)
		twice := d.Distill(once)
		assert.Equal(t, once, twice, it.ItemName)
	}
}

// residue is what extraction may drop from a name: the brackets around a
// moved span and separators left between it and the rest.
const residue = "()[]{}<>-,/·:~|+"

// content returns the sorted non-blank runes of s, residue excluded.
func content(s string) []rune {
	var out []rune
	for _, r := range s {
		if unicode.IsSpace(r) || strings.ContainsRune(residue, r) {
			continue
		}
		out = append(out, unicode.ToLower(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestDistillLosesNoInformation(t *testing.T) {
	d := Default()
	names := []string{
		"76cm x 51.5cm Headstone",
		"Individual Burial Plot (2.5 pyeong) Usage Fee",
		"(관내) 부부묘 (5평) 30년 1,500,000원",
		"관외거주자 수목장 2024.01.01",
		"상석 3,000,000원 포함",
		"+추가 안치",
		"봉안당 A-",
		"봉안묘 #2 (30년) & 상석",
		"석물 * 특가 ! 5평",
	}
	for _, name := range names {
		got := d.Distill(priceitem.Item{ItemName: name})
		after := content(got.ItemName + got.Description)

		have := make(map[rune]int)
		for _, r := range after {
			have[r]++
		}
		for _, r := range content(name) {
			assert.Positive(t, have[r], "%q lost %q", name, string(r))
			have[r]--
		}
		assert.False(t, strings.Contains(got.ItemName, "cm x"), got.ItemName)
	}
}
