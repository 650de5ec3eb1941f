package priceline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangsa/recon/pkg/recon/anomaly"
	"github.com/jangsa/recon/pkg/recon/priceitem"
)

func TestSplitRecord(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain", "a,b,c", []string{"a", "b", "c"}},
		{"quoted delimiter", `a,"b,c",d`, []string{"a", "b,c", "d"}},
		{"escaped quote", `a,"say ""hi""",b`, []string{"a", `say "hi"`, "b"}},
		{"quote mid field is text", `a,5" tile,b`, []string{"a", `5" tile`, "b"}},
		{"leading blanks before quote", `a, "b,c"`, []string{"a", "b,c"}},
		{"unbalanced quote runs to end", `a,"b,c,d`, []string{"a", "b,c,d"}},
		{"empty fields", ",,", []string{"", "", ""}},
		{"text after closing quote", `"a"b,c`, []string{"ab", "c"}},
		{"crlf", "a,b\r\n", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitRecord(tt.line, ','))
		})
	}

	assert.Equal(t, []string{"a", "b,c"}, SplitRecord("a\tb,c", '\t'))
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		status PriceStatus
	}{
		{"3,000,000", 3000000, PriceOK},
		{"3000000원", 3000000, PriceOK},
		{" 3,000,000 원 ", 3000000, PriceOK},
		{"350만원", 3500000, PriceOK},
		{"1.5만", 15000, PriceOK},
		{"1억 2천만원", 120000000, PriceOK},
		{"2천만", 20000000, PriceOK},
		{"₩50,000", 50000, PriceOK},
		{"３，０００，０００", 3000000, PriceOK},
		{"3,000,000원(1기)", 3000000, PriceOK},
		{"50만원/년", 500000, PriceOK},
		{"무료", 0, PriceFree},
		{"0", 0, PriceFree},
		{"", 0, PriceBlank},
		{"-", 0, PriceBlank},
		{"별도 문의", 0, PriceBlank},
		{"300만~500만원", 3000000, PriceRange},
		{"300만 - 500만", 3000000, PriceRange},
		{"30", 0, PriceShort},
		{"1000", 0, PriceShort},
		{"10~20", 0, PriceShort},
		{"call us", 0, PriceInvalid},
		{"-3000", 0, PriceInvalid},
		{"2024-01-01", 0, PriceInvalid},
		{"1,000,000,000,000", 1000000000000, PriceOK},
		{"1000000000001", 0, PriceInvalid},
		{"9223372036854775808", 0, PriceInvalid},
		{"18446744073709551615", 0, PriceInvalid},
		{"9999999999999999999999", 0, PriceInvalid},
		{"99999999999999999999만원", 0, PriceInvalid},
		{"18446744073709551615~18446744073709551616", 0, PriceInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, status := ParsePrice(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.status, status, status.String())
			assert.GreaterOrEqual(t, got, int64(0))
		})
	}
}

func TestParseWellFormedRow(t *testing.T) {
	p := NewParser(',')
	raw, it := p.Parse(`park-0001,A Park,BASE_COST,"Usage Fee","3,000,000",""`, 2)

	assert.Equal(t, "park-0001", it.FacilityID)
	assert.Equal(t, "A Park", it.FacilityName)
	assert.Equal(t, priceitem.BaseCost, it.Category)
	assert.Equal(t, "Usage Fee", it.ItemName)
	assert.Equal(t, int64(3000000), it.Price)
	assert.Empty(t, it.Description)
	assert.Empty(t, it.Flags)
	assert.Equal(t, 2, it.Line)
	assert.Equal(t, "3,000,000", raw.PriceText)
	assert.Len(t, raw.Columns, SchemaWidth)
}

func TestParseRecoversEmbeddedDelimiter(t *testing.T) {
	p := NewParser(',')
	raw, it := p.Parse(`park-0001,A Park,BURIAL_PLOT,Granite Stone, Polished,3500000,hand carved`, 3)

	require.Len(t, raw.Columns, 7)
	assert.Equal(t, "Granite Stone, Polished", it.ItemName)
	assert.Equal(t, int64(3500000), it.Price)
	assert.Equal(t, "hand carved", it.Description)
	assert.Equal(t, priceitem.BurialPlot, it.Category)
	assert.True(t, it.HasFlag(anomaly.ColumnsRecovered))
	assert.False(t, it.HasFlag(anomaly.PriceMissing))
}

func TestParseTakesRightmostPriceToken(t *testing.T) {
	p := NewParser(',')
	_, it := p.Parse(`p-1,X,,2024 model, large,1500,"2,500,000",30년`, 1)

	assert.Equal(t, int64(2500000), it.Price)
	assert.Equal(t, "2024 model, large,1500", it.ItemName)
	assert.Equal(t, "30년", it.Description)
}

func TestParseRejoinsSplitThousands(t *testing.T) {
	p := NewParser(',')

	_, it := p.Parse(`park-0002,B,BASE_COST,관리비,3,000,000,연간`, 4)
	assert.Equal(t, "관리비", it.ItemName)
	assert.Equal(t, int64(3000000), it.Price)
	assert.Equal(t, "연간", it.Description)
	assert.True(t, it.HasFlag(anomaly.ColumnsRecovered))

	_, it = p.Parse(`park-0002,B,BASE_COST,관리비,3,000`, 5)
	assert.Equal(t, int64(3000), it.Price)
	assert.Empty(t, it.Description)
}

func TestParseKeepsRowsWithoutPrice(t *testing.T) {
	p := NewParser(',')

	t.Run("blank price", func(t *testing.T) {
		_, it := p.Parse(`park-0003,C,,봉안당 사용료,,`, 1)
		assert.Equal(t, "봉안당 사용료", it.ItemName)
		assert.Equal(t, int64(0), it.Price)
		assert.Equal(t, priceitem.Other, it.Category)
		assert.True(t, it.HasFlag(anomaly.PriceMissing))
	})

	t.Run("short numeric", func(t *testing.T) {
		_, it := p.Parse(`park-0004,D,BASE_COST,관리비,30,`, 1)
		assert.Equal(t, int64(0), it.Price)
		require.Len(t, it.Flags, 1)
		assert.Equal(t, anomaly.ShortNumeric, it.Flags[0].Reason)
		assert.Equal(t, "30", it.Flags[0].Detail)
	})

	t.Run("range", func(t *testing.T) {
		_, it := p.Parse(`park-0004,D,,수목장,300만~500만원,`, 1)
		assert.Equal(t, int64(3000000), it.Price)
		assert.True(t, it.HasFlag(anomaly.PriceRange))
	})

	t.Run("unparsable", func(t *testing.T) {
		_, it := p.Parse(`p,F,,Plot,call us,note`, 1)
		assert.Equal(t, "Plot", it.ItemName)
		assert.Equal(t, "note", it.Description)
		assert.True(t, it.HasFlag(anomaly.PriceUnparsable))
	})

	t.Run("glued digit run", func(t *testing.T) {
		_, it := p.Parse(`p,F,,Plot,18446744073709551615,note`, 1)
		assert.Equal(t, int64(0), it.Price)
		assert.Equal(t, "Plot", it.ItemName)
		assert.True(t, it.HasFlag(anomaly.PriceUnparsable))
	})

	t.Run("wide without price", func(t *testing.T) {
		_, it := p.Parse(`p,F,,Plot,granite,black,polished`, 1)
		assert.Equal(t, "Plot", it.ItemName)
		assert.Equal(t, "granite black,polished", it.Description)
		assert.True(t, it.HasFlag(anomaly.PriceMissing))
	})

	t.Run("too few columns", func(t *testing.T) {
		_, it := p.Parse(`park-0005,E`, 1)
		assert.Equal(t, "park-0005", it.FacilityID)
		assert.True(t, it.HasFlag(anomaly.TooFewColumns))
		assert.True(t, it.HasFlag(anomaly.PriceMissing))
	})
}

func TestParseCleansHTMLAndUnicode(t *testing.T) {
	p := NewParser(',')
	_, it := p.Parse("p,G,봉안당,\"납골당<br>1위\",\"1,200,000\",\"관내&amp;관외\u200b\"", 1)

	assert.Equal(t, "납골당 1위", it.ItemName)
	assert.Equal(t, "관내&관외", it.Description)
	assert.Equal(t, priceitem.EnshrinementHouse, it.Category)
	assert.Equal(t, "봉안당", it.CategoryHint)
}

func TestParseAll(t *testing.T) {
	input := "\ufefffacilityId,facilityName,category,itemName,price,rawDescription\n" +
		"park-0001,A Park,BASE_COST,Usage Fee,\"3,000,000\",\n" +
		"\n" +
		"park-0001,A Park,BURIAL_PLOT,Stone, Granite,3500000,\n" +
		"park-0002,B,,broken\n"

	lines, err := NewParser(',').ParseAll(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, 2, lines[0].Item.Line)
	assert.Equal(t, 4, lines[1].Item.Line)
	assert.Equal(t, "Stone, Granite", lines[1].Item.ItemName)
	assert.Equal(t, 5, lines[2].Item.Line)
	assert.True(t, lines[2].Item.HasFlag(anomaly.PriceMissing))

	for _, l := range lines {
		assert.GreaterOrEqual(t, l.Item.Price, int64(0))
	}
}

func TestParseAllWithoutHeader(t *testing.T) {
	lines, err := NewParser(',').ParseAll(context.Background(), strings.NewReader("p-1,A,,Fee,5000,\n"))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, int64(5000), lines[0].Item.Price)
}

func TestParseAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewParser(',').ParseAll(ctx, strings.NewReader("p-1,A,,Fee,5000,\n"))
	assert.ErrorIs(t, err, context.Canceled)
}
