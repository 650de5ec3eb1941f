package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/unicode/norm"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "only whitespace", in: " \t\n ", want: ""},
		{name: "collapse inner whitespace", in: "  서울   추모  공원 ", want: "서울 추모 공원"},
		{name: "nbsp and ideographic space", in: "서울\u00a0추모\u3000공원", want: "서울 추모 공원"},
		{name: "decomposed hangul composes", in: "\u1109\u1165\u110b\u116e\u11af", want: "서울"},
		{name: "full-width digits fold", in: "\uff11\uff12\uff13평", want: "123평"},
		{name: "zero width space removed", in: "추모\u200b공원", want: "추모공원"},
		{name: "bom removed", in: "\ufeff공원", want: "공원"},
		{name: "dash variants", in: "A\u2013B\u2014C", want: "A-B-C"},
		{name: "wave dash", in: "300만\u301c500만", want: "300만~500만"},
		{name: "quotes", in: "\u201c관리비\u201d", want: "\"관리비\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"",
		"  A Park  ",
		"\u1100\u200b\u1161",
		"\uff21\uff22\uff23\u3000\uff11\uff12\uff13",
		"서울 추모 공원",
		"76cm × 51.5cm 비석",
		" \u0301leading combining mark",
		"e \u0301",
		"\uffa1\uffa2 half-width jamo",
		"line\r\nbreak\ttab",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
		assert.True(t, norm.NFC.IsNormalString(once), "not NFC: %q", once)
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "apark", Key("A  Park"))
	assert.Equal(t, "서울추모공원", Key(" 서울 추모공원 "))
	assert.Equal(t, Key("서울추모공원"), Key("서울추모공원"))
	assert.Equal(t, "", Key("   "))
}

func TestStripNonAlnumHangul(t *testing.T) {
	assert.Equal(t, "서울시립추모공원", StripNonAlnumHangul("(서울시립) 추모-공원!"))
	assert.Equal(t, "apark1", StripNonAlnumHangul("A. Park #1"))
	assert.Equal(t, "", StripNonAlnumHangul("---"))
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain text untouched", in: "관리비 1년", want: "관리비 1년"},
		{name: "br becomes space", in: "관내<br>관외", want: "관내 관외"},
		{name: "entities decoded", in: "A &amp; B", want: "A & B"},
		{name: "inline tags dropped", in: "<b>비석</b> 포함", want: "비석 포함"},
		{name: "script dropped", in: "가격<script>alert(1)</script>표", want: "가격표"},
		{name: "stray less-than kept", in: "3 < 5", want: "3 < 5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(StripHTML(tt.in)))
		})
	}
}
