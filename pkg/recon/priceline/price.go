package priceline

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/jangsa/recon/pkg/recon/normalize"
)

// ShortNumericLimit is the largest value still read as a term or count
// ("30" for a 30-year lease) rather than a price.
const ShortNumericLimit = 1000

// MaxPrice is the largest price accepted (1조 원). Longer digit runs are
// columns glued together by the export, not prices.
const MaxPrice int64 = 1_000_000_000_000

var (
	shortLimit = decimal.NewFromInt(ShortNumericLimit)
	maxPrice   = decimal.NewFromInt(MaxPrice)
)

// PriceStatus tells how a price text was understood.
type PriceStatus int

const (
	PriceOK PriceStatus = iota
	PriceFree
	PriceBlank
	PriceRange
	PriceShort
	PriceInvalid
)

func (s PriceStatus) String() string {
	switch s {
	case PriceOK:
		return "ok"
	case PriceFree:
		return "free"
	case PriceBlank:
		return "blank"
	case PriceRange:
		return "range"
	case PriceShort:
		return "short-numeric"
	default:
		return "invalid"
	}
}

var (
	freeWords  = []string{"무료", "free", "면제"}
	blankWords = []string{"-", "별도문의", "문의", "별도", "협의", "전화문의", "n/a", "na"}

	// Units that close a section of four orders of magnitude.
	sectionUnits = map[rune]decimal.Decimal{
		'만': decimal.New(1, 4),
		'억': decimal.New(1, 8),
	}
	// Units that scale the digits in front of them inside a section.
	digitUnits = map[rune]decimal.Decimal{
		'천': decimal.New(1, 3),
		'백': decimal.New(1, 2),
		'십': decimal.New(1, 1),
	}
)

// ParsePrice reads a price column. Accepted forms include "3,000,000",
// "3000000원", "350만원", "1.5만", "1억 2천만" and ranges such as
// "300만~500만" (lower bound, PriceRange). Free words give 0 with PriceFree;
// blank or "ask us" texts give 0 with PriceBlank. Whole values up to
// ShortNumericLimit give 0 with PriceShort since they are more often a term
// than a price. Values above MaxPrice are PriceInvalid. The returned value
// is never negative.
func ParsePrice(text string) (int64, PriceStatus) {
	k := priceKey(text)
	if k == "" {
		return 0, PriceBlank
	}
	for _, w := range freeWords {
		if k == w {
			return 0, PriceFree
		}
	}
	for _, w := range blankWords {
		if k == w {
			return 0, PriceBlank
		}
	}

	if lo, hi, ok := splitRange(k); ok {
		low, lok := parseAmount(lo)
		_, hok := parseAmount(hi)
		if lok && hok {
			switch {
			case low.GreaterThan(maxPrice):
				return 0, PriceInvalid
			case low.LessThanOrEqual(shortLimit):
				return 0, PriceShort
			}
			return low.IntPart(), PriceRange
		}
	}

	v, ok := parseAmount(k)
	if !ok {
		v, ok = parseLeadingAmount(k)
		if !ok {
			return 0, PriceInvalid
		}
	}
	switch {
	case v.IsZero():
		return 0, PriceFree
	case v.LessThanOrEqual(shortLimit):
		return 0, PriceShort
	case v.GreaterThan(maxPrice):
		return 0, PriceInvalid
	}
	return v.IntPart(), PriceOK
}

// priceKey lower-cases, removes blanks and currency marks.
func priceKey(text string) string {
	k := normalize.Key(text)
	k = strings.TrimPrefix(k, "₩")
	k = strings.TrimPrefix(k, "krw")
	k = strings.TrimSuffix(k, "krw")
	return k
}

func splitRange(k string) (string, string, bool) {
	if i := strings.Index(k, "~"); i > 0 {
		return k[:i], k[i+1:], true
	}
	// "300만-500만" but never a leading minus.
	if i := strings.Index(k, "-"); i > 0 && i < len(k)-1 {
		return k[:i], k[i+1:], true
	}
	return "", "", false
}

// parseAmount evaluates digits with Korean place units. A section is closed
// by 만 or 억; inside a section 천/백/십 scale the digits before them, so
// "1억2천만" is 1*10^8 + 2000*10^4.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSuffix(s, "원")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, false
	}

	total := decimal.Zero
	section := decimal.Zero
	var num strings.Builder
	digits := false

	take := func() (decimal.Decimal, bool) {
		if num.Len() == 0 {
			return decimal.NewFromInt(1), true
		}
		d, err := decimal.NewFromString(num.String())
		num.Reset()
		return d, err == nil
	}

	for _, r := range s {
		switch {
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			num.WriteRune(r)
			digits = true
		case r == '.':
			num.WriteRune(r)
		default:
			if unit, ok := digitUnits[r]; ok {
				n, ok := take()
				if !ok {
					return decimal.Zero, false
				}
				section = section.Add(n.Mul(unit))
				continue
			}
			if unit, ok := sectionUnits[r]; ok {
				if num.Len() > 0 {
					n, ok := take()
					if !ok {
						return decimal.Zero, false
					}
					section = section.Add(n)
				}
				if section.IsZero() {
					section = decimal.NewFromInt(1)
				}
				total = total.Add(section.Mul(unit))
				section = decimal.Zero
				continue
			}
			return decimal.Zero, false
		}
	}
	if !digits {
		return decimal.Zero, false
	}
	if num.Len() > 0 {
		n, ok := take()
		if !ok {
			return decimal.Zero, false
		}
		section = section.Add(n)
	}
	return total.Add(section).Floor(), true
}

// parseLeadingAmount accepts an amount followed by an annotation such as
// "3,000,000원(1기)" or "50만원/년".
func parseLeadingAmount(k string) (decimal.Decimal, bool) {
	end := strings.IndexAny(k, "(/[")
	if end <= 0 {
		return decimal.Zero, false
	}
	return parseAmount(k[:end])
}
