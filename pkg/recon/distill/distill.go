package distill

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jangsa/recon/pkg/recon/anomaly"
	"github.com/jangsa/recon/pkg/recon/normalize"
	"github.com/jangsa/recon/pkg/recon/priceitem"
)

// Tags of the description fragments.
const (
	TagSize      = "규격"
	TagResidency = "자격"
	TagPeriod    = "기간"
	TagPrice     = "가격"
)

// MinNameLength is the shortest name distillation may leave behind.
const MinNameLength = 2

// Pattern moves every span of the name it matches into a tagged fragment.
type Pattern struct {
	Tag string
	Re  *regexp.Regexp
}

const (
	num  = `\d+(?:\.\d+)?`
	unit = `(?:cm|mm|m)\b`
	dim  = num + `\s*(?:` + unit + `)?\s*[x×X*]\s*` + num + `(?:\s*` + unit + `)?(?:\s*[x×X*]\s*` + num + `(?:\s*` + unit + `)?)?`
	area = num + `\s*(?:평|㎡|m2|m²|pyeong)`

	date     = `\d{4}[./-]\d{1,2}[./-]\d{1,2}\.?`
	duration = `\d+\s*(?:년|개월)(?:\s*(?:계약|사용|기준|간))?|\d+\s*years?\b`

	money = `(?:\d{1,3}(?:,\d{3})+\s*원?|\d+(?:\.\d+)?\s*(?:억|만)\s*(?:\d+\s*천\s*만?)?\s*원?|\d+\s*원)`
	price = money + `(?:\s*~\s*` + money + `)?`
)

// DefaultResidency lists residency qualifiers, longest first.
var DefaultResidency = []string{
	"관내거주자", "관외거주자", "관내주민", "관외주민", "지역주민", "비거주자", "외지인", "타지역", "지역외", "관내", "관외",
}

// parenthesized accepts a bare expression or the same expression wrapped in
// parentheses, so the parentheses leave the name together with it.
func parenthesized(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\(\s*(?:` + expr + `)\s*\)|(?:` + expr + `)`)
}

// DefaultPatterns returns the extraction order: size, residency, period,
// price.
func DefaultPatterns() []Pattern {
	return Patterns(DefaultResidency)
}

// Patterns builds the default pattern set with a custom residency list.
func Patterns(residency []string) []Pattern {
	words := make([]string, 0, len(residency))
	for _, w := range residency {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, regexp.QuoteMeta(w))
		}
	}
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })

	out := []Pattern{
		{Tag: TagSize, Re: parenthesized(dim + `|` + area)},
	}
	if len(words) > 0 {
		out = append(out, Pattern{Tag: TagResidency, Re: parenthesized(strings.Join(words, "|"))})
	}
	return append(out,
		Pattern{Tag: TagPeriod, Re: parenthesized(date + `|` + duration)},
		Pattern{Tag: TagPrice, Re: parenthesized(price)},
	)
}

// Distiller relocates structural text from item names into descriptions.
// It is safe for concurrent use.
type Distiller struct {
	patterns []Pattern
}

// New creates a distiller; patterns are applied in the given order.
func New(patterns []Pattern) *Distiller {
	return &Distiller{patterns: patterns}
}

// Default returns a distiller with DefaultPatterns.
func Default() *Distiller {
	return New(DefaultPatterns())
}

// Distill returns it with structural spans moved out of the name. When the
// remaining name would be shorter than MinNameLength, the name and
// description are left as they were and the item is flagged.
func (d *Distiller) Distill(it priceitem.Item) priceitem.Item {
	it = it.Clone()
	name, desc, ok := d.Text(it.ItemName, it.Description)
	if !ok {
		if !it.HasFlag(anomaly.NameTooShort) {
			it.AddFlag(anomaly.NameTooShort, it.ItemName)
		}
		return it
	}
	it.ItemName = name
	it.Description = desc
	return it
}

// Text distills a name/description pair. ok is false when nothing usable
// would be left of the name; the inputs are then returned normalized but
// otherwise unchanged.
func (d *Distiller) Text(name, desc string) (string, string, bool) {
	name = normalize.Normalize(name)
	desc = normalize.Normalize(desc)
	origName, origDesc := name, desc

	var fragments []string
	for _, p := range d.patterns {
		for {
			loc := p.Re.FindStringIndex(name)
			if loc == nil || loc[0] == loc[1] {
				break
			}
			value := unwrap(name[loc[0]:loc[1]])
			name = name[:loc[0]] + cut + name[loc[1]:]
			if value == "" {
				continue
			}
			have := compact(desc + strings.Join(fragments, ""))
			if strings.Contains(have, compact(value)) {
				continue
			}
			fragments = append(fragments, "["+p.Tag+": "+value+"]")
		}
	}

	name = cleanName(name)
	if utf8.RuneCountInString(name) < MinNameLength {
		return origName, origDesc, false
	}

	if len(fragments) > 0 {
		desc = strings.TrimSpace(desc + " " + strings.Join(fragments, " "))
	}
	desc = Dedupe(desc)
	if compact(desc) == compact(name) {
		desc = ""
	}
	return name, desc, true
}

// cut marks where a span left the name. Normalize drops control
// characters, so the marker never occurs in a normalized input.
const cut = "\x00"

var (
	tagRe        = regexp.MustCompile(`\[[^\[\]]*\]`)
	cutRun       = regexp.MustCompile(`[\s\x00]*\x00[\s\x00]*`)
	cutBracket   = regexp.MustCompile(`\(\x00\)|\[\x00\]|\{\x00\}|<\x00>`)
	cutBetween   = regexp.MustCompile(`([\-,/·:~|+])\x00[\-,/·:~|+]`)
	cutEdge      = regexp.MustCompile(`^[\s\-,/·:~|+]*\x00[\s\-,/·:~|+]*|[\s\-,/·:~|+]*\x00[\s\-,/·:~|+]*$`)
	spaceInParen = regexp.MustCompile(`\(\s+|\s+\)`)
)

// cleanName tidies the name around the cut marks: brackets emptied by a
// cut, a separator doubled across a cut and separators between a cut and
// either end go. Text away from a cut is left alone.
func cleanName(s string) string {
	for {
		prev := s
		s = cutRun.ReplaceAllString(s, cut)
		s = cutBracket.ReplaceAllString(s, cut)
		s = cutBetween.ReplaceAllString(s, "$1"+cut)
		s = cutEdge.ReplaceAllString(s, "")
		if s == prev {
			break
		}
	}
	s = normalize.Normalize(strings.ReplaceAll(s, cut, " "))
	return spaceInParen.ReplaceAllStringFunc(s, strings.TrimSpace)
}

// Dedupe collapses repeated identical tags and a text made of two
// back-to-back copies of the same string. It is idempotent.
func Dedupe(desc string) string {
	desc = normalize.Normalize(desc)
	for {
		prev := desc
		desc = dropRepeatedTags(desc)
		desc = collapseDoubled(desc)
		if desc == prev {
			return desc
		}
	}
}

func dropRepeatedTags(desc string) string {
	seen := make(map[string]bool)
	out := tagRe.ReplaceAllStringFunc(desc, func(tag string) string {
		k := compact(tag)
		if seen[k] {
			return ""
		}
		seen[k] = true
		return tag
	})
	return normalize.Normalize(out)
}

// collapseDoubled returns the first half of s when s is two copies of it,
// ignoring whitespace.
func collapseDoubled(s string) string {
	c := compact(s)
	if c == "" || len(c)%2 != 0 || c[:len(c)/2] != c[len(c)/2:] {
		return s
	}
	for i := range s {
		if i == 0 {
			continue
		}
		if compact(s[:i]) == c[:len(c)/2] {
			return strings.TrimSpace(s[:i])
		}
	}
	return s
}

// unwrap trims blanks and one pair of enclosing parentheses.
func unwrap(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// compact is the whitespace-insensitive comparison form.
func compact(s string) string {
	return normalize.Key(s)
}
