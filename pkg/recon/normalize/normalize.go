package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// punctuation maps look-alike punctuation produced by OCR, word processors
// and Korean IMEs onto a single ASCII form. Full-width forms are already
// folded by width.Fold before this runs.
var punctuation = strings.NewReplacer(
	"‐", "-", // hyphen
	"‑", "-", // non-breaking hyphen
	"‒", "-", // figure dash
	"–", "-", // en dash
	"—", "-", // em dash
	"―", "-", // horizontal bar
	"−", "-", // minus sign
	"〜", "~", // wave dash
	"∼", "~", // tilde operator
	"‘", "'",
	"’", "'",
	"“", "\"",
	"”", "\"",
	"✕", "×",
	"✖", "×",
	"・", "·",
)

// Normalize canonicalizes a string used as a comparison key or display
// value. It is total and idempotent: Normalize(Normalize(s)) == Normalize(s).
//
// Steps:
//  1. fold full-width and half-width forms (１２３ → 123, ﾡ → ㄱ)
//  2. drop invisible format/control characters (ZWSP, BOM, ...)
//  3. canonicalize punctuation variants
//  4. NFC composition (decomposed Hangul jamo → syllables)
//  5. collapse whitespace runs to one space and trim
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = width.Fold.String(s)

	// Invisible characters must go before composition, otherwise a removed
	// ZWSP between two jamo would leave a sequence the next pass composes.
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return r
		}
		if unicode.Is(unicode.Cf, r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	s = punctuation.Replace(s)
	s = norm.NFC.String(s)

	return collapseSpace(s)
}

// Key returns the whitespace-free, lowercased form of Normalize(s). It is the
// key facility names/addresses and item names are compared by.
func Key(s string) string {
	n := Normalize(s)
	if n == "" {
		return ""
	}
	n = strings.ReplaceAll(n, " ", "")
	return strings.ToLower(n)
}

// StripNonAlnumHangul is the strictest key: Key(s) with every rune that is
// not a letter (Hangul included) or digit removed. It is only meant for
// last-resort fuzzy matching.
func StripNonAlnumHangul(s string) string {
	k := Key(s)
	if k == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(k))
	for _, r := range k {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// collapseSpace replaces every run of whitespace (NBSP and ideographic space
// included) with a single ASCII space and trims both ends.
func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte(' ')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
