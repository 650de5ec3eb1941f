package priceline

import (
	"strings"
	"unicode"
)

// SplitRecord splits one delimited line into columns. A double quote opens a
// quoted span only at the start of a field (leading blanks are dropped); inside
// it "" is a literal quote and the delimiter is ordinary text. Text after a
// closing quote is kept as part of the field. An unbalanced quote runs to the
// end of the line. Fields are not trimmed.
//
// Unlike encoding/csv this never fails: a broken row still yields columns and
// the parser decides what they mean.
func SplitRecord(line string, delim rune) []string {
	if delim == 0 {
		delim = ','
	}
	line = strings.TrimRight(line, "\r\n")

	var fields []string
	var cur strings.Builder
	runes := []rune(line)
	atStart := true
	inQuote := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inQuote:
			if r != '"' {
				cur.WriteRune(r)
				continue
			}
			if i+1 < len(runes) && runes[i+1] == '"' {
				cur.WriteRune('"')
				i++
				continue
			}
			inQuote = false
		case r == delim:
			fields = append(fields, cur.String())
			cur.Reset()
			atStart = true
		case atStart && r == '"':
			cur.Reset()
			inQuote = true
			atStart = false
		case atStart && unicode.IsSpace(r):
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
			atStart = false
		}
	}
	return append(fields, cur.String())
}
