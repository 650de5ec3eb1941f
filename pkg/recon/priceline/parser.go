package priceline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/jangsa/recon/pkg/recon/anomaly"
	"github.com/jangsa/recon/pkg/recon/normalize"
	"github.com/jangsa/recon/pkg/recon/priceitem"
)

// Column positions of the nominal row schema.
const (
	ColFacilityID = iota
	ColFacilityName
	ColCategory
	ColItemName
	ColPrice
	ColDescription

	// SchemaWidth is the number of columns of a well-formed row.
	SchemaWidth
)

// Raw is one source row as it was split, before any interpretation.
type Raw struct {
	Line            int      `json:"line"`
	FacilityID      string   `json:"facilityId"`
	FacilityName    string   `json:"facilityName"`
	CategoryHint    string   `json:"categoryHint"`
	ItemText        string   `json:"itemText"`
	PriceText       string   `json:"priceText"`
	DescriptionText string   `json:"descriptionText"`
	Columns         []string `json:"columns"`
}

// ParsedLine pairs a source row with the item recovered from it.
type ParsedLine struct {
	Raw  Raw
	Item priceitem.Item
}

// Parser recovers price items from delimited rows.
type Parser struct {
	delim rune
	// minPrice is the value a bare numeric token must exceed to be taken as
	// the price during column recovery.
	minPrice int64
}

// NewParser creates a parser for the given delimiter (',' when zero).
func NewParser(delim rune) *Parser {
	if delim == 0 {
		delim = ','
	}
	return &Parser{delim: delim, minPrice: ShortNumericLimit}
}

// Delimiter returns the column delimiter.
func (p *Parser) Delimiter() rune {
	return p.delim
}

var (
	digitsOnly  = regexp.MustCompile(`^[0-9]+$`)
	leadGroup   = regexp.MustCompile(`^[0-9]{1,3}$`)
	thousandsGr = regexp.MustCompile(`^[0-9]{3}$`)
)

// Parse interprets one row. The row is never rejected: whatever cannot be
// recovered is reported as flags on the returned item.
func (p *Parser) Parse(line string, lineNo int) (Raw, priceitem.Item) {
	cols := SplitRecord(line, p.delim)
	raw := Raw{Line: lineNo, Columns: cols}
	raw.FacilityID = column(cols, ColFacilityID)
	raw.FacilityName = column(cols, ColFacilityName)
	raw.CategoryHint = column(cols, ColCategory)

	it := priceitem.Item{
		FacilityID:   normalize.Normalize(raw.FacilityID),
		FacilityName: normalize.Normalize(raw.FacilityName),
		Category:     priceitem.Other,
		CategoryHint: raw.CategoryHint,
		Line:         lineNo,
	}
	if c, ok := priceitem.ParseCategory(raw.CategoryHint); ok {
		it.Category = c
	}

	if len(cols) <= ColItemName {
		raw.ItemText = strings.Join(cols[min(len(cols), ColCategory+1):], string(p.delim))
		it.ItemName = cleanText(raw.ItemText)
		it.AddFlag(anomaly.TooFewColumns, fmt.Sprintf("%d columns", len(cols)))
		it.AddFlag(anomaly.PriceMissing, "")
		return raw, it
	}

	// Direct mapping when the shape is right and the price column reads.
	if len(cols) == SchemaWidth || len(cols) == SchemaWidth-1 {
		price, status := ParsePrice(cols[ColPrice])
		// "3","000" in the price column is a cut number, not a term.
		if start, end, ok := p.findSplitThousands(cols); status == PriceShort && ok && start == ColPrice {
			p.assemble(&raw, cols, start, end)
			price, status = ParsePrice(strings.Join(cols[start:end+1], ""))
			p.fill(&it, raw, price, status)
			it.AddFlag(anomaly.ColumnsRecovered, fmt.Sprintf("%d columns, price split over columns %d-%d", len(cols), start+1, end+1))
			return raw, it
		}
		if status != PriceInvalid {
			raw.ItemText = cols[ColItemName]
			raw.PriceText = cols[ColPrice]
			raw.DescriptionText = column(cols, ColDescription)
			p.fill(&it, raw, price, status)
			return raw, it
		}
	}

	if idx, ok := p.findPriceToken(cols); ok {
		p.assemble(&raw, cols, idx, idx)
		price, status := ParsePrice(raw.PriceText)
		p.fill(&it, raw, price, status)
		it.AddFlag(anomaly.ColumnsRecovered, fmt.Sprintf("%d columns, price in column %d", len(cols), idx+1))
		return raw, it
	}

	if start, end, ok := p.findSplitThousands(cols); ok {
		p.assemble(&raw, cols, start, end)
		price, status := ParsePrice(raw.PriceText)
		p.fill(&it, raw, price, status)
		it.AddFlag(anomaly.ColumnsRecovered, fmt.Sprintf("%d columns, price split over columns %d-%d", len(cols), start+1, end+1))
		return raw, it
	}

	// Nothing looks like a price. Keep the row and everything in it.
	raw.ItemText = cols[ColItemName]
	raw.PriceText = column(cols, ColPrice)
	if len(cols) > ColDescription {
		raw.DescriptionText = strings.Join(cols[ColDescription:], string(p.delim))
	}
	it.ItemName = cleanText(raw.ItemText)
	it.Description = cleanText(raw.DescriptionText)
	if strings.TrimSpace(raw.PriceText) != "" {
		if len(cols) == SchemaWidth {
			it.AddFlag(anomaly.PriceUnparsable, raw.PriceText)
		} else {
			it.Description = joinNonEmpty(cleanText(raw.PriceText), it.Description)
			it.AddFlag(anomaly.PriceMissing, fmt.Sprintf("%d columns", len(cols)))
		}
	} else {
		it.AddFlag(anomaly.PriceMissing, "")
	}
	return raw, it
}

// fill copies the text columns and the price into the item and flags the
// price status.
func (p *Parser) fill(it *priceitem.Item, raw Raw, price int64, status PriceStatus) {
	it.ItemName = cleanText(raw.ItemText)
	it.Description = cleanText(raw.DescriptionText)
	it.Price = price

	switch status {
	case PriceBlank:
		it.AddFlag(anomaly.PriceMissing, strings.TrimSpace(raw.PriceText))
	case PriceRange:
		it.AddFlag(anomaly.PriceRange, strings.TrimSpace(raw.PriceText))
	case PriceShort:
		it.AddFlag(anomaly.ShortNumeric, strings.TrimSpace(raw.PriceText))
	case PriceInvalid:
		it.AddFlag(anomaly.PriceUnparsable, strings.TrimSpace(raw.PriceText))
	}
}

// assemble rejoins the item columns in front of the price span [start, end]
// and the description columns after it.
func (p *Parser) assemble(raw *Raw, cols []string, start, end int) {
	sep := string(p.delim)
	raw.ItemText = strings.Join(cols[ColItemName:start], sep)
	raw.PriceText = strings.Join(cols[start:end+1], sep)
	if end+1 < len(cols) {
		raw.DescriptionText = strings.Join(cols[end+1:], sep)
	}
}

// findPriceToken scans the columns after the item name from the right for
// the last token that can only be a price: digits (after removing
// separators and a trailing 원) of at least four characters whose value
// exceeds the short-numeric limit, or an amount written with 만/억 units.
func (p *Parser) findPriceToken(cols []string) (int, bool) {
	for i := len(cols) - 1; i > ColItemName; i-- {
		if p.isPriceToken(cols[i]) {
			return i, true
		}
	}
	return -1, false
}

func (p *Parser) isPriceToken(s string) bool {
	t := strings.TrimSuffix(priceKey(s), "원")
	t = strings.ReplaceAll(t, ",", "")
	if digitsOnly.MatchString(t) {
		if len(t) < 4 {
			return false
		}
		v, err := strconv.ParseInt(t, 10, 64)
		return err == nil && v > p.minPrice && v <= MaxPrice
	}
	if !strings.ContainsAny(t, "만억") {
		return false
	}
	v, status := ParsePrice(s)
	return status == PriceOK && v > p.minPrice
}

// findSplitThousands finds an unquoted grouped number that the delimiter cut
// apart, e.g. "3","000","000". It returns the inclusive column span.
func (p *Parser) findSplitThousands(cols []string) (int, int, bool) {
	for end := len(cols) - 1; end > ColItemName+1; end-- {
		if !thousandsGr.MatchString(groupText(cols[end])) {
			continue
		}
		start := end
		for start-1 > ColItemName && thousandsGr.MatchString(strings.TrimSpace(cols[start-1])) {
			start--
		}
		if start-1 > ColItemName && leadGroup.MatchString(strings.TrimSpace(cols[start-1])) {
			start--
		}
		if start == end {
			continue
		}
		v, status := ParsePrice(strings.Join(cols[start:end+1], ""))
		if status == PriceOK && v > p.minPrice {
			return start, end, true
		}
	}
	return -1, -1, false
}

func groupText(s string) string {
	return strings.TrimSuffix(strings.TrimSpace(s), "원")
}

// ParseAll reads rows from r. Blank lines and a leading header row are
// skipped; every other line yields exactly one ParsedLine. Read errors and
// context cancellation abort.
func (p *Parser) ParseAll(ctx context.Context, r io.Reader) ([]ParsedLine, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var out []ParsedLine
	lineNo := 0
	sawData := false
	for scanner.Scan() {
		lineNo++
		if lineNo%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := scanner.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !sawData {
			sawData = true
			if isHeader(SplitRecord(line, p.delim)) {
				continue
			}
		}
		raw, it := p.Parse(line, lineNo)
		out = append(out, ParsedLine{Raw: raw, Item: it})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read price rows at line %d: %w", lineNo+1, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var headerNames = map[string]bool{
	"facilityid": true, "facility_id": true, "id": true, "시설id": true, "시설코드": true,
	"facilityname": true, "facility_name": true, "시설명": true, "name": true,
	"category": true, "구분": true, "분류": true, "카테고리": true,
	"itemname": true, "item_name": true, "item": true, "항목": true, "항목명": true, "품목": true,
	"price": true, "가격": true, "금액": true, "요금": true,
	"description": true, "rawdescription": true, "raw_description": true, "비고": true, "설명": true,
}

// isHeader reports whether at least two columns are known column names.
func isHeader(cols []string) bool {
	hits := 0
	for _, c := range cols {
		if headerNames[normalize.Key(c)] {
			hits++
		}
	}
	return hits >= 2
}

func column(cols []string, i int) string {
	if i < len(cols) {
		return cols[i]
	}
	return ""
}

// cleanText turns a raw text column into display text.
func cleanText(s string) string {
	return normalize.Normalize(normalize.StripHTML(s))
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, s := range parts {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, " ")
}
