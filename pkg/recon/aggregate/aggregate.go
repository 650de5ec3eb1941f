package aggregate

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jangsa/recon/pkg/recon/normalize"
	"github.com/jangsa/recon/pkg/recon/priceitem"
)

// DefaultUnit is the currency label of every table.
const DefaultUnit = "원"

// SquareMetersPerPyeong converts the traditional area unit.
const SquareMetersPerPyeong = 3.3058

// Options controls grouping and row order.
type Options struct {
	Unit string
	// SizeCategories are ordered by plot size instead of price.
	SizeCategories []priceitem.Category
	UsageFeeTerms  []string
	ManageFeeTerms []string
	// Order is the canonical facility order; facilities not in it follow,
	// sorted by ID.
	Order []string
}

// DefaultOptions returns the built-in ordering rules.
func DefaultOptions() Options {
	return Options{
		Unit:           DefaultUnit,
		SizeCategories: []priceitem.Category{priceitem.BurialPlot, priceitem.EnshrinementPlot, priceitem.NaturalBurial},
		UsageFeeTerms:  []string{"사용료", "usagefee"},
		ManageFeeTerms: []string{"관리비", "관리료", "managementfee", "maintenance"},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Unit == "" {
		o.Unit = d.Unit
	}
	if o.SizeCategories == nil {
		o.SizeCategories = d.SizeCategories
	}
	if o.UsageFeeTerms == nil {
		o.UsageFeeTerms = d.UsageFeeTerms
	}
	if o.ManageFeeTerms == nil {
		o.ManageFeeTerms = d.ManageFeeTerms
	}
	return o
}

// Row is one line of a price table.
type Row struct {
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
	GroupType   string `json:"groupType,omitempty"`
}

// Section holds the rows of one category.
type Section struct {
	Unit     string             `json:"unit"`
	Category priceitem.Category `json:"category"`
	Rows     []Row              `json:"rows"`
}

// Table is the price table of one facility, sections in taxonomy rank.
type Table struct {
	Sections []Section
}

// MarshalJSON writes an object keyed by category display name with the
// keys in rank order.
func (t Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range t.Sections {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Category.DisplayName())
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Rows counts the rows of all sections.
func (t Table) Rows() int {
	n := 0
	for _, s := range t.Sections {
		n += len(s.Rows)
	}
	return n
}

// FacilityTable is one facility's entry of the document.
type FacilityTable struct {
	FacilityID string
	Table      Table
}

// Document is the price output of a run, facilities in canonical order.
type Document struct {
	Facilities []FacilityTable
}

// MarshalJSON writes an object keyed by facility ID in document order.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d.Facilities {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.FacilityID)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Table)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Table returns the table of facilityID.
func (d Document) Table(facilityID string) (Table, bool) {
	for _, f := range d.Facilities {
		if f.FacilityID == facilityID {
			return f.Table, true
		}
	}
	return Table{}, false
}

// Aggregate groups items by facility and builds each facility's table.
// Items keep their relative input order wherever the ordering rules tie.
func Aggregate(items []priceitem.Item, opts Options) Document {
	opts = opts.withDefaults()

	byFacility := make(map[string][]priceitem.Item)
	for _, it := range items {
		byFacility[it.FacilityID] = append(byFacility[it.FacilityID], it)
	}

	var doc Document
	seen := make(map[string]bool, len(byFacility))
	for _, id := range opts.Order {
		if seen[id] {
			continue
		}
		seen[id] = true
		if group, ok := byFacility[id]; ok {
			doc.Facilities = append(doc.Facilities, FacilityTable{FacilityID: id, Table: BuildTable(group, opts)})
		}
	}

	var rest []string
	for id := range byFacility {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		doc.Facilities = append(doc.Facilities, FacilityTable{FacilityID: id, Table: BuildTable(byFacility[id], opts)})
	}
	return doc
}

// BuildTable orders one facility's items. Empty categories are omitted.
func BuildTable(items []priceitem.Item, opts Options) Table {
	opts = opts.withDefaults()

	buckets := make(map[priceitem.Category][]priceitem.Item)
	for _, it := range items {
		c := it.Category
		if !c.Valid() {
			c = priceitem.Other
		}
		buckets[c] = append(buckets[c], it)
	}

	var t Table
	for _, c := range priceitem.Categories {
		group := buckets[c]
		if len(group) == 0 {
			continue
		}
		sortRows(c, group, opts)
		sec := Section{Unit: opts.Unit, Category: c, Rows: make([]Row, len(group))}
		for i, it := range group {
			sec.Rows[i] = Row{
				Name:        it.ItemName,
				Price:       it.Price,
				Description: it.Description,
				GroupType:   it.GroupType,
			}
		}
		t.Sections = append(t.Sections, sec)
	}
	return t
}

func sortRows(c priceitem.Category, items []priceitem.Item, opts Options) {
	switch {
	case c == priceitem.BaseCost:
		rank := make([]int, len(items))
		for i, it := range items {
			rank[i] = feeRank(it.ItemName, opts)
		}
		sortStableBy(items, func(a, b int) bool { return rank[a] < rank[b] })
	case isSizeCategory(c, opts):
		sizes := make([]float64, len(items))
		has := make([]bool, len(items))
		for i, it := range items {
			sizes[i], has[i] = SquareMeters(it.ItemName + " " + it.Description)
		}
		sortStableBy(items, func(a, b int) bool {
			if has[a] != has[b] {
				return has[a]
			}
			if has[a] && sizes[a] != sizes[b] {
				return sizes[a] < sizes[b]
			}
			return items[a].Price < items[b].Price
		})
	default:
		sort.SliceStable(items, func(a, b int) bool {
			return items[a].Price > items[b].Price
		})
	}
}

// sortStableBy stably sorts items by a comparison on original indices, so
// precomputed per-item keys stay aligned.
func sortStableBy(items []priceitem.Item, less func(a, b int) bool) {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return less(idx[i], idx[j]) })
	sorted := make([]priceitem.Item, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
}

func feeRank(name string, opts Options) int {
	key := normalize.Key(name)
	for _, term := range opts.UsageFeeTerms {
		if t := normalize.Key(term); t != "" && strings.Contains(key, t) {
			return 0
		}
	}
	for _, term := range opts.ManageFeeTerms {
		if t := normalize.Key(term); t != "" && strings.Contains(key, t) {
			return 1
		}
	}
	return 2
}

func isSizeCategory(c priceitem.Category, opts Options) bool {
	for _, s := range opts.SizeCategories {
		if s == c {
			return true
		}
	}
	return false
}

var areaRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(평|㎡|m2|m²|pyeong)`)

// SquareMeters extracts the first area in text, converted to ㎡.
func SquareMeters(text string) (float64, bool) {
	m := areaRe.FindStringSubmatch(normalize.Normalize(text))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "평", "pyeong":
		v *= SquareMetersPerPyeong
	}
	return v, true
}
