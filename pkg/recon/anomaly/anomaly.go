package anomaly

import (
	"encoding/json"
	"sort"
)

// Reason classifies why a record or row ended up in the report.
type Reason string

// Facility-level reasons.
const (
	Placeholder  Reason = "placeholder"          // reference entry had no pool match
	MissingInRef Reason = "missing-in-reference" // pool entry no reference entry claimed
	FuzzyMatch   Reason = "fuzzy-match"          // matched only by the stripped name key
	DuplicateID  Reason = "duplicate-id"         // pool id already in use, reassigned
	MissingID    Reason = "missing-id"           // pool entry had no id, one was assigned
	BlankName    Reason = "blank-name"           // reference row without a name, skipped
)

// Item-level reasons.
const (
	PriceMissing     Reason = "price-missing"
	PriceRange       Reason = "price-range"
	ShortNumeric     Reason = "short-numeric"
	PriceUnparsable  Reason = "price-unparsable"
	ColumnsRecovered Reason = "columns-recovered"
	TooFewColumns    Reason = "too-few-columns"
	LowConfidence    Reason = "low-confidence"
	Reclassified     Reason = "reclassified"
	NameTooShort     Reason = "name-too-short"
	UnknownFacility  Reason = "unknown-facility"
	FacilityRemapped Reason = "facility-remapped"
)

// Facility is a facility-level finding of the entity matcher.
// ReferenceIndex is -1 for pool entries without a reference counterpart.
type Facility struct {
	ReferenceIndex int    `json:"referenceIndex"`
	SourceRow      int    `json:"sourceRow,omitempty"`
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Reason         Reason `json:"reason"`
	Detail         string `json:"detail,omitempty"`
}

// Item is a low-confidence parse or classification of one price row.
type Item struct {
	FacilityID string `json:"facilityId"`
	ItemRow    int    `json:"itemRow"`
	Reason     Reason `json:"reason"`
	Detail     string `json:"detail,omitempty"`
}

// Report collects the anomalies of one run.
type Report struct {
	Facilities []Facility `json:"facilities"`
	Items      []Item     `json:"items"`
}

type reportAlias Report

// MarshalJSON emits empty arrays instead of null so consumers can iterate
// without nil checks.
func (r Report) MarshalJSON() ([]byte, error) {
	out := reportAlias(r)
	if out.Facilities == nil {
		out.Facilities = []Facility{}
	}
	if out.Items == nil {
		out.Items = []Item{}
	}
	return json.Marshal(out)
}

// AddFacility appends a facility finding.
func (r *Report) AddFacility(a Facility) {
	r.Facilities = append(r.Facilities, a)
}

// AddItem appends an item finding.
func (r *Report) AddItem(a Item) {
	r.Items = append(r.Items, a)
}

// Merge appends everything from other.
func (r *Report) Merge(other Report) {
	r.Facilities = append(r.Facilities, other.Facilities...)
	r.Items = append(r.Items, other.Items...)
}

// Sort orders item findings by source row, keeping the per-row order in
// which stages raised them. Facility findings stay in matcher order.
func (r *Report) Sort() {
	sort.SliceStable(r.Items, func(i, j int) bool {
		return r.Items[i].ItemRow < r.Items[j].ItemRow
	})
}

// Counts tallies findings per reason.
func (r *Report) Counts() map[Reason]int {
	out := make(map[Reason]int)
	for _, f := range r.Facilities {
		out[f.Reason]++
	}
	for _, it := range r.Items {
		out[it.Reason]++
	}
	return out
}

// Empty reports whether nothing was recorded.
func (r *Report) Empty() bool {
	return len(r.Facilities) == 0 && len(r.Items) == 0
}
