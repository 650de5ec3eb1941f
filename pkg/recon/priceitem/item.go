package priceitem

import "github.com/jangsa/recon/pkg/recon/anomaly"

// Group types distinguish plot sizes within one category.
const (
	GroupIndividual = "개인"
	GroupCouple     = "부부"
	GroupFamily     = "가족"
)

// Flag marks a data-quality finding on one item. Flags never remove an item.
type Flag struct {
	Reason anomaly.Reason `json:"reason"`
	Detail string         `json:"detail,omitempty"`
}

// Item is the cleaned unit of pricing information.
type Item struct {
	FacilityID   string   `json:"facilityId"`
	FacilityName string   `json:"facilityName,omitempty"`
	Category     Category `json:"category"`
	ItemName     string   `json:"itemName"`
	Price        int64    `json:"price"`
	Description  string   `json:"description,omitempty"`
	GroupType    string   `json:"groupType,omitempty"`
	Line         int      `json:"line"`
	Flags        []Flag   `json:"flags,omitempty"`

	// CategoryHint is the source's own category column, possibly wrong.
	// The classifier falls back to it when no rule matches the name.
	CategoryHint string `json:"-"`
}

// AddFlag records a finding on the item.
func (it *Item) AddFlag(reason anomaly.Reason, detail string) {
	it.Flags = append(it.Flags, Flag{Reason: reason, Detail: detail})
}

// HasFlag reports whether reason was raised for the item.
func (it *Item) HasFlag(reason anomaly.Reason) bool {
	for _, f := range it.Flags {
		if f.Reason == reason {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices with it.
func (it Item) Clone() Item {
	if it.Flags != nil {
		it.Flags = append([]Flag(nil), it.Flags...)
	}
	return it
}

// Anomalies converts the item's flags into report entries.
func (it Item) Anomalies() []anomaly.Item {
	out := make([]anomaly.Item, 0, len(it.Flags))
	for _, f := range it.Flags {
		out = append(out, anomaly.Item{
			FacilityID: it.FacilityID,
			ItemRow:    it.Line,
			Reason:     f.Reason,
			Detail:     f.Detail,
		})
	}
	return out
}
