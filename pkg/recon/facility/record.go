package facility

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jangsa/recon/pkg/recon/normalize"
)

// Coordinates is a WGS84 position carried over from earlier geocoding.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Record is one physical facility in the canonical list.
type Record struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Address     string       `json:"address"`
	Category    string       `json:"category,omitempty"`
	Capacity    int          `json:"capacity,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Images      []string     `json:"images,omitempty"`
	Rating      float64      `json:"rating,omitempty"`
	Incomplete  bool         `json:"incomplete,omitempty"`

	// Extra holds every pool field this type does not model so that a
	// reconciliation run never drops data it does not understand.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownFields are the JSON keys owned by Record itself.
var knownFields = map[string]bool{
	"id": true, "name": true, "address": true, "category": true,
	"capacity": true, "coordinates": true, "images": true,
	"rating": true, "incomplete": true,
}

type recordAlias Record

// UnmarshalJSON decodes the modelled fields and keeps the rest in Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var alias recordAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k, v := range all {
		if knownFields[k] {
			continue
		}
		if alias.Extra == nil {
			alias.Extra = make(map[string]json.RawMessage)
		}
		alias.Extra[k] = v
	}

	*r = Record(alias)
	return nil
}

// MarshalJSON writes the modelled fields first, then Extra in key order, so
// the encoding is stable across runs.
func (r Record) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(recordAlias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}

	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		if !knownFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(base[:len(base)-1])
	for _, k := range keys {
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val := r.Extra[k]
		if len(val) == 0 {
			val = json.RawMessage("null")
		}
		buf.WriteByte(',')
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Clone returns a deep copy; matched pool entries are cloned before the
// reference fields are written over them.
func (r Record) Clone() Record {
	out := r
	if r.Coordinates != nil {
		c := *r.Coordinates
		out.Coordinates = &c
	}
	if r.Images != nil {
		out.Images = append([]string(nil), r.Images...)
	}
	if r.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// MatchKey is the derived (name+address) comparison key. It is never stored.
func (r Record) MatchKey() string {
	return FullKey(r.Name, r.Address)
}

// FullKey builds the (name+address) key from raw strings.
func FullKey(name, address string) string {
	return normalize.Key(name) + "|" + normalize.Key(address)
}

// Validate checks if the record has the fields the canonical list requires.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("facility id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("facility name is required")
	}
	if _, _, err := ParseID(r.ID); err != nil {
		return err
	}
	return nil
}

// FormatID renders a stable identifier: prefix + "-" + zero-padded sequence.
func FormatID(prefix string, seq int) string {
	return fmt.Sprintf("%s-%04d", prefix, seq)
}

// ParseID splits an identifier produced by FormatID.
func ParseID(id string) (prefix string, seq int, err error) {
	i := strings.LastIndexByte(id, '-')
	if i <= 0 || i == len(id)-1 {
		return "", 0, fmt.Errorf("facility id %q: want prefix-NNNN", id)
	}
	seq, err = strconv.Atoi(id[i+1:])
	if err != nil || seq < 0 {
		return "", 0, fmt.Errorf("facility id %q: bad sequence", id)
	}
	return id[:i], seq, nil
}
