package match

import (
	"fmt"

	"github.com/jangsa/recon/pkg/recon/anomaly"
	"github.com/jangsa/recon/pkg/recon/facility"
	"github.com/jangsa/recon/pkg/recon/internalerr"
	"github.com/jangsa/recon/pkg/recon/normalize"
)

// DefaultIDPrefix is used when Options.IDPrefix is empty.
const DefaultIDPrefix = "park"

// Reference is one row of the authoritative ordered list.
type Reference struct {
	// Row is the 1-based row of the entry in its source file, 0 if unknown.
	Row      int
	Name     string
	Address  string
	Category string
	Capacity int
}

// Options configures a reconciliation pass.
type Options struct {
	IDPrefix string
	// Renumber rewrites every ID to prefix-NNNN by list position. Without it
	// existing IDs are kept and only missing ones are assigned.
	Renumber bool
}

// Match records how one reference entry was resolved.
type Match struct {
	ReferenceIndex int
	PoolIndex      int // -1 for placeholders
	Kind           Kind
}

// Result is the outcome of Reconcile.
type Result struct {
	// Records is the canonical list: one record per reference entry in
	// reference order, followed by the pool residue.
	Records   []facility.Record
	Matches   []Match
	Residual  []facility.Record
	Migration []IDChange
	Report    anomaly.Report
}

// Placeholders counts reference entries that had no pool match.
func (r Result) Placeholders() int {
	n := 0
	for _, m := range r.Matches {
		if m.Kind == None {
			n++
		}
	}
	return n
}

// Reconcile aligns reference against pool. Reference entries are processed
// in order on the calling goroutine; each pool entry is used at most once.
// Pool entries nobody claimed are appended, so no record is lost.
func Reconcile(reference []Reference, pool []facility.Record, opts Options) (Result, error) {
	if !hasName(reference) {
		return Result{}, internalerr.ErrEmptyReference
	}
	prefix := opts.IDPrefix
	if prefix == "" {
		prefix = DefaultIDPrefix
	}

	p := NewPool(pool)
	res := Result{
		Records: make([]facility.Record, 0, len(reference)+len(pool)),
		Matches: make([]Match, 0, len(reference)),
	}

	for i, ref := range reference {
		if normalize.Normalize(ref.Name) == "" {
			res.Report.AddFacility(anomaly.Facility{
				ReferenceIndex: i,
				SourceRow:      ref.Row,
				Reason:         anomaly.BlankName,
				Detail:         normalize.Normalize(ref.Address),
			})
			continue
		}

		idx, kind, ok := p.Take(ref.Name, ref.Address)
		if !ok {
			res.Records = append(res.Records, placeholder(ref))
			res.Matches = append(res.Matches, Match{ReferenceIndex: i, PoolIndex: -1, Kind: None})
			res.Report.AddFacility(anomaly.Facility{
				ReferenceIndex: i,
				SourceRow:      ref.Row,
				Name:           normalize.Normalize(ref.Name),
				Reason:         anomaly.Placeholder,
			})
			continue
		}

		rec := p.Entry(idx).Clone()
		applyReference(&rec, ref)
		res.Records = append(res.Records, rec)
		res.Matches = append(res.Matches, Match{ReferenceIndex: i, PoolIndex: idx, Kind: kind})

		if kind == ByStrippedName {
			res.Report.AddFacility(anomaly.Facility{
				ReferenceIndex: i,
				SourceRow:      ref.Row,
				Name:           rec.Name,
				Reason:         anomaly.FuzzyMatch,
				Detail:         fmt.Sprintf("pool name %q", p.Entry(idx).Name),
			})
		}
	}

	residualStart := len(res.Records)
	for _, idx := range p.Remaining() {
		res.Records = append(res.Records, p.Entry(idx).Clone())
	}

	if opts.Renumber {
		res.Records, res.Migration = Renumber(res.Records, prefix)
	} else {
		assignIDs(res.Records, res.Matches, prefix, &res.Report)
	}

	for i := residualStart; i < len(res.Records); i++ {
		rec := res.Records[i]
		res.Residual = append(res.Residual, rec.Clone())
		res.Report.AddFacility(anomaly.Facility{
			ReferenceIndex: -1,
			ID:             rec.ID,
			Name:           rec.Name,
			Reason:         anomaly.MissingInRef,
		})
	}
	for i := range res.Report.Facilities {
		f := &res.Report.Facilities[i]
		if f.ReferenceIndex >= 0 && f.ID == "" {
			f.ID = res.Records[f.ReferenceIndex].ID
		}
	}

	return res, nil
}

func placeholder(ref Reference) facility.Record {
	return facility.Record{
		Name:       normalize.Normalize(ref.Name),
		Address:    normalize.Normalize(ref.Address),
		Category:   normalize.Normalize(ref.Category),
		Capacity:   ref.Capacity,
		Incomplete: true,
	}
}

// applyReference overwrites the reference-owned fields of a matched record.
func applyReference(rec *facility.Record, ref Reference) {
	rec.Name = normalize.Normalize(ref.Name)
	rec.Address = normalize.Normalize(ref.Address)
	if c := normalize.Normalize(ref.Category); c != "" {
		rec.Category = c
	}
	if ref.Capacity > 0 {
		rec.Capacity = ref.Capacity
	}
}

// assignIDs keeps existing unique IDs and gives every record without one
// (or with a duplicate) the ID of its position when free, otherwise the
// next free sequence number.
func assignIDs(records []facility.Record, matches []Match, prefix string, report *anomaly.Report) {
	taken := make(map[string]bool, len(records))
	duplicates := make(map[int]string)
	maxSeq := 0

	for i := range records {
		id := records[i].ID
		if id == "" {
			continue
		}
		if taken[id] {
			duplicates[i] = id
			records[i].ID = ""
			continue
		}
		taken[id] = true
		if p, seq, err := facility.ParseID(id); err == nil && p == prefix && seq > maxSeq {
			maxSeq = seq
		}
	}

	next := maxSeq
	for i := range records {
		if records[i].ID != "" {
			continue
		}
		id := facility.FormatID(prefix, i+1)
		for taken[id] {
			next++
			id = facility.FormatID(prefix, next)
		}
		taken[id] = true
		records[i].ID = id

		refIdx := -1
		if i < len(matches) {
			refIdx = matches[i].ReferenceIndex
		}
		if old, dup := duplicates[i]; dup {
			report.AddFacility(anomaly.Facility{
				ReferenceIndex: refIdx,
				ID:             id,
				Name:           records[i].Name,
				Reason:         anomaly.DuplicateID,
				Detail:         fmt.Sprintf("was %s", old),
			})
		} else if refIdx < 0 {
			report.AddFacility(anomaly.Facility{
				ReferenceIndex: -1,
				ID:             id,
				Name:           records[i].Name,
				Reason:         anomaly.MissingID,
			})
		}
	}
}

func hasName(reference []Reference) bool {
	for _, ref := range reference {
		if normalize.Normalize(ref.Name) != "" {
			return true
		}
	}
	return false
}
