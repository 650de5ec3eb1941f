package recon

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jangsa/recon/pkg/recon/aggregate"
	"github.com/jangsa/recon/pkg/recon/anomaly"
	"github.com/jangsa/recon/pkg/recon/config"
	"github.com/jangsa/recon/pkg/recon/facility"
	"github.com/jangsa/recon/pkg/recon/match"
	"github.com/jangsa/recon/pkg/recon/normalize"
	"github.com/jangsa/recon/pkg/recon/priceitem"
	"github.com/jangsa/recon/pkg/recon/priceline"
	"github.com/jangsa/recon/pkg/recon/store"
)

// Pipeline wires the reconciliation and price stages.
type Pipeline struct {
	comp      *config.Components
	log       logrus.FieldLogger
	workers   int
	matchOpts match.Options
	store     store.Store
}

// Options configures a Pipeline.
type Options struct {
	// Components defaults to the built-in rules when nil.
	Components *config.Components
	Logger     logrus.FieldLogger
	// Workers bounds the facilities processed at once; <= 0 uses GOMAXPROCS.
	Workers int
	Match   match.Options
	// Store archives each Run when set.
	Store store.Store
}

// New creates a Pipeline with the given dependencies.
func New(opts Options) (*Pipeline, error) {
	comp := opts.Components
	if comp == nil {
		loaded, err := (&config.Loader{}).Load()
		if err != nil {
			return nil, err
		}
		comp = loaded
	}
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pipeline{
		comp:      comp,
		log:       logger,
		workers:   workers,
		matchOpts: opts.Match,
		store:     opts.Store,
	}, nil
}

// Input is everything one run reads.
type Input struct {
	Reference []match.Reference
	Pool      []facility.Record
	// Prices is the raw price export; nil skips the price stages.
	Prices io.Reader
}

// Result is the outcome of a full run. Everything except RunID is a pure
// function of the input.
type Result struct {
	Facilities []facility.Record
	Migration  []match.IDChange
	Items      []priceitem.Item
	Prices     aggregate.Document
	Report     anomaly.Report
	Summary    Summary

	// RunID is set when the run was archived.
	RunID string
}

// Summary holds the end-of-run counts.
type Summary struct {
	Records      int
	Placeholders int
	Residual     int
	Items        int
	Flags        int
	Reasons      map[anomaly.Reason]int
}

// Fields renders the summary as log fields.
func (s Summary) Fields() logrus.Fields {
	f := logrus.Fields{
		"records":      s.Records,
		"placeholders": s.Placeholders,
		"residual":     s.Residual,
		"items":        s.Items,
		"flags":        s.Flags,
	}
	for reason, n := range s.Reasons {
		f["n_"+string(reason)] = n
	}
	return f
}

// Run reconciles the facility list, then parses, classifies, distills and
// aggregates the price rows against it.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	mres, err := p.Match(in.Reference, in.Pool)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Facilities: mres.Records,
		Migration:  mres.Migration,
		Report:     mres.Report,
		Summary: Summary{
			Records:      len(mres.Records),
			Placeholders: mres.Placeholders(),
			Residual:     len(mres.Residual),
		},
	}

	if in.Prices != nil {
		pres, err := p.Prices(ctx, in.Prices, mres.Records, mres.Migration)
		if err != nil {
			return nil, err
		}
		res.Items = pres.Items
		res.Prices = pres.Document
		res.Report.Merge(pres.Report)
		res.Summary.Items = len(pres.Items)
	}
	res.Report.Sort()
	res.Summary.Flags = len(res.Report.Items)
	res.Summary.Reasons = res.Report.Counts()

	if p.store != nil {
		run := &store.Run{Facilities: res.Facilities, Items: res.Items, Report: res.Report}
		if err := p.store.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("archive run: %w", err)
		}
		res.RunID = run.ID
		p.log.WithField("run_id", run.ID).Info("run archived")
	}

	p.log.WithFields(res.Summary.Fields()).Info("run complete")
	return res, nil
}

// Match runs the entity matcher alone.
func (p *Pipeline) Match(reference []match.Reference, pool []facility.Record) (match.Result, error) {
	log := p.log.WithField("stage", "match")
	res, err := match.Reconcile(reference, pool, p.matchOpts)
	if err != nil {
		return match.Result{}, fmt.Errorf("reconcile: %w", err)
	}
	for _, a := range res.Report.Facilities {
		log.WithFields(logrus.Fields{
			"facility_id": a.ID,
			"reference":   a.ReferenceIndex,
			"reason":      a.Reason,
		}).Debug(a.Name)
	}
	log.WithFields(logrus.Fields{
		"reference":    len(reference),
		"pool":         len(pool),
		"placeholders": res.Placeholders(),
		"residual":     len(res.Residual),
	}).Info("facilities reconciled")
	return res, nil
}

// PriceResult is the outcome of the price stages.
type PriceResult struct {
	Items    []priceitem.Item
	Document aggregate.Document
	Report   anomaly.Report
}

// Prices parses the price export in r and runs classification and
// distillation per facility in parallel. Items are then keyed to the
// canonical facilities (migration applies a renumbering pass) and
// aggregated in canonical order. With no facilities the row IDs are
// taken as they are.
func (p *Pipeline) Prices(ctx context.Context, r io.Reader, facilities []facility.Record, migration []match.IDChange) (PriceResult, error) {
	parsed, err := p.comp.Parser.ParseAll(ctx, r)
	if err != nil {
		return PriceResult{}, fmt.Errorf("parse prices: %w", err)
	}

	items := make([]priceitem.Item, len(parsed))
	groups, order := groupByFacility(parsed)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, id := range order {
		idx := groups[id]
		g.Go(func() error {
			for _, i := range idx {
				if err := gctx.Err(); err != nil {
					return err
				}
				it := p.comp.Classifier.Classify(parsed[i].Item)
				items[i] = p.comp.Distiller.Distill(it)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PriceResult{}, err
	}

	if len(facilities) > 0 {
		converge(items, facilities, migration)
	}

	var report anomaly.Report
	log := p.log.WithField("stage", "prices")
	for _, it := range items {
		for _, a := range it.Anomalies() {
			report.AddItem(a)
			log.WithFields(logrus.Fields{
				"facility_id": a.FacilityID,
				"line":        a.ItemRow,
				"reason":      a.Reason,
			}).Debug(a.Detail)
		}
	}
	report.Sort()

	aggOpts := p.comp.Aggregate
	aggOpts.Order = make([]string, len(facilities))
	for i, f := range facilities {
		aggOpts.Order[i] = f.ID
	}
	doc := aggregate.Aggregate(items, aggOpts)

	log.WithFields(logrus.Fields{
		"rows":       len(parsed),
		"facilities": len(doc.Facilities),
		"flags":      len(report.Items),
	}).Info("prices processed")

	return PriceResult{Items: items, Document: doc, Report: report}, nil
}

// groupByFacility returns the row indexes of each source facility ID and
// the IDs in order of first appearance.
func groupByFacility(parsed []priceline.ParsedLine) (map[string][]int, []string) {
	groups := make(map[string][]int)
	var order []string
	for i, pl := range parsed {
		id := pl.Item.FacilityID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], i)
	}
	return groups, order
}

// converge rewrites item facility IDs onto the canonical list. Row IDs are
// read in the ID space the rows were exported in: after a renumbering pass a
// row ID named in the migration moves even when the same string is now the
// canonical ID of another facility. Otherwise canonical IDs stay, and a name
// that identifies exactly one canonical facility wins. Anything else is kept
// and flagged.
func converge(items []priceitem.Item, facilities []facility.Record, migration []match.IDChange) {
	known := make(map[string]bool, len(facilities))
	byName := make(map[string][]string)
	for _, f := range facilities {
		known[f.ID] = true
		k := normalize.Key(f.Name)
		if k != "" {
			byName[k] = append(byName[k], f.ID)
		}
	}
	moved := match.MigrationMap(migration)
	ambiguous := make(map[string]bool)
	for _, c := range migration {
		if moved[c.Old] != c.New {
			ambiguous[c.Old] = true
		}
	}

	for i := range items {
		it := &items[i]
		if id, ok := moved[it.FacilityID]; ok && !ambiguous[it.FacilityID] && known[id] {
			it.FacilityID = id
			continue
		}
		if known[it.FacilityID] && !ambiguous[it.FacilityID] {
			continue
		}
		if ids := byName[normalize.Key(it.FacilityName)]; len(ids) == 1 {
			if ids[0] == it.FacilityID {
				continue
			}
			it.AddFlag(anomaly.FacilityRemapped, fmt.Sprintf("%q -> %s", it.FacilityID, ids[0]))
			it.FacilityID = ids[0]
			continue
		}
		it.AddFlag(anomaly.UnknownFacility, it.FacilityName)
	}
}
