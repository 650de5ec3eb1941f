package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jangsa/recon/pkg/recon/anomaly"
	"github.com/jangsa/recon/pkg/recon/facility"
	"github.com/jangsa/recon/pkg/recon/internalerr"
	"github.com/jangsa/recon/pkg/recon/priceitem"
	"github.com/jangsa/recon/pkg/recon/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu   sync.RWMutex
	runs []store.Run
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveRun keeps a deep copy of r.
func (s *Store) SaveRun(ctx context.Context, r *store.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.Stamp()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.runs {
		if existing.ID == r.ID {
			return fmt.Errorf("%w: run %s already stored", internalerr.ErrInvalidInput, r.ID)
		}
	}
	s.runs = append(s.runs, copyRun(*r))
	return nil
}

// LatestFacilities returns the facility list of the newest run.
func (s *Store) LatestFacilities(ctx context.Context) ([]facility.Record, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.newest()
	if idx < 0 {
		return nil, "", fmt.Errorf("latest run: %w", internalerr.ErrNotFound)
	}
	run := s.runs[idx]
	return copyRecords(run.Facilities), run.ID, nil
}

// FacilityPrices returns one facility's items of a run.
func (s *Store) FacilityPrices(ctx context.Context, runID, facilityID string) ([]priceitem.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, run := range s.runs {
		if run.ID != runID {
			continue
		}
		var out []priceitem.Item
		for _, it := range run.Items {
			if it.FacilityID == facilityID {
				out = append(out, it.Clone())
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]store.RunInfo, error) {
	if limit <= 0 {
		limit = store.DefaultRunLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.RunInfo, 0, len(s.runs))
	for i := range s.runs {
		out = append(out, s.runs[i].Info())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i], out[j])
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) newest() int {
	best := -1
	for i := range s.runs {
		if best < 0 || newer(s.runs[i].Info(), s.runs[best].Info()) {
			best = i
		}
	}
	return best
}

func newer(a, b store.RunInfo) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func copyRun(r store.Run) store.Run {
	out := r
	out.Facilities = copyRecords(r.Facilities)
	out.Items = make([]priceitem.Item, len(r.Items))
	for i, it := range r.Items {
		out.Items[i] = it.Clone()
	}
	out.Report.Facilities = append([]anomaly.Facility(nil), r.Report.Facilities...)
	out.Report.Items = append([]anomaly.Item(nil), r.Report.Items...)
	return out
}

func copyRecords(in []facility.Record) []facility.Record {
	out := make([]facility.Record, len(in))
	for i, rec := range in {
		out[i] = rec.Clone()
	}
	return out
}
