package store

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jangsa/recon/pkg/recon/anomaly"
	"github.com/jangsa/recon/pkg/recon/facility"
	"github.com/jangsa/recon/pkg/recon/priceitem"
)

// Store archives pipeline runs. It is a side channel: nothing read back
// from it is written into the canonical outputs except the facility list
// when a caller uses it as the next matcher pool.
type Store interface {
	Close() error

	// SaveRun stores a run in one transaction. An empty ID or zero
	// CreatedAt is filled in before writing.
	SaveRun(ctx context.Context, r *Run) error

	// LatestFacilities returns the canonical list of the newest run and
	// that run's ID. internalerr.ErrNotFound when nothing is stored.
	LatestFacilities(ctx context.Context) ([]facility.Record, string, error)

	// FacilityPrices returns the items stored for one facility in a run,
	// in the order they were saved.
	FacilityPrices(ctx context.Context, runID, facilityID string) ([]priceitem.Item, error)

	// Runs lists stored runs, newest first.
	Runs(ctx context.Context, limit int) ([]RunInfo, error)
}

// Run is one archived pipeline execution.
type Run struct {
	ID         string
	CreatedAt  time.Time
	Facilities []facility.Record
	Items      []priceitem.Item
	Report     anomaly.Report
}

// RunInfo summarizes a stored run.
type RunInfo struct {
	ID         string
	CreatedAt  time.Time
	Facilities int
	Items      int
	Anomalies  int
}

// Info returns the summary of r.
func (r *Run) Info() RunInfo {
	return RunInfo{
		ID:         r.ID,
		CreatedAt:  r.CreatedAt,
		Facilities: len(r.Facilities),
		Items:      len(r.Items),
		Anomalies:  len(r.Report.Facilities) + len(r.Report.Items),
	}
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a ULID; IDs sort in creation order.
func NewRunID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Stamp fills in a missing ID and creation time.
func (r *Run) Stamp() {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.ID == "" {
		r.ID = NewRunID(r.CreatedAt)
	}
}

// DefaultRunLimit is used by Runs when limit <= 0.
const DefaultRunLimit = 20
